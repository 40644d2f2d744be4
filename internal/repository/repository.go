package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	User        UserRepository
	ActionLog   ActionLogRepository
	Promotion   PromotionRepository
	AvatarLimit AvatarLimitRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		User:        NewUserRepo(db),
		ActionLog:   NewActionLogRepo(db),
		Promotion:   NewPromotionRepo(db),
		AvatarLimit: NewAvatarLimitRepo(db),
	}
}
