package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"moh-portal/internal/model"
)

// AvatarLimitRepository 头像上传频率表数据访问接口
type AvatarLimitRepository interface {
	Get(ctx context.Context, userID string) (*model.AvatarUploadLimit, error)
	Touch(ctx context.Context, userID string, at time.Time) error
}

type avatarLimitRepo struct {
	db *gorm.DB
}

// NewAvatarLimitRepo 创建 AvatarLimitRepository 实例
func NewAvatarLimitRepo(db *gorm.DB) AvatarLimitRepository {
	return &avatarLimitRepo{db: db}
}

func (r *avatarLimitRepo) Get(ctx context.Context, userID string) (*model.AvatarUploadLimit, error) {
	var limit model.AvatarUploadLimit
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&limit).Error
	if err != nil {
		return nil, err
	}
	return &limit, nil
}

// Touch 写入或刷新最近上传时间
func (r *avatarLimitRepo) Touch(ctx context.Context, userID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_upload_at"}),
		}).
		Create(&model.AvatarUploadLimit{UserID: userID, LastUploadAt: at}).Error
}
