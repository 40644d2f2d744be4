package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"moh-portal/internal/model"
)

// UserListFilters 用户列表筛选条件
type UserListFilters struct {
	Status string
	Role   string
	City   string
	Search string // 匹配 username / game_nick（不区分大小写）
}

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	// FindLatestByUsername / FindLatestByGameNick 在未删除状态中按 created_at 取最新一条，excludeID 非空时排除自身
	FindLatestByUsername(ctx context.Context, username, excludeID string) (*model.User, error)
	FindLatestByGameNick(ctx context.Context, gameNick, excludeID string) (*model.User, error)
	FindLatestByIP(ctx context.Context, ip string) (*model.User, error)
	List(ctx context.Context, filters *UserListFilters, offset, limit int) ([]model.User, int64, error)
	Updates(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
}

// userRepo UserRepository 的 GORM 实现
type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) FindLatestByUsername(ctx context.Context, username, excludeID string) (*model.User, error) {
	return r.findLatest(ctx, "LOWER(username) = ?", strings.ToLower(username), excludeID)
}

func (r *userRepo) FindLatestByGameNick(ctx context.Context, gameNick, excludeID string) (*model.User, error) {
	return r.findLatest(ctx, "LOWER(game_nick) = ?", strings.ToLower(gameNick), excludeID)
}

func (r *userRepo) FindLatestByIP(ctx context.Context, ip string) (*model.User, error) {
	return r.findLatest(ctx, "ip_address = ?", ip, "")
}

func (r *userRepo) findLatest(ctx context.Context, cond string, value interface{}, excludeID string) (*model.User, error) {
	var user model.User
	db := r.db.WithContext(ctx).
		Where(cond, value).
		Where("status IN ?", model.LiveStatuses)
	if excludeID != "" {
		db = db.Where("id <> ?", excludeID)
	}
	err := db.Order("created_at DESC").Limit(1).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) List(ctx context.Context, filters *UserListFilters, offset, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	db := r.db.WithContext(ctx).Model(&model.User{})
	if filters != nil {
		if filters.Status != "" {
			db = db.Where("status = ?", filters.Status)
		}
		if filters.Role != "" {
			db = db.Where("role = ?", filters.Role)
		}
		if filters.City != "" {
			db = db.Where("city = ?", filters.City)
		}
		if kw := strings.TrimSpace(filters.Search); kw != "" {
			like := "%" + kw + "%"
			db = db.Where("username ILIKE ? OR game_nick ILIKE ?", like, like)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// Updates 按字段更新；目标不存在时返回 gorm.ErrRecordNotFound
func (r *userRepo) Updates(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete 物理删除
func (r *userRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
