package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"moh-portal/internal/model"
)

// ActionLogFilters 审计日志筛选条件
type ActionLogFilters struct {
	UserID     string
	ActionType string
	TargetID   string
	Undone     *bool
	From       *time.Time
	To         *time.Time
}

// ActionLogRepository 审计日志数据访问接口（仅追加，undone 字段除外）
type ActionLogRepository interface {
	Create(ctx context.Context, log *model.ActionLog) error
	GetByID(ctx context.Context, id int64) (*model.ActionLog, error)
	List(ctx context.Context, filters *ActionLogFilters, offset, limit int) ([]model.ActionLog, int64, error)
	// MarkUndone 仅在 undone=false 时写入撤销信息，返回是否命中
	MarkUndone(ctx context.Context, id int64, byID, byNick string, at time.Time) (bool, error)
}

type actionLogRepo struct {
	db *gorm.DB
}

// NewActionLogRepo 创建 ActionLogRepository 实例
func NewActionLogRepo(db *gorm.DB) ActionLogRepository {
	return &actionLogRepo{db: db}
}

func (r *actionLogRepo) Create(ctx context.Context, log *model.ActionLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *actionLogRepo) GetByID(ctx context.Context, id int64) (*model.ActionLog, error) {
	var log model.ActionLog
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&log).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *actionLogRepo) List(ctx context.Context, filters *ActionLogFilters, offset, limit int) ([]model.ActionLog, int64, error) {
	var logs []model.ActionLog
	var total int64

	db := r.db.WithContext(ctx).Model(&model.ActionLog{})
	if filters != nil {
		if filters.UserID != "" {
			db = db.Where("user_id = ?", filters.UserID)
		}
		if filters.ActionType != "" {
			db = db.Where("action_type = ?", filters.ActionType)
		}
		if filters.TargetID != "" {
			db = db.Where("target_id = ?", filters.TargetID)
		}
		if filters.Undone != nil {
			db = db.Where("undone = ?", *filters.Undone)
		}
		if filters.From != nil {
			db = db.Where("created_at >= ?", *filters.From)
		}
		if filters.To != nil {
			db = db.Where("created_at < ?", *filters.To)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC, id DESC").
		Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

func (r *actionLogRepo) MarkUndone(ctx context.Context, id int64, byID, byNick string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ActionLog{}).
		Where("id = ? AND undone = ?", id, false).
		Updates(map[string]interface{}{
			"undone":         true,
			"undone_at":      at,
			"undone_by_id":   byID,
			"undone_by_nick": byNick,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
