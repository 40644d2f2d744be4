package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"moh-portal/internal/model"
)

// PromotionRepository 晋升/处分积分表数据访问接口
type PromotionRepository interface {
	List(ctx context.Context, category string) ([]model.PromotionSystemItem, error)
	GetByID(ctx context.Context, id int64) (*model.PromotionSystemItem, error)
	// FirstInSection 取分区内任一行，用于读取分区元数据；分区不存在返回 gorm.ErrRecordNotFound
	FirstInSection(ctx context.Context, category, sectionKey string) (*model.PromotionSystemItem, error)
	MaxTaskSort(ctx context.Context, category, sectionKey string) (int, error)
	MaxSectionSort(ctx context.Context, category string) (int, error)
	Create(ctx context.Context, item *model.PromotionSystemItem) error
	Update(ctx context.Context, item *model.PromotionSystemItem) error
	Delete(ctx context.Context, id int64) error
	UpdateSection(ctx context.Context, category, sectionKey string, fields map[string]interface{}) (int64, error)
	DeleteSection(ctx context.Context, category, sectionKey string) (int64, error)
	// ReorderTasks 按 ids 顺序重写 task_sort；任一 id 不属于该分区则整体回滚
	ReorderTasks(ctx context.Context, category, sectionKey string, ids []int64, updatedBy string, at time.Time) error
}

type promotionRepo struct {
	db *gorm.DB
}

// NewPromotionRepo 创建 PromotionRepository 实例
func NewPromotionRepo(db *gorm.DB) PromotionRepository {
	return &promotionRepo{db: db}
}

func (r *promotionRepo) List(ctx context.Context, category string) ([]model.PromotionSystemItem, error) {
	var items []model.PromotionSystemItem
	db := r.db.WithContext(ctx)
	if category != "" {
		db = db.Where("category = ?", category)
	}
	err := db.Order("category ASC, section_sort ASC, section_key ASC, task_sort ASC, id ASC").
		Find(&items).Error
	return items, err
}

func (r *promotionRepo) GetByID(ctx context.Context, id int64) (*model.PromotionSystemItem, error) {
	var item model.PromotionSystemItem
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *promotionRepo) FirstInSection(ctx context.Context, category, sectionKey string) (*model.PromotionSystemItem, error) {
	var item model.PromotionSystemItem
	err := r.db.WithContext(ctx).
		Where("category = ? AND section_key = ?", category, sectionKey).
		Order("task_sort ASC, id ASC").
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *promotionRepo) MaxTaskSort(ctx context.Context, category, sectionKey string) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&model.PromotionSystemItem{}).
		Where("category = ? AND section_key = ?", category, sectionKey).
		Select("COALESCE(MAX(task_sort), 0)").
		Scan(&max).Error
	return max, err
}

func (r *promotionRepo) MaxSectionSort(ctx context.Context, category string) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&model.PromotionSystemItem{}).
		Where("category = ?", category).
		Select("COALESCE(MAX(section_sort), 0)").
		Scan(&max).Error
	return max, err
}

func (r *promotionRepo) Create(ctx context.Context, item *model.PromotionSystemItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *promotionRepo) Update(ctx context.Context, item *model.PromotionSystemItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *promotionRepo) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.PromotionSystemItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *promotionRepo) UpdateSection(ctx context.Context, category, sectionKey string, fields map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.PromotionSystemItem{}).
		Where("category = ? AND section_key = ?", category, sectionKey).
		Updates(fields)
	return result.RowsAffected, result.Error
}

func (r *promotionRepo) DeleteSection(ctx context.Context, category, sectionKey string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("category = ? AND section_key = ?", category, sectionKey).
		Delete(&model.PromotionSystemItem{})
	return result.RowsAffected, result.Error
}

func (r *promotionRepo) ReorderTasks(ctx context.Context, category, sectionKey string, ids []int64, updatedBy string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			result := tx.Model(&model.PromotionSystemItem{}).
				Where("id = ? AND category = ? AND section_key = ?", id, category, sectionKey).
				Updates(map[string]interface{}{
					"task_sort":  i + 1,
					"updated_at": at,
					"updated_by": updatedBy,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return nil
	})
}
