package model

import "time"

const (
	CategoryPromotion = "promotion"
	CategoryReprimand = "reprimand"
)

// PromotionSystemItem 晋升/处分积分任务，对应表 promotion_system_items
// "分区" 是按 section_key 聚合出来的视图，没有独立的表
type PromotionSystemItem struct {
	ID              int64     `gorm:"primaryKey;autoIncrement"           json:"id"`
	Category        string    `gorm:"type:varchar(20);not null"          json:"category"`
	SectionKey      string    `gorm:"type:varchar(64);not null"          json:"section_key"`
	SectionTitle    string    `gorm:"type:varchar(200);not null"         json:"section_title"`
	SectionSubtitle *string   `gorm:"type:varchar(300)"                  json:"section_subtitle,omitempty"`
	SectionColor    *string   `gorm:"type:varchar(32)"                   json:"section_color,omitempty"`
	SectionSort     int       `gorm:"not null;default:0"                 json:"section_sort"`
	Task            string    `gorm:"type:varchar(500);not null"         json:"task"`
	Max             *int      `json:"max,omitempty"`
	Points          int       `gorm:"not null;default:0"                 json:"points"`
	TaskSort        int       `gorm:"not null;default:0"                 json:"task_sort"`
	UpdatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	UpdatedBy       *string   `gorm:"type:varchar(50)"                   json:"updated_by,omitempty"`
}

// TableName 指定表名
func (PromotionSystemItem) TableName() string { return "promotion_system_items" }

// IsValidCategory 判断分类是否合法
func IsValidCategory(c string) bool {
	return c == CategoryPromotion || c == CategoryReprimand
}
