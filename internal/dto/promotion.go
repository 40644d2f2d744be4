package dto

import "moh-portal/internal/model"

// ── 晋升/处分积分表 ──

// PromotionActionRequest POST /api/promotion-system 的统一请求体，按 action 取用字段
type PromotionActionRequest struct {
	Action          string  `json:"action" binding:"required,oneof=create_task update_task delete_task create_section update_section delete_section reorder_tasks"`
	Category        string  `json:"category"`
	ID              int64   `json:"id"`
	SectionKey      string  `json:"section_key"`
	SectionTitle    string  `json:"section_title"`
	SectionSubtitle *string `json:"section_subtitle"`
	SectionColor    *string `json:"section_color"`
	SectionSort     *int    `json:"section_sort"`
	Task            string  `json:"task"`
	Max             *int    `json:"max"`
	Points          *int    `json:"points"`
	IDs             []int64 `json:"ids"`
}

// PromotionSection 按 section_key 聚合出的分区
type PromotionSection struct {
	Key      string                      `json:"key"`
	Title    string                      `json:"title"`
	Subtitle *string                     `json:"subtitle,omitempty"`
	Color    *string                     `json:"color,omitempty"`
	Sort     int                         `json:"sort"`
	Items    []model.PromotionSystemItem `json:"items"`
}

// PromotionListResponse 某一分类下的全部分区
type PromotionListResponse struct {
	Category string             `json:"category"`
	Sections []PromotionSection `json:"sections"`
}
