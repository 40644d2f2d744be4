package model

import "time"

// AvatarUploadLimit 头像上传频率记录，对应表 user_avatar_upload_limits
type AvatarUploadLimit struct {
	UserID       string    `gorm:"type:uuid;primaryKey"               json:"user_id"`
	LastUploadAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"last_upload_at"`
}

// TableName 指定表名
func (AvatarUploadLimit) TableName() string { return "user_avatar_upload_limits" }
