package model

import (
	"time"

	"gorm.io/datatypes"
)

// ── 操作类型 ──

const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionRoleChange = "role_change"
	ActionLogin      = "login"
	ActionLogout     = "logout"
	ActionDeactivate = "deactivate"
	ActionRestore    = "restore"
	ActionOther      = "other"
)

// ActionLog 操作审计日志，对应表 action_logs
// 仅追加；undone* 字段只能由撤销操作写入一次
type ActionLog struct {
	ID            int64          `gorm:"primaryKey;autoIncrement"            json:"id"`
	UserID        *string        `gorm:"type:uuid"                           json:"user_id,omitempty"`
	GameNick      string         `gorm:"type:varchar(50)"                    json:"game_nick"`
	Action        string         `gorm:"type:text;not null"                  json:"action"`
	ActionType    string         `gorm:"type:varchar(20);not null"           json:"action_type"`
	TargetType    string         `gorm:"type:varchar(50)"                    json:"target_type,omitempty"`
	TargetID      string         `gorm:"type:varchar(64)"                    json:"target_id,omitempty"`
	TargetName    string         `gorm:"type:varchar(100)"                   json:"target_name,omitempty"`
	Details       string         `gorm:"type:text"                           json:"details,omitempty"`
	PreviousState datatypes.JSON `gorm:"type:jsonb"                          json:"previous_state,omitempty"`
	NewState      datatypes.JSON `gorm:"type:jsonb"                          json:"new_state,omitempty"`
	Metadata      datatypes.JSON `gorm:"type:jsonb;default:'{}'::jsonb"      json:"metadata,omitempty"`
	IPAddress     string         `gorm:"type:varchar(64)"                    json:"ip_address,omitempty"`
	UserAgent     string         `gorm:"type:text"                           json:"user_agent,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"  json:"created_at"`
	Undone        bool           `gorm:"not null;default:false"              json:"undone"`
	UndoneAt      *time.Time     `json:"undone_at,omitempty"`
	UndoneByID    *string        `gorm:"type:uuid"                           json:"undone_by_id,omitempty"`
	UndoneByNick  *string        `gorm:"type:varchar(50)"                    json:"undone_by_nick,omitempty"`
}

// TableName 指定表名
func (ActionLog) TableName() string { return "action_logs" }
