package model

import "time"

// ── 角色 ──

const (
	RoleRoot       = "root"
	RoleAdmin      = "admin"
	RoleLeader     = "ld"
	RoleCC         = "cc"
	RoleUser       = "user"
	RoleInstructor = "instructor"
)

// ── 账号状态 ──

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusRequest  = "request"
)

// ── 城市（分院） ──

const (
	CityCGBN = "CGB-N"
	CityCGBP = "CGB-P"
	CityOKBM = "OKB-M"
)

// ── 头像审核状态 ──

const (
	AvatarApproved = "approved"
	AvatarPending  = "pending"
	AvatarRejected = "rejected"
)

// Roles 全部合法角色
var Roles = []string{RoleRoot, RoleAdmin, RoleLeader, RoleCC, RoleUser, RoleInstructor}

// Cities 全部合法城市
var Cities = []string{CityCGBN, CityCGBP, CityOKBM}

// LiveStatuses 参与唯一性校验的状态（永久删除的记录不在表中）
var LiveStatuses = []string{StatusActive, StatusRequest, StatusInactive}

// User 用户表，对应表 users
type User struct {
	ID                     string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Username               string     `gorm:"type:varchar(50);not null"                      json:"username"`
	GameNick               string     `gorm:"type:varchar(50);not null"                      json:"game_nick"`
	PasswordHash           string     `gorm:"type:varchar(255);not null"                     json:"-"`
	Role                   string     `gorm:"type:varchar(20);not null;default:'user'"       json:"role"`
	Status                 string     `gorm:"type:varchar(20);not null;default:'request'"    json:"status"`
	City                   string     `gorm:"type:varchar(10);not null"                      json:"city"`
	IPAddress              *string    `gorm:"type:varchar(64)"                               json:"-"`
	AvatarURL              *string    `gorm:"type:text"                                      json:"avatar_url,omitempty"`
	AvatarPublicID         *string    `gorm:"type:varchar(255)"                              json:"-"`
	AvatarUploadedAt       *time.Time `json:"avatar_uploaded_at,omitempty"`
	AvatarModerationStatus *string    `gorm:"type:varchar(20)"                               json:"avatar_moderation_status,omitempty"`
	Timestamps
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// IsValidRole 判断角色是否合法
func IsValidRole(role string) bool { return contains(Roles, role) }

// IsValidCity 判断城市是否合法
func IsValidCity(city string) bool { return contains(Cities, city) }

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
