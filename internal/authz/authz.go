// Package authz 角色/城市权限矩阵
//
// 所有 service 与边缘网关共用 CanPerform，不在各处理器中重复手写判断。
package authz

import (
	"strings"

	"moh-portal/internal/model"
)

// Action 受控操作
type Action string

const (
	ViewUsers         Action = "view_users"
	CreateUser        Action = "create_user"
	EditUser          Action = "edit_user"
	ChangeRole        Action = "change_role"
	ChangeCity        Action = "change_city"
	Approve           Action = "approve"
	Restore           Action = "restore"
	Deactivate        Action = "deactivate"
	Delete            Action = "delete"
	Undo              Action = "undo"
	ViewLogs          Action = "view_logs"
	ManagePromotion   Action = "manage_promotion"
	ValidateBiography Action = "validate_biography"
	ResetAvatar       Action = "reset_avatar"
	ModerateAvatar    Action = "moderate_avatar"
)

// Actor 操作者
type Actor struct {
	ID       string
	Username string
	GameNick string
	Role     string
	City     string
}

// Target 被操作的用户；NewRole/NewCity 为本次要写入的值（可空）
type Target struct {
	ID      string
	Role    string
	City    string
	NewRole string
	NewCity string
}

// Decision 鉴权结果
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

func isLeaderScope(role string) bool { return role == model.RoleCC || role == model.RoleUser }

// 目标无关的操作
var globalActions = map[Action][]string{
	ViewUsers:         {model.RoleRoot, model.RoleAdmin, model.RoleLeader},
	ViewLogs:          {model.RoleRoot, model.RoleAdmin, model.RoleLeader},
	Undo:              {model.RoleRoot, model.RoleAdmin, model.RoleLeader},
	ManagePromotion:   {model.RoleRoot, model.RoleAdmin},
	ValidateBiography: {model.RoleRoot, model.RoleAdmin, model.RoleLeader},
}

// CanPerform 判断 actor 能否对 target 执行 action
func CanPerform(actor Actor, action Action, target Target) Decision {
	if roles, ok := globalActions[action]; ok {
		for _, r := range roles {
			if actor.Role == r {
				return allow()
			}
		}
		return deny("Недостаточно прав")
	}

	switch actor.Role {
	case model.RoleRoot, model.RoleAdmin, model.RoleLeader:
	default:
		return deny("Недостаточно прав")
	}

	// 自我保护
	self := target.ID != "" && target.ID == actor.ID
	if self {
		switch action {
		case ChangeRole:
			return deny("Нельзя изменить собственную роль")
		case Deactivate:
			return deny("Нельзя деактивировать собственный аккаунт")
		case Delete:
			return deny("Нельзя удалить собственный аккаунт")
		}
	}

	// root 只能作为自己的资料编辑对象
	if target.Role == model.RoleRoot {
		if action == EditUser && self {
			return allow()
		}
		return deny("Аккаунт root защищён от изменений")
	}
	if target.NewRole == model.RoleRoot {
		return deny("Роль root не может быть назначена")
	}

	switch actor.Role {
	case model.RoleRoot:
		return allow()
	case model.RoleAdmin:
		return adminDecision(actor, action, target, self)
	default:
		return leaderDecision(actor, action, target, self)
	}
}

func adminDecision(_ Actor, action Action, target Target, self bool) Decision {
	if target.NewRole == model.RoleAdmin {
		return deny("Администратор не может назначать роль admin")
	}
	if target.Role == model.RoleAdmin && !(self && action == EditUser) {
		return deny("Администратор не может изменять других администраторов")
	}
	if action == Approve {
		switch target.Role {
		case model.RoleCC, model.RoleUser, model.RoleLeader:
			return allow()
		}
		return deny("Администратор может одобрять только заявки cc, user и ld")
	}
	return allow()
}

func leaderDecision(actor Actor, action Action, target Target, self bool) Decision {
	if self && action == EditUser {
		return allow()
	}
	switch action {
	case ChangeCity:
		return deny("Лидер не может менять город")
	case CreateUser, EditUser, ChangeRole, Approve, Restore, Deactivate, Delete, ResetAvatar, ModerateAvatar:
	default:
		return deny("Недостаточно прав")
	}

	if target.City != actor.City {
		return deny("Лидер может управлять только пользователями своего города")
	}
	if target.NewCity != "" && target.NewCity != actor.City {
		return deny("Лидер может управлять только пользователями своего города")
	}
	if action == CreateUser {
		if !isLeaderScope(target.NewRole) {
			return deny("Лидер может создавать только пользователей cc и user")
		}
		return allow()
	}
	if !isLeaderScope(target.Role) {
		return deny("Лидер может управлять только пользователями cc и user")
	}
	if target.NewRole != "" && !isLeaderScope(target.NewRole) {
		return deny("Лидер может назначать только роли cc и user")
	}
	return allow()
}

// ── 边缘网关的粗粒度检查 ──

// gatedPrefixes 需要令牌且限定角色的路径前缀
var gatedPrefixes = map[string][]string{
	"/api/users":       {model.RoleRoot, model.RoleAdmin, model.RoleLeader},
	"/api/action-logs": {model.RoleRoot, model.RoleAdmin, model.RoleLeader},
}

// IsGatedPath 路径是否受边缘网关保护
func IsGatedPath(path string) bool {
	_, ok := matchPrefix(path)
	return ok
}

// CanAccessPrefix 角色能否访问受保护路径；非受保护路径恒为 true
func CanAccessPrefix(role, path string) bool {
	roles, ok := matchPrefix(path)
	if !ok {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func matchPrefix(path string) ([]string, bool) {
	for prefix, roles := range gatedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return roles, true
		}
	}
	return nil, false
}

// ── 只读内容白名单 ──

var baseSections = []string{"home", "regulations", "promotion-system", "reports", "biography-rules", "profile"}

// AllowedSections 角色可见的内容分区
func AllowedSections(role string) []string {
	sections := append([]string{}, baseSections...)
	switch role {
	case model.RoleInstructor:
		sections = append(sections, "trainings", "lectures")
	case model.RoleCC:
		sections = append(sections, "interviews")
	case model.RoleLeader:
		sections = append(sections, "interviews", "trainings", "lectures", "users", "action-logs", "biography-validator")
	case model.RoleAdmin, model.RoleRoot:
		sections = append(sections, "interviews", "trainings", "lectures", "users", "action-logs",
			"biography-validator", "promotion-editor", "avatar-moderation")
	}
	return sections
}

// IsAdminTier root 或 admin
func IsAdminTier(role string) bool { return role == model.RoleRoot || role == model.RoleAdmin }
