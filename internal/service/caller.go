package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"moh-portal/internal/authz"
	"moh-portal/internal/model"
	"moh-portal/internal/repository"
	pkgerrors "moh-portal/pkg/errors"
	"moh-portal/pkg/session"
)

// Caller 当前请求的调用方：令牌身份 + 请求来源
type Caller struct {
	session.Identity
	IP        string
	UserAgent string
}

// loadActor 按令牌中的 ID 重新读取用户
// 令牌只对 id/username/role/game_nick 签名，city 与状态以库中为准
func loadActor(ctx context.Context, users repository.UserRepository, caller Caller) (*model.User, authz.Actor, error) {
	if caller.ID == "" {
		return nil, authz.Actor{}, ErrUnauthorized
	}
	if !isUserID(caller.ID) {
		return nil, authz.Actor{}, ErrSessionUserGone
	}
	user, err := users.GetByID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authz.Actor{}, ErrSessionUserGone
		}
		return nil, authz.Actor{}, fmt.Errorf("加载当前用户失败: %w", err)
	}
	switch user.Status {
	case model.StatusInactive:
		return nil, authz.Actor{}, ErrAccountInactive
	case model.StatusRequest:
		return nil, authz.Actor{}, ErrAccountPending
	}
	return user, actorOf(user), nil
}

func actorOf(u *model.User) authz.Actor {
	return authz.Actor{
		ID:       u.ID,
		Username: u.Username,
		GameNick: u.GameNick,
		Role:     u.Role,
		City:     u.City,
	}
}

func targetOf(u *model.User) authz.Target {
	return authz.Target{ID: u.ID, Role: u.Role, City: u.City}
}

// authorize 将拒绝结果转换为 403
func authorize(actor authz.Actor, action authz.Action, target authz.Target) error {
	d := authz.CanPerform(actor, action, target)
	if !d.Allowed {
		return pkgerrors.Forbidden(d.Reason)
	}
	return nil
}

// getTarget 读取被操作用户；不存在返回 404
func getTarget(ctx context.Context, users repository.UserRepository, id string) (*model.User, error) {
	if id == "" {
		return nil, pkgerrors.Validation("Не указан идентификатор пользователя")
	}
	if !isUserID(id) {
		return nil, ErrUserNotFound
	}
	user, err := users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return user, nil
}

// isUserID users.id 为 UUID，格式不符的 ID 不下发到数据库
func isUserID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
