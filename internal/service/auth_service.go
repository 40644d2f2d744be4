package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"moh-portal/config"
	"moh-portal/internal/authz"
	"moh-portal/internal/dto"
	"moh-portal/internal/model"
	"moh-portal/internal/repository"
	"moh-portal/pkg/session"
)

// requestableRoles 自助申请时可选的角色
var requestableRoles = map[string]bool{
	model.RoleUser:       true,
	model.RoleCC:         true,
	model.RoleLeader:     true,
	model.RoleInstructor: true,
}

// AuthService 认证与自助申请
type AuthService interface {
	RequestAccount(ctx context.Context, req *dto.AccountRequest, caller Caller) (*dto.UserResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest, caller Caller) (*dto.LoginResponse, error)
	Logout(ctx context.Context, caller Caller) error
	Me(ctx context.Context, caller Caller) (*dto.MeResponse, error)
}

type authService struct {
	cfg    *config.Config
	repo   *repository.Repository
	codec  *session.Codec
	audit  ActionLogService
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	codec *session.Codec,
	audit ActionLogService,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:    cfg,
		repo:   repo,
		codec:  codec,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

// ────────────────────── RequestAccount ──────────────────────

func (s *authService) RequestAccount(ctx context.Context, req *dto.AccountRequest, caller Caller) (*dto.UserResponse, error) {
	username := trim(req.Username)
	nick := trim(req.GameNick)
	city := trim(req.City)
	role := trim(req.Role)
	if role == "" {
		role = model.RoleUser
	}

	if err := validateNewAccount(username, nick, req.Password, role, city); err != nil {
		return nil, err
	}
	if !requestableRoles[role] {
		return nil, ErrRequestRole
	}

	// 1. 同一 IP 只允许一个未删除账号；查询出错时忽略
	if caller.IP != "" {
		if err := s.checkIP(ctx, caller.IP); err != nil {
			return nil, err
		}
	}

	// 2. 用户名 / 昵称
	if err := checkDuplicates(ctx, s.repo.User, username, nick, ""); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost())
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		Username:     username,
		GameNick:     nick,
		PasswordHash: string(hash),
		Role:         role,
		Status:       model.StatusRequest,
		City:         city,
	}
	if caller.IP != "" {
		ip := caller.IP
		user.IPAddress = &ip
	}

	if err := s.repo.User.Create(ctx, user); err != nil {
		if appErr := mapUniqueViolation(err, username, nick); appErr != nil {
			return nil, appErr
		}
		s.logger.Error("创建账号申请失败", zap.Error(err))
		return nil, fmt.Errorf("创建账号申请失败: %w", err)
	}

	audit := newAudit(actorOf(user), caller, model.ActionCreate, "Заявка на создание аккаунта").onUser(user)
	audit.New = userSnapshot(user)
	s.audit.Record(ctx, audit)

	resp := toUserResponse(user)
	return &resp, nil
}

func (s *authService) checkIP(ctx context.Context, ip string) error {
	existing, err := s.repo.User.FindLatestByIP(ctx, ip)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("按 IP 查询账号失败，跳过检查", zap.String("ip", ip), zap.Error(err))
		}
		return nil
	}
	switch existing.Status {
	case model.StatusInactive:
		return ErrIPDeactivated
	case model.StatusRequest:
		return ErrIPPending
	default:
		return ErrIPActive
	}
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest, caller Caller) (*dto.LoginResponse, error) {
	username := trim(req.Username)
	if username == "" || req.Password == "" {
		return nil, ErrMissingCredentials
	}

	// 1. 查询用户；不存在与密码错误使用同一文案
	user, err := s.repo.User.FindLatestByUsername(ctx, username, "")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 3. 密码正确后才披露账号状态
	switch user.Status {
	case model.StatusInactive:
		return nil, ErrAccountInactive
	case model.StatusRequest:
		return nil, ErrAccountPending
	}

	// 4. 签发令牌
	now := s.now()
	token, err := s.codec.Encode(identityOf(user), now)
	if err != nil {
		if errors.Is(err, session.ErrNoSecret) {
			return nil, ErrSigningKey
		}
		s.logger.Error("生成会话令牌失败", zap.Error(err))
		return nil, err
	}

	s.audit.Record(ctx, newAudit(actorOf(user), caller, model.ActionLogin, "Вход в систему").onUser(user))

	return &dto.LoginResponse{
		Token:     token,
		ExpiresAt: now.Add(s.codec.Duration()).UTC().Format(time.RFC3339),
		User:      toUserResponse(user),
	}, nil
}

// ────────────────────── Logout / Me ──────────────────────

// Logout 令牌无服务端状态，只记录审计
func (s *authService) Logout(ctx context.Context, caller Caller) error {
	actor := authz.Actor{ID: caller.ID, Username: caller.Username, GameNick: caller.GameNick, Role: caller.Role}
	audit := newAudit(actor, caller, model.ActionLogout, "Выход из системы")
	audit.TargetType = targetTypeUser
	audit.TargetID = caller.ID
	audit.TargetName = caller.GameNick
	s.audit.Record(ctx, audit)
	return nil
}

func (s *authService) Me(ctx context.Context, caller Caller) (*dto.MeResponse, error) {
	user, actor, err := loadActor(ctx, s.repo.User, caller)
	if err != nil {
		return nil, err
	}
	return &dto.MeResponse{
		User:     toUserResponse(user),
		Sections: authz.AllowedSections(actor.Role),
	}, nil
}

func (s *authService) bcryptCost() int {
	if s.cfg != nil && s.cfg.Auth.BcryptCost > 0 {
		return s.cfg.Auth.BcryptCost
	}
	return bcrypt.DefaultCost
}

// ── 转换辅助 ──

func identityOf(u *model.User) session.Identity {
	return session.Identity{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
		GameNick: u.GameNick,
		City:     u.City,
	}
}

func toUserResponse(u *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID:                     u.ID,
		Username:               u.Username,
		GameNick:               u.GameNick,
		Role:                   u.Role,
		Status:                 u.Status,
		City:                   u.City,
		AvatarURL:              u.AvatarURL,
		AvatarModerationStatus: u.AvatarModerationStatus,
		CreatedAt:              u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// userSnapshot 审计快照（不含密码哈希）
func userSnapshot(u *model.User) map[string]interface{} {
	return map[string]interface{}{
		"id":        u.ID,
		"username":  u.Username,
		"game_nick": u.GameNick,
		"role":      u.Role,
		"status":    u.Status,
		"city":      u.City,
	}
}
