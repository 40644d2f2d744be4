package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"moh-portal/config"
	"moh-portal/internal/authz"
	"moh-portal/internal/dto"
	"moh-portal/internal/model"
	"moh-portal/internal/repository"
)

// ── PATCH /api/users 的 action ──

const (
	PatchChangeRole = "change_role"
	PatchChangeCity = "change_city"
	PatchApprove    = "approve"
	PatchRestore    = "restore"
)

// UserService 用户目录业务接口
// 每个操作都重新读取操作者并独立执行权限判断
type UserService interface {
	List(ctx context.Context, caller Caller, req *dto.UserListRequest) ([]dto.UserResponse, int64, error)
	Create(ctx context.Context, caller Caller, req *dto.CreateUserRequest) (*dto.UserResponse, error)
	Update(ctx context.Context, caller Caller, req *dto.UpdateUserRequest) (*dto.UserResponse, error)
	Patch(ctx context.Context, caller Caller, req *dto.PatchUserRequest) (*dto.UserResponse, error)
	ChangeRole(ctx context.Context, caller Caller, id, role string) (*dto.UserResponse, error)
	ChangeCity(ctx context.Context, caller Caller, id, city string) (*dto.UserResponse, error)
	Approve(ctx context.Context, caller Caller, id string) (*dto.UserResponse, error)
	Restore(ctx context.Context, caller Caller, id string) (*dto.UserResponse, error)
	Deactivate(ctx context.Context, caller Caller, id string) (*dto.UserResponse, error)
	Delete(ctx context.Context, caller Caller, id string) error
}

type userService struct {
	cfg    *config.Config
	repo   *repository.Repository
	audit  ActionLogService
	logger *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(cfg *config.Config, repo *repository.Repository, audit ActionLogService, logger *zap.Logger) UserService {
	return &userService{cfg: cfg, repo: repo, audit: audit, logger: logger}
}

// ────────────────────── List ──────────────────────

func (s *userService) List(ctx context.Context, caller Caller, req *dto.UserListRequest) ([]dto.UserResponse, int64, error) {
	_, actor, err := loadActor(ctx, s.repo.User, caller)
	if err != nil {
		return nil, 0, err
	}
	if err := authorize(actor, authz.ViewUsers, authz.Target{}); err != nil {
		return nil, 0, err
	}

	filters := &repository.UserListFilters{
		Status: req.Status,
		Role:   req.Role,
		City:   req.City,
		Search: trim(req.Search),
	}
	// ld 只能看到本城市
	if actor.Role == model.RoleLeader {
		filters.City = actor.City
	}

	users, total, err := s.repo.User.List(ctx, filters, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询用户列表失败", zap.Error(err))
		return nil, 0, fmt.Errorf("查询用户列表失败: %w", err)
	}

	list := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		list = append(list, toUserResponse(&users[i]))
	}
	return list, total, nil
}

// ────────────────────── Create ──────────────────────

func (s *userService) Create(ctx context.Context, caller Caller, req *dto.CreateUserRequest) (*dto.UserResponse, error) {
	_, actor, err := loadActor(ctx, s.repo.User, caller)
	if err != nil {
		return nil, err
	}

	username := trim(req.Username)
	nick := trim(req.GameNick)
	role := trim(req.Role)
	city := trim(req.City)
	if err := validateNewAccount(username, nick, req.Password, role, city); err != nil {
		return nil, err
	}

	if err := authorize(actor, authz.CreateUser, authz.Target{City: city, NewRole: role, NewCity: city}); err != nil {
		return nil, err
	}
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
		Status:       model.StatusActive,
		City:         city,
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		if appErr := mapUniqueViolation(err, username, nick); appErr != nil {
			return nil, appErr
		}
		s.logger.Error("创建用户失败", zap.Error(err))
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	audit := newAudit(actor, caller, model.ActionCreate, fmt.Sprintf("Создан пользователь %s", user.GameNick)).onUser(user)
	audit.New = userSnapshot(user)
	s.audit.Record(ctx, audit)

	resp := toUserResponse(user)
	return &resp, nil
}

// ────────────────────── Update ──────────────────────

// Update 修改用户名 / 游戏昵称 / 密码；密码变更写入 metadata，且不可撤销
func (s *userService) Update(ctx context.Context, caller Caller, req *dto.UpdateUserRequest) (*dto.UserResponse, error) {
	_, actor, err := loadActor(ctx, s.repo.User, caller)
	if err != nil {
		return nil, err
	}
	target, err := getTarget(ctx, s.repo.User, req.ID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, authz.EditUser, targetOf(target)); err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	prev := make(map[string]interface{})
	next := make(map[string]interface{})
	var newUsername, newNick string

	if req.Username != nil {
		if v := trim(*req.Username); v != target.Username {
			if err := validateUsername(v); err != nil {
				return nil, err
			}
			newUsername = v
			fields["username"], prev["username"], next["username"] = v, target.Username, v
		}
	}
	if req.GameNick != nil {
		if v := trim(*req.GameNick); v != target.GameNick {
			if err := ValidateGameNick(v); err != nil {
				return nil, err
			}
			newNick = v
			fields["game_nick"], prev["game_nick"], next["game_nick"] = v, target.GameNick, v
		}
	}
	passwordChanged := false
	if req.Password != nil && *req.Password != "" {
		if err := validatePassword(*req.Password); err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.bcryptCost())
		if err != nil {
			s.logger.Error("密码哈希失败", zap.Error(err))
			return nil, err
		}
		fields["password_hash"] = string(hash)
		passwordChanged = true
	}
	if len(fields) == 0 {
		return nil, ErrNothingToUpdate
	}

	if err := checkDuplicates(ctx, s.repo.User, newUsername, newNick, target.ID); err != nil {
		return nil, err
	}
	if err := s.apply(ctx, target, fields, newUsername, newNick); err != nil {
		return nil, err
	}

	audit := newAudit(actor, caller, model.ActionUpdate, fmt.Sprintf("Изменены данные пользователя %s", target.GameNick)).onUser(target)
	audit.Previous = prev
	audit.New = next
	if passwordChanged {
		audit.Metadata = map[string]interface{}{"password_changed": true}
	}
	s.audit.Record(ctx, audit)

	if newUsername != "" {
		target.Username = newUsername
	}
	if newNick != "" {
		target.GameNick = newNick
	}
	resp := toUserResponse(target)
	return &resp, nil
}

// ────────────────────── Patch ──────────────────────

// Patch 按 action 分派到对应操作
func (s *userService) Patch(ctx context.Context, caller Caller, req *dto.PatchUserRequest) (*dto.UserResponse, error) {
	switch req.Action {
	case PatchChangeRole:
		return s.ChangeRole(ctx, caller, req.ID, req.Role)
	case PatchChangeCity:
		return s.ChangeCity(ctx, caller, req.ID, req.City)
	case PatchApprove:
		return s.Approve(ctx, caller, req.ID)
	case PatchRestore:
		return s.Restore(ctx, caller, req.ID)
	}
	return nil, ErrUnknownPatchOp
}

func (s *userService) ChangeRole(ctx context.Context, caller Caller, id, role string) (*dto.UserResponse, error) {
	role = trim(role)
	if err := validateRole(role); err != nil {
		return nil, err
	}
	_, actor, err := loadActor(ctx, s.repo.User, caller)
	if err != nil {
		return nil, err
	}
	target, err := getTarget(ctx, s.repo.User, id)
	if err != nil {
		return nil, err
	}
	t := targetOf(target)
	t.NewRole = role
	if err := authorize(actor, authz.ChangeRole, t); err != nil {
		return nil, err
	}
	if target.Role == role {
		return nil, ErrSameRole
	}

	if err := s.apply(ctx, target, map[string]interface{}{"role": role}, "", ""); err != nil {
		return nil, err
	}

	audit := newAudit(actor, caller, model.ActionRoleChange,
		fmt.Sprintf("Роль пользователя %s изменена: %s → %s", target.GameNick, target.Role, role)).onUser(target)
	audit.Previous = map[string]interface{}{"role": target.Role}
	audit.New = map[string]interface{}{"role": role}
	s.audit.Record(ctx, audit)

	target.Role = role
	resp := toUserResponse(target)
	return &resp, nil
}

func (s *userService) ChangeCity(ctx context.Context, caller Caller, id, city string) (*dto.UserResponse, error) {
	city = trim(city)
	if err := validateCity(city); err != nil {
		return nil, err
	}
	_, actor, err := loadActor(ctx, s.repo.User, caller)
	if err != nil {
		return nil, err
	}
	target, err := getTarget(ctx, s.repo.User, id)
	if err != nil {
		return nil, err
	}
	t := targetOf(target)
	t.NewCity = city
	if err := authorize(actor, authz.ChangeCity, t); err != nil {
		return nil, err
	}
	if target.City == city {
		return nil, ErrSameCity
	}

	if err := s.apply(ctx, target, map[string]interface{}{"city": city}, "", ""); err != nil {
		return nil, err
	}

	audit := newAudit(actor, caller, model.ActionUpdate,
		fmt.Sprintf("Город пользователя %s изменён: %s → %s", target.GameNick, target.City, city)).onUser(target)
	audit.Previous = map[string]interface{}{"city": target.City}
	audit.New = map[string]interface{}{"city": city}
	audit.Metadata = map[string]interface{}{"operation": PatchChangeCity}
	s.audit.Record(ctx, audit)

	target.City = city
	resp := toUserResponse(target)
	return &resp, nil
}

// Approve request → active，以可撤销的 update 记录审计
func (s *userService) Approve(ctx context.Context, caller Caller, id string) (*dto.UserResponse, error) {
	return s.transition(ctx, caller, id, transition{
		action:     authz.Approve,
		from:       model.StatusRequest,
		to:         model.StatusActive,
		wrongState: ErrNotPending,
		logType:    model.ActionUpdate,
		logText:    "Заявка пользователя %s одобрена",
		operation:  PatchApprove,
	})
}

// Restore inactive → active
func (s *userService) Restore(ctx context.Context, caller Caller, id string) (*dto.UserResponse, error) {
	return s.transition(ctx, caller, id, transition{
		action:     authz.Restore,
		from:       model.StatusInactive,
		to:         model.StatusActive,
		wrongState: ErrNotInactive,
		logType:    model.ActionRestore,
		logText:    "Пользователь %s восстановлен",
	})
}

// Deactivate active → inactive
func (s *userService) Deactivate(ctx context.Context, caller Caller, id string) (*dto.UserResponse, error) {
	return s.transition(ctx, caller, id, transition{
		action:     authz.Deactivate,
		from:       model.StatusActive,
		to:         model.StatusInactive,
		wrongState: ErrNotActive,
		logType:    model.ActionDeactivate,
		logText:    "Пользователь %s деактивирован",
	})
}

// transition 一次状态流转的描述
type transition struct {
	action     authz.Action
	from, to   string
	wrongState error
	logType    string
	logText    string
	operation  string
}

func (s *userService) transition(ctx context.Context, caller Caller, id string, tr transition) (*dto.UserResponse, error) {
	_, actor, err := loadActor(ctx, s.repo.User, caller)
	if err != nil {
		return nil, err
	}
	target, err := getTarget(ctx, s.repo.User, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, tr.action, targetOf(target)); err != nil {
		return nil, err
	}
	if target.Status != tr.from {
		return nil, tr.wrongState
	}

	if err := s.apply(ctx, target, map[string]interface{}{"status": tr.to}, "", ""); err != nil {
		return nil, err
	}

	audit := newAudit(actor, caller, tr.logType, fmt.Sprintf(tr.logText, target.GameNick)).onUser(target)
	audit.Previous = map[string]interface{}{"status": tr.from}
	audit.New = map[string]interface{}{"status": tr.to}
	if tr.operation != "" {
		audit.Metadata = map[string]interface{}{"operation": tr.operation}
	}
	s.audit.Record(ctx, audit)

	target.Status = tr.to
	resp := toUserResponse(target)
	return &resp, nil
}

// ────────────────────── Delete ──────────────────────

// Delete 物理删除任意状态的用户（也用于拒绝申请），不可撤销
func (s *userService) Delete(ctx context.Context, caller Caller, id string) error {
	_, actor, err := loadActor(ctx, s.repo.User, caller)
	if err != nil {
		return err
	}
	target, err := getTarget(ctx, s.repo.User, id)
	if err != nil {
		return err
	}
	if err := authorize(actor, authz.Delete, targetOf(target)); err != nil {
		return err
	}

	if err := s.repo.User.Delete(ctx, target.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error("删除用户失败", zap.String("id", target.ID), zap.Error(err))
		return fmt.Errorf("删除用户失败: %w", err)
	}

	action := fmt.Sprintf("Пользователь %s удалён", target.GameNick)
	if target.Status == model.StatusRequest {
		action = fmt.Sprintf("Заявка пользователя %s отклонена", target.GameNick)
	}
	audit := newAudit(actor, caller, model.ActionDelete, action).onUser(target)
	audit.Previous = userSnapshot(target)
	s.audit.Record(ctx, audit)
	return nil
}

// ── 内部辅助 ──

// apply 写入字段并把唯一索引冲突转换为业务错误
func (s *userService) apply(ctx context.Context, target *model.User, fields map[string]interface{}, username, nick string) error {
	if err := s.repo.User.Updates(ctx, target.ID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		if appErr := mapUniqueViolation(err, username, nick); appErr != nil {
			return appErr
		}
		s.logger.Error("更新用户失败", zap.String("id", target.ID), zap.Error(err))
		return fmt.Errorf("更新用户失败: %w", err)
	}
	return nil
}

func (s *userService) bcryptCost() int {
	if s.cfg != nil && s.cfg.Auth.BcryptCost > 0 {
		return s.cfg.Auth.BcryptCost
	}
	return bcrypt.DefaultCost
}
