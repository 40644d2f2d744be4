package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"moh-portal/config"
	"moh-portal/internal/authz"
	"moh-portal/internal/dto"
	"moh-portal/internal/model"
	"moh-portal/internal/repository"
	pkgerrors "moh-portal/pkg/errors"
	"moh-portal/pkg/imagehost"
)

// MaxAvatarBytes 头像文件大小上限
const MaxAvatarBytes = 5 << 20

// allowedAvatarTypes 按文件内容嗅探，不信任客户端声明的 Content-Type
var allowedAvatarTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

var (
	ErrAvatarMissing      = pkgerrors.Validation("Файл не передан")
	ErrAvatarEmpty        = pkgerrors.Validation("Файл пуст")
	ErrAvatarTooLarge     = pkgerrors.Validation("Размер файла не должен превышать 5 МБ")
	ErrAvatarType         = pkgerrors.Validation("Допустимые форматы: JPEG, PNG, WebP, GIF")
	ErrAvatarNotFound     = pkgerrors.NotFound("Аватар не найден")
	ErrAvatarModeration   = pkgerrors.Validation("Статус модерации должен быть approved или rejected")
	ErrImageHostMissing   = pkgerrors.New(http.StatusInternalServerError, pkgerrors.CodeInternal, "Хостинг изображений не настроен")
	ErrImageHostFailed    = pkgerrors.New(http.StatusBadGateway, pkgerrors.CodeUpstream, "Не удалось обработать изображение на хостинге")
	ErrAvatarLimitBackend = pkgerrors.New(http.StatusServiceUnavailable, pkgerrors.CodeRateLimited, "Проверка лимита загрузок недоступна, попробуйте позже")
)

// ImageHost 图床接口，由 pkg/imagehost.Client 实现
type ImageHost interface {
	PublicIDFor(userID string) string
	Upload(ctx context.Context, p imagehost.UploadParams) (*imagehost.UploadResult, error)
	Destroy(ctx context.Context, publicID string) error
}

// AvatarService 头像上传 / 删除 / 审核
type AvatarService interface {
	Upload(ctx context.Context, caller Caller, file io.Reader, filename string) (*dto.AvatarResponse, error)
	Delete(ctx context.Context, caller Caller) error
	Reset(ctx context.Context, caller Caller, targetID string) error
	Moderate(ctx context.Context, caller Caller, targetID, status string) (*dto.AvatarResponse, error)
}

type avatarService struct {
	cfg    *config.Config
	repo   *repository.Repository
	host   ImageHost
	audit  ActionLogService
	logger *zap.Logger
	now    func() time.Time
}

// NewAvatarService 创建 AvatarService 实例
func NewAvatarService(cfg *config.Config, repo *repository.Repository, host ImageHost, audit ActionLogService, logger *zap.Logger) AvatarService {
	return &avatarService{cfg: cfg, repo: repo, host: host, audit: audit, logger: logger, now: time.Now}
}

// ────────────────────── Upload ──────────────────────

func (s *avatarService) Upload(ctx context.Context, caller Caller, file io.Reader, filename string) (*dto.AvatarResponse, error) {
	user, actor, err := loadActor(ctx, s.repo.User, caller)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, ErrAvatarMissing
	}

	// 1. 大小与类型
	data, err := io.ReadAll(io.LimitReader(file, MaxAvatarBytes+1))
	if err != nil {
		return nil, fmt.Errorf("读取上传文件失败: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrAvatarEmpty
	}
	if len(data) > MaxAvatarBytes {
		return nil, ErrAvatarTooLarge
	}
	mtype := mimetype.Detect(data)
	if !isAllowedAvatar(mtype) {
		return nil, ErrAvatarType
	}

	// 2. 频率限制
	now := s.now()
	if err := s.checkUploadLimit(ctx, user.ID, now); err != nil {
		return nil, err
	}

	// 3. 上传，public_id 固定为 folder/userId 以原地覆盖
	result, err := s.host.Upload(ctx, imagehost.UploadParams{
		PublicID:       s.host.PublicIDFor(user.ID),
		Filename:       filename,
		Transformation: imagehost.AvatarTransformation,
		Data:           bytes.NewReader(data),
	})
	if err != nil {
		return nil, s.mapHostError("上传头像失败", err)
	}

	// 4. 持久化
	status := model.AvatarPending
	if authz.IsAdminTier(actor.Role) {
		status = model.AvatarApproved
	}
	fields := map[string]interface{}{
		"avatar_url":               result.SecureURL,
		"avatar_public_id":         result.PublicID,
		"avatar_uploaded_at":       now,
		"avatar_moderation_status": status,
	}
	if err := s.repo.User.Updates(ctx, user.ID, fields); err != nil {
		s.logger.Error("保存头像信息失败", zap.String("user_id", user.ID), zap.Error(err))
		return nil, fmt.Errorf("保存头像信息失败: %w", err)
	}
	if err := s.repo.AvatarLimit.Touch(ctx, user.ID, now); err != nil {
		s.logger.Warn("更新头像上传记录失败", zap.String("user_id", user.ID), zap.Error(err))
	}

	// 5. 旧图 public_id 不同则尽力删除
	if user.AvatarPublicID != nil && *user.AvatarPublicID != "" && *user.AvatarPublicID != result.PublicID {
		if err := s.host.Destroy(ctx, *user.AvatarPublicID); err != nil {
			s.logger.Warn("删除旧头像失败", zap.String("public_id", *user.AvatarPublicID), zap.Error(err))
		}
	}

	audit := newAudit(actor, caller, model.ActionOther, "Загружен аватар").onUser(user)
	audit.New = map[string]interface{}{"avatar_url": result.SecureURL, "moderation_status": status}
	s.audit.Record(ctx, audit)

	return &dto.AvatarResponse{
		AvatarURL:        result.SecureURL,
		ModerationStatus: status,
		UploadedAt:       now.UTC().Format(time.RFC3339),
	}, nil
}

func isAllowedAvatar(m *mimetype.MIME) bool {
	for _, t := range allowedAvatarTypes {
		if m.Is(t) {
			return true
		}
	}
	return false
}

// checkUploadLimit 距上次上传不足间隔则 429；存储出错时按配置放行或拒绝
func (s *avatarService) checkUploadLimit(ctx context.Context, userID string, now time.Time) error {
	interval := s.cfg.RateLimit.AvatarInterval
	if interval <= 0 {
		return nil
	}
	rec, err := s.repo.AvatarLimit.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if s.cfg.RateLimit.FailOpen {
			s.logger.Warn("头像限流检查失败，按配置放行", zap.String("user_id", userID), zap.Error(err))
			return nil
		}
		s.logger.Error("头像限流检查失败", zap.String("user_id", userID), zap.Error(err))
		return ErrAvatarLimitBackend
	}
	if wait := rec.LastUploadAt.Add(interval).Sub(now); wait > 0 {
		return pkgerrors.Newf(http.StatusTooManyRequests, pkgerrors.CodeRateLimited,
			"Аватар можно менять не чаще одного раза в %d мин. Повторите через %d с",
			int(interval.Minutes()), int(wait.Seconds())+1)
	}
	return nil
}

// ────────────────────── Delete / Reset ──────────────────────

// Delete 删除自己的头像
func (s *avatarService) Delete(ctx context.Context, caller Caller) error {
	user, actor, err := loadActor(ctx, s.repo.User, caller)
	if err != nil {
		return err
	}
	return s.clear(ctx, actor, caller, user, "Удалён аватар")
}

// Reset 管理员重置他人头像
func (s *avatarService) Reset(ctx context.Context, caller Caller, targetID string) error {
	_, actor, err := loadActor(ctx, s.repo.User, caller)
	if err != nil {
		return err
	}
	target, err := getTarget(ctx, s.repo.User, targetID)
	if err != nil {
		return err
	}
	if err := authorize(actor, authz.ResetAvatar, targetOf(target)); err != nil {
		return err
	}
	return s.clear(ctx, actor, caller, target, fmt.Sprintf("Сброшен аватар пользователя %s", target.GameNick))
}

// clear 先删除图床资源，再清空三个头像字段
func (s *avatarService) clear(ctx context.Context, actor authz.Actor, caller Caller, user *model.User, text string) error {
	if user.AvatarURL == nil || *user.AvatarURL == "" {
		return ErrAvatarNotFound
	}
	if user.AvatarPublicID != nil && *user.AvatarPublicID != "" {
		if err := s.host.Destroy(ctx, *user.AvatarPublicID); err != nil {
			return s.mapHostError("删除头像失败", err)
		}
	}

	fields := map[string]interface{}{
		"avatar_url":               nil,
		"avatar_public_id":         nil,
		"avatar_uploaded_at":       nil,
		"avatar_moderation_status": nil,
	}
	if err := s.repo.User.Updates(ctx, user.ID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error("清空头像信息失败", zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("清空头像信息失败: %w", err)
	}

	audit := newAudit(actor, caller, model.ActionOther, text).onUser(user)
	audit.Previous = map[string]interface{}{"avatar_url": *user.AvatarURL}
	s.audit.Record(ctx, audit)
	return nil
}

// ────────────────────── Moderate ──────────────────────

func (s *avatarService) Moderate(ctx context.Context, caller Caller, targetID, status string) (*dto.AvatarResponse, error) {
	if status != model.AvatarApproved && status != model.AvatarRejected {
		return nil, ErrAvatarModeration
	}
	_, actor, err := loadActor(ctx, s.repo.User, caller)
	if err != nil {
		return nil, err
	}
	target, err := getTarget(ctx, s.repo.User, targetID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, authz.ModerateAvatar, targetOf(target)); err != nil {
		return nil, err
	}
	if target.AvatarURL == nil || *target.AvatarURL == "" {
		return nil, ErrAvatarNotFound
	}

	if err := s.repo.User.Updates(ctx, target.ID, map[string]interface{}{"avatar_moderation_status": status}); err != nil {
		s.logger.Error("更新头像审核状态失败", zap.String("user_id", target.ID), zap.Error(err))
		return nil, fmt.Errorf("更新头像审核状态失败: %w", err)
	}

	audit := newAudit(actor, caller, model.ActionOther, fmt.Sprintf("Модерация аватара %s: %s", target.GameNick, status)).onUser(target)
	audit.New = map[string]interface{}{"avatar_moderation_status": status}
	s.audit.Record(ctx, audit)

	resp := &dto.AvatarResponse{AvatarURL: *target.AvatarURL, ModerationStatus: status}
	if target.AvatarUploadedAt != nil {
		resp.UploadedAt = target.AvatarUploadedAt.UTC().Format(time.RFC3339)
	}
	return resp, nil
}

func (s *avatarService) mapHostError(msg string, err error) error {
	if errors.Is(err, imagehost.ErrNotConfigured) {
		return ErrImageHostMissing
	}
	s.logger.Error(msg, zap.Error(err))
	return ErrImageHostFailed
}
