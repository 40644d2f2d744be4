package service

import (
	"go.uber.org/zap"

	"moh-portal/config"
	"moh-portal/internal/repository"
	"moh-portal/pkg/session"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth      AuthService
	User      UserService
	ActionLog ActionLogService
	Promotion PromotionService
	Biography BiographyService
	Avatar    AvatarService
	Report    ReportService
}

// Deps 外部协作方；Limiter 为 nil 时限流降级放行
type Deps struct {
	Codec   *session.Codec
	LLM     Completer
	Images  ImageHost
	Limiter RateLimiter
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	deps Deps,
	logger *zap.Logger,
) *Service {
	audit := NewActionLogService(repo, logger)
	return &Service{
		Auth:      NewAuthService(cfg, repo, deps.Codec, audit, logger),
		User:      NewUserService(cfg, repo, audit, logger),
		ActionLog: audit,
		Promotion: NewPromotionService(repo, audit, logger),
		Biography: NewBiographyService(cfg, repo, deps.LLM, deps.Limiter, logger),
		Avatar:    NewAvatarService(cfg, repo, deps.Images, audit, logger),
		Report:    NewReportService(logger),
	}
}
