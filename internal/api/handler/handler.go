package handler

import (
	"moh-portal/internal/service"
	"moh-portal/pkg/session"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth      *AuthHandler
	User      *UserHandler
	ActionLog *ActionLogHandler
	Promotion *PromotionHandler
	Biography *BiographyHandler
	Report    *ReportHandler
	Avatar    *AvatarHandler
}

// NewHandler 创建 Handler 聚合
// trustHeaders 为 true 时，处理器在无令牌的情况下接受上游代理转发的 x-user-* 头
func NewHandler(svc *service.Service, codec *session.Codec, trustHeaders bool) *Handler {
	ids := NewIdentity(codec, trustHeaders)
	return &Handler{
		Auth:      NewAuthHandler(svc.Auth, ids),
		User:      NewUserHandler(svc.User, ids),
		ActionLog: NewActionLogHandler(svc.ActionLog, ids),
		Promotion: NewPromotionHandler(svc.Promotion, ids),
		Biography: NewBiographyHandler(svc.Biography, ids),
		Report:    NewReportHandler(svc.Report, ids),
		Avatar:    NewAvatarHandler(svc.Avatar, ids),
	}
}
