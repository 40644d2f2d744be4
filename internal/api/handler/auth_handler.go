package handler

import (
	"github.com/gin-gonic/gin"

	"moh-portal/internal/dto"
	"moh-portal/internal/service"
	"moh-portal/pkg/response"
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
	ids     *Identity
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService, ids *Identity) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, ids: ids}
}

// Login 用户登录
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req, clientOf(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, result)
}

// RequestAccount 自助申请账号
// POST /api/account-request
func (h *AuthHandler) RequestAccount(c *gin.Context) {
	var req dto.AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}

	user, err := h.authSvc.RequestAccount(c.Request.Context(), &req, clientOf(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Created(c, user)
}

// Logout 用户登出；令牌无服务端状态，仅记录审计
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	caller, ok := h.ids.MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), caller); err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, nil)
}

// Me 当前用户信息与可见栏目
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	caller, ok := h.ids.MustGetCaller(c)
	if !ok {
		return
	}

	me, err := h.authSvc.Me(c.Request.Context(), caller)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, me)
}
