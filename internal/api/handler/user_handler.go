package handler

import (
	"github.com/gin-gonic/gin"

	"moh-portal/internal/dto"
	"moh-portal/internal/service"
	"moh-portal/pkg/response"
)

// UserHandler 用户目录 HTTP 处理器
type UserHandler struct {
	userSvc service.UserService
	ids     *Identity
}

// NewUserHandler 创建 UserHandler
func NewUserHandler(userSvc service.UserService, ids *Identity) *UserHandler {
	return &UserHandler{userSvc: userSvc, ids: ids}
}

// ListUsers 用户列表（ld 仅限本城市）
// GET /api/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	caller, ok := h.ids.MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.UserListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "Некорректные параметры запроса")
		return
	}

	users, total, err := h.userSvc.List(c.Request.Context(), caller, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OKPage(c, users, total, req.GetPage(), req.GetPageSize())
}

// CreateUser 管理员直接创建账号
// POST /api/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	caller, ok := h.ids.MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}

	user, err := h.userSvc.Create(c.Request.Context(), caller, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Created(c, user)
}

// UpdateUser 修改用户名 / 游戏昵称 / 密码
// PUT /api/users
func (h *UserHandler) UpdateUser(c *gin.Context) {
	caller, ok := h.ids.MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}

	user, err := h.userSvc.Update(c.Request.Context(), caller, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, user)
}

// PatchUser 角色 / 城市 / 审批 / 恢复
// PATCH /api/users
func (h *UserHandler) PatchUser(c *gin.Context) {
	caller, ok := h.ids.MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.PatchUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}

	user, err := h.userSvc.Patch(c.Request.Context(), caller, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, user)
}

// DeleteUser 默认停用；permanent=true 时物理删除（含驳回申请）
// DELETE /api/users?id=&permanent=
func (h *UserHandler) DeleteUser(c *gin.Context) {
	caller, ok := h.ids.MustGetCaller(c)
	if !ok {
		return
	}

	var q dto.DeleteUserQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "Не указан идентификатор пользователя")
		return
	}

	if q.Permanent {
		if err := h.userSvc.Delete(c.Request.Context(), caller, q.ID); err != nil {
			response.FromError(c, err)
			return
		}
		response.OK(c, gin.H{"id": q.ID, "deleted": true})
		return
	}

	user, err := h.userSvc.Deactivate(c.Request.Context(), caller, q.ID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, user)
}
