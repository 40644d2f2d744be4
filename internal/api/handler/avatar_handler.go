package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"moh-portal/internal/dto"
	"moh-portal/internal/service"
	"moh-portal/pkg/response"
)

// avatarFields 依次尝试的 multipart 字段名
var avatarFields = []string{"file", "avatar"}

// AvatarHandler 头像 HTTP 处理器
type AvatarHandler struct {
	avatarSvc service.AvatarService
	ids       *Identity
}

// NewAvatarHandler 创建 AvatarHandler
func NewAvatarHandler(avatarSvc service.AvatarService, ids *Identity) *AvatarHandler {
	return &AvatarHandler{avatarSvc: avatarSvc, ids: ids}
}

// Upload 上传本人头像
// POST /api/user/avatar
func (h *AvatarHandler) Upload(c *gin.Context) {
	caller, ok := h.ids.MustGetCaller(c)
	if !ok {
		return
	}

	header, err := avatarFile(c)
	if err != nil {
		badRequestBody(c, err)
		return
	}

	var (
		file     io.Reader
		filename string
	)
	if header != nil {
		f, err := header.Open()
		if err != nil {
			response.BadRequest(c, "Не удалось прочитать файл")
			return
		}
		defer f.Close()
		file, filename = f, header.Filename
	}

	result, err := h.avatarSvc.Upload(c.Request.Context(), caller, file, filename)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, result)
}

// Delete 删除本人头像
// DELETE /api/user/avatar
func (h *AvatarHandler) Delete(c *gin.Context) {
	caller, ok := h.ids.MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.avatarSvc.Delete(c.Request.Context(), caller); err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, nil)
}

// Reset 管理员重置他人头像
// DELETE /api/admin/users/:id/avatar
func (h *AvatarHandler) Reset(c *gin.Context) {
	caller, ok := h.ids.MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.avatarSvc.Reset(c.Request.Context(), caller, c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, nil)
}

// Moderate 审核他人头像
// PATCH /api/admin/users/:id/avatar
func (h *AvatarHandler) Moderate(c *gin.Context) {
	caller, ok := h.ids.MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.AvatarModerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}

	result, err := h.avatarSvc.Moderate(c.Request.Context(), caller, c.Param("id"), req.Status)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, result)
}

// avatarFile 取第一个存在的文件字段；都不存在时返回 nil, nil
func avatarFile(c *gin.Context) (*multipart.FileHeader, error) {
	for _, field := range avatarFields {
		header, err := c.FormFile(field)
		switch {
		case err == nil:
			return header, nil
		case errors.Is(err, http.ErrMissingFile):
			continue
		default:
			return nil, err
		}
	}
	return nil, nil
}
