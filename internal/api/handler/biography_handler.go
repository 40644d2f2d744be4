package handler

import (
	"github.com/gin-gonic/gin"

	"moh-portal/internal/dto"
	"moh-portal/internal/service"
	"moh-portal/pkg/response"
)

// BiographyHandler 传记校验 HTTP 处理器
type BiographyHandler struct {
	bioSvc service.BiographyService
	ids    *Identity
}

// NewBiographyHandler 创建 BiographyHandler
func NewBiographyHandler(bioSvc service.BiographyService, ids *Identity) *BiographyHandler {
	return &BiographyHandler{bioSvc: bioSvc, ids: ids}
}

// Validate 校验角色传记
// POST /api/admin/biography/validate
func (h *BiographyHandler) Validate(c *gin.Context) {
	caller, ok := h.ids.MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.BiographyValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}

	result, err := h.bioSvc.Validate(c.Request.Context(), caller, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, result)
}
