package handler

import (
	"github.com/gin-gonic/gin"

	"moh-portal/internal/dto"
	"moh-portal/internal/service"
	"moh-portal/pkg/response"
)

// PromotionHandler 晋升 / 处分积分表 HTTP 处理器
type PromotionHandler struct {
	promoSvc service.PromotionService
	ids      *Identity
}

// NewPromotionHandler 创建 PromotionHandler
func NewPromotionHandler(promoSvc service.PromotionService, ids *Identity) *PromotionHandler {
	return &PromotionHandler{promoSvc: promoSvc, ids: ids}
}

// List 某分类下的全部分区
// GET /api/promotion-system?category=
func (h *PromotionHandler) List(c *gin.Context) {
	if _, ok := h.ids.MustGetCaller(c); !ok {
		return
	}

	result, err := h.promoSvc.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, result)
}

// Mutate 按 action 修改积分表
// POST /api/promotion-system
func (h *PromotionHandler) Mutate(c *gin.Context) {
	caller, ok := h.ids.MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.PromotionActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}

	result, err := h.promoSvc.Mutate(c.Request.Context(), caller, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, result)
}

// Export 两个分类各一个工作表
// GET /api/promotion-system/export
func (h *PromotionHandler) Export(c *gin.Context) {
	if _, ok := h.ids.MustGetCaller(c); !ok {
		return
	}

	buf, filename, err := h.promoSvc.Export(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}

	sendAttachment(c, buf.Bytes(), filename, contentTypeXLSX)
}
