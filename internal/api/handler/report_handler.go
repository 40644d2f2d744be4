package handler

import (
	"github.com/gin-gonic/gin"

	"moh-portal/internal/dto"
	"moh-portal/internal/service"
	"moh-portal/pkg/response"
)

// ReportHandler 周报解析与生成 HTTP 处理器
type ReportHandler struct {
	reportSvc service.ReportService
	ids       *Identity
}

// NewReportHandler 创建 ReportHandler
func NewReportHandler(reportSvc service.ReportService, ids *Identity) *ReportHandler {
	return &ReportHandler{reportSvc: reportSvc, ids: ids}
}

// Parse 解析多份周报并按城市汇总
// POST /api/reports/parse
func (h *ReportHandler) Parse(c *gin.Context) {
	if _, ok := h.ids.MustGetCaller(c); !ok {
		return
	}

	var req dto.ReportParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}

	cities, err := h.reportSvc.Aggregate(req.Texts)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, dto.ReportParseResponse{Cities: cities})
}

// Render 重新生成周报文本
// POST /api/reports/render
func (h *ReportHandler) Render(c *gin.Context) {
	if _, ok := h.ids.MustGetCaller(c); !ok {
		return
	}

	var req dto.ReportRenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}

	response.OK(c, dto.ReportRenderResponse{Text: h.reportSvc.Render(&req.Report)})
}

// DOCX 下载 Word 版周报
// POST /api/reports/docx
func (h *ReportHandler) DOCX(c *gin.Context) {
	if _, ok := h.ids.MustGetCaller(c); !ok {
		return
	}

	var req dto.ReportRenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}

	data, filename, err := h.reportSvc.DOCX(&req.Report)
	if err != nil {
		response.FromError(c, err)
		return
	}

	sendAttachment(c, data, filename, contentTypeDOCX)
}
