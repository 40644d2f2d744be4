package handler

import (
	"github.com/gin-gonic/gin"

	"moh-portal/internal/dto"
	"moh-portal/internal/service"
	"moh-portal/pkg/response"
)

// ActionLogHandler 审计日志与撤销 HTTP 处理器
type ActionLogHandler struct {
	logSvc service.ActionLogService
	ids    *Identity
}

// NewActionLogHandler 创建 ActionLogHandler
func NewActionLogHandler(logSvc service.ActionLogService, ids *Identity) *ActionLogHandler {
	return &ActionLogHandler{logSvc: logSvc, ids: ids}
}

// ListLogs 审计日志列表，按时间倒序
// GET /api/action-logs
func (h *ActionLogHandler) ListLogs(c *gin.Context) {
	caller, ok := h.ids.MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.ActionLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "Некорректные параметры запроса")
		return
	}

	logs, total, err := h.logSvc.List(c.Request.Context(), caller, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OKPage(c, logs, total, req.GetPage(), req.GetPageSize())
}

// ExportLogs 按相同筛选条件导出 XLSX
// GET /api/action-logs/export
func (h *ActionLogHandler) ExportLogs(c *gin.Context) {
	caller, ok := h.ids.MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.ActionLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "Некорректные параметры запроса")
		return
	}

	buf, filename, err := h.logSvc.Export(c.Request.Context(), caller, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	sendAttachment(c, buf.Bytes(), filename, contentTypeXLSX)
}

// Undo 撤销一条审计记录对应的操作
// POST /api/users/undo
func (h *ActionLogHandler) Undo(c *gin.Context) {
	caller, ok := h.ids.MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.UndoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}

	result, err := h.logSvc.Undo(c.Request.Context(), caller, req.LogID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, result)
}
