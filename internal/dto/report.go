package dto

import "moh-portal/internal/report"

// ReportParseRequest 多份周报文本
type ReportParseRequest struct {
	Texts []string `json:"texts" binding:"required,min=1,max=50"`
}

// ReportParseResponse 按城市汇总的结果
type ReportParseResponse struct {
	Cities map[string]*report.Report `json:"cities"`
}

// ReportRenderRequest 重新生成周报
type ReportRenderRequest struct {
	Report report.Report `json:"report"`
}

// ReportRenderResponse 生成的周报文本
type ReportRenderResponse struct {
	Text string `json:"text"`
}
