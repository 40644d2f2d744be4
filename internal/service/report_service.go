package service

import (
	"fmt"

	"go.uber.org/zap"

	"moh-portal/internal/report"
	pkgerrors "moh-portal/pkg/errors"
)

// maxReportText 单份周报文本上限
const maxReportText = 100000

// ReportService 周报解析与生成（纯计算，无持久化）
type ReportService interface {
	Aggregate(texts []string) (map[string]*report.Report, error)
	Render(r *report.Report) string
	DOCX(r *report.Report) ([]byte, string, error)
}

type reportService struct {
	logger *zap.Logger
}

// NewReportService 创建 ReportService 实例
func NewReportService(logger *zap.Logger) ReportService {
	return &reportService{logger: logger}
}

func (s *reportService) Aggregate(texts []string) (map[string]*report.Report, error) {
	nonEmpty := make([]string, 0, len(texts))
	for _, t := range texts {
		if len(t) > maxReportText {
			return nil, pkgerrors.Validation("Текст отчёта слишком длинный")
		}
		if trim(t) != "" {
			nonEmpty = append(nonEmpty, t)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, pkgerrors.Validation("Вставьте хотя бы один отчёт")
	}
	return report.Aggregate(nonEmpty), nil
}

func (s *reportService) Render(r *report.Report) string {
	return report.Render(r)
}

func (s *reportService) DOCX(r *report.Report) ([]byte, string, error) {
	data, err := report.RenderDOCX(r)
	if err != nil {
		s.logger.Error("生成 DOCX 失败", zap.Error(err))
		return nil, "", fmt.Errorf("生成 DOCX 失败: %w", err)
	}
	name := "report.docx"
	if r.City != "" {
		name = fmt.Sprintf("report_%s.docx", r.City)
	}
	return data, name, nil
}
