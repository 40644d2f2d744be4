package report

import (
	"bytes"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXContentType DOCX 的 MIME 类型
const DOCXContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// RenderDOCX 将 Render 的文本逐行写成段落；以 ":" 结尾的标题行加粗
func RenderDOCX(r *Report) ([]byte, error) {
	doc := docx.New().WithDefaultTheme()
	for _, line := range strings.Split(strings.TrimRight(Render(r), "\n"), "\n") {
		para := doc.AddParagraph()
		if line == "" {
			continue
		}
		run := para.AddText(line)
		if strings.HasSuffix(line, ":") || line == "Отчёт" {
			run.Bold()
		}
	}

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
