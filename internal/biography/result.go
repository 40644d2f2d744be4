package biography

import (
	"encoding/json"
	"math"
)

// 检查状态，严重程度递增
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
	StatusError   = "error"
)

// 最终结论
const (
	VerdictPassed  = "passed"
	VerdictRefused = "refused"
)

// Check 单项检查结果
type Check struct {
	Status  string `json:"status"`
	Comment string `json:"comment,omitempty"`
}

// Checks 五项必检
type Checks struct {
	Birthdate   Check `json:"birthdate"`
	Grammar     Check `json:"grammar"`
	Logic       Check `json:"logic"`
	Structure   Check `json:"structure"`
	Perspective Check `json:"perspective"`
}

// SectionResult 模型对单个分区的评价
type SectionResult struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	Comment string `json:"comment,omitempty"`
}

// Result 校验结果（模型输出 + 本地覆盖）
type Result struct {
	Valid           bool            `json:"valid"`
	Score           int             `json:"score"`
	Status          string          `json:"status"`
	Summary         string          `json:"summary"`
	BirthDate       string          `json:"birthDate,omitempty"`
	Checks          Checks          `json:"checks"`
	Sections        []SectionResult `json:"sections"`
	Issues          []string        `json:"issues"`
	Recommendations []string        `json:"recommendations"`

	StatedAge          *int     `json:"statedAge,omitempty"`
	CalculatedAge      *int     `json:"calculatedAge,omitempty"`
	AgeMismatch        bool     `json:"ageMismatch"`
	MissingSections    []string `json:"missingSections"`
	EmptySections      []string `json:"emptySections"`
	ThirdPersonMarkers []string `json:"thirdPersonMarkers,omitempty"`
	PrimaryVerdict     string   `json:"primaryVerdict"`
	VerdictReasons     []string `json:"verdictReasons"`
}

// modelOutput 模型返回的原始结构；score 可能是小数
type modelOutput struct {
	Valid           bool            `json:"valid"`
	Score           float64         `json:"score"`
	Status          string          `json:"status"`
	Summary         string          `json:"summary"`
	BirthDate       string          `json:"birthDate"`
	Checks          Checks          `json:"checks"`
	Sections        []SectionResult `json:"sections"`
	Issues          []string        `json:"issues"`
	Recommendations []string        `json:"recommendations"`
}

// UnmarshalJSON 只接受模型负责的字段，本地计算字段一律忽略
func (r *Result) UnmarshalJSON(data []byte) error {
	var out modelOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*r = Result{
		Valid:           out.Valid,
		Score:           int(math.Round(out.Score)),
		Status:          out.Status,
		Summary:         out.Summary,
		BirthDate:       out.BirthDate,
		Checks:          out.Checks,
		Sections:        out.Sections,
		Issues:          out.Issues,
		Recommendations: out.Recommendations,
	}
	return nil
}

func severity(status string) int {
	switch status {
	case StatusSuccess:
		return 0
	case StatusWarning:
		return 1
	default:
		return 2
	}
}

// raise 状态只升不降
func raise(current, to string) string {
	if severity(to) > severity(current) {
		return to
	}
	return current
}
