// Package report 周报文本的解析、合并、汇总与重新生成
package report

// Warning 警告记录：昵称 - 原因
type Warning struct {
	Nick   string `json:"nick"`
	Reason string `json:"reason"`
}

// Evaluation 评分记录：昵称 - 评价
type Evaluation struct {
	Nick  string `json:"nick"`
	Value string `json:"value"`
}

// Report 单城市的结构化周报
// 计数类字段合并时累加；指针字段为时点值，合并时取最近一次非空值
type Report struct {
	City   string `json:"city"`
	Period string `json:"period"`

	Hired           int `json:"hired"`
	Fired           int `json:"fired"`
	Calls           int `json:"calls"`
	InterviewsCount int `json:"interviewsCount"`

	Headcount    *int64 `json:"headcount,omitempty"`
	FundReceived *int64 `json:"fundReceived,omitempty"`
	FundSpent    *int64 `json:"fundSpent,omitempty"`
	FundBalance  *int64 `json:"fundBalance,omitempty"`

	Interviews  []string     `json:"interviews"`
	Lectures    []string     `json:"lectures"`
	Trainings   []string     `json:"trainings"`
	Events      []string     `json:"events"`
	Warnings    []Warning    `json:"warnings"`
	Evaluations []Evaluation `json:"evaluations"`
}

// New 返回列表字段已初始化的空报告
func New() *Report {
	return &Report{
		Interviews:  []string{},
		Lectures:    []string{},
		Trainings:   []string{},
		Events:      []string{},
		Warnings:    []Warning{},
		Evaluations: []Evaluation{},
	}
}

// InterviewTotal 显式计数优先，否则按链接数
func (r *Report) InterviewTotal() int {
	if r.InterviewsCount > 0 {
		return r.InterviewsCount
	}
	return len(r.Interviews)
}
