package report

import "strings"

// Merge 合并两份报告：计数累加，链接按规范化地址去重，时点值取 b 中的非空值
func Merge(a, b *Report) *Report {
	out := New()

	out.City = latest(a.City, b.City)
	out.Period = latest(a.Period, b.Period)

	out.Hired = a.Hired + b.Hired
	out.Fired = a.Fired + b.Fired
	out.Calls = a.Calls + b.Calls
	out.InterviewsCount = a.InterviewsCount + b.InterviewsCount

	out.Headcount = latestPtr(a.Headcount, b.Headcount)
	out.FundReceived = latestPtr(a.FundReceived, b.FundReceived)
	out.FundSpent = latestPtr(a.FundSpent, b.FundSpent)
	out.FundBalance = latestPtr(a.FundBalance, b.FundBalance)

	out.Interviews = mergeLinks(mergeLinks(out.Interviews, a.Interviews), b.Interviews)
	out.Lectures = mergeLinks(mergeLinks(out.Lectures, a.Lectures), b.Lectures)
	out.Trainings = mergeLinks(mergeLinks(out.Trainings, a.Trainings), b.Trainings)
	out.Events = mergeLinks(mergeLinks(out.Events, a.Events), b.Events)

	for _, w := range append(append([]Warning{}, a.Warnings...), b.Warnings...) {
		out.Warnings = appendWarning(out.Warnings, w)
	}
	for _, e := range append(append([]Evaluation{}, a.Evaluations...), b.Evaluations...) {
		out.Evaluations = upsertEvaluation(out.Evaluations, e)
	}
	return out
}

// Aggregate 逐份解析并按城市合并；未识别城市的报告归入空字符串键
func Aggregate(texts []string) map[string]*Report {
	out := make(map[string]*Report)
	for _, text := range texts {
		r := Parse(text)
		if prev, ok := out[r.City]; ok {
			out[r.City] = Merge(prev, r)
			continue
		}
		out[r.City] = r
	}
	return out
}

// NormalizeLink 去掉协议、www. 与末尾斜杠后转小写，作为去重键
func NormalizeLink(link string) string {
	s := strings.ToLower(strings.TrimSpace(link))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimRight(s, "/")
}

func mergeLinks(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, l := range dst {
		seen[NormalizeLink(l)] = true
	}
	for _, l := range src {
		key := NormalizeLink(l)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		dst = append(dst, l)
	}
	return dst
}

func appendWarning(list []Warning, w Warning) []Warning {
	for _, existing := range list {
		if strings.EqualFold(existing.Nick, w.Nick) && strings.EqualFold(existing.Reason, w.Reason) {
			return list
		}
	}
	return append(list, w)
}

// upsertEvaluation 同一昵称（不区分大小写）以后出现的评价为准，保持原位置
func upsertEvaluation(list []Evaluation, e Evaluation) []Evaluation {
	for i := range list {
		if strings.EqualFold(list[i].Nick, e.Nick) {
			list[i].Value = e.Value
			return list
		}
	}
	return append(list, e)
}

func latest(a, b string) string {
	if strings.TrimSpace(b) != "" {
		return b
	}
	return a
}

func latestPtr(a, b *int64) *int64 {
	if b != nil {
		v := *b
		return &v
	}
	if a != nil {
		v := *a
		return &v
	}
	return nil
}
