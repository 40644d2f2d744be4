package report

import (
	"regexp"
	"strings"
)

// field 可识别的字段
type field int

const (
	fieldNone field = iota
	fieldCity
	fieldPeriod
	fieldHired
	fieldFired
	fieldCalls
	fieldHeadcount
	fieldFundReceived
	fieldFundSpent
	fieldFundBalance
	fieldInterviews
	fieldLectures
	fieldTrainings
	fieldEvents
	fieldWarnings
	fieldEvaluations
	fieldGroup // 只有标题没有取值的分组行，例如 "Фонд:"
)

// labelRule 标签关键字（小写子串），按顺序匹配，靠前的优先
type labelRule struct {
	keys  []string
	field field
}

var labelRules = []labelRule{
	{[]string{"город", "больница", "филиал"}, fieldCity},
	{[]string{"период", "отчет за", "отчёт за", "неделя"}, fieldPeriod},
	{[]string{"получено", "поступило", "пополнение"}, fieldFundReceived},
	{[]string{"потрачено", "израсходовано", "расход"}, fieldFundSpent},
	{[]string{"остаток", "баланс", "в фонде"}, fieldFundBalance},
	{[]string{"вызов"}, fieldCalls},
	{[]string{"уволен", "увольнени"}, fieldFired},
	{[]string{"принят", "нанят", "приём", "прием"}, fieldHired},
	{[]string{"численность", "состав", "кол-во сотрудников", "количество сотрудников", "сотрудников"}, fieldHeadcount},
	{[]string{"собеседовани"}, fieldInterviews},
	{[]string{"лекци"}, fieldLectures},
	{[]string{"тренировк", "тренинг"}, fieldTrainings},
	{[]string{"мероприяти"}, fieldEvents},
	{[]string{"предупреждени", "выговор"}, fieldWarnings},
	{[]string{"оценк", "оценивани"}, fieldEvaluations},
	{[]string{"фонд"}, fieldGroup},
}

// 城市代码及俄文写法
var cityAliases = map[string]string{
	"cgb-n": "CGB-N",
	"cgb-p": "CGB-P",
	"okb-m": "OKB-M",
	"цгб-н": "CGB-N",
	"цгб-п": "CGB-P",
	"окб-м": "OKB-M",
}

var (
	cityPattern = regexp.MustCompile(`(?i)(cgb-n|cgb-p|okb-m|цгб-н|цгб-п|окб-м)`)
	urlPattern  = regexp.MustCompile(`https?://[^\s,;]+`)
	bulletStrip = regexp.MustCompile(`^\s*(?:[-•*–—·]+|\d{1,3}\s*[.)])\s*`)
	// 标签与取值之间的分隔：冒号，或两侧带空格的破折号，或破折号后紧跟数字
	labelSplit = regexp.MustCompile(`\s*:\s*|\s+[-–—]\s+|\s*[-–—]\s*(?:\$?\d)`)
	pairSplit  = regexp.MustCompile(`\s+[-–—]\s+|\s*:\s*`)
)

// Parse 解析一份周报文本；无法识别的行被忽略
func Parse(text string) *Report {
	r := New()
	text = strings.ReplaceAll(text, "\r\n", "\n")

	list := fieldNone
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), "*_"))
		if line == "" {
			continue
		}

		if f, value, ok := matchLabel(line); ok {
			// 列表内带序号的行，即使含列表关键字也按条目处理
			if !(list != fieldNone && isListField(f) && bulletStrip.MatchString(line)) {
				list = applyField(r, f, value)
				continue
			}
		}

		if r.City == "" && list == fieldNone {
			if city := detectCity(line); city != "" {
				r.City = city
				continue
			}
		}

		if list != fieldNone {
			addItem(r, list, bulletStrip.ReplaceAllString(line, ""))
		}
	}
	return r
}

// matchLabel 识别 "标签 分隔符 取值" 行
// 含链接的行只看链接之前的部分；没有显式分隔符时视为当前列表的条目
func matchLabel(line string) (field, string, bool) {
	head := line
	if loc := urlPattern.FindStringIndex(line); loc != nil {
		if bulletStrip.MatchString(line) {
			return fieldNone, "", false
		}
		head = line[:loc[0]]
		if !labelSplit.MatchString(head) {
			return fieldNone, "", false
		}
	}

	label, value := head, ""
	if loc := labelSplit.FindStringIndex(head); loc != nil {
		label = line[:loc[0]]
		value = strings.TrimLeft(line[loc[0]:], " \t:-–—")
	} else if bulletStrip.MatchString(line) || len(strings.Fields(line)) > 2 {
		// 无分隔符时只接受 "Лекции"、"Отчёт CGB-N" 这类短标题
		return fieldNone, "", false
	}
	label = strings.ToLower(strings.TrimSpace(bulletStrip.ReplaceAllString(label, "")))
	if label == "" || len([]rune(label)) > 60 {
		return fieldNone, "", false
	}

	lower := strings.ToLower(line)
	for _, rule := range labelRules {
		for _, key := range rule.keys {
			if !strings.Contains(label, key) {
				continue
			}
			if rule.field == fieldPeriod || rule.field == fieldCity {
				// "Отчёт за период 01.01-07.01"：取关键字之后的整段
				if idx := strings.Index(lower, key); idx >= 0 {
					value = strings.TrimLeft(line[idx+len(key):], " \t:-–—")
				}
			}
			return rule.field, strings.TrimSpace(value), true
		}
	}
	return fieldNone, "", false
}

// applyField 写入字段，返回后续行应归入的列表
func applyField(r *Report, f field, value string) field {
	switch f {
	case fieldCity:
		if city := detectCity(value); city != "" {
			r.City = city
		} else if value != "" {
			r.City = value
		}
		return fieldNone
	case fieldPeriod:
		if value != "" {
			r.Period = value
		}
		return fieldNone
	case fieldHired:
		r.Hired += int(parseNumberOrZero(value))
		return fieldNone
	case fieldFired:
		r.Fired += int(parseNumberOrZero(value))
		return fieldNone
	case fieldCalls:
		r.Calls += int(parseNumberOrZero(value))
		return fieldNone
	case fieldHeadcount:
		if n, ok := ParseNumber(value); ok {
			r.Headcount = &n
		}
		return fieldNone
	case fieldFundReceived:
		if n, ok := ParseNumber(value); ok {
			r.FundReceived = &n
		}
		return fieldNone
	case fieldFundSpent:
		if n, ok := ParseNumber(value); ok {
			r.FundSpent = &n
		}
		return fieldNone
	case fieldFundBalance:
		if n, ok := ParseNumber(value); ok {
			r.FundBalance = &n
		}
		return fieldNone
	case fieldGroup:
		return fieldNone
	}

	// 列表类：同行可能直接给出数量或链接
	if links := urlPattern.FindAllString(value, -1); len(links) > 0 {
		for _, l := range links {
			addItem(r, f, l)
		}
		return f
	}
	if f == fieldInterviews {
		if n, ok := ParseNumber(value); ok {
			r.InterviewsCount += int(n)
		}
	}
	if value != "" && (f == fieldWarnings || f == fieldEvaluations) {
		if _, ok := ParseNumber(value); !ok {
			addItem(r, f, value)
		}
	}
	return f
}

func isListField(f field) bool {
	switch f {
	case fieldInterviews, fieldLectures, fieldTrainings, fieldEvents, fieldWarnings, fieldEvaluations:
		return true
	}
	return false
}

func addItem(r *Report, f field, item string) {
	item = strings.TrimSpace(item)
	if item == "" {
		return
	}
	switch f {
	case fieldInterviews:
		r.Interviews = appendLink(r.Interviews, item)
	case fieldLectures:
		r.Lectures = appendLink(r.Lectures, item)
	case fieldTrainings:
		r.Trainings = appendLink(r.Trainings, item)
	case fieldEvents:
		r.Events = appendLink(r.Events, item)
	case fieldWarnings:
		if nick, reason, ok := splitPair(item); ok {
			r.Warnings = appendWarning(r.Warnings, Warning{Nick: nick, Reason: reason})
		}
	case fieldEvaluations:
		if nick, value, ok := splitPair(item); ok {
			r.Evaluations = upsertEvaluation(r.Evaluations, Evaluation{Nick: nick, Value: value})
		}
	}
}

// appendLink 行内含链接时只取链接，否则保留原文
func appendLink(list []string, item string) []string {
	if links := urlPattern.FindAllString(item, -1); len(links) > 0 {
		for _, l := range links {
			list = mergeLinks(list, []string{l})
		}
		return list
	}
	return mergeLinks(list, []string{item})
}

func splitPair(item string) (string, string, bool) {
	loc := pairSplit.FindStringIndex(item)
	if loc == nil {
		return "", "", false
	}
	left := strings.TrimSpace(item[:loc[0]])
	right := strings.TrimSpace(item[loc[1]:])
	if left == "" || right == "" {
		return "", "", false
	}
	return left, right, true
}

func detectCity(s string) string {
	m := cityPattern.FindString(s)
	if m == "" {
		return ""
	}
	return cityAliases[strings.ToLower(m)]
}

// ParseNumber 解析 "1 250 000"、"1,250,000 $"、"$500"、"300 руб." 等写法中的第一个整数
func ParseNumber(s string) (int64, bool) {
	runes := []rune(s)
	i := 0
	for i < len(runes) && !isDigit(runes[i]) {
		switch runes[i] {
		case '$', ' ', '\t', '\u00a0', '\u202f', '~', '≈':
			i++
		default:
			return 0, false
		}
	}
	if i == len(runes) {
		return 0, false
	}

	var n int64
	digits := 0
	for ; i < len(runes); i++ {
		c := runes[i]
		if isDigit(c) {
			if digits == maxNumberDigits {
				return 0, false
			}
			n = n*10 + int64(c-'0')
			digits++
			continue
		}
		// 千分位分隔：前面是数字，后面恰好三位数字
		if isGroupSeparator(c) && i > 0 && isDigit(runes[i-1]) && isDigitGroup(runes[i+1:]) {
			continue
		}
		break
	}
	return n, true
}

// maxNumberDigits int64 不会溢出的位数
const maxNumberDigits = 18

// isDigitGroup 以恰好三位数字开头
func isDigitGroup(rs []rune) bool {
	if len(rs) < 3 || !isDigit(rs[0]) || !isDigit(rs[1]) || !isDigit(rs[2]) {
		return false
	}
	return len(rs) == 3 || !isDigit(rs[3])
}

func parseNumberOrZero(s string) int64 {
	n, _ := ParseNumber(s)
	return n
}

func isDigit(c rune) bool { return c >= '0' && c <= '9' }

func isGroupSeparator(c rune) bool {
	switch c {
	case ' ', '\u00a0', '\u202f', ',', '.', '\'':
		return true
	}
	return false
}
