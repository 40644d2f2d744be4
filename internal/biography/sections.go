// Package biography 人物传记的结构规范化、提示词构建与确定性后处理
package biography

import (
	"regexp"
	"strconv"
	"strings"
)

// SectionTitles 13 个规范分区，下标 +1 即分区编号
var SectionTitles = [13]string{
	"Имя и фамилия",
	"Пол",
	"Национальность",
	"Возраст",
	"Дата и место рождения",
	"Семья",
	"Место проживания",
	"Внешность",
	"Характер",
	"Детство",
	"Юность и взрослая жизнь",
	"Настоящее время",
	"Итог",
}

// SectionCount 规范分区数量
const SectionCount = len(SectionTitles)

// 常见的非规范标题写法，按分区编号
var sectionAliases = map[int][]string{
	1:  {"имя", "фио", "имя, фамилия", "имя фамилия"},
	2:  {"пол персонажа"},
	3:  {"национальность персонажа"},
	5:  {"дата рождения", "место рождения", "дата и место рождение"},
	6:  {"семья персонажа", "семейное положение"},
	7:  {"место жительства", "проживание"},
	8:  {"описание внешности", "внешний вид"},
	9:  {"черты характера"},
	11: {"юность", "взрослая жизнь", "юность и взрослая", "молодость"},
	12: {"настоящее", "наши дни"},
	13: {"итоги", "заключение"},
}

// Section 规范化后的分区
type Section struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Normalized 规范化结果
type Normalized struct {
	Sections        []Section `json:"sections"`
	MissingSections []string  `json:"missingSections"`
	EmptySections   []string  `json:"emptySections"`
}

// Section 按编号取分区；不存在返回 nil
func (n *Normalized) Section(number int) *Section {
	for i := range n.Sections {
		if n.Sections[i].Number == number {
			return &n.Sections[i]
		}
	}
	return nil
}

// Text 以 "N. 标题:\n内容" 的规范格式输出
func (n *Normalized) Text() string {
	var b strings.Builder
	for i, s := range n.Sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strconv.Itoa(s.Number))
		b.WriteString(". ")
		b.WriteString(s.Title)
		b.WriteString(":\n")
		b.WriteString(s.Content)
	}
	return b.String()
}

// 行首编号："1.", "1)", "1 -", "№1." 等
var numberedHeader = regexp.MustCompile(`^\s*(?:№\s*)?(\d{1,2})\s*[.)\-–—:](\s*)(.*)$`)

// Normalize 将任意编号/标题映射到规范分区
func Normalize(text string) *Normalized {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	contents := make(map[int][]string)
	seen := make(map[int]bool)
	current := 0

	for _, line := range lines {
		if num, rest, ok := matchHeader(line); ok {
			current = num
			seen[num] = true
			if rest != "" {
				contents[num] = append(contents[num], rest)
			}
			continue
		}
		if current == 0 {
			continue
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" || len(contents[current]) > 0 {
			contents[current] = append(contents[current], trimmed)
		}
	}

	out := &Normalized{
		Sections:        []Section{},
		MissingSections: []string{},
		EmptySections:   []string{},
	}
	for i, title := range SectionTitles {
		num := i + 1
		if !seen[num] {
			out.MissingSections = append(out.MissingSections, title)
			continue
		}
		content := strings.TrimSpace(strings.Join(contents[num], "\n"))
		if content == "" {
			out.EmptySections = append(out.EmptySections, title)
		}
		out.Sections = append(out.Sections, Section{Number: num, Title: title, Content: content})
	}
	return out
}

// matchHeader 识别分区标题行，返回分区编号与同行剩余内容
func matchHeader(line string) (int, string, bool) {
	trimmed := strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*#_"))
	if trimmed == "" {
		return 0, "", false
	}

	if m := numberedHeader.FindStringSubmatch(trimmed); m != nil {
		num, _ := strconv.Atoi(m[1])
		rest := strings.TrimSpace(m[3])
		if m[2] == "" && startsWithDigit(rest) {
			// 12.03.2001、10:00 之类的日期时间
			return 0, "", false
		}
		if byTitle, content, ok := matchTitle(rest); ok {
			return byTitle, content, true
		}
		if num >= 1 && num <= SectionCount {
			// "5. 12.03.2001, Москва" 这类只有编号没有标题的写法
			return num, rest, true
		}
		return 0, "", false
	}

	return matchTitle(trimmed)
}

// matchTitle 行首为规范标题或别名，且其后为冒号/破折号/行尾
func matchTitle(s string) (int, string, bool) {
	lower := strings.ToLower(s)
	best, bestLen := 0, 0
	try := func(title string, num int) {
		if !strings.HasPrefix(lower, title) || len(title) <= bestLen {
			return
		}
		tail := strings.TrimSpace(lower[len(title):])
		if tail == "" || strings.HasPrefix(tail, ":") || strings.HasPrefix(tail, "-") ||
			strings.HasPrefix(tail, "–") || strings.HasPrefix(tail, "—") {
			best, bestLen = num, len(title)
		}
	}
	for i, t := range SectionTitles {
		try(strings.ToLower(t), i+1)
	}
	for num, aliases := range sectionAliases {
		for _, alias := range aliases {
			try(alias, num)
		}
	}
	if best == 0 {
		return 0, "", false
	}
	rest := strings.TrimSpace(strings.TrimLeft(s[bestLen:], " :-–—*_"))
	return best, rest, true
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
