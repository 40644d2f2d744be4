package biography

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var genitiveMonths = map[string]time.Month{
	"января":   time.January,
	"февраля":  time.February,
	"марта":    time.March,
	"апреля":   time.April,
	"мая":      time.May,
	"июня":     time.June,
	"июля":     time.July,
	"августа":  time.August,
	"сентября": time.September,
	"октября":  time.October,
	"ноября":   time.November,
	"декабря":  time.December,
}

var (
	numericDate = regexp.MustCompile(`(\d{1,2})[./\-](\d{1,2})[./\-](\d{4})`)
	isoDate     = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	wordDate    = regexp.MustCompile(`(?i)(\d{1,2})\s+(января|февраля|марта|апреля|мая|июня|июля|августа|сентября|октября|ноября|декабря)\s+(\d{4})`)
	firstNumber = regexp.MustCompile(`\d{1,3}`)
)

// ParseBirthDate 从文本中找出第一个日期：DD.MM.YYYY、D месяца YYYY 或 YYYY-MM-DD
func ParseBirthDate(s string) (time.Time, bool) {
	type candidate struct {
		pos int
		t   time.Time
	}
	var found []candidate

	if m := numericDate.FindStringSubmatchIndex(s); m != nil {
		d, _ := strconv.Atoi(s[m[2]:m[3]])
		mo, _ := strconv.Atoi(s[m[4]:m[5]])
		y, _ := strconv.Atoi(s[m[6]:m[7]])
		if t, ok := makeDate(y, mo, d); ok {
			found = append(found, candidate{m[0], t})
		}
	}
	if m := isoDate.FindStringSubmatchIndex(s); m != nil {
		y, _ := strconv.Atoi(s[m[2]:m[3]])
		mo, _ := strconv.Atoi(s[m[4]:m[5]])
		d, _ := strconv.Atoi(s[m[6]:m[7]])
		if t, ok := makeDate(y, mo, d); ok {
			found = append(found, candidate{m[0], t})
		}
	}
	if m := wordDate.FindStringSubmatchIndex(s); m != nil {
		d, _ := strconv.Atoi(s[m[2]:m[3]])
		mo := genitiveMonths[strings.ToLower(s[m[4]:m[5]])]
		y, _ := strconv.Atoi(s[m[6]:m[7]])
		if t, ok := makeDate(y, int(mo), d); ok {
			found = append(found, candidate{m[0], t})
		}
	}

	if len(found) == 0 {
		return time.Time{}, false
	}
	best := found[0]
	for _, c := range found[1:] {
		if c.pos < best.pos {
			best = c
		}
	}
	return best.t, true
}

func makeDate(y, m, d int) (time.Time, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 || y < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// 31.02 之类会被 time.Date 进位
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}

// CalculateAge 按日历计算周岁；当年生日未到则减一
func CalculateAge(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

// StatedAge 取分区 4 中出现的第一个数字
func StatedAge(content string) (int, bool) {
	m := firstNumber.FindString(content)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
