package report

import (
	"fmt"
	"strconv"
	"strings"
)

// Render 生成规范格式的周报文本；输出可被 Parse 重新读取
func Render(r *Report) string {
	var b strings.Builder

	b.WriteString("Отчёт\n")
	fmt.Fprintf(&b, "Город: %s\n", r.City)
	if r.Period != "" {
		fmt.Fprintf(&b, "Период: %s\n", r.Period)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Принято: %d\n", r.Hired)
	fmt.Fprintf(&b, "Уволено: %d\n", r.Fired)
	fmt.Fprintf(&b, "Вызовы: %d\n", r.Calls)
	fmt.Fprintf(&b, "Проведено собеседований: %d\n", r.InterviewTotal())
	if r.Headcount != nil {
		fmt.Fprintf(&b, "Численность: %d\n", *r.Headcount)
	}

	if r.FundReceived != nil || r.FundSpent != nil || r.FundBalance != nil {
		b.WriteString("\nФонд:\n")
		writeMoney(&b, "Получено", r.FundReceived)
		writeMoney(&b, "Потрачено", r.FundSpent)
		writeMoney(&b, "Остаток", r.FundBalance)
	}

	writeList(&b, "Собеседования", r.Interviews)
	writeList(&b, "Лекции", r.Lectures)
	writeList(&b, "Тренировки", r.Trainings)
	writeList(&b, "Мероприятия", r.Events)

	if len(r.Warnings) > 0 {
		b.WriteString("\nПредупреждения:\n")
		for i, w := range r.Warnings {
			fmt.Fprintf(&b, "%d. %s - %s\n", i+1, w.Nick, w.Reason)
		}
	}
	if len(r.Evaluations) > 0 {
		b.WriteString("\nОценки:\n")
		for i, e := range r.Evaluations {
			fmt.Fprintf(&b, "%d. %s - %s\n", i+1, e.Nick, e.Value)
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeMoney(b *strings.Builder, label string, v *int64) {
	if v == nil {
		return
	}
	fmt.Fprintf(b, "%s: %s $\n", label, FormatNumber(*v))
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for i, item := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, item)
	}
}

// FormatNumber 以空格分隔千分位："1250000" → "1 250 000"
func FormatNumber(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, " ")
	if neg {
		return "-" + out
	}
	return out
}
