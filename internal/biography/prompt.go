package biography

import (
	"fmt"
	"strings"
	"time"
)

const systemPrompt = `Ты — строгий проверяющий биографий персонажей ролевого проекта (фракция Министерства здравоохранения).
Проверяй биографию по правилам:
1. Биография состоит из 13 разделов в фиксированном порядке: %s.
2. Возраст в разделе «Возраст» должен соответствовать дате рождения на текущую дату.
3. Разделы «Детство», «Юность и взрослая жизнь», «Настоящее время» пишутся от первого лица.
4. Текст должен быть грамотным, без явных орфографических и пунктуационных ошибок.
5. События должны быть логически согласованы между собой и с датами.
Отвечай ТОЛЬКО валидным JSON без пояснений и без markdown.`

const responseSchema = `{
  "valid": boolean,
  "score": number (0-10),
  "status": "success" | "warning" | "error",
  "summary": string,
  "birthDate": string (дата рождения из текста в формате ДД.ММ.ГГГГ или пустая строка),
  "checks": {
    "birthdate":   {"status": "success" | "warning" | "error", "comment": string},
    "grammar":     {"status": "success" | "warning" | "error", "comment": string},
    "logic":       {"status": "success" | "warning" | "error", "comment": string},
    "structure":   {"status": "success" | "warning" | "error", "comment": string},
    "perspective": {"status": "success" | "warning" | "error", "comment": string}
  },
  "sections": [{"number": number, "title": string, "status": "success" | "warning" | "error", "comment": string}],
  "issues": [string],
  "recommendations": [string]
}`

// BuildPrompt 构建系统提示词与用户消息；currentDate 写入提示词作为年龄计算基准
func BuildPrompt(n *Normalized, currentDate time.Time) (system, user string) {
	system = fmt.Sprintf(systemPrompt, strings.Join(SectionTitles[:], ", "))

	var b strings.Builder
	fmt.Fprintf(&b, "Текущая дата: %s.\n", currentDate.Format("02.01.2006"))
	if len(n.MissingSections) > 0 {
		fmt.Fprintf(&b, "Отсутствующие разделы: %s.\n", strings.Join(n.MissingSections, ", "))
	}
	if len(n.EmptySections) > 0 {
		fmt.Fprintf(&b, "Пустые разделы: %s.\n", strings.Join(n.EmptySections, ", "))
	}
	b.WriteString("Верни оценку строго по схеме (массив sections должен содержать все 13 разделов):\n")
	b.WriteString(responseSchema)
	b.WriteString("\n\nБиография:\n")
	b.WriteString(n.Text())
	user = b.String()
	return system, user
}
