package biography

import (
	"fmt"
	"strings"
	"time"
)

// 分数上限
const (
	maxScore            = 10
	capAgeWarning       = 6
	capAgeError         = 3
	capThirdPerson      = 3
	capIncomplete       = 5
	capManyMissing      = 3
	manyMissingSections = 3
)

// PostProcess 用本地可验证的规则覆盖模型结论：年龄/出生日期、叙述人称、结构完整性
func PostProcess(res *Result, n *Normalized, currentDate time.Time) *Result {
	res.Score = clamp(res.Score, 0, maxScore)
	res.Status = normalizeStatus(res.Status)
	for _, c := range []*Check{&res.Checks.Birthdate, &res.Checks.Grammar, &res.Checks.Logic, &res.Checks.Structure, &res.Checks.Perspective} {
		c.Status = normalizeStatus(c.Status)
	}
	res.MissingSections = append([]string{}, n.MissingSections...)
	res.EmptySections = append([]string{}, n.EmptySections...)
	if res.Issues == nil {
		res.Issues = []string{}
	}
	if res.Recommendations == nil {
		res.Recommendations = []string{}
	}

	applyAge(res, n, currentDate)
	applyPerspective(res, n)
	applyStructure(res, n)

	if !res.Valid {
		res.Status = raise(res.Status, StatusWarning)
	}
	applyVerdict(res)
	return res
}

// ── 年龄 ──

func applyAge(res *Result, n *Normalized, currentDate time.Time) {
	birth, ok := ParseBirthDate(res.BirthDate)
	if !ok {
		if s := n.Section(5); s != nil {
			birth, ok = ParseBirthDate(s.Content)
		}
	}
	if !ok {
		birth, ok = ParseBirthDate(n.Text())
	}
	if !ok {
		return
	}
	res.BirthDate = birth.Format("02.01.2006")

	s := n.Section(4)
	if s == nil {
		return
	}
	stated, ok := StatedAge(s.Content)
	if !ok {
		return
	}

	calculated := CalculateAge(birth, currentDate)
	res.StatedAge = &stated
	res.CalculatedAge = &calculated

	diff := calculated - stated
	if diff < 0 {
		diff = -diff
	}
	if diff <= 1 {
		return
	}

	res.AgeMismatch = true
	comment := fmt.Sprintf("Указанный возраст (%d) не соответствует дате рождения %s: на %s полных лет: %d",
		stated, res.BirthDate, currentDate.Format("02.01.2006"), calculated)
	res.Issues = append(res.Issues, comment)

	if diff > 2 {
		res.Checks.Birthdate = Check{Status: StatusError, Comment: comment}
		res.Status = StatusError
		res.Valid = false
		res.Score = min(res.Score, capAgeError)
		return
	}
	res.Checks.Birthdate = Check{Status: raise(res.Checks.Birthdate.Status, StatusWarning), Comment: comment}
	res.Status = raise(res.Status, StatusWarning)
	res.Score = min(res.Score, capAgeWarning)
}

// ── 人称 ──

func applyPerspective(res *Result, n *Normalized) {
	var parts []string
	for _, num := range perspectiveSections {
		if s := n.Section(num); s != nil && s.Content != "" {
			parts = append(parts, s.Content)
		}
	}
	if len(parts) == 0 {
		return
	}
	text := strings.Join(parts, "\n")

	if markers := ThirdPersonMarkers(text); len(markers) > 0 {
		res.ThirdPersonMarkers = markers
		comment := fmt.Sprintf("Разделы «Детство», «Юность и взрослая жизнь», «Настоящее время» написаны от третьего лица (найдено: %s)",
			strings.Join(markers, ", "))
		res.Checks.Perspective = Check{Status: StatusError, Comment: comment}
		res.Issues = append(res.Issues, comment)
		res.Status = StatusError
		res.Valid = false
		res.Score = min(res.Score, capThirdPerson)
		return
	}

	if !HasFirstPerson(text) {
		res.Checks.Perspective = Check{
			Status:  raise(res.Checks.Perspective.Status, StatusWarning),
			Comment: "Не найдено повествования от первого лица в разделах 10–12",
		}
		res.Status = raise(res.Status, StatusWarning)
	}
}

// ── 结构 ──

func applyStructure(res *Result, n *Normalized) {
	if len(n.MissingSections) > 0 {
		comment := "Отсутствуют разделы: " + strings.Join(n.MissingSections, ", ")
		res.Checks.Structure = Check{Status: StatusError, Comment: comment}
		res.Issues = append(res.Issues, comment)
	} else if len(n.EmptySections) > 0 {
		comment := "Пустые разделы: " + strings.Join(n.EmptySections, ", ")
		res.Checks.Structure = Check{Status: raise(res.Checks.Structure.Status, StatusWarning), Comment: comment}
		res.Issues = append(res.Issues, comment)
	}

	if len(res.Sections) < SectionCount {
		res.Valid = false
		res.Score = min(res.Score, capIncomplete)
	}
	if len(n.MissingSections) > manyMissingSections {
		res.Score = min(res.Score, capManyMissing)
	}
}

// ── 结论 ──

func applyVerdict(res *Result) {
	reasons := []string{}
	add := func(label string, c Check, fallback string) {
		if c.Status == StatusSuccess {
			return
		}
		comment := c.Comment
		if comment == "" {
			comment = fallback
		}
		reasons = append(reasons, label+": "+comment)
	}
	add("Дата рождения и возраст", res.Checks.Birthdate, "требуется проверка даты рождения")
	add("Грамматика", res.Checks.Grammar, "найдены ошибки")
	add("Логика", res.Checks.Logic, "найдены противоречия")
	add("Структура", res.Checks.Structure, "нарушена структура разделов")
	add("Повествование", res.Checks.Perspective, "нарушено повествование от первого лица")
	if res.AgeMismatch && res.Checks.Birthdate.Status == StatusSuccess {
		reasons = append(reasons, "Возраст не соответствует дате рождения")
	}

	res.VerdictReasons = reasons
	if len(reasons) == 0 {
		res.PrimaryVerdict = VerdictPassed
		return
	}
	res.PrimaryVerdict = VerdictRefused
}

func normalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case StatusSuccess:
		return StatusSuccess
	case StatusError:
		return StatusError
	default:
		return StatusWarning
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
