package biography

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// sampleBio 生成完整的 13 段传记；overrides 按编号替换内容
func sampleBio(overrides map[int]string) string {
	contents := map[int]string{
		1:  "Ivan Petrov",
		2:  "Мужской",
		3:  "Русский",
		4:  "23 года",
		5:  "08.03.2001, г. Москва",
		6:  "Мать и отец, оба врачи",
		7:  "Лос-Сантос",
		8:  "Рост 182 см, тёмные волосы",
		9:  "Спокойный, ответственный",
		10: "Я рос в семье врачей, мне нравилось читать.",
		11: "Я поступил в медицинский университет, мои преподаватели меня хвалили.",
		12: "Сейчас я работаю в больнице и мне это нравится.",
		13: "Я доволен своей жизнью.",
	}
	for k, v := range overrides {
		contents[k] = v
	}
	var b strings.Builder
	for i, title := range SectionTitles {
		fmt.Fprintf(&b, "%d. %s:\n%s\n\n", i+1, title, contents[i+1])
	}
	return b.String()
}

func fullModelResult() *Result {
	res := &Result{
		Valid:  true,
		Score:  9,
		Status: StatusSuccess,
		Checks: Checks{
			Birthdate:   Check{Status: StatusSuccess},
			Grammar:     Check{Status: StatusSuccess},
			Logic:       Check{Status: StatusSuccess},
			Structure:   Check{Status: StatusSuccess},
			Perspective: Check{Status: StatusSuccess},
		},
	}
	for i, t := range SectionTitles {
		res.Sections = append(res.Sections, SectionResult{Number: i + 1, Title: t, Status: StatusSuccess})
	}
	return res
}

// ── 规范化 ──

func TestNormalize_CompleteBiography(t *testing.T) {
	n := Normalize(sampleBio(nil))
	if len(n.Sections) != SectionCount {
		t.Fatalf("期望 13 个分区，实际 %d", len(n.Sections))
	}
	if len(n.MissingSections) != 0 || len(n.EmptySections) != 0 {
		t.Errorf("不应有缺失或空分区: %v / %v", n.MissingSections, n.EmptySections)
	}
	if got := n.Section(5).Content; got != "08.03.2001, г. Москва" {
		t.Errorf("分区 5 内容错误: %q", got)
	}
}

func TestNormalize_AliasesAndInlineContent(t *testing.T) {
	text := "**ФИО:** Anna Smirnova\nПол - женский\nДата рождения: 12 мая 1999 года\nДетство\nЯ росла в деревне."
	n := Normalize(text)

	if n.Section(1) == nil || n.Section(1).Content != "Anna Smirnova" {
		t.Errorf("ФИО 应映射到分区 1: %+v", n.Section(1))
	}
	if n.Section(2) == nil || n.Section(2).Content != "женский" {
		t.Errorf("Пол 应映射到分区 2: %+v", n.Section(2))
	}
	if n.Section(5) == nil || !strings.Contains(n.Section(5).Content, "1999") {
		t.Errorf("Дата рождения 应映射到分区 5: %+v", n.Section(5))
	}
	if n.Section(10) == nil || n.Section(10).Content != "Я росла в деревне." {
		t.Errorf("Детство 内容错误: %+v", n.Section(10))
	}
	if len(n.MissingSections) != SectionCount-4 {
		t.Errorf("期望缺失 %d 个分区，实际 %d", SectionCount-4, len(n.MissingSections))
	}
}

func TestNormalize_DateLineIsNotHeader(t *testing.T) {
	n := Normalize("5. Дата и место рождения:\n12.03.2001\nМосква")
	s := n.Section(5)
	if s == nil || s.Content != "12.03.2001\nМосква" {
		t.Fatalf("日期行不应被当作分区标题: %+v", n.Sections)
	}
	if n.Section(12) != nil {
		t.Error("不应出现分区 12")
	}
}

func TestNormalize_EmptySection(t *testing.T) {
	n := Normalize(sampleBio(map[int]string{8: ""}))
	if len(n.EmptySections) != 1 || n.EmptySections[0] != "Внешность" {
		t.Errorf("期望 Внешность 为空分区，实际 %v", n.EmptySections)
	}
}

// ── 年龄 ──

func TestCalculateAge_BirthdayBoundary(t *testing.T) {
	birth, ok := ParseBirthDate("08.03.2001")
	if !ok {
		t.Fatal("解析日期失败")
	}
	if got := CalculateAge(birth, date("2024-03-07")); got != 22 {
		t.Errorf("生日前一天期望 22，实际 %d", got)
	}
	if got := CalculateAge(birth, date("2024-03-09")); got != 23 {
		t.Errorf("生日后一天期望 23，实际 %d", got)
	}
	if got := CalculateAge(birth, date("2024-03-08")); got != 23 {
		t.Errorf("生日当天期望 23，实际 %d", got)
	}
}

func TestParseBirthDate_Formats(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"08.03.2001", "2001-03-08", true},
		{"родился 8 марта 2001 года в Москве", "2001-03-08", true},
		{"2001-03-08", "2001-03-08", true},
		{"31.02.2001", "", false},
		{"без даты", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseBirthDate(tt.in)
		if ok != tt.ok {
			t.Errorf("%q: ok 期望 %v，实际 %v", tt.in, tt.ok, ok)
			continue
		}
		if ok && got.Format("2006-01-02") != tt.want {
			t.Errorf("%q: 期望 %s，实际 %s", tt.in, tt.want, got.Format("2006-01-02"))
		}
	}
}

// ── JSON 提取 ──

func TestExtractJSON_FencesAndTrailingCommas(t *testing.T) {
	raw := "Вот результат:\n```json\n{\"valid\": true, \"issues\": [\"a\", \"b\",],}\n```"
	got, err := ExtractJSON(raw)
	if err != nil {
		t.Fatalf("ExtractJSON 失败: %v", err)
	}
	want := `{"valid": true, "issues": ["a", "b"]}`
	if got != want {
		t.Errorf("期望 %s，实际 %s", want, got)
	}
}

func TestParseResult_NoJSON(t *testing.T) {
	if _, err := ParseResult("модель ответила текстом"); err != ErrNoJSON {
		t.Errorf("期望 ErrNoJSON，实际 %v", err)
	}
}

func TestParseResult_FractionalScore(t *testing.T) {
	res, err := ParseResult(`{"valid": true, "score": 7.6, "status": "success", "statedAge": "22"}`)
	if err != nil {
		t.Fatalf("ParseResult 失败: %v", err)
	}
	if res.Score != 8 {
		t.Errorf("期望分数四舍五入为 8，实际 %d", res.Score)
	}
	if res.StatedAge != nil {
		t.Error("statedAge 只能由本地计算")
	}
}

// ── 后处理 ──

func TestPostProcess_Passed(t *testing.T) {
	text := sampleBio(nil)
	res := PostProcess(fullModelResult(), Normalize(text), date("2024-06-01"))
	if res.PrimaryVerdict != VerdictPassed {
		t.Fatalf("期望 passed，实际 %s: %v", res.PrimaryVerdict, res.VerdictReasons)
	}
	if res.CalculatedAge == nil || *res.CalculatedAge != 23 {
		t.Errorf("期望计算年龄 23，实际 %v", res.CalculatedAge)
	}
	if res.Score != 9 || !res.Valid {
		t.Errorf("不应被降分: score=%d valid=%v", res.Score, res.Valid)
	}
}

func TestPostProcess_AgeMismatchWarning(t *testing.T) {
	text := sampleBio(map[int]string{4: "25 лет"})
	res := PostProcess(fullModelResult(), Normalize(text), date("2024-06-01"))
	if res.Checks.Birthdate.Status != StatusWarning {
		t.Errorf("差 2 岁期望 warning，实际 %s", res.Checks.Birthdate.Status)
	}
	if res.Score > capAgeWarning {
		t.Errorf("分数应不超过 %d，实际 %d", capAgeWarning, res.Score)
	}
	if res.Status != StatusWarning {
		t.Errorf("整体状态期望 warning，实际 %s", res.Status)
	}
	if res.PrimaryVerdict != VerdictRefused {
		t.Error("年龄不符应拒绝")
	}
}

func TestPostProcess_AgeMismatchError(t *testing.T) {
	text := sampleBio(map[int]string{4: "30 лет"})
	res := PostProcess(fullModelResult(), Normalize(text), date("2024-06-01"))
	if res.Checks.Birthdate.Status != StatusError || res.Valid {
		t.Errorf("差 7 岁期望 error 且无效: %+v valid=%v", res.Checks.Birthdate, res.Valid)
	}
	if res.Score > capAgeError {
		t.Errorf("分数应不超过 %d，实际 %d", capAgeError, res.Score)
	}
}

func TestPostProcess_OneYearToleranceAroundBirthday(t *testing.T) {
	// 生日前一天实际 22 岁，写 23 岁不算不符
	text := sampleBio(nil)
	res := PostProcess(fullModelResult(), Normalize(text), date("2024-03-07"))
	if res.AgeMismatch {
		t.Error("差 1 岁不应判定为不符")
	}
}

func TestPostProcess_ThirdPerson(t *testing.T) {
	text := sampleBio(map[int]string{10: "Он рос в семье врачей и любил читать."})
	res := PostProcess(fullModelResult(), Normalize(text), date("2024-06-01"))
	if res.Checks.Perspective.Status != StatusError {
		t.Errorf("第三人称期望 error，实际 %s", res.Checks.Perspective.Status)
	}
	if res.Score > capThirdPerson || res.Valid {
		t.Errorf("score=%d valid=%v", res.Score, res.Valid)
	}
	if len(res.ThirdPersonMarkers) == 0 || res.ThirdPersonMarkers[0] != "Он" {
		t.Errorf("应记录命中的标记: %v", res.ThirdPersonMarkers)
	}
}

func TestPostProcess_NoFirstPersonWarning(t *testing.T) {
	text := sampleBio(map[int]string{
		10: "Детство прошло в деревне.",
		11: "Учёба в университете.",
		12: "Работа в больнице.",
	})
	res := PostProcess(fullModelResult(), Normalize(text), date("2024-06-01"))
	if res.Checks.Perspective.Status != StatusWarning {
		t.Errorf("缺少第一人称期望 warning，实际 %s", res.Checks.Perspective.Status)
	}
}

func TestPostProcess_IncompleteSections(t *testing.T) {
	model := fullModelResult()
	model.Sections = model.Sections[:10]
	res := PostProcess(model, Normalize(sampleBio(nil)), date("2024-06-01"))
	if res.Valid || res.Score > capIncomplete {
		t.Errorf("分区条目不足 13 应无效且分数≤5: valid=%v score=%d", res.Valid, res.Score)
	}
}

func TestPostProcess_ManyMissingSections(t *testing.T) {
	text := "1. Имя и фамилия: Ivan Petrov\n2. Пол: мужской\n3. Национальность: русский\n4. Возраст: 23"
	res := PostProcess(fullModelResult(), Normalize(text), date("2024-06-01"))
	if res.Score > capManyMissing {
		t.Errorf("缺失超过 3 个分区分数应≤3，实际 %d", res.Score)
	}
	if res.Checks.Structure.Status != StatusError {
		t.Errorf("结构检查期望 error，实际 %s", res.Checks.Structure.Status)
	}
	if res.PrimaryVerdict != VerdictRefused {
		t.Error("结构不完整应拒绝")
	}
}

func TestBuildPrompt_EmbedsDate(t *testing.T) {
	system, user := BuildPrompt(Normalize(sampleBio(nil)), date("2024-03-07"))
	if !strings.Contains(system, "Итог") {
		t.Error("系统提示词应列出全部分区")
	}
	if !strings.Contains(user, "07.03.2024") {
		t.Error("用户消息应包含当前日期")
	}
	if !strings.Contains(user, "1. Имя и фамилия:") {
		t.Error("用户消息应包含规范化后的传记")
	}
}
