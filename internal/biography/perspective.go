package biography

import "regexp"

// 第三人称指代主人公的标记；Go 的 \b 只认 ASCII，边界用非字母字符表示
var thirdPersonMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:^|[^\p{L}])(он|она)(?:[^\p{L}]|$)`),
	regexp.MustCompile(`(?i)(?:^|[^\p{L}])(персонаж|персонажа|персонажу|героиня|героини|главный герой|главного героя)(?:[^\p{L}]|$)`),
}

var firstPersonMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:^|[^\p{L}])(я|меня|мне|мной|мой|моя|моё|мое|мои|моего|моей|моих|моим|мы|нас|нам|наш|наша|наши)(?:[^\p{L}]|$)`),
}

// perspectiveSections 需要第一人称叙述的分区：童年、青年与成年、现在
var perspectiveSections = []int{10, 11, 12}

// ThirdPersonMarkers 返回命中的第三人称标记（去重，按出现顺序）
func ThirdPersonMarkers(text string) []string {
	return collect(thirdPersonMarkers, text)
}

// HasFirstPerson 是否出现第一人称标记
func HasFirstPerson(text string) bool {
	return len(collect(firstPersonMarkers, text)) > 0
}

func collect(patterns []*regexp.Regexp, text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				out = append(out, m[1])
			}
		}
	}
	return out
}
