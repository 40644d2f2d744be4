package biography

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON 模型输出中找不到 JSON 对象
var ErrNoJSON = errors.New("в ответе модели не найден JSON")

var (
	codeFence     = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// ExtractJSON 去掉代码围栏，截取首个 { 到最后一个 }，并删除尾随逗号
func ExtractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	s = s[start : end+1]
	return trailingComma.ReplaceAllString(s, "$1"), nil
}

// ParseResult 解析模型输出为 Result
func ParseResult(raw string) (*Result, error) {
	s, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	var res Result
	if err := json.Unmarshal([]byte(s), &res); err != nil {
		return nil, err
	}
	return &res, nil
}
