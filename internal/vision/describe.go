package vision

import "strings"

// boilerplatePrefixes 是模型常见的开场白，出现时剥掉再用。
var boilerplatePrefixes = []string{
	"This screenshot shows",
	"The screenshot shows",
	"This image shows",
	"The image shows",
	"Screenshot of",
	"Image of",
}

// CleanDescription 把模型回复整理成简短描述：
// 去首尾空白与引号，按序剥掉开场白，超过 targetWords+1 个词时只留前 targetWords 个。
func CleanDescription(raw string, targetWords int) string {
	if targetWords < 1 {
		targetWords = 5
	}

	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"`)
	s = strings.Trim(s, "'")

	// 不在命中后停下：剥掉一层开场白后可能露出下一层
	for _, prefix := range boilerplatePrefixes {
		if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			s = strings.TrimSpace(s[len(prefix):])
		}
	}

	words := strings.Fields(s)
	if len(words) > targetWords+1 {
		return strings.Join(words[:targetWords], " ")
	}
	return s
}
