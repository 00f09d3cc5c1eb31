package vision

import "strings"

// refusalPhrases 是已知的安全拒答开场白。
// 规则（硬约束）：大小写不敏感的子串匹配；列表固定，不做模糊匹配，
// 普通描述里出现 "cannot"、"sorry" 之类的词不得误伤。
var refusalPhrases = []string{
	"i'm sorry, i can't help",
	"i can't help with that",
	"i'm not able to help",
	"i cannot help",
	"i'm sorry, but i can't",
	"i can't assist with",
	"i'm unable to help",
	"i cannot assist",
	"i'm sorry, i cannot",
	"i can't provide",
	"i'm not able to provide",
	"i cannot provide",
	"i can't analyze",
	"i cannot analyze",
	"i'm not able to analyze",
	"i'm sorry, i can't analyze",
}

// MatchRefusal 在回复文本里查找安全拒答短语，命中时返回命中的短语。
// 拒答是一次成功但不可用的调用：不重试，按一次调用计费。
func MatchRefusal(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, p := range refusalPhrases {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}
