package domain

import (
	"fmt"
	"strings"
)

// 分析结果的三种终态。
const (
	OutcomeDescribed = "described"
	OutcomeRefused   = "refused"
	OutcomeFailed    = "failed"
)

// Attempt 记录一次失败尝试（按发生顺序保存，不在循环中拼接字符串）。
type Attempt struct {
	N      int    `json:"n"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Outcome 是一个分组的远端分析终态，三选一：
//   - Described：拿到可用描述（Description/TokensUsed 有效）
//   - Refused：调用成功但模型拒绝描述（Phrase 是命中的拒绝短语）
//   - Failed：重试耗尽或不可重试错误（FailKind/Attempts 有效）
//
// 约束：Refused 是一次成功调用，不重试、只计一次费用；Failed 的分组
// 在下次运行时与从未见过的文件无法区分（文件名未变）。
type Outcome struct {
	Status      string
	Description string
	TokensUsed  int
	Phrase      string
	FailKind    string
	Attempts    []Attempt
	// Called 标记是否真的发出过请求（影响实际费用里的按图计费）。
	Called bool
}

// FailureDetail 把逐次尝试的原因汇成一段可读文本。
func (o Outcome) FailureDetail() string {
	if len(o.Attempts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(o.Attempts))
	for _, a := range o.Attempts {
		parts = append(parts, fmt.Sprintf("attempt %d: %s", a.N, a.Detail))
	}
	return fmt.Sprintf("Failed after %d attempts: %s", len(o.Attempts), strings.Join(parts, "; "))
}
