package cost

import (
	"strings"

	"github.com/John-Robertt/Renshot/internal/domain"
)

// 定价按 GPT-4 Vision 的公开价粗估。
// 约束：花费只用于展示与确认，不参与任何控制流。
const (
	perImageBaseUSD      = 0.01 // 每张图的基础费
	perThousandTokensUSD = 0.03 // 每 1K 输出 token
	avgTokensPerResponse = 15   // 4-5 个词的回复大致如此
	sampleLimit          = 5    // 平均图片大小的采样上限
	defaultImageMB       = 1.0
)

// Estimate 是提交前的花费预估。
// 计费单位是组：共享时间戳的 N 个文件只消耗一次调用，这正是分组省钱的地方。
type Estimate struct {
	Groups     int
	Files      int
	ImageUSD   float64
	TokenUSD   float64
	TotalUSD   float64
	AvgImageMB float64
}

// SavedUSD 是分组省下的钱：对比“每个文件单独调用一次”的花费。
// 组数等于文件数时没得省，返回 0。
func (e Estimate) SavedUSD() float64 {
	saved := e.Files - e.Groups
	if saved <= 0 {
		return 0
	}
	return float64(saved)*perImageBaseUSD + float64(saved*avgTokensPerResponse)/1000*perThousandTokensUSD
}

// EstimateGroups 按组数预估花费，并从前几组的代表文件采样平均图片大小。
func EstimateGroups(groups []domain.Group, files []domain.ShotFile) Estimate {
	if len(groups) == 0 {
		return Estimate{}
	}

	est := Estimate{Groups: len(groups)}
	for _, g := range groups {
		est.Files += len(g.FileIdx)
	}

	var totalMB float64
	var sampled int
	for _, g := range groups {
		if sampled == sampleLimit {
			break
		}
		if len(g.FileIdx) == 0 {
			continue
		}
		totalMB += float64(files[g.FileIdx[0]].Size) / (1024 * 1024)
		sampled++
	}
	if sampled > 0 {
		est.AvgImageMB = totalMB / float64(sampled)
	} else {
		est.AvgImageMB = defaultImageMB
	}

	est.ImageUSD = float64(est.Groups) * perImageBaseUSD
	est.TokenUSD = float64(est.Groups*avgTokensPerResponse) / 1000 * perThousandTokensUSD
	est.TotalUSD = est.ImageUSD + est.TokenUSD
	return est
}

// Tracker 累计一次运行的实际消费。
// 顺序处理、没有并发写入方，不需要锁。
type Tracker struct {
	calls       int
	failedCalls int
	tokens      int
	totalUSD    float64
}

// Record 记录一组的分析结局。
// 规则：消费了调用的结局计一次基础费（拒答也是成功的调用）；
// token 费只来自有效描述；服务端没报用量时按词数 × 1.3 估算。
func (t *Tracker) Record(o domain.Outcome) {
	if o.Called {
		t.calls++
		t.totalUSD += perImageBaseUSD
	}
	switch o.Status {
	case domain.OutcomeDescribed:
		tokens := o.TokensUsed
		if tokens == 0 {
			tokens = estimateTokens(o.Description)
		}
		t.tokens += tokens
		t.totalUSD += float64(tokens) / 1000 * perThousandTokensUSD
	case domain.OutcomeFailed:
		t.failedCalls++
	}
}

func estimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return avgTokensPerResponse
	}
	return int(float64(words) * 1.3)
}

// Report 把预估与实际合成报告里的花费段。
func (t *Tracker) Report(est Estimate) domain.CostReport {
	return domain.CostReport{
		EstimatedUSD: est.TotalUSD,
		ActualUSD:    t.totalUSD,
		Calls:        t.calls,
		FailedCalls:  t.failedCalls,
		Tokens:       t.tokens,
		AvgImageMB:   est.AvgImageMB,
	}
}
