package cost

import (
	"math"
	"testing"

	"github.com/John-Robertt/Renshot/internal/domain"
)

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("期望 %s=%v，实际 %v", name, want, got)
	}
}

func TestEstimateGroups_PerGroupNotPerFile(t *testing.T) {
	files := []domain.ShotFile{
		{Size: 2 * 1024 * 1024},
		{Size: 2 * 1024 * 1024},
		{Size: 2 * 1024 * 1024},
		{Size: 4 * 1024 * 1024},
	}
	groups := []domain.Group{
		{FileIdx: []int{0, 1, 2}},
		{FileIdx: []int{3}},
	}

	got := EstimateGroups(groups, files)
	if got.Groups != 2 || got.Files != 4 {
		t.Fatalf("期望 2 组 4 文件，实际 %d 组 %d 文件", got.Groups, got.Files)
	}
	approx(t, "ImageUSD", got.ImageUSD, 0.02)
	approx(t, "TokenUSD", got.TokenUSD, 2*15.0/1000*0.03)
	approx(t, "TotalUSD", got.TotalUSD, 0.02+2*15.0/1000*0.03)
	approx(t, "AvgImageMB", got.AvgImageMB, 3.0)
}

func TestEstimateGroups_GroupingIsCheaper(t *testing.T) {
	files := make([]domain.ShotFile, 4)
	for i := range files {
		files[i] = domain.ShotFile{Size: 1024 * 1024}
	}
	merged := EstimateGroups([]domain.Group{{FileIdx: []int{0, 1, 2, 3}}}, files)
	split := EstimateGroups([]domain.Group{
		{FileIdx: []int{0}}, {FileIdx: []int{1}}, {FileIdx: []int{2}}, {FileIdx: []int{3}},
	}, files)

	if merged.TotalUSD >= split.TotalUSD {
		t.Fatalf("期望并组更省：%v >= %v", merged.TotalUSD, split.TotalUSD)
	}
	if merged.Files != split.Files {
		t.Fatalf("两种分法文件数应一致：%d vs %d", merged.Files, split.Files)
	}
}

func TestEstimateGroups_SamplesAtMostFiveRepresentatives(t *testing.T) {
	var files []domain.ShotFile
	var groups []domain.Group
	for i := 0; i < 7; i++ {
		size := int64(1024 * 1024)
		if i >= 5 {
			// 超出采样窗口的组给个离谱大小，混进平均值就会被测出来
			size = 100 * 1024 * 1024
		}
		files = append(files, domain.ShotFile{Size: size})
		groups = append(groups, domain.Group{FileIdx: []int{i}})
	}

	got := EstimateGroups(groups, files)
	approx(t, "AvgImageMB", got.AvgImageMB, 1.0)
}

func TestEstimateGroups_Empty(t *testing.T) {
	got := EstimateGroups(nil, nil)
	if got != (Estimate{}) {
		t.Fatalf("期望零值预估，实际 %+v", got)
	}
}

func TestEstimate_SavedUSD(t *testing.T) {
	// 4 个文件并成 2 组，省掉 2 次调用。
	saved := Estimate{Groups: 2, Files: 4}.SavedUSD()
	approx(t, "SavedUSD", saved, 2*0.01+2*15.0/1000*0.03)

	// 没有并组就没有节省。
	approx(t, "SavedUSD", Estimate{Groups: 3, Files: 3}.SavedUSD(), 0)
	approx(t, "SavedUSD", Estimate{}.SavedUSD(), 0)
}

func TestTracker_RecordOutcomes(t *testing.T) {
	var tr Tracker

	tr.Record(domain.Outcome{Status: domain.OutcomeDescribed, TokensUsed: 12, Called: true})
	tr.Record(domain.Outcome{Status: domain.OutcomeRefused, Phrase: "i cannot analyze", Called: true})
	tr.Record(domain.Outcome{Status: domain.OutcomeFailed, FailKind: "server", Called: true})
	tr.Record(domain.Outcome{Status: domain.OutcomeFailed, FailKind: "network", Called: false})

	got := tr.Report(Estimate{TotalUSD: 0.05, AvgImageMB: 2.0})
	if got.Calls != 3 {
		t.Fatalf("期望 3 次计费调用，实际 %d", got.Calls)
	}
	if got.FailedCalls != 2 {
		t.Fatalf("期望 2 次失败，实际 %d", got.FailedCalls)
	}
	if got.Tokens != 12 {
		t.Fatalf("期望只累计有效描述的 token，实际 %d", got.Tokens)
	}
	approx(t, "ActualUSD", got.ActualUSD, 3*0.01+12.0/1000*0.03)
	approx(t, "EstimatedUSD", got.EstimatedUSD, 0.05)
	approx(t, "AvgImageMB", got.AvgImageMB, 2.0)
}

func TestTracker_TokenFallbackFromWordCount(t *testing.T) {
	var tr Tracker
	tr.Record(domain.Outcome{
		Status:      domain.OutcomeDescribed,
		Description: "Code editor Python file",
		TokensUsed:  0,
		Called:      true,
	})

	got := tr.Report(Estimate{})
	words := 4
	want := int(float64(words) * 1.3)
	if got.Tokens != want {
		t.Fatalf("期望按词数估算 %d token，实际 %d", want, got.Tokens)
	}
}

func TestTracker_EmptyDescriptionUsesAverage(t *testing.T) {
	var tr Tracker
	tr.Record(domain.Outcome{Status: domain.OutcomeDescribed, Description: "", Called: true})

	got := tr.Report(Estimate{})
	if got.Tokens != avgTokensPerResponse {
		t.Fatalf("期望回落到平均 token 数 %d，实际 %d", avgTokensPerResponse, got.Tokens)
	}
}
