package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusRenamed = "renamed"
	StatusRefused = "refused"
	StatusFailed  = "failed"
	// StatusPlanned 仅出现在 dry-run 报告里：组已识别，未分析、未改名。
	StatusPlanned = "planned"
)

const (
	FileStatusRenamed = "renamed"
	FileStatusSkipped = "skipped"
	FileStatusFailed  = "failed"
	FileStatusPlanned = "planned"
)

const (
	ErrCodeAnalysisFailed    = "analysis_failed"
	ErrCodeFileAccess        = "file_access"
	ErrCodeRenameFailed      = "rename_failed"
	ErrCodeConnectivity      = "connectivity_failed"
	ErrCodeConfigNotFound    = "config_not_found"
	ErrCodeConfigInvalid     = "config_invalid"
	ErrCodeConfigMissingKey  = "config_missing_key"
	ErrCodeConfigMissingPath = "config_missing_path"
)

// RunReport 是对外稳定输出（report JSON / stdout JSON）的结构。
type RunReport struct {
	Dir    string `json:"dir"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Cost    CostReport    `json:"cost"`
	Summary ReportSummary `json:"summary"`
	Items   []GroupResult `json:"items"`
}

// CostReport 只做汇报，绝不参与控制流。
type CostReport struct {
	EstimatedUSD float64 `json:"estimated_usd"`
	ActualUSD    float64 `json:"actual_usd"`
	Calls        int     `json:"calls"`
	FailedCalls  int     `json:"failed_calls"`
	Tokens       int     `json:"tokens"`
	AvgImageMB   float64 `json:"avg_image_mb"`
}

type ReportSummary struct {
	Groups  int `json:"groups"`
	Files   int `json:"files"`
	Renamed int `json:"renamed"`
	Refused int `json:"refused"`
	Failed  int `json:"failed"`

	// 下面两项来自扫描阶段，Finalize 不重算。
	AlreadyNamed int `json:"already_named"`
	Ignored      int `json:"ignored"`
}

type GroupResult struct {
	Convention string `json:"convention"`
	Timestamp  string `json:"timestamp"` // 规范化形态，见 StampKey

	Status      string `json:"status"`
	Description string `json:"description"`
	Phrase      string `json:"refusal_phrase"`
	ErrorCode   string `json:"error_code"`
	ErrorMsg    string `json:"error_msg"`
	Attempts    int    `json:"attempts"`
	Tokens      int    `json:"tokens"`

	Files []FileResult `json:"files"`
}

type FileResult struct {
	Src    string `json:"src"`
	Dst    string `json:"dst"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// StampKey 是规范化时间文本的布局（报告展示与条目排序共用）。
const StampKey = "2006-01-02 15.04.05"

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按时间戳字典序，时刻相同现代代在前；timestamp=="" 的条目排在最后
// 3) summary 由 items 计算得出（AlreadyNamed/Ignored 保留扫描阶段的值）
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a, b := r.Items[i], r.Items[j]
		if a.Timestamp == "" && b.Timestamp == "" {
			return false
		}
		if a.Timestamp == "" {
			return false
		}
		if b.Timestamp == "" {
			return true
		}
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return a.Convention == string(ConventionModern) && b.Convention != string(ConventionModern)
	})

	s := ReportSummary{
		AlreadyNamed: r.Summary.AlreadyNamed,
		Ignored:      r.Summary.Ignored,
	}
	for _, it := range r.Items {
		s.Groups++
		for _, f := range it.Files {
			s.Files++
			if f.Status == FileStatusRenamed {
				s.Renamed++
			}
		}
		switch it.Status {
		case StatusRefused:
			s.Refused++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
