package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/Renshot/internal/app/run"
	"github.com/John-Robertt/Renshot/internal/config"
	"github.com/John-Robertt/Renshot/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的行式进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：重试退避可能静默数十秒，超过阈值就补一行进度，降低等待焦虑
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total   int
	done    int
	renamed int
	refused int
	failed  int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.Effective) {
	now := time.Now()

	p.mu.Lock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "rename"
	modeHint := ""
	switch {
	case eff.DryRun:
		mode = "dry-run"
		modeHint = " (不触网/不改名)"
	case eff.Auto:
		mode = "auto"
		modeHint = " (跳过确认)"
	}

	fmt.Fprintf(p.w, "[%s] renshot (%s)\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  dir: %s\n", eff.Dir)
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	fmt.Fprintf(p.w, "  model: %s\n", eff.Model)
	if strings.TrimSpace(eff.BaseURL) != "" {
		fmt.Fprintf(p.w, "  base_url: %s\n", truncate(eff.BaseURL, 120))
	}
	fmt.Fprintf(p.w, "  batch_size: %d\n", eff.BatchSize)
	fmt.Fprintf(p.w, "  max_retries: %d\n", eff.MaxRetries)
	fmt.Fprintf(p.w, "  timeout: %s\n", eff.Timeout)
	if !eff.DryRun {
		fmt.Fprintf(p.w, "  log: %s\n", filepath.Join(eff.Dir, logFileName))
	}
	if eff.Report != "" {
		fmt.Fprintf(p.w, "  report: %s\n", eff.Report)
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
	p.mu.Unlock()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		fmt.Fprintf(p.w, "扫描: files=%d already_named=%d ignored=%d (%s)\n",
			intField(fields, "files"),
			intField(fields, "already_named"),
			intField(fields, "ignored"),
			formatShortDuration(dur),
		)
	case "connect":
		fmt.Fprintf(p.w, "连通: %s (%s)\n", strField(fields, "detail"), formatShortDuration(dur))
	case "group":
		fmt.Fprintf(p.w, "分组: groups=%d (%s)\n", intField(fields, "groups"), formatShortDuration(dur))
	case "estimate":
		fmt.Fprintf(p.w, "预估: groups=%d files=%d ≈$%.4f avg_image=%.1fMB (%s)\n",
			intField(fields, "groups"),
			intField(fields, "files"),
			floatField(fields, "estimated_usd"),
			floatField(fields, "avg_image_mb"),
			formatShortDuration(dur),
		)
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnGroupStart(done, total int, stamp string, fileCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	fmt.Fprintf(p.w, "[%d/%d] %s files=%d 分析中...\n", done, total, stamp, fileCount)
	p.lastPrinted = time.Now()

	if total > 0 && !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnGroupDone(done, total int, res domain.GroupResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = done
	p.total = total

	switch res.Status {
	case domain.StatusRenamed:
		p.renamed++
		line := fmt.Sprintf("[%d/%d] %s OK %q files=%d tokens=%d",
			done, total, res.Timestamp, res.Description, len(res.Files), res.Tokens)
		if res.ErrorCode != "" {
			line += " 部分失败: " + truncate(res.ErrorMsg, 90)
		}
		fmt.Fprintf(p.w, "%s (%s)\n", line, formatShortDuration(dur))
	case domain.StatusRefused:
		p.refused++
		fmt.Fprintf(p.w, "[%d/%d] %s REFUSED 保持原名 (%s) (%s)\n",
			done, total, res.Timestamp, res.Phrase, formatShortDuration(dur))
	case domain.StatusFailed:
		p.failed++
		fmt.Fprintf(p.w, "[%d/%d] %s FAIL %s: %s (%s)\n",
			done, total, res.Timestamp, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur))
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s %s (%s)\n",
			done, total, res.Timestamp, strings.ToUpper(res.Status), formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()

	// 最后一组完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				// 已完成：安全退出（OnGroupDone 会 close stopCh，但这里也做兜底）。
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}

				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					elapsed := time.Since(p.startedAt)
					fmt.Fprintf(p.w, "进度: done=%d/%d renamed=%d refused=%d failed=%d elapsed=%s（分析中，重试退避可能较久）\n",
						p.done, p.total, p.renamed, p.refused, p.failed, formatElapsed(elapsed),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-p.stopCh:
				return
			}
		}
	}()
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	default:
		return 0
	}
}

func floatField(fields map[string]any, key string) float64 {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	default:
		return 0
	}
}

func strField(fields map[string]any, key string) string {
	if fields == nil {
		return ""
	}
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}
