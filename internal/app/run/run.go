package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/Renshot/internal/app"
	"github.com/John-Robertt/Renshot/internal/app/planner"
	"github.com/John-Robertt/Renshot/internal/config"
	"github.com/John-Robertt/Renshot/internal/cost"
	"github.com/John-Robertt/Renshot/internal/domain"
	"github.com/John-Robertt/Renshot/internal/infra/fsx"
	"github.com/John-Robertt/Renshot/internal/logx"
	"github.com/John-Robertt/Renshot/internal/scan"
	"github.com/John-Robertt/Renshot/internal/vision"
)

// ConfirmFunc 在处理开始前征求许可；返回 false 表示放弃本次运行。
// 收到的是完整的扫描结果与费用预估，由实现方决定展示多少。
type ConfirmFunc func(est cost.Estimate, files []domain.ShotFile) bool

// Deps 是执行期注入的外部依赖。
type Deps struct {
	// Vision 是远端分析客户端（测试里换成桩）。
	Vision vision.Client
	// Confirm 为 nil 时视为自动通过；--auto 与 dry-run 下不会被调用。
	Confirm ConfirmFunc
}

// Execute 执行一次运行，并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为条目级失败（单组失败不影响其他组）。
func Execute(ctx context.Context, eff config.Effective, deps Deps) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, deps, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息。
//
// 流程：扫描 → 连通性预检 → 分组 → 费用预估 → 确认 → 逐组处理。
// 规则（硬约束）：
// - 返回的 RunReport 永远可用：致命错误变成合成的 failed 条目，不升级为 error
// - 组间严格顺序处理，一组失败不影响后续组；调用节奏由分析客户端的限速桶控制
// - dry-run 在预估后停下：不触网、不改名，planned 条目进报告
func ExecuteWithObserver(ctx context.Context, eff config.Effective, deps Deps, obs Observer) domain.RunReport {
	started := time.Now().UTC()
	if obs == nil {
		obs = nopObserver{}
	}
	log := logx.Get()

	rr := domain.RunReport{
		Dir:       eff.Dir,
		DryRun:    eff.DryRun,
		StartedAt: started,
	}

	obs.OnStart(eff)
	log.Info().
		Str("dir", eff.Dir).
		Str("model", eff.Model).
		Bool("auto", eff.Auto).
		Bool("dry_run", eff.DryRun).
		Msg("开始运行")

	// 扫描目标目录。目录不可读是环境问题，整次运行到此为止。
	t0 := time.Now()
	sres, err := scan.ScanShots(eff.Dir)
	if err != nil {
		log.Error().Err(err).Str("dir", eff.Dir).Msg("扫描目录失败")
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeFileAccess,
			fmt.Sprintf("无法扫描目录 %s：%v", eff.Dir, err)))
		return finish(&rr)
	}
	files := sres.Files
	rr.Summary.AlreadyNamed = sres.AlreadyNamed
	rr.Summary.Ignored = sres.Ignored
	log.Info().
		Int("files", len(files)).
		Int("already_named", sres.AlreadyNamed).
		Int("ignored", sres.Ignored).
		Msg("扫描完成")
	obs.OnPhaseDone("scan", map[string]any{
		"files":         len(files),
		"already_named": sres.AlreadyNamed,
		"ignored":       sres.Ignored,
	}, time.Since(t0))

	if len(files) == 0 {
		log.Info().Msg("没有待处理的截图")
		return finish(&rr)
	}

	// 连通性预检：凭证与模型可用性一次验清。dry-run 不触网，跳过。
	if !eff.DryRun {
		t0 = time.Now()
		msg, err := deps.Vision.CheckConnectivity(ctx)
		if err != nil {
			log.Error().Err(err).Msg("连通性预检失败，本次不处理任何文件")
			rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConnectivity, err.Error()))
			return finish(&rr)
		}
		log.Info().Str("detail", msg).Msg("连通性预检通过")
		obs.OnPhaseDone("connect", map[string]any{"detail": msg}, time.Since(t0))
	}

	// 分组：同一时刻的连拍共享一次分析。
	t0 = time.Now()
	groups := app.GroupByStamp(files)
	obs.OnPhaseDone("group", map[string]any{"groups": len(groups)}, time.Since(t0))

	// 费用预估：只做展示与确认，不参与任何控制流。
	t0 = time.Now()
	est := cost.EstimateGroups(groups, files)
	tracker := &cost.Tracker{}
	rr.Cost = tracker.Report(est)
	obs.OnPhaseDone("estimate", map[string]any{
		"groups":        est.Groups,
		"files":         est.Files,
		"estimated_usd": est.TotalUSD,
		"avg_image_mb":  est.AvgImageMB,
	}, time.Since(t0))

	if eff.DryRun {
		for _, g := range groups {
			rr.Items = append(rr.Items, plannedResult(files, g))
		}
		log.Info().
			Int("groups", len(groups)).
			Float64("estimated_usd", est.TotalUSD).
			Msg("dry-run 结束：未发请求，未改名")
		return finish(&rr)
	}

	if !eff.Auto && deps.Confirm != nil && !deps.Confirm(est, files) {
		log.Info().Msg("用户取消，保持原样退出")
		return finish(&rr)
	}

	// 目录现状只读一次；之后每组规划出的目标名会陆续占进来，
	// 保证组与组之间不会撞名。
	st, err := planner.ReadDirState(eff.Dir)
	if err != nil {
		log.Error().Err(err).Str("dir", eff.Dir).Msg("读取目录现状失败")
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeFileAccess,
			fmt.Sprintf("无法读取目录 %s：%v", eff.Dir, err)))
		return finish(&rr)
	}

	total := len(groups)
	for i, g := range groups {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Int("done", i).Int("total", total).Msg("运行被取消，剩余组不再处理")
			break
		}

		rep := files[g.FileIdx[0]]
		obs.OnGroupStart(i+1, total, rep.Stamp.Format(domain.StampKey), len(g.FileIdx))

		gt := time.Now()
		res := execGroup(ctx, deps.Vision, files, g, st, tracker)
		rr.Items = append(rr.Items, res)
		logGroup(log, res)
		obs.OnGroupDone(i+1, total, res, time.Since(gt))
	}

	rr.Cost = tracker.Report(est)
	out := finish(&rr)
	log.Info().
		Int("groups", out.Summary.Groups).
		Int("renamed", out.Summary.Renamed).
		Int("refused", out.Summary.Refused).
		Int("failed", out.Summary.Failed).
		Float64("estimated_usd", out.Cost.EstimatedUSD).
		Float64("actual_usd", out.Cost.ActualUSD).
		Msg("运行结束")
	return out
}

// execGroup 处理一个组：读代表图 → 远端分析 → 规划目标名 → 逐文件改名。
// 组内每个文件独立落盘，单个失败不拦住其余文件。
func execGroup(ctx context.Context, vc vision.Client, files []domain.ShotFile, g domain.Group, st domain.DirState, tracker *cost.Tracker) domain.GroupResult {
	rep := files[g.FileIdx[0]]
	res := domain.GroupResult{
		Convention: string(g.Key.Convention),
		Timestamp:  rep.Stamp.Format(domain.StampKey),
	}

	// 代表图读不动就整组跳过，不发请求也不计费。
	img, err := os.ReadFile(rep.AbsPath)
	if err != nil {
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodeFileAccess
		res.ErrorMsg = fmt.Sprintf("无法读取代表图 %s：%v", rep.Base+rep.Ext, err)
		res.Files = untouchedFiles(files, g, "代表图不可读，整组跳过")
		return res
	}

	o := vc.Describe(ctx, img)
	tracker.Record(o)
	res.Attempts = len(o.Attempts)
	res.Tokens = o.TokensUsed

	switch o.Status {
	case domain.OutcomeRefused:
		res.Status = domain.StatusRefused
		res.Phrase = o.Phrase
		res.Files = untouchedFiles(files, g, "模型拒绝描述，保持原名")
		return res
	case domain.OutcomeFailed:
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodeAnalysisFailed
		res.ErrorMsg = o.FailureDetail()
		res.Files = untouchedFiles(files, g, "分析失败，保持原名")
		return res
	}

	res.Description = planner.SanitizeDescription(o.Description)
	plans, err := planner.PlanGroup(files, g, o.Description, st)
	if err != nil {
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodeRenameFailed
		res.ErrorMsg = err.Error()
		res.Files = untouchedFiles(files, g, "目标名规划失败")
		return res
	}
	// 先占名再落盘：后续组不得复用本组的目标名。
	for _, p := range plans {
		st.ExistingNames[filepath.Base(p.DstAbs)] = struct{}{}
	}

	renamed := 0
	res.Files = make([]domain.FileResult, 0, len(plans))
	for _, p := range plans {
		fr := domain.FileResult{
			Src: filepath.Base(p.SrcAbs),
			Dst: filepath.Base(p.DstAbs),
		}
		if err := fsx.RenameNoReplace(p.SrcAbs, p.DstAbs); err != nil {
			fr.Status = domain.FileStatusFailed
			fr.Error = err.Error()
		} else {
			fr.Status = domain.FileStatusRenamed
			renamed++
		}
		res.Files = append(res.Files, fr)
	}

	switch {
	case renamed == len(plans):
		res.Status = domain.StatusRenamed
	case renamed > 0:
		// 部分成功仍算 renamed：描述已经落到部分文件上，失败细节在文件级。
		res.Status = domain.StatusRenamed
		res.ErrorCode = domain.ErrCodeRenameFailed
		res.ErrorMsg = firstFileError(res.Files)
	default:
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodeRenameFailed
		res.ErrorMsg = firstFileError(res.Files)
	}
	return res
}

// finish 统一收尾：补齐结束时间并整理报告。
func finish(rr *domain.RunReport) domain.RunReport {
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return *rr
}

// syntheticFailed 把致命的前置错误合成为一个 failed 条目，
// 保证报告结构在任何路径下都完整。
func syntheticFailed(code, msg string) domain.GroupResult {
	return domain.GroupResult{
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}

// plannedResult 是 dry-run 下的条目：组已识别，未分析也未改名。
func plannedResult(files []domain.ShotFile, g domain.Group) domain.GroupResult {
	rep := files[g.FileIdx[0]]
	res := domain.GroupResult{
		Convention: string(g.Key.Convention),
		Timestamp:  rep.Stamp.Format(domain.StampKey),
		Status:     domain.StatusPlanned,
		Files:      make([]domain.FileResult, 0, len(g.FileIdx)),
	}
	for _, idx := range g.FileIdx {
		f := files[idx]
		res.Files = append(res.Files, domain.FileResult{
			Src:    f.Base + f.Ext,
			Status: domain.FileStatusPlanned,
		})
	}
	return res
}

// untouchedFiles 生成“组内文件全部保持原名”的文件级结果。
func untouchedFiles(files []domain.ShotFile, g domain.Group, reason string) []domain.FileResult {
	out := make([]domain.FileResult, 0, len(g.FileIdx))
	for _, idx := range g.FileIdx {
		f := files[idx]
		out = append(out, domain.FileResult{
			Src:    f.Base + f.Ext,
			Status: domain.FileStatusSkipped,
			Error:  reason,
		})
	}
	return out
}

func firstFileError(frs []domain.FileResult) string {
	for _, fr := range frs {
		if fr.Status == domain.FileStatusFailed && fr.Error != "" {
			return fr.Error
		}
	}
	return ""
}

// logGroup 把单组结果写进会话日志（stderr 与日志文件，绝不写 stdout）。
func logGroup(log *zerolog.Logger, res domain.GroupResult) {
	level := zerolog.InfoLevel
	if res.Status == domain.StatusFailed {
		level = zerolog.ErrorLevel
	}
	ev := log.WithLevel(level)
	ev.Str("stamp", res.Timestamp).
		Str("convention", res.Convention).
		Str("status", res.Status).
		Int("files", len(res.Files)).
		Int("tokens", res.Tokens)
	if res.Description != "" {
		ev.Str("description", res.Description)
	}
	if res.Phrase != "" {
		ev.Str("refusal_phrase", res.Phrase)
	}
	if res.ErrorCode != "" {
		ev.Str("error_code", res.ErrorCode).Str("error", res.ErrorMsg)
	}
	ev.Msg("组处理完成")
}
