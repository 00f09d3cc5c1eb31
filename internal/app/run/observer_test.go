package run

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/John-Robertt/Renshot/internal/config"
	"github.com/John-Robertt/Renshot/internal/domain"
)

type recordObserver struct {
	startCalls  int
	phases      []string
	groupStarts []string
	groupDones  []string
}

func (o *recordObserver) OnStart(eff config.Effective) {
	o.startCalls++
}

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnGroupStart(done, total int, stamp string, fileCount int) {
	o.groupStarts = append(o.groupStarts, stamp)
}

func (o *recordObserver) OnGroupDone(done, total int, res domain.GroupResult, dur time.Duration) {
	o.groupDones = append(o.groupDones, res.Status)
}

func TestExecuteWithObserver_EmitsPhaseAndGroupEvents(t *testing.T) {
	dir := t.TempDir()
	writeShot(t, dir, "Screenshot 2025-06-09 at 9.15.24.png")
	writeShot(t, dir, "Screenshot 2025-06-10 at 10.30.00.png")

	stub := &stubVision{outcomes: []domain.Outcome{
		described("Web browser article reading", 11),
		described("Settings screen preferences", 9),
	}}
	obs := &recordObserver{}
	_ = ExecuteWithObserver(context.Background(), testEff(dir), Deps{Vision: stub}, obs)

	if obs.startCalls != 1 {
		t.Fatalf("期望 OnStart 调用 1 次，实际 %d", obs.startCalls)
	}
	wantPhases := []string{"scan", "connect", "group", "estimate"}
	if !reflect.DeepEqual(obs.phases, wantPhases) {
		t.Fatalf("阶段事件不符合预期：got=%v want=%v", obs.phases, wantPhases)
	}
	wantStarts := []string{"2025-06-09 09.15.24", "2025-06-10 10.30.00"}
	if !reflect.DeepEqual(obs.groupStarts, wantStarts) {
		t.Fatalf("组开始事件不符合预期：got=%v want=%v", obs.groupStarts, wantStarts)
	}
	wantDones := []string{domain.StatusRenamed, domain.StatusRenamed}
	if !reflect.DeepEqual(obs.groupDones, wantDones) {
		t.Fatalf("组完成事件不符合预期：got=%v want=%v", obs.groupDones, wantDones)
	}
}

func TestExecuteWithObserver_DryRunSkipsConnectPhase(t *testing.T) {
	dir := t.TempDir()
	writeShot(t, dir, "Screenshot 2025-06-09 at 9.15.24.png")

	eff := testEff(dir)
	eff.DryRun = true

	obs := &recordObserver{}
	_ = ExecuteWithObserver(context.Background(), eff, Deps{Vision: &stubVision{}}, obs)

	wantPhases := []string{"scan", "group", "estimate"}
	if !reflect.DeepEqual(obs.phases, wantPhases) {
		t.Fatalf("阶段事件不符合预期：got=%v want=%v", obs.phases, wantPhases)
	}
	if len(obs.groupStarts) != 0 {
		t.Fatalf("dry-run 不应有组级事件：%v", obs.groupStarts)
	}
}

func TestExecuteWithObserver_NilObserver_SameResultAsExecute(t *testing.T) {
	dir := t.TempDir()
	writeShot(t, dir, "Screenshot 2025-06-09 at 9.15.24.png")

	eff := testEff(dir)
	eff.DryRun = true // 两次运行都不改现场，结果才可比

	a := Execute(context.Background(), eff, Deps{Vision: &stubVision{}})
	b := ExecuteWithObserver(context.Background(), eff, Deps{Vision: &stubVision{}}, nil)

	// 时间字段本身允许有微小差异；对比时归零。
	a.StartedAt, a.FinishedAt = time.Time{}, time.Time{}
	b.StartedAt, b.FinishedAt = time.Time{}, time.Time{}

	if !reflect.DeepEqual(a, b) {
		t.Fatalf("nil observer 不应改变结果：\nExecute=%+v\nWithObs=%+v", a, b)
	}
}
