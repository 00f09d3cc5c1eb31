package run

import (
	"time"

	"github.com/John-Robertt/Renshot/internal/config"
	"github.com/John-Robertt/Renshot/internal/domain"
)

// Observer 用于把“运行进度/阶段/组结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 组是顺序处理的，但两次回调之间可能隔很久：重试退避最长可达数十秒，
//   实现不得假设事件均匀到达。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.Effective)
	// OnPhaseDone 在阶段结束时调用（阶段名：scan/connect/group/estimate）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnGroupStart 在某组发起分析前调用（done 从 1 计数）。
	OnGroupStart(done, total int, stamp string, fileCount int)
	// OnGroupDone 在某组处理完成时调用（用于每组结果的一行输出）。
	OnGroupDone(done, total int, res domain.GroupResult, dur time.Duration)
}

// nopObserver 在调用方不关心进度时顶位。
type nopObserver struct{}

func (nopObserver) OnStart(config.Effective)                                {}
func (nopObserver) OnPhaseDone(string, map[string]any, time.Duration)       {}
func (nopObserver) OnGroupStart(int, int, string, int)                      {}
func (nopObserver) OnGroupDone(int, int, domain.GroupResult, time.Duration) {}
