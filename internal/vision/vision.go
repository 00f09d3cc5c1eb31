package vision

import (
	"context"

	"github.com/John-Robertt/Renshot/internal/domain"
)

// Client 把“远端视觉服务的差异”限制在 vision 包内部；核心流程只依赖统一接口与稳定的 Outcome。
//
// 约束：
// - Describe 自带重试与退避；调用方不再包一层重试
// - 三种结局（described/refused/failed）都编码在 Outcome 里，按数据消费，不走 error 分支
// - CheckConnectivity 是运行前的一次性探测，失败则整个批次不开始
type Client interface {
	CheckConnectivity(ctx context.Context) (string, error)
	Describe(ctx context.Context, image []byte) domain.Outcome
}
