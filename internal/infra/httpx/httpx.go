package httpx

import (
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// NewAPIClient 构造访问视觉分析服务的 HTTP client。
//
// 规则：
// - Timeout 是单次尝试的硬上限；超时计为一次失败尝试，而不是挂起
// - 重试不在这层做：分析层需要逐次留痕（attempt 列表），策略因此上移
// - 代理遵循环境变量（HTTP_PROXY/HTTPS_PROXY）
func NewAPIClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          4,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
		},
		Timeout: timeout,
	}
}
