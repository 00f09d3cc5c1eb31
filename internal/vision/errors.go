package vision

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// 失败分类：每一类对应一条重试策略与一段可操作的说明文字。
const (
	KindAuth          = "auth"          // 401，凭证无效或过期
	KindBadModel      = "bad_model"     // 400，模型名被拒
	KindQuota         = "quota"         // 429 insufficient_quota，额度用尽
	KindRateLimit     = "rate_limit"    // 429，限速
	KindNotFound      = "not_found"     // 404，端点不存在
	KindUnprocessable = "unprocessable" // 422，多为图片格式不被接受
	KindServer        = "server"        // 500/502/504
	KindHTTP          = "http"          // 其余未识别的状态码
	KindTimeout       = "timeout"       // 单次尝试超时
	KindNetwork       = "network"       // 连接层失败
	KindTLS           = "tls"           // 证书/握手失败
	KindParse         = "parse"         // 响应为空或不可用
	KindImage         = "image"         // 发送前图片处理失败，从未发出请求
	KindUnexpected    = "unexpected"    // 兜底
)

// Error 表示一次分析尝试的失败：分类、HTTP 状态（没有则为 0）与可操作的说明。
// Detail 会原样进入 attempt 留痕，措辞面向使用者而非开发者。
type Error struct {
	Kind   string
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "vision error"
	}
	if e.Detail != "" {
		return e.Detail
	}
	return e.Kind
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable 判断某类失败是否值得退避后再试。
// 凭证、模型名、额度、404、422、解析失败重试也不会变好，立即放弃。
func Retryable(kind string) bool {
	switch kind {
	case KindTimeout, KindNetwork, KindTLS, KindRateLimit, KindServer, KindHTTP, KindUnexpected:
		return true
	}
	return false
}

// classify 把任意错误归入失败分类。
// model 用于 400 的提示文案，timeout 用于超时文案。
func classify(err error, model string, timeout time.Duration) *Error {
	var verr *Error
	if errors.As(err, &verr) {
		return verr
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, apiErr.Type, apiErr.Message, model, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return classifyStatus(reqErr.HTTPStatusCode, "", msg, model, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutError(timeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return timeoutError(timeout, err)
	}

	var certErr *tls.CertificateVerificationError
	var hostErr x509.HostnameError
	var authErr x509.UnknownAuthorityError
	if errors.As(err, &certErr) || errors.As(err, &hostErr) || errors.As(err, &authErr) {
		return &Error{
			Kind:   KindTLS,
			Detail: "SSL/TLS error: could not establish a secure connection to the API",
			Err:    err,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &Error{
			Kind:   KindNetwork,
			Detail: "Network connection error: check your internet connection and firewall settings",
			Err:    err,
		}
	}

	return &Error{
		Kind:   KindUnexpected,
		Detail: fmt.Sprintf("Unexpected error: %v", err),
		Err:    err,
	}
}

func classifyStatus(status int, errType, msg, model string, err error) *Error {
	if msg == "" && err != nil {
		msg = err.Error()
	}
	switch status {
	case http.StatusUnauthorized:
		return &Error{
			Kind: KindAuth, Status: status,
			Detail: "Authentication failed (401): invalid or expired API key. Check your OPENAI_API_KEY environment variable. Server message: " + msg,
			Err:    err,
		}
	case http.StatusBadRequest:
		return &Error{
			Kind: KindBadModel, Status: status,
			Detail: fmt.Sprintf("Invalid model (400): model %q was rejected by the API. Check your OPENAI_MODEL environment variable. Server message: %s", model, msg),
			Err:    err,
		}
	case http.StatusTooManyRequests:
		if strings.Contains(errType, "insufficient_quota") {
			return &Error{
				Kind: KindQuota, Status: status,
				Detail: "Quota exceeded (429): the account hit its usage limit. Check your plan and billing details. Server message: " + msg,
				Err:    err,
			}
		}
		return &Error{
			Kind: KindRateLimit, Status: status,
			Detail: "Rate limit exceeded (429): too many requests. The tool will automatically retry with backoff. Server message: " + msg,
			Err:    err,
		}
	case http.StatusNotFound:
		return &Error{
			Kind: KindNotFound, Status: status,
			Detail: "Not found (404): the API endpoint was not found. Check the base URL configuration. Server message: " + msg,
			Err:    err,
		}
	case http.StatusUnprocessableEntity:
		return &Error{
			Kind: KindUnprocessable, Status: status,
			Detail: "Unprocessable entity (422): the request was rejected, commonly caused by unsupported image formats. Server message: " + msg,
			Err:    err,
		}
	case http.StatusInternalServerError:
		return &Error{
			Kind: KindServer, Status: status,
			Detail: "OpenAI server error (500): this is usually temporary, the tool will retry automatically. Server message: " + msg,
			Err:    err,
		}
	case http.StatusBadGateway:
		return &Error{
			Kind: KindServer, Status: status,
			Detail: "Bad gateway (502): a problem in the server infrastructure. Server message: " + msg,
			Err:    err,
		}
	case http.StatusGatewayTimeout:
		return &Error{
			Kind: KindServer, Status: status,
			Detail: "Gateway timeout (504): the server took too long to respond. Server message: " + msg,
			Err:    err,
		}
	default:
		return &Error{
			Kind: KindHTTP, Status: status,
			Detail: fmt.Sprintf("HTTP %d error: %s", status, msg),
			Err:    err,
		}
	}
}

func timeoutError(timeout time.Duration, err error) *Error {
	return &Error{
		Kind:   KindTimeout,
		Detail: fmt.Sprintf("Request timeout: no response within %.0f seconds", timeout.Seconds()),
		Err:    err,
	}
}
