package vision

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/John-Robertt/Renshot/internal/domain"
	"github.com/John-Robertt/Renshot/internal/infra/httpx"
	"github.com/John-Robertt/Renshot/internal/infra/imgx"
)

// analysisPrompt 要求模型给出 4-5 个词的内容概括。
// 温度压低，让同一批截图的措辞尽量稳定。
const analysisPrompt = "Analyze this screenshot and provide a concise 4-5 word description " +
	"that captures the main content or purpose. Focus on what the user " +
	"was doing or viewing. Examples: 'Web browser article reading', " +
	"'Code editor Python file', 'Settings screen preferences', " +
	"'Email inbox messages'. Be specific but brief."

const analysisTemperature = 0.3

// Options 是构造 OpenAI 客户端所需的全部配置。
type Options struct {
	APIKey           string
	BaseURL          string // 为空时用官方端点
	Model            string
	MaxTokens        int
	Timeout          time.Duration // 单次尝试上限
	MaxRetries       int           // 尝试总次数上限（含首次）
	BatchSize        int           // 限速桶的突发额度
	DescriptionWords int           // 描述保留的目标词数
}

// OpenAI 通过 OpenAI 兼容 API 实现 Client。
type OpenAI struct {
	api        *openai.Client
	model      string
	maxTokens  int
	timeout    time.Duration
	maxRetries int
	descWords  int
	limiter    *rate.Limiter

	// 退避等待，测试里换成不睡的桩
	sleep func(ctx context.Context, d time.Duration) error
}

var _ Client = (*OpenAI)(nil)

// NewOpenAI 构造客户端。
// 限速器：突发 = 批大小，补充 1 令牌/秒，一批可以立即起跑，后续调用被匀速摊开。
func NewOpenAI(opts Options) *OpenAI {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	cfg.HTTPClient = httpx.NewAPIClient(opts.Timeout)

	burst := opts.BatchSize
	if burst < 1 {
		burst = 1
	}
	retries := opts.MaxRetries
	if retries < 1 {
		retries = 1
	}
	return &OpenAI{
		api:        openai.NewClientWithConfig(cfg),
		model:      opts.Model,
		maxTokens:  opts.MaxTokens,
		timeout:    opts.Timeout,
		maxRetries: retries,
		descWords:  opts.DescriptionWords,
		limiter:    rate.NewLimiter(rate.Limit(1), burst),
		sleep:      sleepCtx,
	}
}

// CheckConnectivity 列出模型清单，确认凭证可用且配置的模型在列。
// 成功返回一句可打印的确认信息；失败返回 *Error。
func (c *OpenAI) CheckConnectivity(ctx context.Context) (string, error) {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return "", classify(err, c.model, c.timeout)
	}

	available := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		if m.ID == c.model {
			return fmt.Sprintf("API connection successful, model %s is available", c.model), nil
		}
		available = append(available, m.ID)
	}

	sample := available
	if len(sample) > 3 {
		sample = sample[:3]
	}
	return "", &Error{
		Kind: KindBadModel,
		Detail: fmt.Sprintf("API connection successful, but model %s is not available. Available models include: %s",
			c.model, strings.Join(sample, ", ")),
	}
}

// Describe 对一张截图发起分析，返回三种结局之一。
//
// 规则（硬约束）：
// - 图片处理失败不发请求，直接 failed 且不计费
// - 每次失败按分类决定去留：不可重试立即收尾，可重试则退避 2^n 秒
// - 每次尝试的失败原因按序留痕，最终进入 Outcome.Attempts
// - 拒答与空响应都不重试：前者是成功调用，后者重试也不会变好
func (c *OpenAI) Describe(ctx context.Context, image []byte) domain.Outcome {
	dataURI, err := imgx.PrepareForAnalysis(image)
	if err != nil {
		detail := "Failed to process image file: could not read, convert, or encode the image. " +
			"The file may be corrupted or in an unsupported format"
		return domain.Outcome{
			Status:   domain.OutcomeFailed,
			FailKind: KindImage,
			Attempts: []domain.Attempt{{N: 1, Kind: KindImage, Detail: detail}},
		}
	}

	var (
		attempts []domain.Attempt
		called   bool
		lastKind string
	)
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			verr := classify(err, c.model, c.timeout)
			attempts = append(attempts, domain.Attempt{N: attempt + 1, Kind: verr.Kind, Detail: verr.Detail})
			lastKind = verr.Kind
			break
		}

		text, tokens, err := c.request(ctx, dataURI)
		if err == nil {
			// 拒答要在截词之前判：截成五个词可能把拒答短语截没
			if phrase, ok := MatchRefusal(text); ok {
				return domain.Outcome{
					Status:     domain.OutcomeRefused,
					Phrase:     phrase,
					TokensUsed: tokens,
					Attempts:   attempts,
					Called:     true,
				}
			}
			return domain.Outcome{
				Status:      domain.OutcomeDescribed,
				Description: CleanDescription(text, c.descWords),
				TokensUsed:  tokens,
				Attempts:    attempts,
				Called:      true,
			}
		}

		verr := classify(err, c.model, c.timeout)
		if verr.Status > 0 || verr.Kind == KindParse {
			// 拿到了状态码或完整响应，说明请求确实抵达了服务端
			called = true
		}
		attempts = append(attempts, domain.Attempt{N: attempt + 1, Kind: verr.Kind, Detail: verr.Detail})
		lastKind = verr.Kind

		if !Retryable(verr.Kind) {
			break
		}
		if attempt < c.maxRetries-1 {
			if err := c.sleep(ctx, time.Duration(1<<uint(attempt+1))*time.Second); err != nil {
				break
			}
		}
	}

	return domain.Outcome{
		Status:   domain.OutcomeFailed,
		FailKind: lastKind,
		Attempts: attempts,
		Called:   called,
	}
}

func (c *OpenAI) request(ctx context.Context, dataURI string) (string, int, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: analysisPrompt},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    dataURI,
						Detail: openai.ImageURLDetailAuto,
					},
				},
			},
		}},
		MaxTokens:   c.maxTokens,
		Temperature: analysisTemperature,
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", 0, err
	}
	if len(resp.Choices) == 0 {
		return "", 0, &Error{Kind: KindParse, Detail: "Empty or unusable response from the API"}
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", 0, &Error{Kind: KindParse, Detail: "Empty or unusable response from the API"}
	}
	return content, resp.Usage.CompletionTokens, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
