package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"
)

// Usage は外部呼び出し 1 回分の使用量とコスト (USD) です。
// コストメタデータが得られない呼び出しでは Cost のみ設定されます。
type Usage struct {
	InputTokens  int32
	OutputTokens int32
	Cost         float64
}

// TextGenerator はテキスト生成の外部コラボレーターです。
// (システム指示, ユーザー指示) → テキスト、のみを要求します。
type TextGenerator interface {
	GenerateText(ctx context.Context, system, user string) (string, Usage, error)
}

// TextPricing はトークン単価 (USD / 1K tokens) です。
type TextPricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

// GeminiTextClient は genai を利用した TextGenerator 実装です。
type GeminiTextClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	pricing TextPricing
}

// NewGeminiTextClient は共有の genai クライアントからテキスト生成用アダプターを構築します。
func NewGeminiTextClient(client *genai.Client, model string, timeout time.Duration, pricing TextPricing) *GeminiTextClient {
	return &GeminiTextClient{
		client:  client,
		model:   model,
		timeout: timeout,
		pricing: pricing,
	}
}

const defaultTextTemperature = float32(0.4)

// GenerateText はタイムアウト付きでモデルを呼び出し、本文テキストと使用量を返します。
// 一過性の失敗は指数バックオフで最大 2 回まで再試行します。
func (c *GeminiTextClient) GenerateText(ctx context.Context, system, user string) (string, Usage, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(defaultTextTemperature),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	var resp *genai.GenerateContentResponse
	operation := func() error {
		var err error
		resp, err = c.client.Models.GenerateContent(callCtx, c.model, genai.Text(user), cfg)
		if err != nil {
			if callCtx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	if err := backoff.Retry(operation, newCallBackOff(callCtx)); err != nil {
		return "", Usage{}, fmt.Errorf("text generation failed (model: %s): %w", c.model, err)
	}

	usage := Usage{}
	if resp.UsageMetadata != nil {
		usage.InputTokens = resp.UsageMetadata.PromptTokenCount
		usage.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
		usage.Cost = float64(usage.InputTokens)/1000*c.pricing.InputPer1K +
			float64(usage.OutputTokens)/1000*c.pricing.OutputPer1K
	}

	text := resp.Text()
	if text == "" {
		return "", usage, fmt.Errorf("text generation returned an empty response (model: %s)", c.model)
	}
	return text, usage, nil
}

// newCallBackOff は外部呼び出し共通のリトライポリシーを返します。
func newCallBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	return backoff.WithContext(backoff.WithMaxRetries(b, 2), ctx)
}
