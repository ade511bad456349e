package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"
)

// ImageOptions は画像生成の共通パラメータです。
type ImageOptions struct {
	// AspectRatio は "9:16" などの縦横比指定です。空なら既定値に従います。
	AspectRatio string
}

// ImageGenerator は画像生成の外部コラボレーターです。
// (プロンプト, スタイル/縦横比) → 画像バイト列、のみを要求します。
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, opts ImageOptions) ([]byte, Usage, error)
}

// GeminiImageClient は genai の画像生成モデルを利用した ImageGenerator 実装です。
type GeminiImageClient struct {
	client      *genai.Client
	model       string
	timeout     time.Duration
	costPerCall float64
}

// NewGeminiImageClient は共有の genai クライアントから画像生成用アダプターを構築します。
func NewGeminiImageClient(client *genai.Client, model string, timeout time.Duration, costPerCall float64) *GeminiImageClient {
	return &GeminiImageClient{
		client:      client,
		model:       model,
		timeout:     timeout,
		costPerCall: costPerCall,
	}
}

// GenerateImage はプロンプトから画像 1 枚を生成して返します。
// レスポンスに画像パートが含まれない場合はエラーです。
func (c *GeminiImageClient) GenerateImage(ctx context.Context, prompt string, opts ImageOptions) ([]byte, Usage, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}
	if opts.AspectRatio != "" {
		cfg.ImageConfig = &genai.ImageConfig{AspectRatio: opts.AspectRatio}
	}

	var resp *genai.GenerateContentResponse
	operation := func() error {
		var err error
		resp, err = c.client.Models.GenerateContent(callCtx, c.model, genai.Text(prompt), cfg)
		if err != nil {
			if callCtx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	if err := backoff.Retry(operation, newCallBackOff(callCtx)); err != nil {
		return nil, Usage{}, fmt.Errorf("image generation failed (model: %s): %w", c.model, err)
	}

	usage := Usage{Cost: c.costPerCall}
	if resp.UsageMetadata != nil {
		usage.InputTokens = resp.UsageMetadata.PromptTokenCount
		usage.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, usage, nil
			}
		}
	}

	return nil, usage, fmt.Errorf("image generation returned no image part (model: %s)", c.model)
}
