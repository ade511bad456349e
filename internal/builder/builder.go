package builder

import (
	"context"
	"fmt"
	"log/slog"

	"ap-shorts-studio/internal/adapters"
	"ap-shorts-studio/internal/agents"
	"ap-shorts-studio/internal/config"
	"ap-shorts-studio/internal/imagecache"
	"ap-shorts-studio/internal/supervisor"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"
	"github.com/shouni/go-remote-io/pkg/remoteio"
	"google.golang.org/genai"
)

// Container はアプリケーションの依存関係（DIコンテナ）を保持します。
type Container struct {
	Config *config.Config

	// I/O and Storage
	IOFactory remoteio.IOFactory
	Storage   adapters.ArtifactStore

	// Generation collaborators
	GenaiClient *genai.Client

	// Business Logic
	Supervisor *supervisor.Supervisor

	// External Adapters
	HTTPClient    httpkit.ClientInterface
	SlackNotifier adapters.SlackNotifier
}

// BuildContainer は外部サービスとの接続を確立し、依存関係を組み立てます。
func BuildContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	// 1. 基盤クライアントの初期化
	httpClient := httpkit.New(cfg.TextTimeout)

	// 2. I/O インフラ (GCS等) の初期化
	ioFactory, err := gcsfactory.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS factory: %w", err)
	}
	reader, err := ioFactory.InputReader()
	if err != nil {
		return nil, fmt.Errorf("failed to create input reader: %w", err)
	}
	writer, err := ioFactory.OutputWriter()
	if err != nil {
		return nil, fmt.Errorf("failed to create output writer: %w", err)
	}
	storage := adapters.NewRemoteStore(reader, writer)

	// 3. 生成コラボレーターの初期化（genai クライアントは 3 モデルで共有）
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	textGen := adapters.NewGeminiTextClient(genaiClient, cfg.TextModel, cfg.TextTimeout, adapters.TextPricing{
		InputPer1K:  cfg.TextInputCostPer1K,
		OutputPer1K: cfg.TextOutputCostPer1K,
	})
	imageGen := adapters.NewGeminiImageClient(genaiClient, cfg.ImageModel, cfg.ImageTimeout, cfg.ImageCostPerCall)
	speech := adapters.NewGeminiSpeechClient(genaiClient, cfg.SpeechModel, cfg.SpeechTimeout)

	// 4. 画像キャッシュとテンプレートの読み込み
	cacheStore := imagecache.NewSnapshotStore(ctx, storage, cfg.CacheIndexPath)
	templates, err := imagecache.LoadTemplateSet(cfg.TemplateConfig)
	if err != nil {
		return nil, fmt.Errorf("テンプレート設定の読み込みに失敗しました (path: %s): %w", cfg.TemplateConfig, err)
	}
	planner := imagecache.NewPlanner(cacheStore, templates, storage)

	// 5. エージェントと Supervisor の組み立て
	scriptAgent := agents.NewScriptAgent(textGen, cfg)
	subtitleAgent := agents.NewSubtitleAgent(speech, storage, cfg)
	imageAgent := agents.NewImageAgent(imageGen, storage, cacheStore, cfg)
	reviewAgent := agents.NewReviewAgent(textGen, cfg)

	sup := supervisor.NewSupervisor(scriptAgent, subtitleAgent, imageAgent, reviewAgent, planner, cfg)

	// 6. アダプターの初期化
	slack, err := adapters.NewSlackAdapter(httpClient, cfg.SlackWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Slack adapter: %w", err)
	}

	return &Container{
		Config:        cfg,
		IOFactory:     ioFactory,
		Storage:       storage,
		GenaiClient:   genaiClient,
		Supervisor:    sup,
		HTTPClient:    httpClient,
		SlackNotifier: slack,
	}, nil
}

// Close は、Container が保持するすべての外部接続リソースを安全に解放します。
func (c *Container) Close() {
	if c.IOFactory != nil {
		if err := c.IOFactory.Close(); err != nil {
			slog.Error("failed to close IOFactory", "error", err)
		}
	}
}
