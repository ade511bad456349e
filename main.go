package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ap-shorts-studio/internal/builder"
	"ap-shorts-studio/internal/config"
	"ap-shorts-studio/internal/domain"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	if err := run(context.Background()); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	topic := flag.String("topic", "", "動画の元になるトピック（必須）")
	person := flag.String("person", "", "主題となる特定の人物名（必須）")
	category := flag.String("category", "", "出力カテゴリ（例: 논란）")
	issueType := flag.String("issue", "", "画像キャッシュの分類に使う issue-type")
	maxAttempts := flag.Int("max-attempts", 0, "各ステージの試行上限（0 で設定値を使用）")
	flag.Parse()

	if *topic == "" || *person == "" {
		return fmt.Errorf("both -topic and -person are required")
	}

	// 1. 設定のロードとバリデーション
	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. 依存関係の組み立てとライフサイクル管理
	container, err := builder.BuildContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build application container: %w", err)
	}
	defer container.Close()

	req := domain.ProduceRequest{
		Topic:     *topic,
		Person:    *person,
		Category:  *category,
		IssueType: *issueType,
		Options: domain.ProduceOptions{
			MaxAttempts: *maxAttempts,
		},
	}

	// 3. ジョブの実行
	result, produceErr := container.Supervisor.Produce(ctx, req)

	notifyReq := domain.NotificationRequest{
		SourceTopic:    req.Topic,
		OutputCategory: req.Category,
		TargetTitle:    resultTitle(result),
		ExecutionMode:  "cli",
	}

	if produceErr != nil {
		if notifyErr := container.SlackNotifier.NotifyError(ctx, produceErr, notifyReq); notifyErr != nil {
			slog.Error("Failed to send error notification", "error", notifyErr)
		}
	} else {
		storageURI := cfg.GetGCSObjectURL(cfg.GetWorkDir(result.TaskID))
		publicURL := domain.CategoryNotAvailable
		if cfg.PublicBaseURL != "" {
			publicURL = cfg.PublicBaseURL + "/" + result.TaskID
		}
		if notifyErr := container.SlackNotifier.Notify(ctx, publicURL, storageURI, notifyReq); notifyErr != nil {
			slog.Error("Failed to send completion notification", "error", notifyErr)
		}
	}

	// 4. 最終結果の出力（部分結果もそのまま出力します）
	if result != nil {
		encoded, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode produce result: %w", err)
		}
		fmt.Println(string(encoded))
	}

	return produceErr
}

func resultTitle(result *domain.ProduceResult) string {
	if result == nil || result.Script == nil {
		return domain.CategoryNotAvailable
	}
	return result.Script.Title
}
