package agents

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"ap-shorts-studio/internal/adapters"
	"ap-shorts-studio/internal/config"
	"ap-shorts-studio/internal/domain"
	"ap-shorts-studio/internal/imagecache"
)

const (
	imageAgentName   = "ImageAgent"
	imageAspectRatio = "9:16"
	imageContentType = "image/png"
)

// sceneOutcome はシーン 1 枚分の実行結果です。インデックスで書き込み先が
// 分離されるため、ワーカー間のロックは不要です。
type sceneOutcome struct {
	scene int
	path  string
	cost  float64
	err   error
	// paid は有償生成だったか（キャッシュ書き戻しの対象か）を示します。
	paid   bool
	prompt string
}

// ImageAgent は最適化計画に従ってシーン画像を並列生成します。
// 再生成要求時はキャッシュを迂回し、フィードバックをプロンプトに
// 織り込んで対象シーンのみを作り直します。
type ImageAgent struct {
	gen   adapters.ImageGenerator
	store adapters.ArtifactStore
	cache imagecache.Store
	cfg   *config.Config
}

func NewImageAgent(gen adapters.ImageGenerator, store adapters.ArtifactStore, cache imagecache.Store, cfg *config.Config) *ImageAgent {
	return &ImageAgent{
		gen:   gen,
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

func (a *ImageAgent) Name() string { return imageAgentName }
func (a *ImageAgent) Role() Role   { return RoleImage }

// Execute は計画のシーンを並列実行し、成功比が受理基準以上なら成功を
// 返します。失敗シーンは FailedScenes に列挙され、該当位置の
// task.Images は空文字のままです（degrade-not-abort）。
func (a *ImageAgent) Execute(ctx context.Context, task *domain.TaskContext, opts Options) *domain.AgentResult {
	started := time.Now()
	attempt := task.IncrementAttempts(domain.StageImage)

	if task.Script == nil || task.Script.SceneCount() == 0 {
		task.AppendLog(imageAgentName, "generate_images", "failed", "no script scenes to illustrate")
		return failure(domain.FailureQuality, "no script scenes to illustrate", 0, started)
	}

	plans := a.selectScenes(task, opts)
	if len(plans) == 0 {
		task.AppendLog(imageAgentName, "generate_images", "failed", "image plan is empty")
		return failure(domain.FailureQuality, "image plan is empty", 0, started)
	}

	outcomes := make([]sceneOutcome, len(plans))
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.ImageWorkers)
	for i, plan := range plans {
		g.Go(func() error {
			outcomes[i] = a.executeScene(groupCtx, task, plan, attempt)
			return nil
		})
	}
	_ = g.Wait() // ワーカーは error を返さず outcome に記録します。

	return a.collect(ctx, task, outcomes, attempt, started)
}

// selectScenes は通常実行では opts.Plan を、再生成要求では対象シーンを
// キャッシュ迂回の生成計画に組み直して返します。
func (a *ImageAgent) selectScenes(task *domain.TaskContext, opts Options) []imagecache.ScenePlan {
	if len(opts.RegenerateScenes) == 0 {
		if opts.Plan == nil {
			return nil
		}
		return opts.Plan.Scenes
	}

	var plans []imagecache.ScenePlan
	for _, n := range opts.RegenerateScenes {
		if n < 0 || n >= task.Script.SceneCount() {
			continue
		}
		prompt := task.Script.Scenes[n].ImagePrompt
		if opts.Feedback != "" {
			prompt = fmt.Sprintf("%s\n\nReviewer feedback (must address): %s", prompt, opts.Feedback)
		}
		plans = append(plans, imagecache.ScenePlan{
			Scene:  n,
			Action: imagecache.ActionGenerate,
			Prompt: prompt,
		})
	}
	return plans
}

// executeScene はシーン 1 枚分の計画を実行します。
func (a *ImageAgent) executeScene(ctx context.Context, task *domain.TaskContext, plan imagecache.ScenePlan, attempt int) sceneOutcome {
	outcome := sceneOutcome{scene: plan.Scene, prompt: plan.Prompt}
	dst := path.Join(a.cfg.GetImageDir(task.TaskID), fmt.Sprintf("scene_%02d_a%d.png", plan.Scene, attempt))

	if plan.Action == imagecache.ActionReuse {
		if err := adapters.CopyObject(ctx, a.store, plan.SourcePath, dst, imageContentType); err != nil {
			outcome.err = err
			return outcome
		}
		outcome.path = dst
		return outcome
	}

	outcome.paid = true
	data, usage, err := a.gen.GenerateImage(ctx, plan.Prompt, adapters.ImageOptions{AspectRatio: imageAspectRatio})
	outcome.cost = usage.Cost
	if err != nil {
		outcome.err = err
		return outcome
	}

	if err := a.store.Write(ctx, dst, bytes.NewReader(data), imageContentType); err != nil {
		outcome.err = err
		return outcome
	}
	outcome.path = dst
	return outcome
}

// collect は全シーンの結果を集計し、キャッシュの書き戻しと
// AgentResult の組み立てを行います。
func (a *ImageAgent) collect(ctx context.Context, task *domain.TaskContext, outcomes []sceneOutcome, attempt int, started time.Time) *domain.AgentResult {
	if task.Images == nil || len(task.Images) != task.Script.SceneCount() {
		task.Images = make([]string, task.Script.SceneCount())
	}

	var (
		cost   float64
		failed []int
	)
	for _, o := range outcomes {
		cost += o.cost
		if o.err != nil {
			failed = append(failed, o.scene)
			task.Images[o.scene] = ""
			if o.paid {
				if err := a.cache.Blacklist(ctx, o.prompt, o.err.Error()); err != nil {
					slog.Warn("Failed to blacklist prompt", "task_id", task.TaskID, "scene", o.scene, "error", err)
				}
			}
			continue
		}

		task.Images[o.scene] = o.path
		// フックシーン（先頭）は主題固有のためキャッシュしません。
		if o.paid && o.scene > 0 {
			a.writeBack(ctx, task.IssueType, o)
		}
	}
	sort.Ints(failed)

	produced := len(outcomes) - len(failed)
	ratio := float64(produced) / float64(len(outcomes))
	detail := fmt.Sprintf("attempt=%d produced=%d/%d cost=%.4f", attempt, produced, len(outcomes), cost)

	if ratio < a.cfg.ImageAcceptRatio {
		task.AppendLog(imageAgentName, "generate_images", "below_threshold", detail)
		result := failure(domain.FailureQuality,
			fmt.Sprintf("only %d of %d scene images produced", produced, len(outcomes)), cost, started)
		result.FailedScenes = failed
		return result
	}

	task.AppendLog(imageAgentName, "generate_images", "success", detail)
	result := success(cost, started)
	result.FailedScenes = failed
	return result
}

// writeBack は有償生成に成功した画像をキャッシュへ記録します。
// 既存エントリがあれば成功回数を引き継ぎます。
func (a *ImageAgent) writeBack(ctx context.Context, issueType string, o sceneOutcome) {
	key := imagecache.Key{IssueType: issueType, Scene: o.scene}
	entry := imagecache.Entry{
		Prompt:       o.prompt,
		ImagePath:    o.path,
		SuccessCount: 1,
		LastUsedAt:   time.Now(),
	}
	if prev, ok := a.cache.Get(ctx, key); ok {
		entry.SuccessCount = prev.SuccessCount + 1
	}
	if err := a.cache.Put(ctx, key, entry); err != nil {
		// キャッシュ欠落は次回の再生成コストで済むため、失敗させません。
		slog.Warn("Cache writeback failed", "key", key.String(), "error", err)
	}
}
