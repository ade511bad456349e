package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ap-shorts-studio/internal/agents"
	"ap-shorts-studio/internal/config"
	"ap-shorts-studio/internal/domain"
	"ap-shorts-studio/internal/imagecache"
)

// ErrInvalidSubject は主題が特定の個人でないためジョブを即時停止した
// ことを表します。以降のフェーズは一切実行されません。
var ErrInvalidSubject = errors.New("subject person is not a specific individual")

// ErrStageEmpty はリトライ上限までに使用可能なアーティファクトが
// 一つも得られなかったステージを表します。
type ErrStageEmpty struct {
	Stage domain.Stage
}

func (e *ErrStageEmpty) Error() string {
	return fmt.Sprintf("stage %q produced no usable artifact", e.Stage)
}

// tally はジョブ全体のコスト・所要時間の集計です。
// すべての AgentResult（生成・レビューとも）が厳密に加算されます。
type tally struct {
	cost     float64
	duration time.Duration
}

func (t *tally) add(r *domain.AgentResult) {
	t.cost += r.Cost
	t.duration += r.Duration
}

// Supervisor は 1 ジョブの生成→レビュー→改善ループを統括します。
// フェーズは台本→字幕→画像の固定順で、上限到達時は警告して最後の
// アーティファクトを確定し、次フェーズへ進みます（degrade-not-abort）。
type Supervisor struct {
	script   agents.Agent
	subtitle agents.Agent
	image    agents.Agent
	review   agents.Agent
	planner  *imagecache.Planner
	cfg      *config.Config
}

func NewSupervisor(script, subtitle, image, review agents.Agent, planner *imagecache.Planner, cfg *config.Config) *Supervisor {
	return &Supervisor{
		script:   script,
		subtitle: subtitle,
		image:    image,
		review:   review,
		planner:  planner,
		cfg:      cfg,
	}
}

// Produce はジョブを最後まで実行し、常に ProduceResult を返します。
// error が非 nil でも、そこまでに確定したアーティファクトと監査ログは
// 結果に含まれます。
func (s *Supervisor) Produce(ctx context.Context, req domain.ProduceRequest) (*domain.ProduceResult, error) {
	task := domain.NewTaskContext(req)
	maxAttempts := req.Options.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.cfg.MaxAttempts
	}

	roster := s.AnalyzeRoster()
	slog.Info("Production job started",
		"task_id", task.TaskID,
		"topic", task.Topic,
		"person", task.Person,
		"issue_type", task.IssueType,
		"max_attempts", maxAttempts,
		"roster_complete", roster.Complete,
	)
	if !roster.Complete {
		slog.Warn("Agent roster is incomplete", "task_id", task.TaskID, "missing", roster.Missing)
	}

	var t tally
	var jobErr error

	if err := s.runScriptPhase(ctx, task, maxAttempts, &t); err != nil {
		// 台本なしでは後続フェーズに意味がないため、ここで打ち切ります。
		return s.finish(task, &t, err), err
	}

	if err := s.runSubtitlePhase(ctx, task, maxAttempts, &t); err != nil {
		if errors.Is(err, ErrInvalidSubject) {
			return s.finish(task, &t, err), err
		}
		jobErr = errors.Join(jobErr, err)
	}

	if err := s.runImagePhase(ctx, task, maxAttempts, &t); err != nil {
		if errors.Is(err, ErrInvalidSubject) {
			return s.finish(task, &t, err), err
		}
		jobErr = errors.Join(jobErr, err)
	}

	return s.finish(task, &t, jobErr), jobErr
}

// finish は集計値と監査ログを最終結果へ写します。
func (s *Supervisor) finish(task *domain.TaskContext, t *tally, jobErr error) *domain.ProduceResult {
	slog.Info("Production job finished",
		"task_id", task.TaskID,
		"total_cost", t.cost,
		"total_duration", t.duration.String(),
		"attempts", task.AttemptsSnapshot(),
		"error", errString(jobErr),
	)
	return &domain.ProduceResult{
		TaskID:        task.TaskID,
		Script:        task.Script,
		Subtitle:      task.Subtitle,
		Images:        task.Images,
		Attempts:      task.AttemptsSnapshot(),
		TotalCost:     t.cost,
		TotalDuration: t.duration,
		Log:           task.Log,
	}
}

// runScriptPhase は台本の生成→レビューのループです。上限到達時に
// 台本が一度も確定していなければ致命的エラーです。
func (s *Supervisor) runScriptPhase(ctx context.Context, task *domain.TaskContext, maxAttempts int, t *tally) error {
	for task.AttemptsFor(domain.StageScript) < maxAttempts {
		result := s.script.Execute(ctx, task, agents.Options{
			Feedback: task.FeedbackFor(domain.StageScript),
		})
		t.add(result)
		if !result.Success {
			slog.Warn("Script generation failed, retrying",
				"task_id", task.TaskID, "failure", result.Failure, "message", result.Message)
			continue
		}

		verdict := s.review.Execute(ctx, task, agents.Options{Stage: domain.StageScript})
		t.add(verdict)
		if verdict.HasTarget(agents.TargetPerson) {
			return fmt.Errorf("%w: %s", ErrInvalidSubject, verdict.Message)
		}
		if verdict.Success {
			return nil
		}
		slog.Info("Script flagged for improvement",
			"task_id", task.TaskID, "attempt", task.AttemptsFor(domain.StageScript), "feedback", verdict.Feedback)
	}

	if task.Script == nil {
		return &ErrStageEmpty{Stage: domain.StageScript}
	}
	slog.Warn("Script attempts exhausted, keeping last artifact", "task_id", task.TaskID)
	return nil
}

// runSubtitlePhase は字幕・音声の生成→レビューのループです。
// 上限到達時にアーティファクトが空でも、エラーを結合するだけで
// ジョブ自体は完走します。
func (s *Supervisor) runSubtitlePhase(ctx context.Context, task *domain.TaskContext, maxAttempts int, t *tally) error {
	for task.AttemptsFor(domain.StageSubtitle) < maxAttempts {
		result := s.subtitle.Execute(ctx, task, agents.Options{
			Feedback: task.FeedbackFor(domain.StageSubtitle),
		})
		t.add(result)
		if !result.Success {
			slog.Warn("Subtitle generation failed, retrying",
				"task_id", task.TaskID, "failure", result.Failure, "message", result.Message)
			continue
		}

		verdict := s.review.Execute(ctx, task, agents.Options{Stage: domain.StageSubtitle})
		t.add(verdict)
		if verdict.HasTarget(agents.TargetPerson) {
			return fmt.Errorf("%w: %s", ErrInvalidSubject, verdict.Message)
		}
		if verdict.Success {
			return nil
		}
		slog.Info("Subtitle flagged for improvement",
			"task_id", task.TaskID, "attempt", task.AttemptsFor(domain.StageSubtitle), "feedback", verdict.Feedback)
	}

	if task.Subtitle == nil {
		return &ErrStageEmpty{Stage: domain.StageSubtitle}
	}
	slog.Warn("Subtitle attempts exhausted, keeping last artifact", "task_id", task.TaskID)
	return nil
}

// runImagePhase は最適化計画を一度だけ構築し、画像の生成→レビューの
// ループを回します。差し戻し後の再試行は失敗シーン（なければ全シーン）
// をキャッシュ迂回で再生成します。
func (s *Supervisor) runImagePhase(ctx context.Context, task *domain.TaskContext, maxAttempts int, t *tally) error {
	if task.Script == nil || task.Script.SceneCount() == 0 {
		return &ErrStageEmpty{Stage: domain.StageImage}
	}

	plan := s.planner.BuildPlan(ctx, task)
	var regenerate []int

	for task.AttemptsFor(domain.StageImage) < maxAttempts {
		opts := agents.Options{
			Feedback: task.FeedbackFor(domain.StageImage),
		}
		if task.AttemptsFor(domain.StageImage) == 0 {
			opts.Plan = plan
		} else {
			opts.RegenerateScenes = regenerate
			if len(opts.RegenerateScenes) == 0 {
				opts.RegenerateScenes = allSceneNumbers(task.Script.SceneCount())
			}
		}

		result := s.image.Execute(ctx, task, opts)
		t.add(result)
		regenerate = result.FailedScenes
		if !result.Success {
			slog.Warn("Image generation below acceptance, retrying",
				"task_id", task.TaskID, "failed_scenes", result.FailedScenes, "message", result.Message)
			continue
		}

		verdict := s.review.Execute(ctx, task, agents.Options{Stage: domain.StageImage})
		t.add(verdict)
		if verdict.HasTarget(agents.TargetPerson) {
			return fmt.Errorf("%w: %s", ErrInvalidSubject, verdict.Message)
		}
		if verdict.Success {
			return nil
		}
		slog.Info("Images flagged for improvement",
			"task_id", task.TaskID, "attempt", task.AttemptsFor(domain.StageImage), "feedback", verdict.Feedback)
	}

	if !hasAnyImage(task.Images) {
		return &ErrStageEmpty{Stage: domain.StageImage}
	}
	slog.Warn("Image attempts exhausted, keeping last artifacts", "task_id", task.TaskID)
	return nil
}

func allSceneNumbers(n int) []int {
	scenes := make([]int, n)
	for i := range scenes {
		scenes[i] = i
	}
	return scenes
}

func hasAnyImage(images []string) bool {
	for _, p := range images {
		if p != "" {
			return true
		}
	}
	return false
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
