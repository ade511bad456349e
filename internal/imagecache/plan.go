package imagecache

import (
	"context"
	"log/slog"

	"ap-shorts-studio/internal/adapters"
	"ap-shorts-studio/internal/domain"
)

// Action はシーン 1 つに対する最適化判断です。
type Action string

const (
	// ActionReuse はキャッシュ済み画像の複製（実質無料）です。
	ActionReuse Action = "reuse"
	// ActionTemplate は issue-type テンプレートによる有償生成です。
	ActionTemplate Action = "template"
	// ActionGenerate は台本固有プロンプトによる有償生成です。
	ActionGenerate Action = "generate"
)

// ScenePlan はシーン 1 つ分の実行計画です。
type ScenePlan struct {
	Scene  int
	Action Action
	// Prompt は Template / Generate で使う生成プロンプトです。
	Prompt string
	// SourcePath は Reuse 時の複製元パスです。
	SourcePath string
}

// Plan は画像フェーズ全体の最適化計画です。フェーズ開始前に一度だけ
// 構築され、ImageAgent に渡されます。
type Plan struct {
	IssueType string
	Scenes    []ScenePlan
}

// Planner はキャッシュとテンプレートを参照して、シーンごとに
// 再利用・テンプレート・新規生成を分類します。
type Planner struct {
	store     Store
	templates *TemplateSet
	storage   adapters.ArtifactStore
}

func NewPlanner(store Store, templates *TemplateSet, storage adapters.ArtifactStore) *Planner {
	return &Planner{
		store:     store,
		templates: templates,
		storage:   storage,
	}
}

// BuildPlan は台本の各シーンを分類します。判断基準は次の順です。
//  1. フックシーン（先頭）は常に新規生成。主題固有の絵が必要なため
//     キャッシュ対象外です。
//  2. (issue-type, シーン位置) のキャッシュエントリが存在し、参照先の
//     画像がまだストレージに残っていれば再利用。
//  3. シーン位置に issue-type テンプレートがあればテンプレート生成。
//  4. それ以外は台本固有プロンプトで生成。
func (p *Planner) BuildPlan(ctx context.Context, task *domain.TaskContext) *Plan {
	plan := &Plan{IssueType: task.IssueType}
	if task.Script == nil {
		return plan
	}

	for _, scene := range task.Script.Scenes {
		plan.Scenes = append(plan.Scenes, p.classifyScene(ctx, task, scene))
	}

	slog.Info("Image optimization plan built",
		"task_id", task.TaskID,
		"issue_type", task.IssueType,
		"reuse", plan.countAction(ActionReuse),
		"template", plan.countAction(ActionTemplate),
		"generate", plan.countAction(ActionGenerate),
	)
	return plan
}

func (p *Planner) classifyScene(ctx context.Context, task *domain.TaskContext, scene domain.Scene) ScenePlan {
	if scene.Index == 0 {
		return ScenePlan{Scene: scene.Index, Action: ActionGenerate, Prompt: scene.ImagePrompt}
	}

	key := Key{IssueType: task.IssueType, Scene: scene.Index}
	if entry, ok := p.store.Get(ctx, key); ok {
		exists, err := p.storage.Exists(ctx, entry.ImagePath)
		if err == nil && exists {
			return ScenePlan{
				Scene:      scene.Index,
				Action:     ActionReuse,
				Prompt:     entry.Prompt,
				SourcePath: entry.ImagePath,
			}
		}
		slog.Warn("Cached image is gone from storage, falling through",
			"key", key.String(), "path", entry.ImagePath)
	}

	if tpl, ok := p.templates.Lookup(task.IssueType, scene.Index); ok {
		return ScenePlan{
			Scene:  scene.Index,
			Action: ActionTemplate,
			Prompt: RenderTemplate(tpl, task.Person, task.Topic),
		}
	}

	return ScenePlan{Scene: scene.Index, Action: ActionGenerate, Prompt: scene.ImagePrompt}
}

func (p *Plan) countAction(action Action) int {
	n := 0
	for _, s := range p.Scenes {
		if s.Action == action {
			n++
		}
	}
	return n
}
