package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ap-shorts-studio/internal/adapters"
	"ap-shorts-studio/internal/config"
	"ap-shorts-studio/internal/domain"
)

const scriptAgentName = "ScriptAgent"

const scriptSystemInstruction = `You are a script writer for short-form news videos.
Write in Korean. Respond with ONLY a JSON object in this exact shape:
{"title": "...", "scenes": [{"narration": "...", "image_prompt": "..."}]}
The first scene is the hook: it must name the subject person directly and
create immediate curiosity. Each image_prompt describes one vertical (9:16)
illustration for its scene, in English.`

// ScriptAgent はトピックから構造化台本を生成します。改善呼び出しでは
// 直前の台本を文脈として渡し、フィードバックを支配的な制約として
// 全体を作り直します（部分パッチは行いません）。
type ScriptAgent struct {
	gen adapters.TextGenerator
	cfg *config.Config
}

func NewScriptAgent(gen adapters.TextGenerator, cfg *config.Config) *ScriptAgent {
	return &ScriptAgent{
		gen: gen,
		cfg: cfg,
	}
}

func (a *ScriptAgent) Name() string { return scriptAgentName }
func (a *ScriptAgent) Role() Role   { return RoleScript }

// Execute は台本を生成し、成功時のみ task.Script を丸ごと置き換えます。
// 生成テキストが修復後もパースできない場合、アーティファクトは
// 書き込まれず ParseFailure が返ります。
func (a *ScriptAgent) Execute(ctx context.Context, task *domain.TaskContext, opts Options) *domain.AgentResult {
	started := time.Now()
	attempt := task.IncrementAttempts(domain.StageScript)

	raw, usage, err := a.gen.GenerateText(ctx, scriptSystemInstruction, a.buildUserPrompt(task, opts))
	if err != nil {
		task.AppendLog(scriptAgentName, "generate_script", "failed", err.Error())
		return failure(domain.FailureTransport, err.Error(), usage.Cost, started)
	}

	script, normalized, err := parseScript(raw, a.cfg.MaxScenes)
	if err != nil {
		task.AppendLog(scriptAgentName, "generate_script", "parse_failed", err.Error())
		return failure(domain.FailureParse, err.Error(), usage.Cost, started)
	}

	task.Script = script
	task.AppendLog(scriptAgentName, "generate_script", "success",
		fmt.Sprintf("attempt=%d scenes=%d chars=%d normalized=%v",
			attempt, script.SceneCount(), script.TotalChars(), normalized))

	return success(usage.Cost, started)
}

// buildUserPrompt は初回生成と改善生成でプロンプトを切り替えます。
func (a *ScriptAgent) buildUserPrompt(task *domain.TaskContext, opts Options) string {
	base := fmt.Sprintf("Topic: %s\nSubject person: %s\nCategory: %s\nIssue type: %s\nScene count: between %d and %d.",
		task.Topic, task.Person, task.Category, task.IssueType, a.cfg.MinScenes, a.cfg.MaxScenes)

	if task.Script == nil || opts.Feedback == "" {
		return base
	}

	previous, _ := json.Marshal(task.Script)
	return fmt.Sprintf(`%s

The previous version of the script is below for context:
%s

Reviewer feedback (this is the dominant constraint, rewrite the whole script to satisfy it):
%s`, base, string(previous), opts.Feedback)
}

// parseScript はモデル出力を正規化してから台本としてパースします。
// 戻り値の bool は正規化による修復が行われたかを示します。
func parseScript(raw string, maxScenes int) (*domain.Script, bool, error) {
	cleaned, normalized := NormalizeModelJSON(raw)

	var script domain.Script
	if err := json.Unmarshal([]byte(cleaned), &script); err != nil {
		return nil, normalized, fmt.Errorf("failed to unmarshal script: %w", err)
	}

	if script.Title == "" {
		return nil, normalized, fmt.Errorf("script has no title")
	}
	if len(script.Scenes) == 0 {
		return nil, normalized, fmt.Errorf("script has no scenes")
	}
	if maxScenes > 0 && len(script.Scenes) > maxScenes {
		script.Scenes = script.Scenes[:maxScenes]
	}
	for i := range script.Scenes {
		if script.Scenes[i].Narration == "" {
			return nil, normalized, fmt.Errorf("scene %d has empty narration", i)
		}
		script.Scenes[i].Index = i
	}

	return &script, normalized, nil
}
