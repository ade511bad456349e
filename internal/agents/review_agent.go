package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"ap-shorts-studio/internal/adapters"
	"ap-shorts-studio/internal/config"
	"ap-shorts-studio/internal/domain"
)

const reviewAgentName = "ReviewAgent"

// TargetPerson は主題バリデーション失敗時の再生成対象名です。
// アーティファクトではなくジョブ入力そのものの問題を表します。
const TargetPerson = "person"

const reviewSystemInstruction = `You are a strict quality reviewer for short-form video content.
Score the given artifact from 1 to 10 for hook strength, clarity, and
factual tone. Reply with the numeric score on the first line, followed
by one short paragraph of concrete, actionable feedback in Korean.`

// genericSubjects は主題として認めない一般名詞です。特定の個人を
// 指さない語がここに載ります。照合は完全一致です。
var genericSubjects = map[string]struct{}{
	"엄마": {}, "아빠": {}, "어머니": {}, "아버지": {},
	"할머니": {}, "할아버지": {}, "남편": {}, "아내": {},
	"시어머니": {}, "며느리": {}, "사람": {}, "인물": {},
	"친구": {}, "남자": {}, "여자": {}, "사장": {},
	"의사": {}, "선생님": {}, "직원": {}, "연예인": {},
	"누군가": {}, "모씨": {}, "아무개": {},
}

var scorePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

// ReviewAgent は 3 層の審査を順に適用します。
//  0. 主題バリデーション（無償）: 主題が特定の個人か
//  1. ルールベース審査（無償）: 長さ・行数などの機械的な境界
//  2. モデル採点（有償）: 1〜10 の品質スコア
//
// 下位の層で不合格なら上位の有償審査は呼ばれません。
type ReviewAgent struct {
	gen adapters.TextGenerator
	cfg *config.Config
}

func NewReviewAgent(gen adapters.TextGenerator, cfg *config.Config) *ReviewAgent {
	return &ReviewAgent{
		gen: gen,
		cfg: cfg,
	}
}

func (a *ReviewAgent) Name() string { return reviewAgentName }
func (a *ReviewAgent) Role() Role   { return RoleReview }

// Execute は opts.Stage のアーティファクトを審査します。
// レビューは生成の試行ではないため、試行カウンタは増やしません。
func (a *ReviewAgent) Execute(ctx context.Context, task *domain.TaskContext, opts Options) *domain.AgentResult {
	started := time.Now()

	// 層 0: 主題バリデーション。不合格ならアーティファクトの出来に
	// かかわらず差し戻します。
	if reason, ok := validateSubject(task.Person); !ok {
		task.AppendLog(reviewAgentName, "review_"+string(opts.Stage), "rejected_subject", reason)
		result := failure(domain.FailureQuality, reason, 0, started)
		result.NeedsImprovement = true
		result.Targets = []string{TargetPerson}
		result.Feedback = reason
		return result
	}

	// 層 1: ルールベース審査。
	if violations := a.checkRules(task, opts.Stage); len(violations) > 0 {
		feedback := strings.Join(violations, " / ")
		task.SetFeedback(opts.Stage, feedback)
		task.AppendLog(reviewAgentName, "review_"+string(opts.Stage), "rejected_rules", feedback)
		result := failure(domain.FailureQuality, "rule check failed", 0, started)
		result.NeedsImprovement = true
		result.Targets = []string{string(opts.Stage)}
		result.Feedback = feedback
		return result
	}

	// 層 2: モデル採点。画像はテキスト審査の対象外のため、
	// ルール審査の通過をもって合格とします。
	if opts.Stage == domain.StageImage {
		task.AppendLog(reviewAgentName, "review_image", "approved", "rule check passed")
		return success(0, started)
	}

	return a.scoreWithModel(ctx, task, opts.Stage, started)
}

// scoreWithModel は有償のモデル採点を行い、閾値未満なら差し戻します。
func (a *ReviewAgent) scoreWithModel(ctx context.Context, task *domain.TaskContext, stage domain.Stage, started time.Time) *domain.AgentResult {
	artifact, err := a.artifactJSON(task, stage)
	if err != nil {
		return failure(domain.FailureParse, err.Error(), 0, started)
	}

	user := fmt.Sprintf("Topic: %s\nSubject person: %s\nArtifact kind: %s\n\nArtifact:\n%s",
		task.Topic, task.Person, stage, artifact)

	reply, usage, err := a.gen.GenerateText(ctx, reviewSystemInstruction, user)
	if err != nil {
		task.AppendLog(reviewAgentName, "review_"+string(stage), "failed", err.Error())
		return failure(domain.FailureTransport, err.Error(), usage.Cost, started)
	}

	score, feedback, err := parseReview(reply)
	if err != nil {
		task.AppendLog(reviewAgentName, "review_"+string(stage), "parse_failed", err.Error())
		return failure(domain.FailureParse, err.Error(), usage.Cost, started)
	}

	if score < a.cfg.ReviewThreshold {
		task.SetFeedback(stage, feedback)
		task.AppendLog(reviewAgentName, "review_"+string(stage), "rejected_score",
			fmt.Sprintf("score=%.1f threshold=%.1f", score, a.cfg.ReviewThreshold))
		result := failure(domain.FailureQuality,
			fmt.Sprintf("quality score %.1f is below threshold %.1f", score, a.cfg.ReviewThreshold),
			usage.Cost, started)
		result.NeedsImprovement = true
		result.Targets = []string{string(stage)}
		result.Feedback = feedback
		return result
	}

	task.AppendLog(reviewAgentName, "review_"+string(stage), "approved", fmt.Sprintf("score=%.1f", score))
	return success(usage.Cost, started)
}

func (a *ReviewAgent) artifactJSON(task *domain.TaskContext, stage domain.Stage) (string, error) {
	var v any
	switch stage {
	case domain.StageScript:
		v = task.Script
	case domain.StageSubtitle:
		v = task.Subtitle
	default:
		return "", fmt.Errorf("no scorable artifact for stage %q", stage)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize artifact for review: %w", err)
	}
	return string(data), nil
}

// checkRules はステージごとの機械的な境界チェックです。
// 違反は人間可読な指摘としてすべて列挙されます。
func (a *ReviewAgent) checkRules(task *domain.TaskContext, stage domain.Stage) []string {
	switch stage {
	case domain.StageScript:
		return a.checkScriptRules(task.Script)
	case domain.StageSubtitle:
		return a.checkSubtitleRules(task.Subtitle)
	case domain.StageImage:
		return a.checkImageRules(task)
	}
	return []string{fmt.Sprintf("unknown review stage %q", stage)}
}

func (a *ReviewAgent) checkScriptRules(script *domain.Script) []string {
	if script == nil {
		return []string{"대본이 없습니다"}
	}
	var violations []string
	if chars := script.TotalChars(); chars < a.cfg.ScriptMinChars || chars > a.cfg.ScriptMaxChars {
		violations = append(violations,
			fmt.Sprintf("대본 길이 %d자는 허용 범위(%d~%d자)를 벗어났습니다", chars, a.cfg.ScriptMinChars, a.cfg.ScriptMaxChars))
	}
	if n := script.SceneCount(); n < a.cfg.MinScenes || n > a.cfg.MaxScenes {
		violations = append(violations,
			fmt.Sprintf("장면 수 %d개는 허용 범위(%d~%d개)를 벗어났습니다", n, a.cfg.MinScenes, a.cfg.MaxScenes))
	}
	return violations
}

func (a *ReviewAgent) checkSubtitleRules(subtitle *domain.SubtitleData) []string {
	if subtitle == nil {
		return []string{"자막 데이터가 없습니다"}
	}
	var violations []string
	if subtitle.Duration < a.cfg.MinDuration || subtitle.Duration > a.cfg.MaxDuration {
		violations = append(violations,
			fmt.Sprintf("전체 길이 %.1f초는 허용 범위(%.0f~%.0f초)를 벗어났습니다", subtitle.Duration, a.cfg.MinDuration, a.cfg.MaxDuration))
	}
	if len(subtitle.Captions) < a.cfg.MinCaptions {
		violations = append(violations,
			fmt.Sprintf("자막 줄 수 %d개는 최소 기준(%d개)에 못 미칩니다", len(subtitle.Captions), a.cfg.MinCaptions))
	}
	for i, c := range subtitle.Captions {
		if utf8.RuneCountInString(c.Text) > a.cfg.CaptionMaxChars {
			violations = append(violations,
				fmt.Sprintf("%d번째 자막이 한 줄 최대 길이(%d자)를 초과합니다", i, a.cfg.CaptionMaxChars))
			break
		}
	}
	for i, c := range subtitle.Captions {
		display := c.End - c.Start
		if display < a.cfg.CaptionMinSeconds || display > a.cfg.CaptionMaxSeconds {
			violations = append(violations,
				fmt.Sprintf("%d번째 자막 표시 시간 %.2f초는 허용 범위(%.1f~%.1f초)를 벗어났습니다", i, display, a.cfg.CaptionMinSeconds, a.cfg.CaptionMaxSeconds))
			break
		}
	}
	return violations
}

func (a *ReviewAgent) checkImageRules(task *domain.TaskContext) []string {
	if task.Script == nil || task.Script.SceneCount() == 0 {
		return []string{"이미지를 검토할 대본이 없습니다"}
	}
	expected := task.Script.SceneCount()
	produced := 0
	for _, p := range task.Images {
		if p != "" {
			produced++
		}
	}
	if ratio := float64(produced) / float64(expected); ratio < a.cfg.ImageAcceptRatio {
		return []string{fmt.Sprintf("장면 이미지 %d/%d장만 생성되어 기준(%.0f%%)에 못 미칩니다",
			produced, expected, a.cfg.ImageAcceptRatio*100)}
	}
	return nil
}

// validateSubject は主題が特定の個人を指すかを判定します。
// 一般名詞やプレースホルダーは、どれだけ良い台本でも差し戻し対象です。
func validateSubject(person string) (string, bool) {
	trimmed := strings.TrimSpace(person)
	if trimmed == "" {
		return "주제 인물이 비어 있습니다. 특정 인물의 실명이 필요합니다", false
	}
	if _, generic := genericSubjects[trimmed]; generic {
		return fmt.Sprintf("'%s'은(는) 특정 인물이 아닌 일반 명사입니다. 실명을 지정해 주세요", trimmed), false
	}
	return "", true
}

// parseReview は採点応答から先頭のスコアと残りのフィードバックを取り出します。
func parseReview(reply string) (float64, string, error) {
	match := scorePattern.FindStringIndex(reply)
	if match == nil {
		return 0, "", fmt.Errorf("review reply contains no numeric score")
	}
	score, err := strconv.ParseFloat(reply[match[0]:match[1]], 64)
	if err != nil {
		return 0, "", fmt.Errorf("failed to parse review score: %w", err)
	}
	if score < 1 || score > 10 {
		return 0, "", fmt.Errorf("review score %g is outside the 1-10 range", score)
	}
	feedback := strings.TrimSpace(reply[match[1]:])
	return score, feedback, nil
}
