package agents_test

import (
	"context"
	"strings"
	"testing"

	"ap-shorts-studio/internal/agents"
	"ap-shorts-studio/internal/domain"
	"ap-shorts-studio/internal/testsupport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passingScriptTask(person string) *domain.TaskContext {
	task := newTask(person)
	task.Script = &domain.Script{
		Title: "테스트 대본",
		Scenes: []domain.Scene{
			{Index: 0, Narration: "첫 번째 장면의 나레이션입니다.", ImagePrompt: "p0"},
			{Index: 1, Narration: "두 번째 장면의 나레이션입니다.", ImagePrompt: "p1"},
		},
	}
	return task
}

func TestReviewAgentSubjectValidation(t *testing.T) {
	cfg := testsupport.NewConfig()

	t.Run("generic noun subject is rejected before any other check", func(t *testing.T) {
		gen := &testsupport.ScriptedTextGenerator{
			Replies: []testsupport.TextReply{{Text: "9\n훌륭합니다."}},
		}
		agent := agents.NewReviewAgent(gen, cfg)
		task := passingScriptTask("엄마")

		result := agent.Execute(context.Background(), task, agents.Options{Stage: domain.StageScript})

		assert.False(t, result.Success)
		assert.True(t, result.NeedsImprovement)
		assert.Equal(t, []string{agents.TargetPerson}, result.Targets)
		assert.Equal(t, 0, gen.Calls, "subject rejection must not reach the paid tier")
	})

	t.Run("empty subject is rejected", func(t *testing.T) {
		agent := agents.NewReviewAgent(&testsupport.ScriptedTextGenerator{}, cfg)
		task := passingScriptTask("  ")

		result := agent.Execute(context.Background(), task, agents.Options{Stage: domain.StageScript})

		assert.True(t, result.HasTarget(agents.TargetPerson))
	})

	t.Run("a specific name passes subject validation", func(t *testing.T) {
		gen := &testsupport.ScriptedTextGenerator{
			Replies: []testsupport.TextReply{{Text: "9\n훌륭합니다."}},
		}
		agent := agents.NewReviewAgent(gen, cfg)
		task := passingScriptTask("이시영")

		result := agent.Execute(context.Background(), task, agents.Options{Stage: domain.StageScript})

		assert.True(t, result.Success)
		assert.Equal(t, 1, gen.Calls)
	})
}

func TestReviewAgentRuleTier(t *testing.T) {
	cfg := testsupport.NewConfig()

	t.Run("rule violation short-circuits the paid tier", func(t *testing.T) {
		gen := &testsupport.ScriptedTextGenerator{
			Replies: []testsupport.TextReply{{Text: "9\n훌륭합니다."}},
		}
		agent := agents.NewReviewAgent(gen, cfg)
		task := newTask("이시영")
		task.Script = &domain.Script{
			Title:  "짧음",
			Scenes: []domain.Scene{{Index: 0, Narration: "짧다."}},
		}

		result := agent.Execute(context.Background(), task, agents.Options{Stage: domain.StageScript})

		assert.False(t, result.Success)
		assert.True(t, result.NeedsImprovement)
		assert.Equal(t, []string{"script"}, result.Targets)
		assert.Equal(t, 0, gen.Calls, "rule failures must not reach the paid tier")
		assert.NotEmpty(t, task.FeedbackFor(domain.StageScript))
	})

	t.Run("subtitle rules flag captions in both duration directions", func(t *testing.T) {
		strict := testsupport.NewConfig()
		strict.CaptionMinSeconds = 0.8
		strict.CaptionMaxSeconds = 5.0
		gen := &testsupport.ScriptedTextGenerator{}
		agent := agents.NewReviewAgent(gen, strict)

		tests := []struct {
			name    string
			caption domain.Caption
		}{
			{"too short", domain.Caption{Text: "짧은 자막", Start: 0, End: 0.3}},
			{"too long", domain.Caption{Text: "긴 자막", Start: 0, End: 9.0}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				task := newTask("이시영")
				task.Subtitle = &domain.SubtitleData{
					Captions: []domain.Caption{tt.caption},
					Duration: 30,
				}
				result := agent.Execute(context.Background(), task, agents.Options{Stage: domain.StageSubtitle})
				assert.False(t, result.Success)
				assert.Contains(t, result.Feedback, "표시 시간")
			})
		}
		assert.Equal(t, 0, gen.Calls)
	})

	t.Run("image review is rule-only and never calls the model", func(t *testing.T) {
		gen := &testsupport.ScriptedTextGenerator{}
		agent := agents.NewReviewAgent(gen, cfg)
		task := passingScriptTask("이시영")
		task.Images = []string{"a.png", "b.png"}

		result := agent.Execute(context.Background(), task, agents.Options{Stage: domain.StageImage})

		assert.True(t, result.Success)
		assert.Equal(t, 0, gen.Calls)
	})

	t.Run("image review rejects below the acceptance ratio", func(t *testing.T) {
		agent := agents.NewReviewAgent(&testsupport.ScriptedTextGenerator{}, cfg)
		task := passingScriptTask("이시영")
		task.Images = []string{"a.png", ""}

		result := agent.Execute(context.Background(), task, agents.Options{Stage: domain.StageImage})

		assert.False(t, result.Success)
		assert.True(t, result.NeedsImprovement)
	})
}

func TestReviewAgentModelTier(t *testing.T) {
	cfg := testsupport.NewConfig()

	t.Run("score below threshold flags improvement with feedback", func(t *testing.T) {
		gen := &testsupport.ScriptedTextGenerator{
			Replies: []testsupport.TextReply{{Text: "5\n훅이 약하고 전개가 느립니다.", Cost: 0.002}},
		}
		agent := agents.NewReviewAgent(gen, cfg)
		task := passingScriptTask("이시영")

		result := agent.Execute(context.Background(), task, agents.Options{Stage: domain.StageScript})

		assert.False(t, result.Success)
		assert.True(t, result.NeedsImprovement)
		assert.Equal(t, []string{"script"}, result.Targets)
		assert.Contains(t, result.Feedback, "훅이 약하고")
		assert.Equal(t, "훅이 약하고 전개가 느립니다.", task.FeedbackFor(domain.StageScript))
		assert.InDelta(t, 0.002, result.Cost, 1e-9)
	})

	t.Run("unscorable reply is a parse failure", func(t *testing.T) {
		gen := &testsupport.ScriptedTextGenerator{
			Replies: []testsupport.TextReply{{Text: "좋은 것 같아요"}},
		}
		agent := agents.NewReviewAgent(gen, cfg)
		task := passingScriptTask("이시영")

		result := agent.Execute(context.Background(), task, agents.Options{Stage: domain.StageScript})

		assert.False(t, result.Success)
		assert.Equal(t, domain.FailureParse, result.Failure)
	})

	t.Run("review never increments the stage attempt counter", func(t *testing.T) {
		gen := &testsupport.ScriptedTextGenerator{
			Replies: []testsupport.TextReply{{Text: "9\n" + strings.Repeat("좋습니다. ", 3)}},
		}
		agent := agents.NewReviewAgent(gen, cfg)
		task := passingScriptTask("이시영")

		agent.Execute(context.Background(), task, agents.Options{Stage: domain.StageScript})

		assert.Equal(t, 0, task.AttemptsFor(domain.StageScript))
	})
}
