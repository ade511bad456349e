package supervisor_test

import (
	"context"
	"errors"
	"testing"

	"ap-shorts-studio/internal/agents"
	"ap-shorts-studio/internal/config"
	"ap-shorts-studio/internal/domain"
	"ap-shorts-studio/internal/imagecache"
	"ap-shorts-studio/internal/supervisor"
	"ap-shorts-studio/internal/testsupport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scriptJSON = `{
  "title": "이시영, 논란의 전말",
  "scenes": [
    {"narration": "이시영을 둘러싼 논란이 시작됐습니다.", "image_prompt": "prompt-scene-0"},
    {"narration": "사건의 발단은 한 장의 사진이었습니다.", "image_prompt": "prompt-scene-1"},
    {"narration": "팬들의 반응은 극명하게 갈렸습니다.", "image_prompt": "prompt-scene-2"}
  ]
}`

// harness はジョブ 1 本分のフェイク一式です。
type harness struct {
	cfg       *config.Config
	genScript *testsupport.ScriptedTextGenerator
	genReview *testsupport.ScriptedTextGenerator
	synth     *testsupport.FakeSynthesizer
	imageGen  *testsupport.FakeImageGenerator
	storage   *testsupport.MemoryArtifactStore
	cache     *imagecache.MemoryStore
	sup       *supervisor.Supervisor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		cfg: testsupport.NewConfig(),
		genScript: &testsupport.ScriptedTextGenerator{
			Replies: []testsupport.TextReply{{Text: scriptJSON, Cost: 0.01}},
		},
		genReview: &testsupport.ScriptedTextGenerator{
			Replies: []testsupport.TextReply{{Text: "9\n훌륭한 구성입니다.", Cost: 0.002}},
		},
		synth:    &testsupport.FakeSynthesizer{SecondsPerRune: 0.2},
		imageGen: &testsupport.FakeImageGenerator{CostPerCall: 0.05},
		storage:  testsupport.NewMemoryArtifactStore(),
		cache:    imagecache.NewMemoryStore(),
	}

	planner := imagecache.NewPlanner(h.cache, &imagecache.TemplateSet{}, h.storage)
	h.sup = supervisor.NewSupervisor(
		agents.NewScriptAgent(h.genScript, h.cfg),
		agents.NewSubtitleAgent(h.synth, h.storage, h.cfg),
		agents.NewImageAgent(h.imageGen, h.storage, h.cache, h.cfg),
		agents.NewReviewAgent(h.genReview, h.cfg),
		planner,
		h.cfg,
	)
	return h
}

func produceRequest(person string) domain.ProduceRequest {
	return domain.ProduceRequest{
		Topic:     "이시영 관련 논란 정리",
		Person:    person,
		Category:  "논란",
		IssueType: "논란",
	}
}

func TestProduceHappyPath(t *testing.T) {
	h := newHarness(t)

	result, err := h.sup.Produce(context.Background(), produceRequest("이시영"))

	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotNil(t, result.Script)
	assert.Equal(t, "이시영, 논란의 전말", result.Script.Title)
	require.NotNil(t, result.Subtitle)
	assert.NotEmpty(t, result.Subtitle.AudioPath)
	require.Len(t, result.Images, 3)
	for i, p := range result.Images {
		assert.NotEmpty(t, p, "scene %d should have an image", i)
	}

	assert.Equal(t, 1, result.Attempts[domain.StageScript])
	assert.Equal(t, 1, result.Attempts[domain.StageSubtitle])
	assert.Equal(t, 1, result.Attempts[domain.StageImage])

	// コストはすべての AgentResult の厳密な合算です:
	// 台本 0.01 + 台本レビュー 0.002 + 音声 3×0.01 + 字幕レビュー 0.002
	// + 画像 3×0.05 + 画像レビュー 0（ルールのみ）
	assert.InDelta(t, 0.01+0.002+0.03+0.002+0.15, result.TotalCost, 1e-9)

	// 画像レビューはモデルを呼ばないため、有償レビューは 2 回です。
	assert.Equal(t, 2, h.genReview.Calls)
	assert.NotEmpty(t, result.Log)
}

func TestProduceHaltsOnGenericSubject(t *testing.T) {
	h := newHarness(t)

	result, err := h.sup.Produce(context.Background(), produceRequest("엄마"))

	require.ErrorIs(t, err, supervisor.ErrInvalidSubject)
	require.NotNil(t, result, "a partial result is returned alongside the error")
	assert.NotNil(t, result.Script, "the generated script survives in the partial result")

	assert.Equal(t, 1, result.Attempts[domain.StageScript])
	assert.Zero(t, result.Attempts[domain.StageSubtitle])
	assert.Zero(t, result.Attempts[domain.StageImage])
	assert.Equal(t, 0, h.synth.Calls, "no later phase may run after subject rejection")
	assert.Equal(t, 0, h.imageGen.Calls)
}

func TestProduceDegradesAfterAttemptCeiling(t *testing.T) {
	h := newHarness(t)
	h.genReview.Replies = []testsupport.TextReply{{Text: "5\n더 강한 훅이 필요합니다.", Cost: 0.002}}

	result, err := h.sup.Produce(context.Background(), produceRequest("이시영"))

	require.NoError(t, err, "quality exhaustion degrades, it does not abort")
	assert.Equal(t, h.cfg.MaxAttempts, result.Attempts[domain.StageScript])
	assert.Equal(t, h.cfg.MaxAttempts, result.Attempts[domain.StageSubtitle])
	assert.NotNil(t, result.Script, "the last artifact is kept on exhaustion")
	assert.NotNil(t, result.Subtitle)

	// 2 回目以降の台本生成にはレビューフィードバックが織り込まれます。
	require.GreaterOrEqual(t, h.genScript.Calls, 2)
	assert.Contains(t, h.genScript.Prompts[1], "더 강한 훅이 필요합니다")

	// 画像レビューはルールのみのため、画像フェーズは 1 回で確定します。
	assert.Equal(t, 1, result.Attempts[domain.StageImage])
}

func TestProduceFatalWhenScriptStageStaysEmpty(t *testing.T) {
	h := newHarness(t)
	h.genScript.Replies = []testsupport.TextReply{{Err: errors.New("upstream unavailable")}}

	result, err := h.sup.Produce(context.Background(), produceRequest("이시영"))

	var stageErr *supervisor.ErrStageEmpty
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, domain.StageScript, stageErr.Stage)

	require.NotNil(t, result)
	assert.Nil(t, result.Script)
	assert.Equal(t, h.cfg.MaxAttempts, result.Attempts[domain.StageScript])
	assert.Equal(t, 0, h.genReview.Calls, "failed generations never reach review")
	assert.Equal(t, 0, h.synth.Calls)
}

func TestProduceJoinsEmptyImageStageIntoFinalError(t *testing.T) {
	h := newHarness(t)
	h.imageGen.FailSubstrings = []string{"prompt-scene"}

	result, err := h.sup.Produce(context.Background(), produceRequest("이시영"))

	var stageErr *supervisor.ErrStageEmpty
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, domain.StageImage, stageErr.Stage)

	// ジョブ自体は完走しており、上流のアーティファクトは揃っています。
	require.NotNil(t, result)
	assert.NotNil(t, result.Script)
	assert.NotNil(t, result.Subtitle)
	assert.Equal(t, h.cfg.MaxAttempts, result.Attempts[domain.StageImage])
}

func TestProduceRespectsPerJobAttemptOverride(t *testing.T) {
	h := newHarness(t)
	h.genReview.Replies = []testsupport.TextReply{{Text: "5\n부족합니다.", Cost: 0}}

	req := produceRequest("이시영")
	req.Options.MaxAttempts = 1
	result, err := h.sup.Produce(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Attempts[domain.StageScript])
	assert.Equal(t, 1, result.Attempts[domain.StageSubtitle])
}

func TestAnalyzeRoster(t *testing.T) {
	h := newHarness(t)
	report := h.sup.AnalyzeRoster()
	assert.True(t, report.Complete)
	assert.Empty(t, report.Missing)

	incomplete := supervisor.NewSupervisor(
		agents.NewScriptAgent(h.genScript, h.cfg),
		nil,
		nil,
		agents.NewReviewAgent(h.genReview, h.cfg),
		imagecache.NewPlanner(h.cache, &imagecache.TemplateSet{}, h.storage),
		h.cfg,
	)
	report = incomplete.AnalyzeRoster()
	assert.False(t, report.Complete)
	assert.ElementsMatch(t, []agents.Role{agents.RoleSubtitle, agents.RoleImage}, report.Missing)
}
