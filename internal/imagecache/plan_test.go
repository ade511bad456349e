package imagecache_test

import (
	"bytes"
	"context"
	"testing"

	"ap-shorts-studio/internal/domain"
	"ap-shorts-studio/internal/imagecache"
	"ap-shorts-studio/internal/testsupport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const templateYAML = `
issue_types:
  논란:
    scenes:
      1: "newsroom scene about {person}, topic {topic}"
`

func plannerTask() *domain.TaskContext {
	task := domain.NewTaskContext(domain.ProduceRequest{
		Topic:     "이시영 관련 논란 정리",
		Person:    "이시영",
		IssueType: "논란",
	})
	task.Script = &domain.Script{
		Title: "테스트",
		Scenes: []domain.Scene{
			{Index: 0, Narration: "훅", ImagePrompt: "hook-prompt"},
			{Index: 1, Narration: "전개", ImagePrompt: "scene1-prompt"},
			{Index: 2, Narration: "결말", ImagePrompt: "scene2-prompt"},
		},
	}
	return task
}

func TestPlannerBuildPlan(t *testing.T) {
	ctx := context.Background()
	templates, err := imagecache.ParseTemplateSet([]byte(templateYAML))
	require.NoError(t, err)

	t.Run("hook scene always generates even when cached", func(t *testing.T) {
		storage := testsupport.NewMemoryArtifactStore()
		cache := imagecache.NewMemoryStore()
		require.NoError(t, storage.Write(ctx, "cached/hook.png", bytes.NewReader([]byte("png")), "image/png"))
		require.NoError(t, cache.Put(ctx, imagecache.Key{IssueType: "논란", Scene: 0},
			imagecache.Entry{Prompt: "p", ImagePath: "cached/hook.png"}))

		plan := imagecache.NewPlanner(cache, templates, storage).BuildPlan(ctx, plannerTask())

		require.Len(t, plan.Scenes, 3)
		assert.Equal(t, imagecache.ActionGenerate, plan.Scenes[0].Action)
		assert.Equal(t, "hook-prompt", plan.Scenes[0].Prompt)
	})

	t.Run("live cache entry wins over the template", func(t *testing.T) {
		storage := testsupport.NewMemoryArtifactStore()
		cache := imagecache.NewMemoryStore()
		require.NoError(t, storage.Write(ctx, "cached/scene1.png", bytes.NewReader([]byte("png")), "image/png"))
		require.NoError(t, cache.Put(ctx, imagecache.Key{IssueType: "논란", Scene: 1},
			imagecache.Entry{Prompt: "cached-prompt", ImagePath: "cached/scene1.png"}))

		plan := imagecache.NewPlanner(cache, templates, storage).BuildPlan(ctx, plannerTask())

		assert.Equal(t, imagecache.ActionReuse, plan.Scenes[1].Action)
		assert.Equal(t, "cached/scene1.png", plan.Scenes[1].SourcePath)
	})

	t.Run("stale cache entry falls through to the template", func(t *testing.T) {
		storage := testsupport.NewMemoryArtifactStore() // 参照先の画像は存在しません
		cache := imagecache.NewMemoryStore()
		require.NoError(t, cache.Put(ctx, imagecache.Key{IssueType: "논란", Scene: 1},
			imagecache.Entry{Prompt: "cached-prompt", ImagePath: "cached/gone.png"}))

		plan := imagecache.NewPlanner(cache, templates, storage).BuildPlan(ctx, plannerTask())

		assert.Equal(t, imagecache.ActionTemplate, plan.Scenes[1].Action)
		assert.Equal(t, "newsroom scene about 이시영, topic 이시영 관련 논란 정리", plan.Scenes[1].Prompt)
	})

	t.Run("no cache and no template means generate", func(t *testing.T) {
		plan := imagecache.NewPlanner(imagecache.NewMemoryStore(), templates, testsupport.NewMemoryArtifactStore()).
			BuildPlan(ctx, plannerTask())

		assert.Equal(t, imagecache.ActionGenerate, plan.Scenes[2].Action)
		assert.Equal(t, "scene2-prompt", plan.Scenes[2].Prompt)
	})

	t.Run("empty script yields an empty plan", func(t *testing.T) {
		task := plannerTask()
		task.Script = nil
		plan := imagecache.NewPlanner(imagecache.NewMemoryStore(), templates, testsupport.NewMemoryArtifactStore()).
			BuildPlan(ctx, task)
		assert.Empty(t, plan.Scenes)
	})
}

func TestTemplateSetLookupAndRender(t *testing.T) {
	templates, err := imagecache.ParseTemplateSet([]byte(templateYAML))
	require.NoError(t, err)

	tpl, ok := templates.Lookup("논란", 1)
	require.True(t, ok)
	rendered := imagecache.RenderTemplate(tpl, "이시영", "논란 정리")
	assert.Equal(t, "newsroom scene about 이시영, topic 논란 정리", rendered)

	_, ok = templates.Lookup("논란", 9)
	assert.False(t, ok)
	_, ok = templates.Lookup("없는유형", 1)
	assert.False(t, ok)
}
