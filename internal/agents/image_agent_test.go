package agents_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"ap-shorts-studio/internal/agents"
	"ap-shorts-studio/internal/domain"
	"ap-shorts-studio/internal/imagecache"
	"ap-shorts-studio/internal/testsupport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taskWithScenes(n int) *domain.TaskContext {
	task := newTask("이시영")
	script := &domain.Script{Title: "테스트 대본"}
	for i := 0; i < n; i++ {
		script.Scenes = append(script.Scenes, domain.Scene{
			Index:       i,
			Narration:   fmt.Sprintf("장면 %d의 나레이션입니다.", i),
			ImagePrompt: fmt.Sprintf("prompt-for-scene-%d", i),
		})
	}
	task.Script = script
	return task
}

func bytesReader(s string) io.Reader {
	return strings.NewReader(s)
}

func generateAllPlan(task *domain.TaskContext) *imagecache.Plan {
	plan := &imagecache.Plan{IssueType: task.IssueType}
	for _, scene := range task.Script.Scenes {
		plan.Scenes = append(plan.Scenes, imagecache.ScenePlan{
			Scene:  scene.Index,
			Action: imagecache.ActionGenerate,
			Prompt: scene.ImagePrompt,
		})
	}
	return plan
}

func TestImageAgentExecute(t *testing.T) {
	cfg := testsupport.NewConfig()

	t.Run("four of five scenes meets the 80 percent threshold", func(t *testing.T) {
		gen := &testsupport.FakeImageGenerator{
			CostPerCall:    0.05,
			FailSubstrings: []string{"prompt-for-scene-4"},
		}
		store := testsupport.NewMemoryArtifactStore()
		cache := imagecache.NewMemoryStore()
		agent := agents.NewImageAgent(gen, store, cache, cfg)
		task := taskWithScenes(5)

		result := agent.Execute(context.Background(), task, agents.Options{Plan: generateAllPlan(task)})

		require.True(t, result.Success)
		assert.Equal(t, []int{4}, result.FailedScenes)
		require.Len(t, task.Images, 5)
		for i := 0; i < 4; i++ {
			assert.NotEmpty(t, task.Images[i], "scene %d should have an image", i)
		}
		assert.Empty(t, task.Images[4])

		// 失敗呼び出しの分も含め、コストは厳密に加算されます。
		assert.InDelta(t, 5*0.05, result.Cost, 1e-9)
	})

	t.Run("three of five scenes is below the threshold", func(t *testing.T) {
		gen := &testsupport.FakeImageGenerator{
			FailSubstrings: []string{"prompt-for-scene-1", "prompt-for-scene-3"},
		}
		agent := agents.NewImageAgent(gen, testsupport.NewMemoryArtifactStore(), imagecache.NewMemoryStore(), cfg)
		task := taskWithScenes(5)

		result := agent.Execute(context.Background(), task, agents.Options{Plan: generateAllPlan(task)})

		assert.False(t, result.Success)
		assert.Equal(t, domain.FailureQuality, result.Failure)
		assert.Equal(t, []int{1, 3}, result.FailedScenes)
	})

	t.Run("successful non-hook generations are written back to the cache", func(t *testing.T) {
		gen := &testsupport.FakeImageGenerator{}
		cache := imagecache.NewMemoryStore()
		agent := agents.NewImageAgent(gen, testsupport.NewMemoryArtifactStore(), cache, cfg)
		task := taskWithScenes(3)

		result := agent.Execute(context.Background(), task, agents.Options{Plan: generateAllPlan(task)})
		require.True(t, result.Success)

		_, hookCached := cache.Get(context.Background(), imagecache.Key{IssueType: "논란", Scene: 0})
		assert.False(t, hookCached, "the hook scene must never be cached")

		for scene := 1; scene < 3; scene++ {
			entry, ok := cache.Get(context.Background(), imagecache.Key{IssueType: "논란", Scene: scene})
			require.True(t, ok, "scene %d should be cached", scene)
			assert.Equal(t, 1, entry.SuccessCount)
			assert.NotEmpty(t, entry.ImagePath)
		}
	})

	t.Run("failed prompts are blacklisted", func(t *testing.T) {
		gen := &testsupport.FakeImageGenerator{FailSubstrings: []string{"prompt-for-scene-2"}}
		cache := imagecache.NewMemoryStore()
		agent := agents.NewImageAgent(gen, testsupport.NewMemoryArtifactStore(), cache, cfg)
		task := taskWithScenes(5)

		agent.Execute(context.Background(), task, agents.Options{Plan: generateAllPlan(task)})

		_, listed := cache.Blacklisted(context.Background(), "prompt-for-scene-2")
		assert.True(t, listed)
	})

	t.Run("reuse copies the cached object without a paid call", func(t *testing.T) {
		gen := &testsupport.FakeImageGenerator{CostPerCall: 0.05}
		store := testsupport.NewMemoryArtifactStore()
		require.NoError(t, store.Write(context.Background(), "cached/scene1.png", bytesReader("old-png"), "image/png"))
		agent := agents.NewImageAgent(gen, store, imagecache.NewMemoryStore(), cfg)
		task := taskWithScenes(2)

		plan := &imagecache.Plan{
			IssueType: task.IssueType,
			Scenes: []imagecache.ScenePlan{
				{Scene: 0, Action: imagecache.ActionGenerate, Prompt: "prompt-for-scene-0"},
				{Scene: 1, Action: imagecache.ActionReuse, SourcePath: "cached/scene1.png"},
			},
		}
		result := agent.Execute(context.Background(), task, agents.Options{Plan: plan})

		require.True(t, result.Success)
		assert.Equal(t, 1, gen.Calls, "the reused scene must not trigger generation")
		assert.InDelta(t, 0.05, result.Cost, 1e-9)

		copied, ok := store.Get(task.Images[1])
		require.True(t, ok)
		assert.Equal(t, "old-png", string(copied))
	})

	t.Run("regeneration bypasses the plan and merges by scene number", func(t *testing.T) {
		gen := &testsupport.FakeImageGenerator{FailSubstrings: []string{"prompt-for-scene-4"}}
		store := testsupport.NewMemoryArtifactStore()
		cache := imagecache.NewMemoryStore()
		agent := agents.NewImageAgent(gen, store, cache, cfg)
		task := taskWithScenes(5)

		first := agent.Execute(context.Background(), task, agents.Options{Plan: generateAllPlan(task)})
		require.True(t, first.Success)
		require.Equal(t, []int{4}, first.FailedScenes)
		kept := task.Images[0]

		gen.FailSubstrings = nil
		second := agent.Execute(context.Background(), task, agents.Options{
			RegenerateScenes: []int{4},
			Feedback:         "장면 4의 구도가 어색합니다.",
		})

		require.True(t, second.Success)
		assert.Empty(t, second.FailedScenes)
		assert.Equal(t, kept, task.Images[0], "untouched scenes keep their images")
		assert.NotEmpty(t, task.Images[4])
		assert.Contains(t, gen.Prompts[len(gen.Prompts)-1], "Reviewer feedback (must address)")
		assert.Contains(t, gen.Prompts[len(gen.Prompts)-1], "장면 4의 구도가 어색합니다")
	})
}
