// Package testsupport はテスト専用のインメモリ実装を提供します。
// 外部コラボレーターは消費者側インターフェースで定義されているため、
// ここでの偽実装は最小で済みます。
package testsupport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"ap-shorts-studio/internal/adapters"
)

// --- テキスト生成 ---

// TextReply は ScriptedTextGenerator の応答 1 回分です。
type TextReply struct {
	Text string
	Cost float64
	Err  error
}

// ScriptedTextGenerator は事前登録された応答を順番に返す TextGenerator です。
// 応答が尽きた後は最後の応答を繰り返します。
type ScriptedTextGenerator struct {
	mu      sync.Mutex
	Replies []TextReply
	Calls   int
	// Prompts は受け取ったユーザープロンプトの記録です。
	Prompts []string
}

func (g *ScriptedTextGenerator) GenerateText(ctx context.Context, system, user string) (string, adapters.Usage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Calls++
	g.Prompts = append(g.Prompts, user)

	if len(g.Replies) == 0 {
		return "", adapters.Usage{}, fmt.Errorf("no scripted reply registered")
	}
	idx := g.Calls - 1
	if idx >= len(g.Replies) {
		idx = len(g.Replies) - 1
	}
	reply := g.Replies[idx]
	if reply.Err != nil {
		return "", adapters.Usage{}, reply.Err
	}
	return reply.Text, adapters.Usage{Cost: reply.Cost}, nil
}

// --- 音声合成 ---

// FakeSynthesizer は 1 ルーンあたり一定時間の PCM を返す SpeechSynthesizer です。
type FakeSynthesizer struct {
	mu    sync.Mutex
	Calls int
	// SecondsPerRune は 1 ルーンあたりの再生時間です。既定は 0.2 秒です。
	SecondsPerRune float64
	// FailSubstrings のいずれかを含むチャンクは合成に失敗します。
	FailSubstrings []string
}

const fakeSampleRate = 24000

func (s *FakeSynthesizer) Synthesize(ctx context.Context, text string, voice adapters.VoiceConfig) (*adapters.AudioClip, error) {
	s.mu.Lock()
	s.Calls++
	s.mu.Unlock()

	for _, sub := range s.FailSubstrings {
		if strings.Contains(text, sub) {
			return nil, fmt.Errorf("synthesis refused for test chunk")
		}
	}

	perRune := s.SecondsPerRune
	if perRune == 0 {
		perRune = 0.2
	}
	seconds := float64(utf8.RuneCountInString(text)) * perRune
	size := int(seconds * fakeSampleRate * 2)
	if size%2 != 0 {
		size++
	}
	return &adapters.AudioClip{
		Data:       make([]byte, size),
		MIMEType:   "audio/L16;codec=pcm;rate=24000",
		SampleRate: fakeSampleRate,
	}, nil
}

// --- 画像生成 ---

// FakeImageGenerator はプロンプト内容で成否を切り替えられる ImageGenerator です。
type FakeImageGenerator struct {
	mu    sync.Mutex
	Calls int
	// Prompts は受け取ったプロンプトの記録です。
	Prompts []string
	// FailSubstrings のいずれかを含むプロンプトは生成に失敗します。
	FailSubstrings []string
	CostPerCall    float64
}

func (g *FakeImageGenerator) GenerateImage(ctx context.Context, prompt string, opts adapters.ImageOptions) ([]byte, adapters.Usage, error) {
	g.mu.Lock()
	g.Calls++
	g.Prompts = append(g.Prompts, prompt)
	g.mu.Unlock()

	usage := adapters.Usage{Cost: g.CostPerCall}
	for _, sub := range g.FailSubstrings {
		if strings.Contains(prompt, sub) {
			return nil, usage, fmt.Errorf("image generation refused for test prompt")
		}
	}
	return []byte("png-bytes:" + prompt), usage, nil
}

// --- ストレージ ---

// MemoryArtifactStore はマップベースの ArtifactStore です。
type MemoryArtifactStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{objects: make(map[string][]byte)}
}

func (s *MemoryArtifactStore) Write(ctx context.Context, path string, r io.Reader, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = data
	return nil
}

func (s *MemoryArtifactStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryArtifactStore) Exists(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[path]
	return ok, nil
}

// Get はテストの検証用に保存済みオブジェクトを返します。
func (s *MemoryArtifactStore) Get(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	return data, ok
}

// Paths は保存済みオブジェクトのパス一覧を返します。
func (s *MemoryArtifactStore) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.objects))
	for p := range s.objects {
		paths = append(paths, p)
	}
	return paths
}
