package imagecache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"ap-shorts-studio/internal/adapters"

	gocache "github.com/patrickmn/go-cache"
)

// Key は画像キャッシュのキーです。同一 issue-type の同一シーン位置は
// 構図が再利用可能である、という前提に基づきます。
type Key struct {
	IssueType string
	Scene     int
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%03d", k.IssueType, k.Scene)
}

// Entry は過去に生成した画像 1 枚分のキャッシュレコードです。
type Entry struct {
	Prompt       string    `json:"prompt"`
	ImagePath    string    `json:"image_path"`
	SuccessCount int       `json:"success_count"`
	LastUsedAt   time.Time `json:"last_used_at"`
}

// BlacklistEntry は失敗したプロンプトの記録です。現状は参考情報であり、
// 生成前の照会には使われません（設計判断は DESIGN.md 参照）。
type BlacklistEntry struct {
	Reason     string    `json:"reason"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Store は画像キャッシュの永続化層です。モジュールレベルの可変状態ではなく、
// 明示的に構築して ImageAgent へ注入します。
type Store interface {
	Get(ctx context.Context, key Key) (Entry, bool)
	Put(ctx context.Context, key Key, entry Entry) error
	Blacklist(ctx context.Context, prompt, reason string) error
	Blacklisted(ctx context.Context, prompt string) (BlacklistEntry, bool)
}

// PromptHash は失敗プロンプトのブラックリストキーです。
func PromptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// --- インメモリ実装 ---

// MemoryStore は go-cache ベースのインメモリ Store です。
// テストおよびスナップショット実装の索引として使います。
type MemoryStore struct {
	entries   *gocache.Cache
	blacklist *gocache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:   gocache.New(gocache.NoExpiration, 0),
		blacklist: gocache.New(gocache.NoExpiration, 0),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key Key) (Entry, bool) {
	v, ok := s.entries.Get(key.String())
	if !ok {
		return Entry{}, false
	}
	entry, ok := v.(Entry)
	return entry, ok
}

func (s *MemoryStore) Put(ctx context.Context, key Key, entry Entry) error {
	s.entries.Set(key.String(), entry, gocache.NoExpiration)
	return nil
}

func (s *MemoryStore) Blacklist(ctx context.Context, prompt, reason string) error {
	s.blacklist.Set(PromptHash(prompt), BlacklistEntry{
		Reason:     reason,
		RecordedAt: time.Now(),
	}, gocache.NoExpiration)
	return nil
}

func (s *MemoryStore) Blacklisted(ctx context.Context, prompt string) (BlacklistEntry, bool) {
	v, ok := s.blacklist.Get(PromptHash(prompt))
	if !ok {
		return BlacklistEntry{}, false
	}
	entry, ok := v.(BlacklistEntry)
	return entry, ok
}

// snapshot は永続化用の直列化形式です。
type snapshot struct {
	Entries   map[string]Entry          `json:"entries"`
	Blacklist map[string]BlacklistEntry `json:"blacklist"`
}

func (s *MemoryStore) toSnapshot() snapshot {
	snap := snapshot{
		Entries:   make(map[string]Entry),
		Blacklist: make(map[string]BlacklistEntry),
	}
	for k, item := range s.entries.Items() {
		if entry, ok := item.Object.(Entry); ok {
			snap.Entries[k] = entry
		}
	}
	for k, item := range s.blacklist.Items() {
		if entry, ok := item.Object.(BlacklistEntry); ok {
			snap.Blacklist[k] = entry
		}
	}
	return snap
}

func (s *MemoryStore) loadSnapshot(snap snapshot) {
	for k, entry := range snap.Entries {
		s.entries.Set(k, entry, gocache.NoExpiration)
	}
	for k, entry := range snap.Blacklist {
		s.blacklist.Set(k, entry, gocache.NoExpiration)
	}
}

// --- 永続化実装 ---

// SnapshotStore はインメモリ索引を ArtifactStore 上の JSON スナップショットに
// 同期する Store です。破損したスナップショットはミス扱いで読み飛ばします。
// 書き込みはストア単位のミューテックスで直列化されるため、
// 複数ジョブで 1 つのストアを共有できます。
type SnapshotStore struct {
	mem     *MemoryStore
	storage adapters.ArtifactStore
	path    string
	mu      sync.Mutex
}

// NewSnapshotStore は既存のスナップショットがあれば読み込んで初期化します。
func NewSnapshotStore(ctx context.Context, storage adapters.ArtifactStore, path string) *SnapshotStore {
	s := &SnapshotStore{
		mem:     NewMemoryStore(),
		storage: storage,
		path:    path,
	}

	rc, err := storage.Open(ctx, path)
	if err != nil {
		return s // 初回実行。スナップショットはまだ存在しません。
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		slog.Warn("Failed to read cache snapshot, starting empty", "path", path, "error", err)
		return s
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("Cache snapshot is corrupted, starting empty", "path", path, "error", err)
		return s
	}
	s.mem.loadSnapshot(snap)
	return s
}

func (s *SnapshotStore) Get(ctx context.Context, key Key) (Entry, bool) {
	return s.mem.Get(ctx, key)
}

func (s *SnapshotStore) Put(ctx context.Context, key Key, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mem.Put(ctx, key, entry); err != nil {
		return err
	}
	return s.persist(ctx)
}

func (s *SnapshotStore) Blacklist(ctx context.Context, prompt, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mem.Blacklist(ctx, prompt, reason); err != nil {
		return err
	}
	return s.persist(ctx)
}

func (s *SnapshotStore) Blacklisted(ctx context.Context, prompt string) (BlacklistEntry, bool) {
	return s.mem.Blacklisted(ctx, prompt)
}

func (s *SnapshotStore) persist(ctx context.Context) error {
	data, err := json.MarshalIndent(s.mem.toSnapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache snapshot: %w", err)
	}
	if err := s.storage.Write(ctx, s.path, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("failed to persist cache snapshot: %w", err)
	}
	return nil
}
