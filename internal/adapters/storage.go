package adapters

import (
	"context"
	"fmt"
	"io"

	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// ArtifactStore は成果物（音声・画像・字幕・キャッシュ索引）の
// 読み書きを抽象化します。本番では GCS ベースの remote-io 実装を、
// テストではインメモリ実装を注入します。
type ArtifactStore interface {
	Write(ctx context.Context, path string, r io.Reader, contentType string) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// RemoteStore は go-remote-io の Reader/Writer を ArtifactStore に適合させます。
type RemoteStore struct {
	reader remoteio.InputReader
	writer remoteio.OutputWriter
}

// NewRemoteStore は GCS ファクトリから取得した Reader/Writer を受け取ります。
func NewRemoteStore(reader remoteio.InputReader, writer remoteio.OutputWriter) *RemoteStore {
	return &RemoteStore{
		reader: reader,
		writer: writer,
	}
}

func (s *RemoteStore) Write(ctx context.Context, path string, r io.Reader, contentType string) error {
	if err := s.writer.Write(ctx, path, r, contentType); err != nil {
		return fmt.Errorf("failed to write artifact (path: %s): %w", path, err)
	}
	return nil
}

func (s *RemoteStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	rc, err := s.reader.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact (path: %s): %w", path, err)
	}
	return rc, nil
}

// Exists はオブジェクトの存在確認を行います。remote-io は Open の成否で
// 判定する以外の手段を公開していないため、開いてすぐ閉じます。
func (s *RemoteStore) Exists(ctx context.Context, path string) (bool, error) {
	rc, err := s.reader.Open(ctx, path)
	if err != nil {
		return false, nil
	}
	_ = rc.Close()
	return true, nil
}

// CopyObject はストア内のオブジェクトを別パスへ複製します。
// キャッシュヒット時の再利用はこの複製で実現します。
func CopyObject(ctx context.Context, store ArtifactStore, src, dst, contentType string) error {
	rc, err := store.Open(ctx, src)
	if err != nil {
		return fmt.Errorf("copy source open failed: %w", err)
	}
	defer rc.Close()

	if err := store.Write(ctx, dst, rc, contentType); err != nil {
		return fmt.Errorf("copy destination write failed: %w", err)
	}
	return nil
}
