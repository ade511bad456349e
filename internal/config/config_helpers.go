package config

import (
	"fmt"
	"path"
	"strings"

	"github.com/shouni/netarmor/securenet"
)

// GetWorkDir は特定のジョブに対する一意の作業ディレクトリを返します。
// 例: "output/0b1f4c..."
func (c Config) GetWorkDir(taskID string) string {
	return path.Join(c.BaseOutputDir, taskID)
}

// GetImageDir はシーン画像保存用のサブディレクトリパスを返します。
func (c Config) GetImageDir(taskID string) string {
	return path.Join(c.GetWorkDir(taskID), "images")
}

// GetAudioDir はナレーション音声・字幕保存用のサブディレクトリパスを返します。
func (c Config) GetAudioDir(taskID string) string {
	return path.Join(c.GetWorkDir(taskID), "audio")
}

// GetGCSObjectURL は、指定されたパスから完全なGCSオブジェクトURL ("gs://...") を組み立てます。
// pathが既に "gs://" プレフィックスを持つ場合は、そのままpathを返します。
// c.GCSBucketが空文字列の場合は引数のpathをそのまま返します。
// これはローカルファイルシステムでの実行など、GCSを使用しないシナリオを想定しています。
func (c Config) GetGCSObjectURL(p string) string {
	if strings.HasPrefix(p, "gs://") {
		return p
	}
	if c.GCSBucket != "" {
		return fmt.Sprintf("gs://%s/%s", c.GCSBucket, p)
	}

	return p
}

// --- バリデーション ---

// Validate はアプリケーション実行に不可欠な設定を検証します。
func Validate(cfg *Config) error {
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("configuration error: GEMINI_API_KEY is not set")
	}

	if cfg.PublicBaseURL != "" && !IsSecureURL(cfg.PublicBaseURL) {
		return fmt.Errorf("security error: PUBLIC_BASE_URL ('%s') must be HTTPS in production", cfg.PublicBaseURL)
	}

	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("configuration error: MAX_ATTEMPTS must be at least 1 (got %d)", cfg.MaxAttempts)
	}

	if cfg.ImageWorkers < 1 {
		return fmt.Errorf("configuration error: IMAGE_WORKERS must be at least 1 (got %d)", cfg.ImageWorkers)
	}

	if cfg.ImageAcceptRatio <= 0 || cfg.ImageAcceptRatio > 1 {
		return fmt.Errorf("configuration error: IMAGE_ACCEPT_RATIO must be in (0, 1] (got %g)", cfg.ImageAcceptRatio)
	}

	if cfg.SpeechChunkLimit < 1 {
		return fmt.Errorf("configuration error: SPEECH_CHUNK_LIMIT must be positive (got %d)", cfg.SpeechChunkLimit)
	}

	if cfg.ReadingRate <= 0 {
		return fmt.Errorf("configuration error: READING_RATE must be positive (got %g)", cfg.ReadingRate)
	}

	if cfg.MinScenes < 1 || cfg.MaxScenes < cfg.MinScenes {
		return fmt.Errorf("configuration error: scene bounds are inconsistent (min=%d, max=%d)", cfg.MinScenes, cfg.MaxScenes)
	}

	return nil
}

// IsSecureURL は指定された URL が HTTPS または localhost であるか判定します。
func IsSecureURL(rawURL string) bool {
	return securenet.IsSecureServiceURL(rawURL)
}
