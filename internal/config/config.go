package config

import (
	"os"
	"strconv"
	"time"
)

const (
	DefaultTextModel   = "gemini-3-flash-preview"
	DefaultImageModel  = "gemini-2.5-flash-image"
	DefaultSpeechModel = "gemini-2.5-flash-preview-tts"
	DefaultVoiceName   = "Kore"

	// DefaultTextTimeout 台本生成・品質採点の応答を考慮したタイムアウト
	DefaultTextTimeout = 60 * time.Second
	// DefaultImageTimeout 画像生成はテキストより遅いため長めに取ります
	DefaultImageTimeout  = 120 * time.Second
	DefaultSpeechTimeout = 60 * time.Second

	// DefaultMaxAttempts 各ステージの生成→レビューの試行上限
	DefaultMaxAttempts = 3
	// DefaultImageWorkers シーン画像を並列生成するワーカー数
	DefaultImageWorkers = 3
	// DefaultImageAcceptRatio 成功シーン比がこの値以上ならフェーズを合格とみなす
	DefaultImageAcceptRatio = 0.8

	// DefaultSpeechChunkLimit 音声合成 1 回あたりのペイロード上限（バイト）。
	// 合成側の上限は呼び出し元に開示されないため、安全側でチャンク分割します。
	DefaultSpeechChunkLimit = 1800
	// DefaultReadingRate 合成失敗時の長さ推定に使う読み上げ速度（文字/秒）
	DefaultReadingRate = 5.0

	// 字幕 1 行の可読性ルール
	DefaultCaptionMaxChars   = 18
	DefaultCaptionMinSeconds = 0.8
	DefaultCaptionMaxSeconds = 5.0

	// 台本のルールベース審査の境界値
	DefaultScriptMinChars = 300
	DefaultScriptMaxChars = 1200
	DefaultMinScenes      = 4
	DefaultMaxScenes      = 8

	// 字幕のルールベース審査の境界値（秒・行数）
	DefaultMinDuration = 20.0
	DefaultMaxDuration = 75.0
	DefaultMinCaptions = 8

	// DefaultReviewThreshold モデル採点（1〜10）の合格ライン
	DefaultReviewThreshold = 7.0

	DefaultBaseOutputDir  = "output"
	DefaultTemplateConfig = "internal/config/templates.yaml"
)

// Config は環境変数から読み込まれたアプリケーションの全設定を保持します。
type Config struct {
	GeminiAPIKey string
	TextModel    string // 台本生成・品質採点用モデル
	ImageModel   string // シーン画像生成用モデル
	SpeechModel  string // ナレーション合成用モデル
	VoiceName    string

	GCSBucket     string // 音声・画像・字幕を保存するバケット
	BaseOutputDir string // ストレージ内のベースルート (例: "output")

	SlackWebhookURL string
	PublicBaseURL   string // 通知に載せる成果物閲覧用のベースURL

	TemplateConfig string // issue-type 別テンプレートプロンプト (YAML)
	CacheIndexPath string // 画像キャッシュのスナップショット保存先

	MaxAttempts      int
	ImageWorkers     int
	ImageAcceptRatio float64

	SpeechChunkLimit int
	ReadingRate      float64

	CaptionMaxChars   int
	CaptionMinSeconds float64
	CaptionMaxSeconds float64

	ScriptMinChars int
	ScriptMaxChars int
	MinScenes      int
	MaxScenes      int

	MinDuration float64
	MaxDuration float64
	MinCaptions int

	ReviewThreshold float64

	TextTimeout   time.Duration
	ImageTimeout  time.Duration
	SpeechTimeout time.Duration

	// トークン単価 (USD / 1K tokens)。コスト集計に使用します。
	TextInputCostPer1K  float64
	TextOutputCostPer1K float64
	ImageCostPerCall    float64
	SpeechCostPerCall   float64
}

// Load は環境変数から設定を読み込み、Config 構造体を生成します。
func Load() *Config {
	return &Config{
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		TextModel:    getEnv("TEXT_MODEL", DefaultTextModel),
		ImageModel:   getEnv("IMAGE_MODEL", DefaultImageModel),
		SpeechModel:  getEnv("SPEECH_MODEL", DefaultSpeechModel),
		VoiceName:    getEnv("VOICE_NAME", DefaultVoiceName),

		GCSBucket:     getEnv("GCS_SHORTS_BUCKET", "your-shorts-archive-bucket"),
		BaseOutputDir: getEnv("BASE_OUTPUT_DIR", DefaultBaseOutputDir),

		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", ""),

		TemplateConfig: getEnv("TEMPLATE_CONFIG", DefaultTemplateConfig),
		CacheIndexPath: getEnv("CACHE_INDEX_PATH", "cache/image_cache.json"),

		MaxAttempts:      getEnvInt("MAX_ATTEMPTS", DefaultMaxAttempts),
		ImageWorkers:     getEnvInt("IMAGE_WORKERS", DefaultImageWorkers),
		ImageAcceptRatio: getEnvFloat("IMAGE_ACCEPT_RATIO", DefaultImageAcceptRatio),

		SpeechChunkLimit: getEnvInt("SPEECH_CHUNK_LIMIT", DefaultSpeechChunkLimit),
		ReadingRate:      getEnvFloat("READING_RATE", DefaultReadingRate),

		CaptionMaxChars:   getEnvInt("CAPTION_MAX_CHARS", DefaultCaptionMaxChars),
		CaptionMinSeconds: getEnvFloat("CAPTION_MIN_SECONDS", DefaultCaptionMinSeconds),
		CaptionMaxSeconds: getEnvFloat("CAPTION_MAX_SECONDS", DefaultCaptionMaxSeconds),

		ScriptMinChars: getEnvInt("SCRIPT_MIN_CHARS", DefaultScriptMinChars),
		ScriptMaxChars: getEnvInt("SCRIPT_MAX_CHARS", DefaultScriptMaxChars),
		MinScenes:      getEnvInt("MIN_SCENES", DefaultMinScenes),
		MaxScenes:      getEnvInt("MAX_SCENES", DefaultMaxScenes),

		MinDuration: getEnvFloat("MIN_DURATION", DefaultMinDuration),
		MaxDuration: getEnvFloat("MAX_DURATION", DefaultMaxDuration),
		MinCaptions: getEnvInt("MIN_CAPTIONS", DefaultMinCaptions),

		ReviewThreshold: getEnvFloat("REVIEW_THRESHOLD", DefaultReviewThreshold),

		TextTimeout:   getEnvDuration("TEXT_TIMEOUT", DefaultTextTimeout),
		ImageTimeout:  getEnvDuration("IMAGE_TIMEOUT", DefaultImageTimeout),
		SpeechTimeout: getEnvDuration("SPEECH_TIMEOUT", DefaultSpeechTimeout),

		TextInputCostPer1K:  getEnvFloat("TEXT_INPUT_COST_PER_1K", 0.0003),
		TextOutputCostPer1K: getEnvFloat("TEXT_OUTPUT_COST_PER_1K", 0.0025),
		ImageCostPerCall:    getEnvFloat("IMAGE_COST_PER_CALL", 0.039),
		SpeechCostPerCall:   getEnvFloat("SPEECH_COST_PER_CALL", 0.010),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
