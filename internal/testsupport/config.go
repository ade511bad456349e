package testsupport

import (
	"time"

	"ap-shorts-studio/internal/config"
)

// NewConfig はテスト用に境界値を緩めた設定を返します。
// 短いフィクスチャでもルール審査を通過できる値にしてあります。
func NewConfig() *config.Config {
	return &config.Config{
		TextModel:   "test-text-model",
		ImageModel:  "test-image-model",
		SpeechModel: "test-speech-model",
		VoiceName:   "Kore",

		BaseOutputDir:  "output",
		CacheIndexPath: "cache/image_cache.json",

		MaxAttempts:      3,
		ImageWorkers:     3,
		ImageAcceptRatio: 0.8,

		SpeechChunkLimit: 1800,
		ReadingRate:      5.0,

		CaptionMaxChars:   18,
		CaptionMinSeconds: 0.1,
		CaptionMaxSeconds: 10.0,

		ScriptMinChars: 10,
		ScriptMaxChars: 2000,
		MinScenes:      2,
		MaxScenes:      8,

		MinDuration: 1.0,
		MaxDuration: 120.0,
		MinCaptions: 1,

		ReviewThreshold: 7.0,

		TextTimeout:   10 * time.Second,
		ImageTimeout:  10 * time.Second,
		SpeechTimeout: 10 * time.Second,

		TextInputCostPer1K:  0.0003,
		TextOutputCostPer1K: 0.0025,
		ImageCostPerCall:    0.05,
		SpeechCostPerCall:   0.01,
	}
}
