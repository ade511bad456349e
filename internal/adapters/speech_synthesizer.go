package adapters

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"
)

// 合成音声の既定フォーマット。genai の TTS は 24kHz / 16bit / mono の
// リニア PCM を返します。
const (
	defaultSampleRate    = 24000
	pcmBytesPerSample    = 2
	pcmChannels          = 1
	pcmBytesPerSecondMul = pcmBytesPerSample * pcmChannels
)

// VoiceConfig は話者の指定です。
type VoiceConfig struct {
	VoiceName string
}

// AudioClip は音声合成 1 回分の結果です。
type AudioClip struct {
	Data       []byte // リニア PCM
	MIMEType   string
	SampleRate int
}

// Duration は PCM バイト長から実測の再生時間（秒）を計算します。
func (c *AudioClip) Duration() float64 {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Data)) / float64(c.SampleRate*pcmBytesPerSecondMul)
}

// SpeechSynthesizer は音声合成の外部コラボレーターです。
// (テキストチャンク, 話者設定) → 音声バイト列、のみを要求します。
// 1 回の呼び出しに収まるサイズへの分割は呼び出し側の責務です。
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string, voice VoiceConfig) (*AudioClip, error)
}

// GeminiSpeechClient は genai の TTS モデルを利用した SpeechSynthesizer 実装です。
type GeminiSpeechClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiSpeechClient は共有の genai クライアントから音声合成用アダプターを構築します。
func NewGeminiSpeechClient(client *genai.Client, model string, timeout time.Duration) *GeminiSpeechClient {
	return &GeminiSpeechClient{
		client:  client,
		model:   model,
		timeout: timeout,
	}
}

// Synthesize はテキストチャンク 1 つを音声化します。
// チャンク分割済みの入力を前提とし、ここでは再分割しません。
func (c *GeminiSpeechClient) Synthesize(ctx context.Context, text string, voice VoiceConfig) (*AudioClip, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: voice.VoiceName,
				},
			},
		},
	}

	resp, err := c.client.Models.GenerateContent(callCtx, c.model, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed (model: %s): %w", c.model, err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &AudioClip{
					Data:       part.InlineData.Data,
					MIMEType:   part.InlineData.MIMEType,
					SampleRate: sampleRateFromMIME(part.InlineData.MIMEType),
				}, nil
			}
		}
	}

	return nil, fmt.Errorf("speech synthesis returned no audio part (model: %s)", c.model)
}

// sampleRateFromMIME は "audio/L16;codec=pcm;rate=24000" のような
// MIME タイプからサンプルレートを取り出します。不明なら既定値です。
func sampleRateFromMIME(mime string) int {
	for _, param := range strings.Split(mime, ";") {
		param = strings.TrimSpace(param)
		if v, ok := strings.CutPrefix(param, "rate="); ok {
			if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
				return rate
			}
		}
	}
	return defaultSampleRate
}
