package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"ap-shorts-studio/internal/adapters"
	"ap-shorts-studio/internal/config"
	"ap-shorts-studio/internal/domain"
)

const subtitleAgentName = "SubtitleAgent"

var sentenceEnders = []rune{'。', '！', '？', '.', '!', '?', '\n'}

// SubtitleAgent は台本のナレーションを音声化し、字幕タイムラインを
// 組み立てます。合成に失敗したチャンクは読み上げ速度からの推定で
// 長さを補い、フェーズ全体は止めません。
type SubtitleAgent struct {
	synth adapters.SpeechSynthesizer
	store adapters.ArtifactStore
	cfg   *config.Config
}

func NewSubtitleAgent(synth adapters.SpeechSynthesizer, store adapters.ArtifactStore, cfg *config.Config) *SubtitleAgent {
	return &SubtitleAgent{
		synth: synth,
		store: store,
		cfg:   cfg,
	}
}

func (a *SubtitleAgent) Name() string { return subtitleAgentName }
func (a *SubtitleAgent) Role() Role   { return RoleSubtitle }

// Execute はシーン順に音声を合成し、字幕と音声を成果物として保存します。
// 字幕の Start/End はナレーション先頭からの経過秒で、隣接行は隙間なく
// 連続します。
func (a *SubtitleAgent) Execute(ctx context.Context, task *domain.TaskContext, opts Options) *domain.AgentResult {
	started := time.Now()
	task.IncrementAttempts(domain.StageSubtitle)

	if task.Script == nil || task.Script.SceneCount() == 0 {
		task.AppendLog(subtitleAgentName, "synthesize", "failed", "no script to narrate")
		return failure(domain.FailureQuality, "no script to narrate", 0, started)
	}

	voice := adapters.VoiceConfig{VoiceName: a.cfg.VoiceName}

	var (
		pcm          bytes.Buffer
		captions     []domain.Caption
		cursor       float64
		sampleRate   = 0
		cost         float64
		totalChunks  int
		failedChunks int
	)

	for _, scene := range task.Script.Scenes {
		for _, chunk := range splitForSynthesis(scene.Narration, a.cfg.SpeechChunkLimit) {
			totalChunks++

			var dur float64
			clip, err := a.synth.Synthesize(ctx, chunk, voice)
			if err != nil {
				// 推定でタイムラインを維持し、音声の欠落は許容します。
				failedChunks++
				dur = float64(utf8.RuneCountInString(chunk)) / a.cfg.ReadingRate
				slog.Warn("Chunk synthesis failed, substituting estimated duration",
					"task_id", task.TaskID, "scene", scene.Index, "estimated_seconds", dur, "error", err)
			} else {
				cost += a.cfg.SpeechCostPerCall
				dur = clip.Duration()
				pcm.Write(clip.Data)
				if sampleRate == 0 {
					sampleRate = clip.SampleRate
				}
			}

			captions = append(captions, apportionCaptions(chunk, cursor, dur, a.cfg.CaptionMaxChars)...)
			cursor += dur
		}
	}

	subtitle := &domain.SubtitleData{
		Captions: captions,
		Duration: cursor,
	}

	// 1 チャンクでも音声が得られていれば WAV として保存します。
	if pcm.Len() > 0 {
		audioPath := path.Join(a.cfg.GetAudioDir(task.TaskID), "narration.wav")
		wav := adapters.EncodeWAV(pcm.Bytes(), sampleRate)
		if err := a.store.Write(ctx, audioPath, bytes.NewReader(wav), "audio/wav"); err != nil {
			task.AppendLog(subtitleAgentName, "synthesize", "failed", err.Error())
			return failure(domain.FailureTransport, err.Error(), cost, started)
		}
		subtitle.AudioPath = audioPath
	}

	subtitlePath := path.Join(a.cfg.GetAudioDir(task.TaskID), "subtitles.json")
	data, err := json.Marshal(subtitle)
	if err != nil {
		task.AppendLog(subtitleAgentName, "synthesize", "failed", err.Error())
		return failure(domain.FailureParse, err.Error(), cost, started)
	}
	if err := a.store.Write(ctx, subtitlePath, bytes.NewReader(data), "application/json"); err != nil {
		task.AppendLog(subtitleAgentName, "synthesize", "failed", err.Error())
		return failure(domain.FailureTransport, err.Error(), cost, started)
	}

	task.Subtitle = subtitle
	task.AppendLog(subtitleAgentName, "synthesize", "success",
		fmt.Sprintf("chunks=%d degraded=%d captions=%d duration=%.1fs",
			totalChunks, failedChunks, len(captions), cursor))

	return success(cost, started)
}

// splitForSynthesis はナレーションを合成 1 回分のペイロード上限
// （バイト）に収まるチャンクへ分割します。文境界優先で詰め、
// 1 文が上限を超える場合のみルーン単位で強制分割します。
func splitForSynthesis(text string, limitBytes int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= limitBytes {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, sentence := range splitSentences(text) {
		if current.Len() > 0 && current.Len()+len(sentence) > limitBytes {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if len(sentence) > limitBytes {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			chunks = append(chunks, hardSplit(sentence, limitBytes)...)
			continue
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitSentences は文末記号の直後で分割します。記号は前の文に残します。
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		for _, ender := range sentenceEnders {
			if r == ender {
				sentences = append(sentences, current.String())
				current.Reset()
				break
			}
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

// hardSplit はルーン境界を保ったままバイト上限で強制分割します。
func hardSplit(s string, limitBytes int) []string {
	var parts []string
	var current strings.Builder
	for _, r := range s {
		if current.Len()+utf8.RuneLen(r) > limitBytes && current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// apportionCaptions はチャンク 1 つ分の時間 dur を、字幕行ごとの
// 文字数比で配分します。最終行の End は cursor+dur に固定し、
// タイムラインの連続性を丸め誤差から守ります。
func apportionCaptions(chunk string, cursor, dur float64, maxChars int) []domain.Caption {
	lines := splitCaptionLines(chunk, maxChars)
	if len(lines) == 0 {
		return nil
	}

	totalRunes := 0
	for _, line := range lines {
		totalRunes += utf8.RuneCountInString(line)
	}
	if totalRunes == 0 {
		return nil
	}

	captions := make([]domain.Caption, 0, len(lines))
	start := cursor
	for i, line := range lines {
		end := start + dur*float64(utf8.RuneCountInString(line))/float64(totalRunes)
		if i == len(lines)-1 {
			end = cursor + dur
		}
		captions = append(captions, domain.Caption{Text: line, Start: start, End: end})
		start = end
	}
	return captions
}

// splitCaptionLines はチャンクを可読性上限（ルーン数）以下の行へ分割します。
// 文境界を優先し、長い文は空白、最後はルーン単位で折ります。
func splitCaptionLines(chunk string, maxChars int) []string {
	var lines []string
	for _, sentence := range splitSentences(chunk) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if utf8.RuneCountInString(sentence) <= maxChars {
			lines = append(lines, sentence)
			continue
		}
		lines = append(lines, wrapByRunes(sentence, maxChars)...)
	}
	return lines
}

// wrapByRunes は空白があればそこで、なければルーン数で折り返します。
func wrapByRunes(s string, maxChars int) []string {
	var lines []string
	words := strings.Fields(s)

	if len(words) > 1 {
		var current strings.Builder
		currentRunes := 0
		for _, word := range words {
			wordRunes := utf8.RuneCountInString(word)
			if currentRunes > 0 && currentRunes+1+wordRunes > maxChars {
				lines = append(lines, current.String())
				current.Reset()
				currentRunes = 0
			}
			if currentRunes > 0 {
				current.WriteByte(' ')
				currentRunes++
			}
			current.WriteString(word)
			currentRunes += wordRunes
		}
		if current.Len() > 0 {
			lines = append(lines, current.String())
		}
		// 空白折り返しで収まらない巨大語が残った場合に備えます。
		var fixed []string
		for _, line := range lines {
			if utf8.RuneCountInString(line) <= maxChars {
				fixed = append(fixed, line)
				continue
			}
			fixed = append(fixed, chopRunes(line, maxChars)...)
		}
		return fixed
	}

	return chopRunes(s, maxChars)
}

func chopRunes(s string, maxChars int) []string {
	var lines []string
	runes := []rune(s)
	for len(runes) > maxChars {
		lines = append(lines, string(runes[:maxChars]))
		runes = runes[maxChars:]
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return lines
}
