package domain

// Caption は画面に表示される字幕 1 行です。Start/End は
// ナレーション先頭からの経過秒で、隣接する行は隙間なく連続します。
type Caption struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SubtitleData はナレーション音声と字幕タイムラインのセットです。
type SubtitleData struct {
	// AudioPath は合成済みナレーション音声の保存先パスです。
	// 全チャンクの合成に失敗した場合は空文字になります。
	AudioPath string    `json:"audio_path,omitempty"`
	Captions  []Caption `json:"captions"`
	// Duration はナレーション全体の長さ（秒）です。合成に失敗した
	// チャンクは読み上げ速度からの推定値で補われます。
	Duration float64 `json:"duration"`
}
