package domain

import "unicode/utf8"

// Scene は台本を構成する 1 シーンです。ナレーション本文と、
// そのシーンの画像生成プロンプトを保持します。
type Scene struct {
	Index       int    `json:"index"`
	Narration   string `json:"narration"`
	ImagePrompt string `json:"image_prompt"`
}

// Script はショート動画 1 本分の構造化された台本です。
type Script struct {
	Title  string  `json:"title"`
	Scenes []Scene `json:"scenes"`
}

// TotalChars はタイトルと全ナレーションの合計文字数（rune 単位）を返します。
// レビューの文字数チェックはこの値に対して行われます。
func (s *Script) TotalChars() int {
	if s == nil {
		return 0
	}
	total := utf8.RuneCountInString(s.Title)
	for _, scene := range s.Scenes {
		total += utf8.RuneCountInString(scene.Narration)
	}
	return total
}

// SceneCount はシーン数を返します。nil セーフです。
func (s *Script) SceneCount() int {
	if s == nil {
		return 0
	}
	return len(s.Scenes)
}
