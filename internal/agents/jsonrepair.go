package agents

import (
	"regexp"
	"strings"
)

var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// NormalizeModelJSON はモデル出力を JSON としてパース可能な形に正規化します。
// 変換は列挙された固定の順序で適用されます:
//  1. 前後の空白を除去
//  2. Markdown コードフェンス (```json ... ```) を除去
//  3. 最初の '{' から最後の '}' までを切り出し（前置きの挨拶文などを除去）
//  4. 閉じ括弧直前の余分なカンマを除去
//
// 戻り値の bool は、いずれかの変換が実際に適用されたかを示します
// （観測可能性のため。ログに記録されます）。
func NormalizeModelJSON(raw string) (string, bool) {
	normalized := strings.TrimSpace(raw)
	applied := normalized != raw

	// 2. コードフェンス除去
	if stripped, ok := stripCodeFence(normalized); ok {
		normalized = stripped
		applied = true
	}

	// 3. 最初の '{' 〜 最後の '}' の切り出し
	first := strings.IndexByte(normalized, '{')
	last := strings.LastIndexByte(normalized, '}')
	if first >= 0 && last > first && (first > 0 || last < len(normalized)-1) {
		normalized = normalized[first : last+1]
		applied = true
	}

	// 4. 末尾カンマの除去
	if trailingCommaPattern.MatchString(normalized) {
		normalized = trailingCommaPattern.ReplaceAllString(normalized, "$1")
		applied = true
	}

	return normalized, applied
}

func stripCodeFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return s, false
	}
	stripped := strings.TrimPrefix(s, "```json")
	stripped = strings.TrimPrefix(stripped, "```")
	stripped = strings.TrimSuffix(strings.TrimSpace(stripped), "```")
	return strings.TrimSpace(stripped), true
}
