package extract

import (
	"strings"
	"unicode"
)

// wordsPerMinute は読了時間の推定に使用する読速（語/分）。
const wordsPerMinute = 200

// WordCount は空白区切りの非空トークン数を返す。
// テキストに対する決定的な純粋関数。
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// ReadingTimeMinutes は語数から読了時間（分）を推定する。
// ceil(wordCount / 200) を返す。語数0の場合は0を返す。
func ReadingTimeMinutes(wordCount int) int {
	if wordCount <= 0 {
		return 0
	}
	return (wordCount + wordsPerMinute - 1) / wordsPerMinute
}

// QualityScore はテキストの品質スコアを[0,100]で算出する。
// 基準値50に対する固定的な加点ルールで構成されたヒューリスティックであり、
// 観測・ランキング用途に限る。正しさの判定には使用しない。
//
// 加点ルール:
//   - 100語超: +20、さらに500語超: +10、さらに1000語超: +10
//   - 段落区切り（空行）の存在: +5
//   - 終端句読点の存在: +5
//   - 疑問符の存在: +5
//   - 感嘆符の存在: +5
//   - 固有名詞様の大文字始まり語の存在: +5
func QualityScore(text string) int {
	score := 50

	wc := WordCount(text)
	if wc > 100 {
		score += 20
	}
	if wc > 500 {
		score += 10
	}
	if wc > 1000 {
		score += 10
	}

	if strings.Contains(text, "\n\n") {
		score += 5
	}
	if strings.ContainsAny(text, ".。") {
		score += 5
	}
	if strings.ContainsAny(text, "?？") {
		score += 5
	}
	if strings.ContainsAny(text, "!！") {
		score += 5
	}
	if hasProperNounCapitalization(text) {
		score += 5
	}

	return clampScore(score)
}

// hasProperNounCapitalization は大文字始まりで小文字が続く語
// （固有名詞様の語）が含まれるかを判定する。
func hasProperNounCapitalization(text string) bool {
	for _, word := range strings.Fields(text) {
		runes := []rune(word)
		if len(runes) >= 2 && unicode.IsUpper(runes[0]) && unicode.IsLower(runes[1]) {
			return true
		}
	}
	return false
}

// clampScore はスコアを[0,100]の範囲に収める。
func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// DetectLanguage はテキストの言語を推定する。
// 日本語文字（ひらがな・カタカナ・漢字）の比率に基づく簡易ヒューリスティック。
func DetectLanguage(text string) string {
	var japanese, total int
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		total++
		if unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han) {
			japanese++
		}
	}
	if total > 0 && japanese*10 >= total*3 {
		return "ja"
	}
	return "en"
}
