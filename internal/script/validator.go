package script

import (
	"fmt"
	"strings"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/extract"
)

// ValidationResult は台本検証の結果を表す。
// Violationsは合成へ進めないハード違反、Warningsは継続可能なソフト警告。
// この硬軟の区別自体が検証可能な契約である。
type ValidationResult struct {
	Valid      bool
	Violations []string
	Warnings   []string
}

// Validator は台本のポリシー検証を行う。
type Validator struct {
	policy Policy
}

// NewValidator は指定ポリシーのValidatorを生成する。
func NewValidator(policy Policy) *Validator {
	return &Validator{policy: policy}
}

// Policy は検証に使用しているポリシーを返す。
func (v *Validator) Policy() Policy {
	return v.policy
}

// introMarkers はイントロらしさを判定するフレーズ（ヒューリスティック）。
var introMarkers = []string{
	"welcome", "today", "hello", "ようこそ", "こんにちは", "今回は", "本日は",
}

// outroMarkers はアウトロらしさを判定するフレーズ（ヒューリスティック）。
var outroMarkers = []string{
	"thank", "thanks", "next time", "see you", "ありがとう", "また次回", "それでは",
}

// Validate は台本をポリシーに照らして検証する。
//   - 語数が目標窓の外: ハード違反（合成に進んではならない）
//   - イントロ/アウトロ表現の欠落、段落数不足: ソフト警告（継続可能）
func (v *Validator) Validate(scriptText string) ValidationResult {
	result := ValidationResult{Valid: true}

	wc := extract.WordCount(scriptText)
	minWords, maxWords := v.policy.MinWords(), v.policy.MaxWords()
	if wc < minWords || wc > maxWords {
		result.Valid = false
		result.Violations = append(result.Violations,
			fmt.Sprintf("語数 %d が目標範囲 [%d, %d] の外です", wc, minWords, maxWords))
	}

	lower := strings.ToLower(scriptText)

	head := lower
	if len(head) > 400 {
		head = head[:400]
	}
	if !containsAny(head, introMarkers) {
		result.Warnings = append(result.Warnings, "イントロらしい導入表現が検出できません")
	}

	tail := lower
	if len(tail) > 400 {
		tail = tail[len(tail)-400:]
	}
	if !containsAny(tail, outroMarkers) {
		result.Warnings = append(result.Warnings, "アウトロらしい締め表現が検出できません")
	}

	sections := countSections(scriptText)
	if sections < v.policy.MinSections() {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("セクション数 %d が期待値 %d を下回ります", sections, v.policy.MinSections()))
	}

	return result
}

// containsAny はテキストがマーカーのいずれかを含むかを返す。
func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// countSections は空行区切りで導出した非空段落の数を返す。
func countSections(text string) int {
	count := 0
	for _, block := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(block) != "" {
			count++
		}
	}
	return count
}
