// Package security は投稿コンテンツ取得まわりのセキュリティ機能を提供する。
package security

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService は抽出コンテンツの無害化機能のインターフェース。
// 抽出サービスが返すHTML混じりのコンテンツを、台本生成に渡せる
// プレーンテキストへ変換する際に使用する。
type TextSanitizerService interface {
	// PlainText はHTML混じりのコンテンツから全タグを除去し、
	// エンティティをデコードしたプレーンテキストを返す。
	// 段落境界は空行として保持する。同一入力に対して常に同一出力を返す。
	PlainText(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyで全タグを除去する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// blankLines は3行以上の連続空行を検出する。
var blankLines = regexp.MustCompile(`\n{3,}`)

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// PlainText はHTML混じりのコンテンツをプレーンテキストへ変換する。
// ブロック要素の境界を改行に置き換えてからタグを除去することで、
// 段落構造（空行区切り）を維持する。
func (s *textSanitizer) PlainText(raw string) string {
	if raw == "" {
		return ""
	}

	// ブロック要素の終了タグを段落区切りへ置換してからタグを落とす
	replacer := strings.NewReplacer(
		"</p>", "\n\n",
		"</P>", "\n\n",
		"<br>", "\n",
		"<br/>", "\n",
		"<br />", "\n",
		"</div>", "\n",
		"</li>", "\n",
		"</h1>", "\n\n",
		"</h2>", "\n\n",
		"</h3>", "\n\n",
	)
	text := s.policy.Sanitize(replacer.Replace(raw))
	text = html.UnescapeString(text)
	text = blankLines.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
