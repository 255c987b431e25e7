// Package script は台本の生成と構造ポリシーの検証を提供する。
package script

// Policy は台本が満たすべき構造・長さ・トーンの契約を表す。
type Policy struct {
	// 構造: イントロ/フック + キーポイント + まとめ + アウトロ
	MinKeyPoints int
	MaxKeyPoints int

	// トーン
	DefaultTone string
	TonePresets []string

	// 長さ: 分数と読速から目標語数の窓を導出する
	MinMinutes     int
	MaxMinutes     int
	WordsPerMinute int
}

// DefaultPolicy は既定の台本ポリシーを返す。
// 12〜20分、150語/分から目標語数 [1800, 3000] が導かれる。
func DefaultPolicy() Policy {
	return Policy{
		MinKeyPoints:   3,
		MaxKeyPoints:   7,
		DefaultTone:    "conversational",
		TonePresets:    []string{"energetic", "calm", "authoritative"},
		MinMinutes:     12,
		MaxMinutes:     20,
		WordsPerMinute: 150,
	}
}

// MinWords は目標語数の下限を返す。
func (p Policy) MinWords() int {
	return p.MinMinutes * p.WordsPerMinute
}

// MaxWords は目標語数の上限を返す。
func (p Policy) MaxWords() int {
	return p.MaxMinutes * p.WordsPerMinute
}

// MinSections は最低限期待される段落数を返す。
// イントロ + 最小キーポイント数 + まとめ + アウトロ。
func (p Policy) MinSections() int {
	return p.MinKeyPoints + 3
}
