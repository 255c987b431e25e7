// Package model はドメインモデルを定義する。
package model

import "time"

// ExtractedContent はソースコンテンツから抽出・正規化されたテキストを表す。
// パイプライン実行の中間成果物であり、単独で長期永続化はされない。
type ExtractedContent struct {
	Title              string
	Body               string
	Author             string
	PublishedAt        *time.Time
	WordCount          int
	ReadingTimeMinutes int
	Language           string
	ExtractionMethod   string
	QualityScore       int // [0,100] の観測用ヒューリスティック
	Metadata           map[string]string
}
