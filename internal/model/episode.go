// Package model はドメインモデルを定義する。
package model

import "time"

// Chapter はエピソード内のチャプターマーカーを表す。
type Chapter struct {
	StartTimeSeconds int
	Title            string
}

// Episode は公開済みのオーディオフィードエントリを表す。
type Episode struct {
	ID              string
	FeedID          string
	SubmissionID    string
	Title           string
	Description     string
	AudioURL        string
	AudioSizeBytes  int64
	MimeType        string
	DurationSeconds int
	PublishedAt     time.Time
	Chapters        []Chapter
	Transcript      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
