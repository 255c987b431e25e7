// Package feedgen はエピソードからの配信フィードの組み立てとキャッシュを提供する。
package feedgen

import (
	"encoding/xml"
	"fmt"
	"sort"
	"time"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
)

// SortOrder はエピソードの並び順を表す。
type SortOrder string

const (
	// SortNewest は公開日の新しい順。
	SortNewest SortOrder = "newest"
	// SortOldest は公開日の古い順。
	SortOldest SortOrder = "oldest"
)

// FeedMetadata はフィード（チャンネル）のメタデータを表す。
type FeedMetadata struct {
	Title       string
	Link        string
	Description string
	Language    string
	Author      string
}

// BuildOptions はフィード組み立てのオプションを表す。
type BuildOptions struct {
	Order    SortOrder
	MaxItems int // 0以下の場合は無制限
}

// rssDocument はRSS 2.0ドキュメントのルート要素。
// ユーザー入力由来のテキストのエスケープはencoding/xmlが構造的に行う。
type rssDocument struct {
	XMLName  xml.Name   `xml:"rss"`
	Version  string     `xml:"version,attr"`
	ItunesNS string     `xml:"xmlns:itunes,attr"`
	PscNS    string     `xml:"xmlns:psc,attr"`
	Channel  rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	Author        string    `xml:"itunes:author,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string       `xml:"title"`
	Description string       `xml:"description"`
	GUID        rssGUID      `xml:"guid"`
	PubDate     string       `xml:"pubDate"`
	Enclosure   rssEnclosure `xml:"enclosure"`
	Duration    string       `xml:"itunes:duration"`
	Chapters    *rssChapters `xml:"psc:chapters,omitempty"`
	Transcript  string       `xml:"podcast:transcript,omitempty"`
}

// rssGUID は逆参照不可の一意識別子。isPermaLink=falseを常に付与する。
type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink string `xml:"isPermaLink,attr"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

type rssChapters struct {
	Version  string       `xml:"version,attr"`
	Chapters []rssChapter `xml:"psc:chapter"`
}

type rssChapter struct {
	Start string `xml:"start,attr"`
	Title string `xml:"title,attr"`
}

// Builder はエピソード一覧からRSSドキュメントを組み立てる。
type Builder struct{}

// NewBuilder はBuilderの新しいインスタンスを生成する。
func NewBuilder() *Builder {
	return &Builder{}
}

// Build はエピソードを並び替え・切り詰めし、RSS 2.0のXMLバイト列を返す。
func (b *Builder) Build(episodes []model.Episode, meta FeedMetadata, opts BuildOptions) ([]byte, error) {
	sorted := make([]model.Episode, len(episodes))
	copy(sorted, episodes)

	switch opts.Order {
	case SortOldest:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].PublishedAt.Before(sorted[j].PublishedAt)
		})
	default:
		// 既定は新しい順
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
		})
	}

	if opts.MaxItems > 0 && len(sorted) > opts.MaxItems {
		sorted = sorted[:opts.MaxItems]
	}

	items := make([]rssItem, 0, len(sorted))
	for _, ep := range sorted {
		items = append(items, buildItem(ep))
	}

	doc := rssDocument{
		Version:  "2.0",
		ItunesNS: "http://www.itunes.com/dtds/podcast-1.0.dtd",
		PscNS:    "http://podlove.org/simple-chapters",
		Channel: rssChannel{
			Title:         meta.Title,
			Link:          meta.Link,
			Description:   meta.Description,
			Language:      meta.Language,
			Author:        meta.Author,
			LastBuildDate: time.Now().Format(time.RFC1123Z),
			Items:         items,
		},
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("フィードのレンダリングに失敗しました: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// buildItem は1エピソード分のフィードエントリを組み立てる。
func buildItem(ep model.Episode) rssItem {
	item := rssItem{
		Title:       ep.Title,
		Description: ep.Description,
		GUID: rssGUID{
			Value:       "urn:podgen:episode:" + ep.ID,
			IsPermaLink: "false",
		},
		PubDate: ep.PublishedAt.Format(time.RFC1123Z),
		Enclosure: rssEnclosure{
			URL:    ep.AudioURL,
			Length: ep.AudioSizeBytes,
			Type:   ep.MimeType,
		},
		Duration:   FormatDuration(ep.DurationSeconds),
		Transcript: ep.Transcript,
	}

	if len(ep.Chapters) > 0 {
		chapters := &rssChapters{Version: "1.2"}
		for _, ch := range ep.Chapters {
			chapters.Chapters = append(chapters.Chapters, rssChapter{
				Start: FormatDuration(ch.StartTimeSeconds),
				Title: ch.Title,
			})
		}
		item.Chapters = chapters
	}

	return item
}

// FormatDuration は秒数を1時間以上なら H:MM:SS、未満なら M:SS 形式にする。
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
