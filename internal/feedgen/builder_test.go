package feedgen

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
)

func testEpisodes() []model.Episode {
	return []model.Episode{
		{
			ID:              "ep-c",
			Title:           "C",
			Description:     "三本目",
			AudioURL:        "https://cdn.example.com/audio/ep-c.mp3",
			AudioSizeBytes:  1024,
			MimeType:        "audio/mpeg",
			DurationSeconds: 930,
			PublishedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:              "ep-a",
			Title:           "A",
			Description:     "一本目",
			AudioURL:        "https://cdn.example.com/audio/ep-a.mp3",
			AudioSizeBytes:  2048,
			MimeType:        "audio/mpeg",
			DurationSeconds: 3725,
			PublishedAt:     time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:              "ep-b",
			Title:           "B",
			Description:     "二本目",
			AudioURL:        "https://cdn.example.com/audio/ep-b.mp3",
			AudioSizeBytes:  4096,
			MimeType:        "audio/mpeg",
			DurationSeconds: 65,
			PublishedAt:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
	}
}

func testMetadata() FeedMetadata {
	return FeedMetadata{
		Title:       "テストポッドキャスト",
		Link:        "https://podcast.example.com",
		Description: "生成パイプラインのテスト用フィード",
		Language:    "ja",
	}
}

func TestBuild_NewestOrder(t *testing.T) {
	builder := NewBuilder()

	payload, err := builder.Build(testEpisodes(), testMetadata(), BuildOptions{Order: SortNewest})
	if err != nil {
		t.Fatalf("フィードの組み立てに失敗: %v", err)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("生成したフィードのパースに失敗: %v", err)
	}

	if len(parsed.Items) != 3 {
		t.Fatalf("エントリ数が期待と異なる: got %d, want 3", len(parsed.Items))
	}

	wantOrder := []string{"A", "B", "C"}
	for i, want := range wantOrder {
		if parsed.Items[i].Title != want {
			t.Errorf("エントリ%dのタイトルが期待と異なる: got %q, want %q", i, parsed.Items[i].Title, want)
		}
	}
}

func TestBuild_OldestOrder(t *testing.T) {
	builder := NewBuilder()

	payload, err := builder.Build(testEpisodes(), testMetadata(), BuildOptions{Order: SortOldest})
	if err != nil {
		t.Fatalf("フィードの組み立てに失敗: %v", err)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("生成したフィードのパースに失敗: %v", err)
	}

	wantOrder := []string{"C", "B", "A"}
	for i, want := range wantOrder {
		if parsed.Items[i].Title != want {
			t.Errorf("エントリ%dのタイトルが期待と異なる: got %q, want %q", i, parsed.Items[i].Title, want)
		}
	}
}

func TestBuild_MaxItems(t *testing.T) {
	builder := NewBuilder()

	payload, err := builder.Build(testEpisodes(), testMetadata(), BuildOptions{Order: SortNewest, MaxItems: 2})
	if err != nil {
		t.Fatalf("フィードの組み立てに失敗: %v", err)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("生成したフィードのパースに失敗: %v", err)
	}

	if len(parsed.Items) != 2 {
		t.Fatalf("切り詰め後のエントリ数が期待と異なる: got %d, want 2", len(parsed.Items))
	}
	// 新しい順の先頭2件が残る
	if parsed.Items[0].Title != "A" || parsed.Items[1].Title != "B" {
		t.Errorf("切り詰め後のエントリが期待と異なる: got [%q, %q]", parsed.Items[0].Title, parsed.Items[1].Title)
	}
}

func TestBuild_GUIDNotPermalink(t *testing.T) {
	builder := NewBuilder()

	payload, err := builder.Build(testEpisodes(), testMetadata(), BuildOptions{})
	if err != nil {
		t.Fatalf("フィードの組み立てに失敗: %v", err)
	}

	xml := string(payload)
	if !strings.Contains(xml, `isPermaLink="false"`) {
		t.Error("GUIDにisPermaLink=false属性が付いていない")
	}
	if !strings.Contains(xml, "urn:podgen:episode:ep-a") {
		t.Error("GUIDがエピソードIDに基づくurn形式になっていない")
	}
	if strings.Contains(xml, "<guid>https://") {
		t.Error("GUIDにURLが使われている")
	}
}

func TestBuild_EnclosureFields(t *testing.T) {
	builder := NewBuilder()

	payload, err := builder.Build(testEpisodes(), testMetadata(), BuildOptions{Order: SortNewest})
	if err != nil {
		t.Fatalf("フィードの組み立てに失敗: %v", err)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("生成したフィードのパースに失敗: %v", err)
	}

	first := parsed.Items[0]
	if len(first.Enclosures) != 1 {
		t.Fatalf("enclosure数が期待と異なる: got %d, want 1", len(first.Enclosures))
	}
	enc := first.Enclosures[0]
	if enc.URL != "https://cdn.example.com/audio/ep-a.mp3" {
		t.Errorf("enclosure URLが期待と異なる: got %q", enc.URL)
	}
	if enc.Type != "audio/mpeg" {
		t.Errorf("enclosure typeが期待と異なる: got %q", enc.Type)
	}
	if enc.Length != "2048" {
		t.Errorf("enclosure lengthが期待と異なる: got %q", enc.Length)
	}
}

func TestBuild_Chapters(t *testing.T) {
	episodes := testEpisodes()
	episodes[0].Chapters = []model.Chapter{
		{StartTimeSeconds: 0, Title: "導入"},
		{StartTimeSeconds: 300, Title: "本編"},
	}

	builder := NewBuilder()
	payload, err := builder.Build(episodes, testMetadata(), BuildOptions{})
	if err != nil {
		t.Fatalf("フィードの組み立てに失敗: %v", err)
	}

	xml := string(payload)
	if !strings.Contains(xml, "psc:chapters") {
		t.Error("チャプターを持つエピソードにpsc:chapters要素がない")
	}
	if !strings.Contains(xml, `start="5:00"`) {
		t.Error("チャプター開始時刻がM:SS形式でレンダリングされていない")
	}
	if !strings.Contains(xml, `title="導入"`) {
		t.Error("チャプタータイトルがレンダリングされていない")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{59, "0:59"},
		{65, "1:05"},
		{930, "15:30"},
		{3599, "59:59"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
		{-5, "0:00"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestBuild_EscapesUserText(t *testing.T) {
	episodes := []model.Episode{
		{
			ID:          "ep-x",
			Title:       `<script>alert("x")</script> & more`,
			Description: "a < b",
			AudioURL:    "https://cdn.example.com/audio/ep-x.mp3",
			MimeType:    "audio/mpeg",
			PublishedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	builder := NewBuilder()
	payload, err := builder.Build(episodes, testMetadata(), BuildOptions{})
	if err != nil {
		t.Fatalf("フィードの組み立てに失敗: %v", err)
	}

	if strings.Contains(string(payload), `<script>`) {
		t.Error("タイトル中のマークアップがエスケープされていない")
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("生成したフィードのパースに失敗: %v", err)
	}
	if parsed.Items[0].Title != `<script>alert("x")</script> & more` {
		t.Errorf("ラウンドトリップ後のタイトルが元に戻らない: got %q", parsed.Items[0].Title)
	}
}
