package repository

import (
	"strings"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// PostgresEpisodeRepoはEpisodeRepositoryインターフェースを満たすことを検証
func TestPostgresEpisodeRepo_ImplementsInterface(t *testing.T) {
	var _ EpisodeRepository = (*PostgresEpisodeRepo)(nil)
}

// 絞り込みなしのListクエリにWHERE句が含まれないことを検証
func TestEpisodeListQuery_NoFilter(t *testing.T) {
	repo := NewPostgresEpisodeRepo(nil)

	query, args, err := repo.builder.
		Select(episodeColumns...).
		From("episodes").
		OrderBy("published_at DESC").
		ToSql()
	if err != nil {
		t.Fatalf("クエリの構築に失敗: %v", err)
	}

	if strings.Contains(query, "WHERE") {
		t.Errorf("絞り込みなしのクエリにWHERE句がある: %s", query)
	}
	if len(args) != 0 {
		t.Errorf("絞り込みなしのクエリに引数がある: %v", args)
	}
	if !strings.Contains(query, "ORDER BY published_at DESC") {
		t.Error("公開日時の降順になっていない")
	}
}

// フィルタ条件ごとにプレースホルダと引数が積まれることを検証
func TestEpisodeListQuery_WithFilters(t *testing.T) {
	repo := NewPostgresEpisodeRepo(nil)
	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	q := repo.builder.
		Select(episodeColumns...).
		From("episodes").
		OrderBy("published_at DESC").
		Where(sq.Eq{"feed_id": "feed-1"}).
		Where(sq.GtOrEq{"published_at": after}).
		Where(sq.ILike{"title": "%ニュース%"}).
		Limit(10).
		Offset(20)

	query, args, err := q.ToSql()
	if err != nil {
		t.Fatalf("クエリの構築に失敗: %v", err)
	}

	for _, want := range []string{"feed_id = $1", "published_at >= $2", "title ILIKE $3", "LIMIT 10", "OFFSET 20"} {
		if !strings.Contains(query, want) {
			t.Errorf("クエリに%qが含まれない: %s", want, query)
		}
	}
	if len(args) != 3 {
		t.Errorf("引数の数が期待と異なる: got %d, want 3", len(args))
	}
}

// チャプターのJSONBエンコードが空で省略されることを検証
func TestMarshalChapters_EmptyIsNil(t *testing.T) {
	out, err := marshalChapters(nil)
	if err != nil {
		t.Fatalf("エンコードに失敗: %v", err)
	}
	if out != nil {
		t.Errorf("空チャプターがnilにならない: %v", out)
	}
}
