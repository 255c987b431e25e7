package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
)

// PostgresEpisodeRepo はPostgreSQLを使用したエピソードリポジトリ。
type PostgresEpisodeRepo struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// NewPostgresEpisodeRepo はPostgresEpisodeRepoを生成する。
func NewPostgresEpisodeRepo(db *sql.DB) *PostgresEpisodeRepo {
	return &PostgresEpisodeRepo{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

var episodeColumns = []string{
	"id", "feed_id", "submission_id", "title", "description",
	"audio_url", "audio_size_bytes", "mime_type", "duration_seconds",
	"published_at", "chapters", "transcript", "created_at", "updated_at",
}

// Create はエピソードを作成する。
func (r *PostgresEpisodeRepo) Create(ctx context.Context, episode *model.Episode) error {
	chapters, err := marshalChapters(episode.Chapters)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO episodes (id, feed_id, submission_id, title, description,
		                       audio_url, audio_size_bytes, mime_type, duration_seconds,
		                       published_at, chapters, transcript, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		episode.ID, episode.FeedID, episode.SubmissionID, episode.Title, episode.Description,
		episode.AudioURL, episode.AudioSizeBytes, episode.MimeType, episode.DurationSeconds,
		episode.PublishedAt, chapters, nullString(episode.Transcript),
		episode.CreatedAt, episode.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("エピソードの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのエピソードを取得する。見つからない場合はnilを返す。
func (r *PostgresEpisodeRepo) FindByID(ctx context.Context, id string) (*model.Episode, error) {
	query, args, err := r.builder.
		Select(episodeColumns...).
		From("episodes").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("エピソード取得クエリの構築に失敗しました: %w", err)
	}

	episode, err := scanEpisode(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("エピソードの取得に失敗しました: %w", err)
	}
	return episode, nil
}

// ListByFeed はフィードの全エピソードを公開日時の新しい順に返す。
func (r *PostgresEpisodeRepo) ListByFeed(ctx context.Context, feedID string) ([]model.Episode, error) {
	return r.List(ctx, EpisodeListFilter{FeedID: feedID})
}

// List は動的な絞り込み条件でエピソード一覧を取得する。
// ゼロ値のフィールドは条件に含めない。常に公開日時の新しい順。
func (r *PostgresEpisodeRepo) List(ctx context.Context, filter EpisodeListFilter) ([]model.Episode, error) {
	q := r.builder.
		Select(episodeColumns...).
		From("episodes").
		OrderBy("published_at DESC")

	if filter.FeedID != "" {
		q = q.Where(sq.Eq{"feed_id": filter.FeedID})
	}
	if !filter.PublishedAfter.IsZero() {
		q = q.Where(sq.GtOrEq{"published_at": filter.PublishedAfter})
	}
	if !filter.PublishedBefore.IsZero() {
		q = q.Where(sq.Lt{"published_at": filter.PublishedBefore})
	}
	if filter.TitleQuery != "" {
		q = q.Where(sq.ILike{"title": "%" + filter.TitleQuery + "%"})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("エピソード一覧クエリの構築に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("エピソード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var episodes []model.Episode
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("エピソードの読み取りに失敗しました: %w", err)
		}
		episodes = append(episodes, *episode)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("エピソードの走査に失敗しました: %w", err)
	}
	return episodes, nil
}

// scanEpisode は1行分のエピソードを読み取る。
func scanEpisode(row rowScanner) (*model.Episode, error) {
	episode := &model.Episode{}
	var chapters []byte
	var transcript sql.NullString

	err := row.Scan(
		&episode.ID, &episode.FeedID, &episode.SubmissionID,
		&episode.Title, &episode.Description,
		&episode.AudioURL, &episode.AudioSizeBytes, &episode.MimeType, &episode.DurationSeconds,
		&episode.PublishedAt, &chapters, &transcript,
		&episode.CreatedAt, &episode.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	episode.Transcript = nullStringValue(transcript)
	if len(chapters) > 0 {
		if err := json.Unmarshal(chapters, &episode.Chapters); err != nil {
			return nil, fmt.Errorf("チャプターのデコードに失敗しました: %w", err)
		}
	}
	return episode, nil
}

// marshalChapters はチャプター一覧をJSONBカラム用にエンコードする。
func marshalChapters(chapters []model.Chapter) ([]byte, error) {
	if len(chapters) == 0 {
		return nil, nil
	}
	out, err := json.Marshal(chapters)
	if err != nil {
		return nil, fmt.Errorf("チャプターのエンコードに失敗しました: %w", err)
	}
	return out, nil
}

// compile-time interface check
var _ EpisodeRepository = (*PostgresEpisodeRepo)(nil)
