// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
)

// SubmissionRepository は投稿データの永続化インターフェース。
type SubmissionRepository interface {
	// Create は投稿を作成する。
	Create(ctx context.Context, submission *model.ContentSubmission) error

	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ContentSubmission, error)

	// FindBySourceURL はソースURLで非終端の投稿を検索する。見つからない場合はnilを返す。
	// 同一URLの重複投稿の検出に使う。
	FindBySourceURL(ctx context.Context, sourceURL string) (*model.ContentSubmission, error)

	// Update は投稿の状態を上書き更新する。
	Update(ctx context.Context, submission *model.ContentSubmission) error

	// ClaimPending は処理待ちの投稿を作成日時の古い順にprocessingへ
	// 遷移させながら確保する。確保は1文で原子的に行われ、
	// 複数プロセスのスケジューラが同じ投稿を取得することはない。
	ClaimPending(ctx context.Context, limit int) ([]*model.ContentSubmission, error)

	// ListRecent は投稿を作成日時の新しい順に取得する。
	ListRecent(ctx context.Context, limit int) ([]*model.ContentSubmission, error)
}

// JobRepository は処理ジョブの永続化インターフェース。
type JobRepository interface {
	// Create はジョブを作成する。
	Create(ctx context.Context, job *model.ProcessingJob) error

	// FindByID は指定IDのジョブを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ProcessingJob, error)

	// FindLatestBySubmissionID は指定投稿の最新ジョブを取得する。
	// 見つからない場合はnilを返す。
	FindLatestBySubmissionID(ctx context.Context, submissionID string) (*model.ProcessingJob, error)

	// Update はジョブの状態を上書き更新する。
	Update(ctx context.Context, job *model.ProcessingJob) error

	// CountRetriesSince は指定時刻以降に発生したリトライの総数を返す。
	CountRetriesSince(ctx context.Context, since time.Time) (int, error)
}

// EpisodeListFilter はエピソード一覧の動的絞り込み条件。
// ゼロ値のフィールドは条件に含めない。
type EpisodeListFilter struct {
	FeedID          string
	PublishedAfter  time.Time
	PublishedBefore time.Time
	TitleQuery      string
	Limit           int
	Offset          int
}

// EpisodeRepository は公開エピソードの永続化インターフェース。
type EpisodeRepository interface {
	// Create はエピソードを作成する。
	Create(ctx context.Context, episode *model.Episode) error

	// FindByID は指定IDのエピソードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Episode, error)

	// ListByFeed はフィードの全エピソードを公開日時の新しい順に返す。
	ListByFeed(ctx context.Context, feedID string) ([]model.Episode, error)

	// List は動的な絞り込み条件でエピソード一覧を取得する。
	List(ctx context.Context, filter EpisodeListFilter) ([]model.Episode, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
