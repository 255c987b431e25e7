package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
)

// PostgresJobRepo はPostgreSQLを使用した処理ジョブリポジトリ。
type PostgresJobRepo struct {
	db *sql.DB
}

// NewPostgresJobRepo はPostgresJobRepoを生成する。
func NewPostgresJobRepo(db *sql.DB) *PostgresJobRepo {
	return &PostgresJobRepo{db: db}
}

const jobColumns = `id, submission_id, status, progress, current_step,
	        retry_count, max_retries, error_message,
	        started_at, completed_at, created_at, updated_at`

// Create はジョブを作成する。
func (r *PostgresJobRepo) Create(ctx context.Context, job *model.ProcessingJob) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO processing_jobs (id, submission_id, status, progress, current_step,
		                              retry_count, max_retries, error_message,
		                              started_at, completed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID, job.SubmissionID, job.Status, job.Progress, nullString(job.CurrentStep),
		job.RetryCount, job.MaxRetries, nullString(job.ErrorMessage),
		job.StartedAt, job.CompletedAt, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ジョブの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのジョブを取得する。見つからない場合はnilを返す。
func (r *PostgresJobRepo) FindByID(ctx context.Context, id string) (*model.ProcessingJob, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM processing_jobs WHERE id = $1`, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ジョブの取得に失敗しました: %w", err)
	}
	return job, nil
}

// FindLatestBySubmissionID は指定投稿の最新ジョブを取得する。見つからない場合はnilを返す。
func (r *PostgresJobRepo) FindLatestBySubmissionID(ctx context.Context, submissionID string) (*model.ProcessingJob, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+`
		 FROM processing_jobs
		 WHERE submission_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		submissionID)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("投稿IDによるジョブの検索に失敗しました: %w", err)
	}
	return job, nil
}

// Update はジョブの状態を上書き更新する。
func (r *PostgresJobRepo) Update(ctx context.Context, job *model.ProcessingJob) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE processing_jobs SET
		    status = $2, progress = $3, current_step = $4,
		    retry_count = $5, error_message = $6,
		    started_at = $7, completed_at = $8, updated_at = $9
		 WHERE id = $1`,
		job.ID, job.Status, job.Progress, nullString(job.CurrentStep),
		job.RetryCount, nullString(job.ErrorMessage),
		job.StartedAt, job.CompletedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ジョブの更新に失敗しました: %w", err)
	}
	return nil
}

// CountRetriesSince は指定時刻以降に発生したリトライの総数を返す。
func (r *PostgresJobRepo) CountRetriesSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(retry_count), 0) FROM processing_jobs WHERE updated_at >= $1`,
		since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("リトライ数の集計に失敗しました: %w", err)
	}
	return count, nil
}

// scanJob は1行分のジョブを読み取る。
func scanJob(row rowScanner) (*model.ProcessingJob, error) {
	job := &model.ProcessingJob{}
	var currentStep, errorMessage sql.NullString

	err := row.Scan(
		&job.ID, &job.SubmissionID, &job.Status, &job.Progress, &currentStep,
		&job.RetryCount, &job.MaxRetries, &errorMessage,
		&job.StartedAt, &job.CompletedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.CurrentStep = nullStringValue(currentStep)
	job.ErrorMessage = nullStringValue(errorMessage)
	return job, nil
}

// compile-time interface check
var _ JobRepository = (*PostgresJobRepo)(nil)
