package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
)

// PostgresSubmissionRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresSubmissionRepo struct {
	db *sql.DB
}

// NewPostgresSubmissionRepo はPostgresSubmissionRepoを生成する。
func NewPostgresSubmissionRepo(db *sql.DB) *PostgresSubmissionRepo {
	return &PostgresSubmissionRepo{db: db}
}

const submissionColumns = `id, source_url, content_type, user_note, status,
	        error_message, extracted_content, metadata,
	        created_at, updated_at, processed_at`

// Create は投稿を作成する。
func (r *PostgresSubmissionRepo) Create(ctx context.Context, submission *model.ContentSubmission) error {
	metadata, err := marshalMetadata(submission.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO submissions (id, source_url, content_type, user_note, status,
		                          error_message, extracted_content, metadata,
		                          created_at, updated_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		submission.ID, submission.SourceURL, submission.ContentType,
		nullString(submission.UserNote), submission.Status,
		nullString(submission.ErrorMessage), nullString(submission.ExtractedContent),
		metadata, submission.CreatedAt, submission.UpdatedAt, submission.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresSubmissionRepo) FindByID(ctx context.Context, id string) (*model.ContentSubmission, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)

	submission, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	return submission, nil
}

// FindBySourceURL はソースURLで非終端の投稿を検索する。見つからない場合はnilを返す。
func (r *PostgresSubmissionRepo) FindBySourceURL(ctx context.Context, sourceURL string) (*model.ContentSubmission, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+`
		 FROM submissions
		 WHERE source_url = $1 AND status IN ('pending', 'processing')
		 ORDER BY created_at DESC
		 LIMIT 1`,
		sourceURL)

	submission, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ソースURLによる投稿の検索に失敗しました: %w", err)
	}
	return submission, nil
}

// Update は投稿の状態を上書き更新する。
func (r *PostgresSubmissionRepo) Update(ctx context.Context, submission *model.ContentSubmission) error {
	metadata, err := marshalMetadata(submission.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE submissions SET
		    status = $2, error_message = $3, extracted_content = $4,
		    metadata = $5, updated_at = $6, processed_at = $7
		 WHERE id = $1`,
		submission.ID, submission.Status,
		nullString(submission.ErrorMessage), nullString(submission.ExtractedContent),
		metadata, submission.UpdatedAt, submission.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}
	return nil
}

// claimPendingQuery は処理待ち投稿の確保を1文で行う。
// 単発のSELECT ... FOR UPDATE SKIP LOCKEDは自動コミットで文の終了と同時に
// ロックが外れるため、選択とステータス更新を分けると別プロセスの
// スケジューラが同じ行を取得しうる。UPDATEにまとめて原子的に確保する。
const claimPendingQuery = `UPDATE submissions
	 SET status = 'processing', updated_at = NOW()
	 WHERE id IN (
	     SELECT id FROM submissions
	     WHERE status = 'pending'
	     ORDER BY created_at ASC
	     LIMIT $1
	     FOR UPDATE SKIP LOCKED
	 )
	 RETURNING ` + submissionColumns

// ClaimPending は処理待ちの投稿をprocessingへ遷移させながら確保する。
// 返される投稿は確保済み（processing）で、呼び出し側の再遷移は不要。
func (r *PostgresSubmissionRepo) ClaimPending(ctx context.Context, limit int) ([]*model.ContentSubmission, error) {
	rows, err := r.db.QueryContext(ctx, claimPendingQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("処理待ち投稿の確保に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectSubmissions(rows)
}

// ListRecent は投稿を作成日時の新しい順に取得する。
func (r *PostgresSubmissionRepo) ListRecent(ctx context.Context, limit int) ([]*model.ContentSubmission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+submissionColumns+`
		 FROM submissions
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectSubmissions(rows)
}

// rowScanner はsql.Rowとsql.Rowsの共通スキャンインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSubmission は1行分の投稿を読み取る。
func scanSubmission(row rowScanner) (*model.ContentSubmission, error) {
	submission := &model.ContentSubmission{}
	var userNote, errorMessage, extractedContent sql.NullString
	var metadata []byte

	err := row.Scan(
		&submission.ID, &submission.SourceURL, &submission.ContentType,
		&userNote, &submission.Status, &errorMessage, &extractedContent,
		&metadata, &submission.CreatedAt, &submission.UpdatedAt, &submission.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}

	submission.UserNote = nullStringValue(userNote)
	submission.ErrorMessage = nullStringValue(errorMessage)
	submission.ExtractedContent = nullStringValue(extractedContent)

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &submission.Metadata); err != nil {
			return nil, fmt.Errorf("投稿メタデータのデコードに失敗しました: %w", err)
		}
	}
	return submission, nil
}

// collectSubmissions は複数行の投稿を読み取る。
func collectSubmissions(rows *sql.Rows) ([]*model.ContentSubmission, error) {
	var submissions []*model.ContentSubmission
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("投稿の読み取りに失敗しました: %w", err)
		}
		submissions = append(submissions, submission)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿の走査に失敗しました: %w", err)
	}
	return submissions, nil
}

// marshalMetadata はメタデータをJSONBカラム用にエンコードする。
func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	out, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("投稿メタデータのエンコードに失敗しました: %w", err)
	}
	return out, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ SubmissionRepository = (*PostgresSubmissionRepo)(nil)
