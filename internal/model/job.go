// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus は処理ジョブのステータスを表す。
type JobStatus string

const (
	// JobStatusQueued は実行待ちの状態。
	JobStatusQueued JobStatus = "queued"
	// JobStatusRunning は実行中の状態。
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted は正常完了の状態。
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed は失敗の状態。リトライ残があればqueuedに戻せる。
	JobStatusFailed JobStatus = "failed"
)

// DefaultMaxRetries はジョブのデフォルトリトライ上限。
const DefaultMaxRetries = 3

// ProcessingJob は1つの投稿に対するリトライ可能な実行追跡を表す。
// 投稿ステータスとは独立した副次ステートマシンであり、
// 1つの投稿が複数回の逐次ジョブ試行を生むことがある。
// すべての操作は新しい値を返し、既存値を書き換えない。
type ProcessingJob struct {
	ID           string
	SubmissionID string
	Status       JobStatus
	Progress     int // 進捗率 [0,100]
	CurrentStep  string
	RetryCount   int
	MaxRetries   int
	ErrorMessage string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewProcessingJob は指定投稿に紐づく新規ジョブをqueuedステータスで生成する。
// maxRetriesが0以下の場合はDefaultMaxRetriesを使用する。
func NewProcessingJob(submissionID string, maxRetries int) ProcessingJob {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	now := time.Now()
	return ProcessingJob{
		ID:           uuid.New().String(),
		SubmissionID: submissionID,
		Status:       JobStatusQueued,
		MaxRetries:   maxRetries,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Start はジョブを実行中に遷移させた新しい値を返す（queued -> running）。
// 開始時刻を刻印する。
func (j ProcessingJob) Start() (ProcessingJob, error) {
	if j.Status != JobStatusQueued {
		return ProcessingJob{}, NewInvalidStateTransitionError("start", j.Status)
	}
	now := time.Now()
	next := j
	next.Status = JobStatusRunning
	next.StartedAt = &now
	next.UpdatedAt = now
	return next, nil
}

// UpdateProgress は進捗率と現在ステップを更新した新しい値を返す。
// running状態でのみ有効。進捗率は[0,100]の範囲を要求する。
// stepが空文字の場合は現在ステップを維持する。
func (j ProcessingJob) UpdateProgress(pct int, step string) (ProcessingJob, error) {
	if j.Status != JobStatusRunning {
		return ProcessingJob{}, NewInvalidStateTransitionError("update_progress", j.Status)
	}
	if pct < 0 || pct > 100 {
		return ProcessingJob{}, NewValidationError("進捗率は0から100の範囲で指定してください")
	}
	next := j
	next.Progress = pct
	if step != "" {
		next.CurrentStep = step
	}
	next.UpdatedAt = time.Now()
	return next, nil
}

// Complete はジョブを完了に遷移させた新しい値を返す（running -> completed）。
// 進捗率を100に強制し、完了時刻を刻印する。
func (j ProcessingJob) Complete() (ProcessingJob, error) {
	if j.Status != JobStatusRunning {
		return ProcessingJob{}, NewInvalidStateTransitionError("complete", j.Status)
	}
	now := time.Now()
	next := j
	next.Status = JobStatusCompleted
	next.Progress = 100
	next.CompletedAt = &now
	next.UpdatedAt = now
	return next, nil
}

// Fail はジョブを失敗に遷移させた新しい値を返す（running -> failed）。
// エラーメッセージは必須で、終了時刻を刻印する。
func (j ProcessingJob) Fail(message string) (ProcessingJob, error) {
	if j.Status != JobStatusRunning {
		return ProcessingJob{}, NewInvalidStateTransitionError("fail", j.Status)
	}
	if strings.TrimSpace(message) == "" {
		return ProcessingJob{}, NewValidationError("失敗理由のメッセージは必須です")
	}
	now := time.Now()
	next := j
	next.Status = JobStatusFailed
	next.ErrorMessage = message
	next.CompletedAt = &now
	next.UpdatedAt = now
	return next, nil
}

// Retry はジョブを再実行待ちに戻した新しい値を返す（failed -> queued）。
// リトライ回数をインクリメントし、進捗・ステップ・エラー・時刻をクリアする。
// リトライ上限に達している場合はMaxRetriesExceededで拒否する。
func (j ProcessingJob) Retry() (ProcessingJob, error) {
	if j.Status != JobStatusFailed {
		return ProcessingJob{}, NewInvalidStateTransitionError("retry", j.Status)
	}
	if j.RetryCount >= j.MaxRetries {
		return ProcessingJob{}, NewMaxRetriesExceededError(j.RetryCount, j.MaxRetries)
	}
	next := j
	next.Status = JobStatusQueued
	next.RetryCount = j.RetryCount + 1
	next.Progress = 0
	next.CurrentStep = ""
	next.ErrorMessage = ""
	next.StartedAt = nil
	next.CompletedAt = nil
	next.UpdatedAt = time.Now()
	return next, nil
}

// CanRetry はリトライ可能（failedかつリトライ残あり）かどうかを返す。
func (j ProcessingJob) CanRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}
