package process

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
)

// --- モック定義 ---

// mockSubmissionRepo はSubmissionRepositoryのテスト用モック。
type mockSubmissionRepo struct {
	claimPendingFunc func(ctx context.Context, limit int) ([]*model.ContentSubmission, error)
}

func (m *mockSubmissionRepo) Create(ctx context.Context, s *model.ContentSubmission) error {
	return nil
}

func (m *mockSubmissionRepo) FindByID(ctx context.Context, id string) (*model.ContentSubmission, error) {
	return nil, nil
}

func (m *mockSubmissionRepo) FindBySourceURL(ctx context.Context, sourceURL string) (*model.ContentSubmission, error) {
	return nil, nil
}

func (m *mockSubmissionRepo) Update(ctx context.Context, s *model.ContentSubmission) error {
	return nil
}

func (m *mockSubmissionRepo) ClaimPending(ctx context.Context, limit int) ([]*model.ContentSubmission, error) {
	if m.claimPendingFunc != nil {
		return m.claimPendingFunc(ctx, limit)
	}
	return nil, nil
}

func (m *mockSubmissionRepo) ListRecent(ctx context.Context, limit int) ([]*model.ContentSubmission, error) {
	return nil, nil
}

// mockRunner はPipelineRunnerのテスト用モック。
type mockRunner struct {
	runFunc func(ctx context.Context, sub model.ContentSubmission) error
}

func (m *mockRunner) Run(ctx context.Context, sub model.ContentSubmission) error {
	if m.runFunc != nil {
		return m.runFunc(ctx, sub)
	}
	return nil
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// claimedSubmissions はClaimPendingが返す確保済み（processing）の投稿を組み立てる。
func claimedSubmissions(n int) []*model.ContentSubmission {
	subs := make([]*model.ContentSubmission, n)
	for i := range subs {
		subs[i] = &model.ContentSubmission{
			ID:          "sub-" + string(rune('a'+i)),
			SourceURL:   "https://example.com/article",
			ContentType: model.ContentTypeWebURL,
			Status:      model.SubmissionStatusProcessing,
		}
	}
	return subs
}

// --- テスト ---

func TestNewScheduler_Defaults(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	s := NewScheduler(&mockSubmissionRepo{}, &mockRunner{}, logger, 0, 0)
	if s.maxConcurrency != 4 {
		t.Errorf("maxConcurrency = %d, want 4 (default)", s.maxConcurrency)
	}
	if s.batchSize != 10 {
		t.Errorf("batchSize = %d, want 10 (default)", s.batchSize)
	}
}

func TestScheduler_RunOnce_ProcessesPendingSubmissions(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	var processedIDs []string
	var mu sync.Mutex

	repo := &mockSubmissionRepo{
		claimPendingFunc: func(ctx context.Context, limit int) ([]*model.ContentSubmission, error) {
			return claimedSubmissions(2), nil
		},
	}
	runner := &mockRunner{
		runFunc: func(ctx context.Context, sub model.ContentSubmission) error {
			mu.Lock()
			processedIDs = append(processedIDs, sub.ID)
			mu.Unlock()
			return nil
		},
	}

	s := NewScheduler(repo, runner, logger, 4, 10)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() がエラーを返した: %v", err)
	}

	if len(processedIDs) != 2 {
		t.Errorf("処理された投稿数 = %d, want 2", len(processedIDs))
	}
}

func TestScheduler_RunOnce_NoPendingSubmissions(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	repo := &mockSubmissionRepo{
		claimPendingFunc: func(ctx context.Context, limit int) ([]*model.ContentSubmission, error) {
			return nil, nil
		},
	}

	s := NewScheduler(repo, &mockRunner{}, logger, 4, 10)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() がエラーを返した: %v", err)
	}
}

func TestScheduler_RunOnce_RepoError(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	repo := &mockSubmissionRepo{
		claimPendingFunc: func(ctx context.Context, limit int) ([]*model.ContentSubmission, error) {
			return nil, errors.New("db connection failed")
		},
	}

	s := NewScheduler(repo, &mockRunner{}, logger, 4, 10)
	if err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("RunOnce() はリポジトリエラー時にエラーを返すべき")
	}
}

func TestScheduler_RunOnce_ConcurrencyLimit(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	var maxConcurrent int32
	var currentConcurrent int32
	var runCount int32

	repo := &mockSubmissionRepo{
		claimPendingFunc: func(ctx context.Context, limit int) ([]*model.ContentSubmission, error) {
			return claimedSubmissions(20), nil
		},
	}
	runner := &mockRunner{
		runFunc: func(ctx context.Context, sub model.ContentSubmission) error {
			current := atomic.AddInt32(&currentConcurrent, 1)
			defer atomic.AddInt32(&currentConcurrent, -1)
			atomic.AddInt32(&runCount, 1)

			// 最大同時実行数を記録
			for {
				old := atomic.LoadInt32(&maxConcurrent)
				if current <= old {
					break
				}
				if atomic.CompareAndSwapInt32(&maxConcurrent, old, current) {
					break
				}
			}

			// 少し待つことで並列実行を促す
			time.Sleep(10 * time.Millisecond)
			return nil
		},
	}

	s := NewScheduler(repo, runner, logger, 3, 20)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() がエラーを返した: %v", err)
	}

	if atomic.LoadInt32(&runCount) != 20 {
		t.Errorf("処理回数 = %d, want 20", atomic.LoadInt32(&runCount))
	}
	if atomic.LoadInt32(&maxConcurrent) > 3 {
		t.Errorf("最大同時実行数 = %d, 3以下であるべき", atomic.LoadInt32(&maxConcurrent))
	}
}

func TestScheduler_RunOnce_RunErrorDoesNotStopOthers(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	var runCount int32

	repo := &mockSubmissionRepo{
		claimPendingFunc: func(ctx context.Context, limit int) ([]*model.ContentSubmission, error) {
			return claimedSubmissions(3), nil
		},
	}
	runner := &mockRunner{
		runFunc: func(ctx context.Context, sub model.ContentSubmission) error {
			atomic.AddInt32(&runCount, 1)
			if sub.ID == "sub-b" {
				return errors.New("pipeline failed")
			}
			return nil
		},
	}

	s := NewScheduler(repo, runner, logger, 4, 10)
	// 個別投稿の処理エラーはRunOnceのエラーとはならない
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() は個別処理エラーでもエラーを返さないべき: %v", err)
	}

	if atomic.LoadInt32(&runCount) != 3 {
		t.Errorf("全投稿の処理が試行されるべき: got %d, want 3", atomic.LoadInt32(&runCount))
	}

	logOutput := buf.String()
	if !strings.Contains(logOutput, "ERROR") {
		t.Errorf("処理エラー時にERRORレベルのログが記録されていない: %s", logOutput)
	}
}

func TestScheduler_RunOnce_RespectsContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // 即座にキャンセル

	repo := &mockSubmissionRepo{
		claimPendingFunc: func(ctx context.Context, limit int) ([]*model.ContentSubmission, error) {
			return nil, ctx.Err()
		},
	}

	s := NewScheduler(repo, &mockRunner{}, logger, 4, 10)
	if err := s.RunOnce(ctx); err == nil {
		t.Fatal("キャンセル済みコンテキストではエラーが返るべき")
	}
}
