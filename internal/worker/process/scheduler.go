// Package process は投稿のバックグラウンド処理を提供する。
// スケジューラが処理待ちの投稿を取得し、並列制御のもとで
// パイプラインへ投入する。
package process

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/repository"
)

// PipelineRunner は投稿1件のパイプライン実行インターフェース。
type PipelineRunner interface {
	// Run は投稿をエピソード公開まで処理する。
	Run(ctx context.Context, sub model.ContentSubmission) error
}

// Scheduler は投稿処理のスケジューリングと並列制御を行う。
// 一定間隔のティッカーで処理待ち投稿を取得し、
// semaphoreパターンで最大並列数を制御しながらパイプラインを実行する。
type Scheduler struct {
	submissionRepo repository.SubmissionRepository
	runner         PipelineRunner
	logger         *slog.Logger
	maxConcurrency int
	batchSize      int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4、
// batchSizeが0以下の場合はデフォルト値10を使用する。
func NewScheduler(
	submissionRepo repository.SubmissionRepository,
	runner PipelineRunner,
	logger *slog.Logger,
	maxConcurrency int,
	batchSize int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Scheduler{
		submissionRepo: submissionRepo,
		runner:         runner,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		batchSize:      batchSize,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("処理スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("処理サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("処理スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("処理サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は処理待ち投稿を1回確保し、並列でパイプラインを実行する。
// semaphoreパターンで最大並列数を制御する。
// 1件の失敗は同一サイクル内の他の投稿に影響しない。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	// 処理待ち投稿を原子的に確保する。確保済みの投稿はprocessingに
	// 遷移しているため、並走する別プロセスのサイクルには現れない
	submissions, err := s.submissionRepo.ClaimPending(ctx, s.batchSize)
	if err != nil {
		return err
	}

	if len(submissions) == 0 {
		s.logger.Debug("処理待ちの投稿はありません")
		return nil
	}

	s.logger.Info("処理サイクルを開始します",
		slog.Int("submission_count", len(submissions)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, submission := range submissions {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(sub model.ContentSubmission) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := s.runner.Run(ctx, sub); err != nil {
				s.logger.Error("投稿の処理に失敗しました",
					slog.String("submission_id", sub.ID),
					slog.String("source_url", sub.SourceURL),
					slog.String("error", err.Error()),
				)
			}
		}(*submission)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("処理サイクルが完了しました",
		slog.Int("submission_count", len(submissions)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
