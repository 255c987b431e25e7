// Package pipeline は投稿からエピソード公開までの逐次処理パイプラインを提供する。
// 抽出、台本生成、検証、音声解決、合成、格納、公開の各ステージを
// 1つの投稿に対して順に実行し、ジョブのリトライサイクルを管理する。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/metrics"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/repository"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/script"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/storage"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/tts"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/voice"
)

// Extractor は投稿からコンテンツを抽出するインターフェース。
type Extractor interface {
	Extract(ctx context.Context, sub model.ContentSubmission) (*model.ExtractedContent, error)
}

// VoiceSelector は音声をフォールバックチェーンで解決するインターフェース。
type VoiceSelector interface {
	SelectWithFallback(ctx context.Context, preferredVoiceID, locale string) voice.Selection
}

// AudioGenerator はテキストから音声を生成するインターフェース。
type AudioGenerator interface {
	Generate(ctx context.Context, text string, cfg tts.VoiceConfig) (*tts.GenerateResult, error)
}

// FeedInvalidator はフィードキャッシュの無効化インターフェース。
type FeedInvalidator interface {
	Invalidate(feedID string)
}

// ProgressNotifier はジョブの進捗を購読者へ通知するインターフェース。
type ProgressNotifier interface {
	NotifyProgress(job model.ProcessingJob)
}

// Options はRunnerの動作設定。
type Options struct {
	FeedID         string
	DefaultLocale  string
	PreferredVoice string
	Tone           string
	MaxRetries     int
	// PrimaryProvider はフォールバック検出用のプライマリTTSプロバイダー名。
	PrimaryProvider string
}

// Runner は1投稿分のパイプライン実行とジョブライフサイクルを管理する。
type Runner struct {
	submissionRepo repository.SubmissionRepository
	jobRepo        repository.JobRepository
	episodeRepo    repository.EpisodeRepository
	extractor      Extractor
	generator      script.Generator
	validator      *script.Validator
	selector       VoiceSelector
	audio          AudioGenerator
	objects        storage.ObjectStorage
	cdn            storage.CDNPurger
	feeds          FeedInvalidator
	notifier       ProgressNotifier
	collector      metrics.MetricsCollector
	logger         *slog.Logger
	opts           Options
}

// NewRunner はRunnerの新しいインスタンスを生成する。
// cdnとnotifierはnil許容で、nilの場合は該当ステージをスキップする。
func NewRunner(
	submissionRepo repository.SubmissionRepository,
	jobRepo repository.JobRepository,
	episodeRepo repository.EpisodeRepository,
	extractor Extractor,
	generator script.Generator,
	validator *script.Validator,
	selector VoiceSelector,
	audio AudioGenerator,
	objects storage.ObjectStorage,
	cdn storage.CDNPurger,
	feeds FeedInvalidator,
	notifier ProgressNotifier,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	opts Options,
) *Runner {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = model.DefaultMaxRetries
	}
	return &Runner{
		submissionRepo: submissionRepo,
		jobRepo:        jobRepo,
		episodeRepo:    episodeRepo,
		extractor:      extractor,
		generator:      generator,
		validator:      validator,
		selector:       selector,
		audio:          audio,
		objects:        objects,
		cdn:            cdn,
		feeds:          feeds,
		notifier:       notifier,
		collector:      collector,
		logger:         logger,
		opts:           opts,
	}
}

// stageError はどのステージで失敗したかを失敗原因に添える。
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string {
	return fmt.Sprintf("ステージ %s: %v", e.stage, e.err)
}

func (e *stageError) Unwrap() error {
	return e.err
}

// Run は投稿1件をパイプライン処理する。
// ジョブのリトライサイクルを回し、成功すればcompleted、
// リトライ尽きれば失敗原因付きでfailedへ遷移させる。
// スケジューラ経由の投稿はClaimPendingで確保済み（processing）なので
// そのまま処理し、pendingの投稿はここでprocessingへ遷移させる。
func (r *Runner) Run(ctx context.Context, sub model.ContentSubmission) error {
	if sub.Status == model.SubmissionStatusPending {
		processing, err := sub.Transition(model.SubmissionStatusProcessing, "")
		if err != nil {
			return err
		}
		if err := r.submissionRepo.Update(ctx, &processing); err != nil {
			return err
		}
		sub = processing
	}

	job := model.NewProcessingJob(sub.ID, r.opts.MaxRetries)
	if err := r.jobRepo.Create(ctx, &job); err != nil {
		return err
	}

	for {
		started, err := job.Start()
		if err != nil {
			return err
		}
		job = started
		if err := r.jobRepo.Update(ctx, &job); err != nil {
			return err
		}

		runErr := r.runStages(ctx, &sub, &job)
		if runErr == nil {
			completed, err := job.Complete()
			if err != nil {
				return err
			}
			job = completed
			if err := r.jobRepo.Update(ctx, &job); err != nil {
				return err
			}
			r.notify(job)

			done, err := sub.Transition(model.SubmissionStatusCompleted, "")
			if err != nil {
				return err
			}
			if err := r.submissionRepo.Update(ctx, &done); err != nil {
				return err
			}
			r.collector.RecordPipelineSuccess()
			r.logger.Info("パイプライン処理が完了しました",
				slog.String("submission_id", sub.ID),
				slog.Int("retry_count", job.RetryCount),
			)
			return nil
		}

		stage := stageOf(runErr)
		r.collector.RecordPipelineFailure(stage)
		r.logger.Error("パイプラインステージが失敗しました",
			slog.String("submission_id", sub.ID),
			slog.String("stage", stage),
			slog.Int("retry_count", job.RetryCount),
			slog.String("error", runErr.Error()),
		)

		failed, err := job.Fail(runErr.Error())
		if err != nil {
			return err
		}
		job = failed
		if err := r.jobRepo.Update(ctx, &job); err != nil {
			return err
		}
		r.notify(job)

		if ctx.Err() == nil && isRetryable(runErr) && job.CanRetry() {
			requeued, err := job.Retry()
			if err != nil {
				return err
			}
			job = requeued
			if err := r.jobRepo.Update(ctx, &job); err != nil {
				return err
			}
			r.collector.RecordJobRetry()
			r.logger.Info("ジョブを再実行します",
				slog.String("submission_id", sub.ID),
				slog.Int("retry_count", job.RetryCount),
				slog.Int("max_retries", job.MaxRetries),
			)
			continue
		}

		terminal, err := sub.Transition(model.SubmissionStatusFailed, runErr.Error())
		if err != nil {
			return err
		}
		if err := r.submissionRepo.Update(ctx, &terminal); err != nil {
			return err
		}
		return runErr
	}
}

// runStages は抽出から公開までのステージを順に実行する。
// 各ステージの前にコンテキストのキャンセルを確認する。
func (r *Runner) runStages(ctx context.Context, sub *model.ContentSubmission, job *model.ProcessingJob) error {
	// 抽出
	if err := ctx.Err(); err != nil {
		return &stageError{stage: "extraction", err: err}
	}
	r.progress(ctx, job, 10, "extraction")

	extractStart := time.Now()
	content, err := r.extractor.Extract(ctx, *sub)
	if err != nil {
		return &stageError{stage: "extraction", err: err}
	}
	r.collector.RecordStageLatency("extraction", time.Since(extractStart))

	enriched := sub.WithExtractedContent(content.Body, content.Metadata)
	if err := r.submissionRepo.Update(ctx, &enriched); err != nil {
		return &stageError{stage: "extraction", err: err}
	}
	*sub = enriched

	// 台本生成と検証。ハード違反の台本は合成へ進めず、一度だけ作り直す。
	if err := ctx.Err(); err != nil {
		return &stageError{stage: "script_generation", err: err}
	}
	r.progress(ctx, job, 30, "script_generation")

	scriptStart := time.Now()
	scriptText, err := r.generateValidScript(ctx, content)
	if err != nil {
		return &stageError{stage: "script_generation", err: err}
	}
	r.collector.RecordStageLatency("script_generation", time.Since(scriptStart))

	// 音声解決
	if err := ctx.Err(); err != nil {
		return &stageError{stage: "voice_selection", err: err}
	}
	r.progress(ctx, job, 50, "voice_selection")

	locale := content.Language
	if locale == "" {
		locale = r.opts.DefaultLocale
	}
	selection := r.selector.SelectWithFallback(ctx, r.opts.PreferredVoice, locale)
	if selection.WasFallback {
		r.collector.RecordVoiceFallback(selection.FallbackLevel)
	}

	// 音声合成
	if err := ctx.Err(); err != nil {
		return &stageError{stage: "tts", err: err}
	}
	r.progress(ctx, job, 60, "tts")

	ttsStart := time.Now()
	result, err := r.audio.Generate(ctx, scriptText, tts.VoiceConfig{
		VoiceID: selection.VoiceID,
		Locale:  locale,
		Speed:   1.0,
	})
	if err != nil {
		return &stageError{stage: "tts", err: err}
	}
	r.collector.RecordStageLatency("tts", time.Since(ttsStart))
	if r.opts.PrimaryProvider != "" && result.ProviderUsed != r.opts.PrimaryProvider {
		r.collector.RecordProviderFallback()
	}

	// 格納
	if err := ctx.Err(); err != nil {
		return &stageError{stage: "storage", err: err}
	}
	r.progress(ctx, job, 80, "storage")

	key := fmt.Sprintf("audio/%s.mp3", sub.ID)
	stored, err := r.objects.Put(ctx, key, "audio/mpeg", result.Audio)
	if err != nil {
		return &stageError{stage: "storage", err: err}
	}

	// エピソード公開とフィード無効化
	if err := ctx.Err(); err != nil {
		return &stageError{stage: "publish", err: err}
	}
	r.progress(ctx, job, 90, "publish")

	now := time.Now()
	episode := model.Episode{
		ID:              uuid.New().String(),
		FeedID:          r.opts.FeedID,
		SubmissionID:    sub.ID,
		Title:           content.Title,
		Description:     sub.UserNote,
		AudioURL:        stored.URL,
		AudioSizeBytes:  int64(len(result.Audio)),
		MimeType:        "audio/mpeg",
		DurationSeconds: result.DurationSeconds,
		PublishedAt:     now,
		Transcript:      scriptText,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.episodeRepo.Create(ctx, &episode); err != nil {
		return &stageError{stage: "publish", err: err}
	}

	// CDNパージは非致命。失敗しても公開は成立している。
	if r.cdn != nil {
		if _, err := r.cdn.Purge(ctx, []string{"/feeds/" + r.opts.FeedID + ".xml"}); err != nil {
			r.logger.Warn("CDNパージに失敗しました",
				slog.String("feed_id", r.opts.FeedID),
				slog.String("error", err.Error()),
			)
		}
	}

	r.feeds.Invalidate(r.opts.FeedID)
	return nil
}

// generateValidScript はポリシーに適合する台本を生成する。
// ハード違反があった場合は一度だけ再生成し、それでも違反が残る場合は失敗させる。
// ソフト警告は記録するだけで続行する。
func (r *Runner) generateValidScript(ctx context.Context, content *model.ExtractedContent) (string, error) {
	var lastResult script.ValidationResult

	for attempt := 1; attempt <= 2; attempt++ {
		text, err := r.generator.Generate(ctx, content, r.validator.Policy(), r.opts.Tone)
		if err != nil {
			return "", err
		}

		lastResult = r.validator.Validate(text)
		for _, w := range lastResult.Warnings {
			r.logger.Warn("台本にソフト警告があります",
				slog.Int("attempt", attempt),
				slog.String("warning", w),
			)
		}
		if lastResult.Valid {
			return text, nil
		}

		r.logger.Warn("台本がポリシーのハード違反のため再生成します",
			slog.Int("attempt", attempt),
			slog.Any("violations", lastResult.Violations),
		)
	}

	return "", model.NewValidationError(
		fmt.Sprintf("再生成後も台本がポリシーに違反しています: %v", lastResult.Violations))
}

// progress はジョブの進捗を更新し、購読者へ通知する。
// 進捗の更新失敗はパイプラインを止めない。
func (r *Runner) progress(ctx context.Context, job *model.ProcessingJob, pct int, step string) {
	updated, err := job.UpdateProgress(pct, step)
	if err != nil {
		r.logger.Warn("進捗の更新に失敗しました",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	*job = updated
	if err := r.jobRepo.Update(ctx, job); err != nil {
		r.logger.Warn("進捗の永続化に失敗しました",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
	r.notify(*job)
}

// notify は購読者へジョブ状態を通知する。
func (r *Runner) notify(job model.ProcessingJob) {
	if r.notifier != nil {
		r.notifier.NotifyProgress(job)
	}
}

// stageOf は失敗したステージ名を取り出す。不明な場合は"unknown"。
func stageOf(err error) string {
	var se *stageError
	if errors.As(err, &se) {
		return se.stage
	}
	return "unknown"
}

// isRetryable は失敗が再実行で解消しうるかを判定する。
// 入力検証と空入力は決定的な失敗であり、何度実行しても結果は変わらない。
func isRetryable(err error) bool {
	if model.IsCode(err, model.ErrCodeValidation) ||
		model.IsCode(err, model.ErrCodeEmptyInput) ||
		model.IsCode(err, model.ErrCodeInvalidTransition) ||
		model.IsCode(err, model.ErrCodeInvalidStateTransition) {
		return false
	}
	return true
}
