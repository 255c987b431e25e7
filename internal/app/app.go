// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/config"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/database"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/extract"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/feedgen"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/handler"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/logger"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/metrics"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/middleware"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/pipeline"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/repository"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/script"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/security"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/storage"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/tts"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/voice"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/worker/cleanup"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/worker/process"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// pipelineStack は処理パイプラインの依存一式を保持する。
// serveとworkerの両モードで同じワイヤリングを共有する。
type pipelineStack struct {
	submissionRepo repository.SubmissionRepository
	jobRepo        repository.JobRepository
	episodeRepo    repository.EpisodeRepository
	guard          security.SourceGuardService
	catalog        *voice.Catalog
	feeds          *feedgen.Service
	runner         *pipeline.Runner
	scheduler      *process.Scheduler
	cleanupJob     *cleanup.CleanupJob
}

// buildPipelineStack は処理パイプラインの全依存関係をワイヤリングする。
// notifierはnil許容で、nilの場合は進捗のWebSocket配信をスキップする。
func buildPipelineStack(
	cfg *config.Config,
	db *sql.DB,
	collector metrics.MetricsCollector,
	notifier pipeline.ProgressNotifier,
) (*pipelineStack, error) {
	// 1. リポジトリの初期化
	submissionRepo := repository.NewPostgresSubmissionRepo(db)
	jobRepo := repository.NewPostgresJobRepo(db)
	episodeRepo := repository.NewPostgresEpisodeRepo(db)

	// 2. セキュリティサービスの初期化
	guard := security.NewSourceGuard()
	sanitizer := security.NewTextSanitizer()
	safeClient := guard.NewSafeClient(cfg.ExtractionTimeout)

	// 3. コンテンツ抽出の初期化
	extractClient := extract.NewHTTPExtractionClient(
		safeClient, slog.Default(), cfg.ExtractionAPIURL, cfg.ExtractionAPIKey,
	)
	dispatcher := extract.NewDispatcher(
		extract.NewWebHandler(extractClient, sanitizer),
		extract.NewVideoHandler(extractClient, slog.Default()),
		extract.NewPDFHandler(safeClient),
		extract.NewDocumentHandler(extractClient, sanitizer),
		slog.Default(),
	)

	// 4. 台本生成と検証の初期化
	generator := script.NewLLMGenerator(
		script.LLMConfig{
			Endpoint: cfg.LLMAPIURL,
			Model:    cfg.LLMModel,
			APIKey:   cfg.LLMAPIKey,
		},
		&http.Client{Timeout: cfg.LLMTimeout},
		slog.Default(),
	)
	validator := script.NewValidator(script.DefaultPolicy())

	// 5. TTSプロバイダーと音声カタログの初期化
	openaiProvider := tts.NewOpenAIProvider(
		&http.Client{Timeout: cfg.TTSTimeout}, slog.Default(),
		cfg.OpenAIAPIKey, cfg.OpenAIAPIURL,
	)
	elevenLabsProvider := tts.NewElevenLabsProvider(
		&http.Client{Timeout: cfg.TTSTimeout}, slog.Default(),
		cfg.ElevenLabsAPIKey, cfg.ElevenLabsAPIURL,
	)
	orchestrator := tts.NewOrchestrator(openaiProvider, elevenLabsProvider, slog.Default())

	catalog := voice.NewCatalog(
		[]voice.VoiceLister{openaiProvider, elevenLabsProvider},
		slog.Default(), cfg.VoiceCacheTTL,
	)
	resolver, err := voice.NewResolver(catalog, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to build voice resolver: %w", err)
	}

	// 6. ストレージとCDNの初期化
	objects := storage.NewHTTPObjectStorage(cfg.StorageEndpoint, cfg.StorageAPIKey, cfg.StorageTimeout)
	var cdn storage.CDNPurger
	if cfg.CDNEndpoint != "" {
		cdn = storage.NewHTTPCDNPurger(cfg.CDNEndpoint, cfg.CDNAPIKey, cfg.StorageTimeout)
	}

	// 7. フィードサービスの初期化
	feeds := feedgen.NewService(
		episodeRepo,
		feedgen.FeedMetadata{
			Title:       cfg.FeedTitle,
			Link:        cfg.BaseURL,
			Description: cfg.FeedTitle,
			Language:    cfg.FeedLanguage,
		},
		feedgen.BuildOptions{Order: feedgen.SortNewest, MaxItems: cfg.FeedMaxItems},
		collector,
		slog.Default(),
	)

	// 8. パイプラインランナーとスケジューラの初期化
	runner := pipeline.NewRunner(
		submissionRepo, jobRepo, episodeRepo,
		dispatcher, generator, validator,
		resolver, orchestrator,
		objects, cdn, feeds, notifier,
		collector, slog.Default(),
		pipeline.Options{
			FeedID:          cfg.FeedID,
			DefaultLocale:   cfg.DefaultLocale,
			PreferredVoice:  cfg.PreferredVoice,
			Tone:            cfg.ScriptTone,
			MaxRetries:      cfg.JobMaxRetries,
			PrimaryProvider: openaiProvider.Name(),
		},
	)
	scheduler := process.NewScheduler(
		submissionRepo, runner, slog.Default(),
		cfg.PipelineMaxConcurrent, cfg.PipelineBatchSize,
	)

	// 9. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())

	return &pipelineStack{
		submissionRepo: submissionRepo,
		jobRepo:        jobRepo,
		episodeRepo:    episodeRepo,
		guard:          guard,
		catalog:        catalog,
		feeds:          feeds,
		runner:         runner,
		scheduler:      scheduler,
		cleanupJob:     cleanupJob,
	}, nil
}

// startBackgroundJobs は音声カタログのリフレッシュとクリーンアップジョブを
// バックグラウンドで起動する。
func startBackgroundJobs(ctx context.Context, cfg *config.Config, stack *pipelineStack) {
	go stack.catalog.StartRefreshLoop(ctx, cfg.VoiceRefreshEvery)

	go func() {
		// 起動直後に1回実行
		if err := stack.cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := stack.cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーと
// 処理パイプラインを同一プロセスで起動する。WebSocketの進捗配信は
// パイプラインとハブが同居するこのモードでのみ機能する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. 進捗配信ハブの初期化
	hub := handler.NewProgressHub(slog.Default())

	// 4. パイプラインのワイヤリング
	stack, err := buildPipelineStack(cfg, db, collector, hub)
	if err != nil {
		return err
	}

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))

	router := handler.NewRouter(&handler.RouterDeps{
		RateLimiter: rateLimiter,
		Collector:   collector,
		Logger:      slog.Default(),

		Submissions: stack.submissionRepo,
		Jobs:        stack.jobRepo,
		Episodes:    stack.episodeRepo,

		Feeds: stack.feeds,
		Hub:   hub,
		Guard: stack.guard,

		DB: db,
	})

	// /metrics はAPIミドルウェアチェーンの外に置く
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.SetupMetricsRoute(registry))
	mux.Handle("/", router)

	// 6. バックグラウンドジョブとパイプラインの起動
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startBackgroundJobs(ctx, cfg, stack)
	go stack.scheduler.Start(ctx, cfg.PipelinePollInterval)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// HTTPサーバーを持たないヘッドレスの処理パイプラインとして動作する。
// 処理能力をスケールさせる場合にserveと並行して起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. パイプラインのワイヤリング（進捗配信なし）
	stack, err := buildPipelineStack(cfg, db, collector, nil)
	if err != nil {
		return err
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("poll_interval", cfg.PipelinePollInterval),
		slog.Int("max_concurrent", cfg.PipelineMaxConcurrent),
	)

	startBackgroundJobs(ctx, cfg, stack)

	// 処理スケジューラをメインgoroutineで実行（ブロッキング）
	stack.scheduler.Start(ctx, cfg.PipelinePollInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// rateLimiterConfig はConfigのreq/min単位の設定をレートリミッターの
// req/sec単位に変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rlCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rlCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rlCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitSubmission > 0 {
		rlCfg.SubmissionRate = rate.Limit(float64(cfg.RateLimitSubmission) / 60.0)
		rlCfg.SubmissionBurst = cfg.RateLimitSubmission
	}
	return rlCfg
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
