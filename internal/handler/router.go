package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/feedgen"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/metrics"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/middleware"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/repository"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/security"
)

// Pinger はヘルスチェックでのDB疎通確認を抽象化するインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	RateLimiter *middleware.RateLimiter
	Collector   metrics.MetricsCollector
	Logger      *slog.Logger

	// リポジトリ
	Submissions repository.SubmissionRepository
	Jobs        repository.JobRepository
	Episodes    repository.EpisodeRepository

	// フィード配信
	Feeds *feedgen.Service

	// 進捗配信
	Hub *ProgressHub

	// 投稿ソースURLの静的検証（nil可）
	Guard security.SourceGuardService

	// ヘルスチェック（nil可）
	DB Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Metrics → Logging → RateLimit(General)
//
// ヘルスチェック（/healthz）とフィード配信（/feeds/*）はAPIレート制限の外に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewMetricsMiddleware(deps.Collector))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	submissionHandler := NewSubmissionHandler(deps.Submissions, deps.Jobs, deps.Guard, deps.Collector, deps.Logger)
	episodeHandler := NewEpisodeHandler(deps.Episodes, deps.Feeds, deps.Logger)

	// --- レート制限の外に置くルート ---

	r.Get("/healthz", healthzHandler(deps.DB))

	// フィード配信（ポッドキャストクライアントのポーリングが対象）
	r.Get("/feeds/{feedID}.xml", episodeHandler.ServeFeed)

	// --- APIルート ---
	// ミドルウェアスタック: RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 投稿管理
		r.Route("/api/submissions", func(r chi.Router) {
			// POST /api/submissions - 投稿作成（作成専用レート制限を追加）
			r.With(deps.RateLimiter.SubmissionMiddleware()).Post("/", submissionHandler.CreateSubmission)

			r.Get("/", submissionHandler.ListSubmissions)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", submissionHandler.GetSubmission)
				r.Get("/status", submissionHandler.GetStatus)

				// WebSocketによる進捗購読
				if deps.Hub != nil {
					r.Get("/ws", deps.Hub.ServeWS)
				}
			})
		})

		// エピソード参照
		r.Route("/api/episodes", func(r chi.Router) {
			r.Get("/", episodeHandler.ListEpisodes)
			r.Get("/{id}", episodeHandler.GetEpisode)
		})
	})

	return r
}

// healthzHandler はヘルスチェックハンドラーを返す。
// DBが指定されている場合は疎通確認を行い、失敗時は503を返す。
func healthzHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
