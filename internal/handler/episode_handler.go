package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/feedgen"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/middleware"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/repository"
)

// EpisodeHandler はエピソード参照とフィード配信のHTTPハンドラー。
type EpisodeHandler struct {
	episodes repository.EpisodeRepository
	feeds    *feedgen.Service
	logger   *slog.Logger
}

// NewEpisodeHandler はEpisodeHandlerを生成する。
func NewEpisodeHandler(episodes repository.EpisodeRepository, feeds *feedgen.Service, logger *slog.Logger) *EpisodeHandler {
	return &EpisodeHandler{
		episodes: episodes,
		feeds:    feeds,
		logger:   logger,
	}
}

// chapterResponse はチャプターマーカーのAPIレスポンス。
type chapterResponse struct {
	StartTimeSeconds int    `json:"start_time_seconds"`
	Title            string `json:"title"`
}

// episodeResponse はエピソード情報のAPIレスポンス。
type episodeResponse struct {
	ID              string            `json:"id"`
	FeedID          string            `json:"feed_id"`
	SubmissionID    string            `json:"submission_id"`
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	AudioURL        string            `json:"audio_url"`
	AudioSizeBytes  int64             `json:"audio_size_bytes"`
	DurationSeconds int               `json:"duration_seconds"`
	PublishedAt     time.Time         `json:"published_at"`
	Chapters        []chapterResponse `json:"chapters,omitempty"`
}

// ListEpisodes はエピソード一覧を動的な絞り込み条件で取得する。
// GET /api/episodes?feed_id=&published_after=&published_before=&q=&limit=&offset=
func (h *EpisodeHandler) ListEpisodes(w http.ResponseWriter, r *http.Request) {
	filter := repository.EpisodeListFilter{
		FeedID:     r.URL.Query().Get("feed_id"),
		TitleQuery: r.URL.Query().Get("q"),
		Limit:      parseIntQuery(r, "limit", 50),
		Offset:     parseIntQuery(r, "offset", 0),
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	if raw := r.URL.Query().Get("published_after"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				"INVALID_REQUEST", "published_afterはRFC3339形式で指定してください。", "validation")
			return
		}
		filter.PublishedAfter = t
	}
	if raw := r.URL.Query().Get("published_before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				"INVALID_REQUEST", "published_beforeはRFC3339形式で指定してください。", "validation")
			return
		}
		filter.PublishedBefore = t
	}

	episodes, err := h.episodes.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("エピソード一覧の取得に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	out := make([]episodeResponse, 0, len(episodes))
	for i := range episodes {
		out = append(out, toEpisodeResponse(&episodes[i]))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"episodes": out})
}

// GetEpisode はエピソード詳細を取得する。
// GET /api/episodes/:id
func (h *EpisodeHandler) GetEpisode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ep, err := h.episodes.FindByID(r.Context(), id)
	if err != nil {
		h.logger.Error("エピソードの取得に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	if ep == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound,
			"EPISODE_NOT_FOUND", "指定されたエピソードが見つかりません。", "validation")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEpisodeResponse(ep))
}

// ServeFeed はレンダリング済みのRSSフィードを配信する。
// GET /feeds/:feedID.xml
//
// キャッシュが有効ならキャッシュから、無効ならその場で再構築して返す。
func (h *EpisodeHandler) ServeFeed(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "feedID")

	payload, err := h.feeds.Feed(r.Context(), feedID)
	if err != nil {
		h.logger.Error("フィードの構築に失敗しました",
			slog.String("feed_id", feedID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write(payload)
}

// toEpisodeResponse はmodel.EpisodeからAPIレスポンスに変換する。
func toEpisodeResponse(ep *model.Episode) episodeResponse {
	resp := episodeResponse{
		ID:              ep.ID,
		FeedID:          ep.FeedID,
		SubmissionID:    ep.SubmissionID,
		Title:           ep.Title,
		Description:     ep.Description,
		AudioURL:        ep.AudioURL,
		AudioSizeBytes:  ep.AudioSizeBytes,
		DurationSeconds: ep.DurationSeconds,
		PublishedAt:     ep.PublishedAt,
	}
	for _, ch := range ep.Chapters {
		resp.Chapters = append(resp.Chapters, chapterResponse{
			StartTimeSeconds: ch.StartTimeSeconds,
			Title:            ch.Title,
		})
	}
	return resp
}
