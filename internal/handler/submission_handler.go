// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/metrics"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/middleware"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/repository"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/security"
)

// SubmissionHandler は投稿管理のHTTPハンドラー。
type SubmissionHandler struct {
	submissions repository.SubmissionRepository
	jobs        repository.JobRepository
	guard       security.SourceGuardService
	collector   metrics.MetricsCollector
	logger      *slog.Logger
}

// NewSubmissionHandler はSubmissionHandlerを生成する。
// guardはnil許容で、nilの場合はソースURLの静的検証をスキップする。
func NewSubmissionHandler(
	submissions repository.SubmissionRepository,
	jobs repository.JobRepository,
	guard security.SourceGuardService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		jobs:        jobs,
		guard:       guard,
		collector:   collector,
		logger:      logger,
	}
}

// createSubmissionRequest は投稿作成リクエストのボディ。
type createSubmissionRequest struct {
	SourceURL   string `json:"source_url"`
	ContentType string `json:"content_type"`
	UserNote    string `json:"user_note"`
}

// submissionResponse は投稿情報のAPIレスポンス。
type submissionResponse struct {
	ID           string     `json:"id"`
	SourceURL    string     `json:"source_url"`
	ContentType  string     `json:"content_type"`
	UserNote     string     `json:"user_note,omitempty"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// jobStatusResponse はジョブ進捗のAPIレスポンス。
type jobStatusResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	CurrentStep  string `json:"current_step,omitempty"`
	RetryCount   int    `json:"retry_count"`
	MaxRetries   int    `json:"max_retries"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// statusResponse は投稿と最新ジョブをまとめたステータスレスポンス。
type statusResponse struct {
	SubmissionID string             `json:"submission_id"`
	Status       string             `json:"status"`
	ErrorMessage string             `json:"error_message,omitempty"`
	Job          *jobStatusResponse `json:"job,omitempty"`
}

// CreateSubmission は投稿作成を処理する。
// POST /api/submissions
//
// 受理された投稿はpendingで永続化され、ワーカーが非同期に処理するため
// 202 Acceptedを返す。同一ソースURLの非終端投稿がある場合は409を返す。
func (h *SubmissionHandler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req createSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			"INVALID_REQUEST", "リクエストボディの解析に失敗しました。", "validation")
		return
	}

	sub, err := model.NewContentSubmission(model.SubmissionRequest{
		SourceURL:   req.SourceURL,
		ContentType: model.ContentType(req.ContentType),
		UserNote:    req.UserNote,
	})
	if err != nil {
		middleware.WritePipelineError(w, err)
		return
	}

	// プライベートネットワークを指すURLはフェッチ前に静的検証で弾く
	if h.guard != nil {
		if err := h.guard.ValidateSourceURL(sub.SourceURL); err != nil {
			h.logger.Warn("安全でないソースURLを拒否しました",
				slog.String("source_url", sub.SourceURL),
				slog.String("error", err.Error()),
			)
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				"UNSAFE_SOURCE_URL", "指定されたソースURLは受け付けられません。", "validation")
			return
		}
	}

	existing, err := h.submissions.FindBySourceURL(r.Context(), sub.SourceURL)
	if err != nil {
		h.logger.Error("重複投稿の検索に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	if existing != nil {
		middleware.WriteErrorResponse(w, http.StatusConflict,
			"DUPLICATE_SUBMISSION", "同じソースURLの投稿が処理中です。", "validation")
		return
	}

	if err := h.submissions.Create(r.Context(), &sub); err != nil {
		h.logger.Error("投稿の作成に失敗しました",
			slog.String("source_url", sub.SourceURL),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	h.collector.RecordSubmissionAccepted(string(sub.ContentType))
	h.logger.Info("投稿を受理しました",
		slog.String("submission_id", sub.ID),
		slog.String("content_type", string(sub.ContentType)),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(toSubmissionResponse(&sub))
}

// GetSubmission は投稿詳細を取得する。
// GET /api/submissions/:id
func (h *SubmissionHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sub, err := h.submissions.FindByID(r.Context(), id)
	if err != nil {
		h.logger.Error("投稿の取得に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	if sub == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound,
			"SUBMISSION_NOT_FOUND", "指定された投稿が見つかりません。", "validation")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSubmissionResponse(sub))
}

// ListSubmissions は投稿一覧を新しい順に取得する。
// GET /api/submissions
func (h *SubmissionHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 50)
	if limit > 100 {
		limit = 100
	}

	subs, err := h.submissions.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("投稿一覧の取得に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	out := make([]submissionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toSubmissionResponse(sub))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"submissions": out})
}

// GetStatus は投稿のステータスと最新ジョブの進捗を取得する。
// GET /api/submissions/:id/status
func (h *SubmissionHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sub, err := h.submissions.FindByID(r.Context(), id)
	if err != nil {
		h.logger.Error("投稿の取得に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	if sub == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound,
			"SUBMISSION_NOT_FOUND", "指定された投稿が見つかりません。", "validation")
		return
	}

	resp := statusResponse{
		SubmissionID: sub.ID,
		Status:       string(sub.Status),
		ErrorMessage: sub.ErrorMessage,
	}

	job, err := h.jobs.FindLatestBySubmissionID(r.Context(), id)
	if err != nil {
		h.logger.Error("ジョブの取得に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	if job != nil {
		resp.Job = &jobStatusResponse{
			ID:           job.ID,
			Status:       string(job.Status),
			Progress:     job.Progress,
			CurrentStep:  job.CurrentStep,
			RetryCount:   job.RetryCount,
			MaxRetries:   job.MaxRetries,
			ErrorMessage: job.ErrorMessage,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// --- ヘルパー関数 ---

// toSubmissionResponse はmodel.ContentSubmissionからAPIレスポンスに変換する。
func toSubmissionResponse(sub *model.ContentSubmission) submissionResponse {
	return submissionResponse{
		ID:           sub.ID,
		SourceURL:    sub.SourceURL,
		ContentType:  string(sub.ContentType),
		UserNote:     sub.UserNote,
		Status:       string(sub.Status),
		ErrorMessage: sub.ErrorMessage,
		CreatedAt:    sub.CreatedAt,
		UpdatedAt:    sub.UpdatedAt,
		ProcessedAt:  sub.ProcessedAt,
	}
}

// parseIntQuery はクエリパラメータを整数として解析する。不正な値はデフォルトを返す。
func parseIntQuery(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
