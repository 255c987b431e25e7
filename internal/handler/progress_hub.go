package handler

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
)

// progressEvent はWebSocketで配信する進捗イベント。
type progressEvent struct {
	SubmissionID string `json:"submission_id"`
	JobID        string `json:"job_id"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	CurrentStep  string `json:"current_step,omitempty"`
	RetryCount   int    `json:"retry_count"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ProgressHub は投稿ごとの進捗をWebSocketで購読者に配信するハブ。
// パイプラインのProgressNotifierとして動作し、ジョブの進捗更新を
// その投稿を購読している全コネクションへブロードキャストする。
type ProgressHub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[string]map[*websocket.Conn]bool // submissionID -> connections
}

// NewProgressHub はProgressHubを生成する。
func NewProgressHub(logger *slog.Logger) *ProgressHub {
	return &ProgressHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 配信専用のエンドポイントなのでオリジン検証は行わない
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[string]map[*websocket.Conn]bool),
	}
}

// ServeWS は進捗購読のWebSocket接続を処理する。
// GET /api/submissions/:id/ws
func (h *ProgressHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocketへのアップグレードに失敗しました",
			slog.String("submission_id", submissionID),
			slog.String("error", err.Error()),
		)
		return
	}

	h.register(submissionID, conn)
	h.logger.Debug("進捗購読を開始しました", slog.String("submission_id", submissionID))

	// 読み取りループで切断を検出する。クライアントからのメッセージは捨てる。
	go func() {
		defer func() {
			h.unregister(submissionID, conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// NotifyProgress はジョブの進捗を購読者へブロードキャストする。
// 書き込みに失敗したコネクションは購読から外す。
func (h *ProgressHub) NotifyProgress(job model.ProcessingJob) {
	event := progressEvent{
		SubmissionID: job.SubmissionID,
		JobID:        job.ID,
		Status:       string(job.Status),
		Progress:     job.Progress,
		CurrentStep:  job.CurrentStep,
		RetryCount:   job.RetryCount,
		ErrorMessage: job.ErrorMessage,
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients[job.SubmissionID]))
	for conn := range h.clients[job.SubmissionID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(event); err != nil {
			h.logger.Debug("進捗イベントの配信に失敗しました",
				slog.String("submission_id", job.SubmissionID),
				slog.String("error", err.Error()),
			)
			h.unregister(job.SubmissionID, conn)
			conn.Close()
		}
	}
}

// SubscriberCount は指定投稿の購読コネクション数を返す。テスト用。
func (h *ProgressHub) SubscriberCount(submissionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[submissionID])
}

func (h *ProgressHub) register(submissionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[submissionID] == nil {
		h.clients[submissionID] = make(map[*websocket.Conn]bool)
	}
	h.clients[submissionID][conn] = true
}

func (h *ProgressHub) unregister(submissionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[submissionID], conn)
	if len(h.clients[submissionID]) == 0 {
		delete(h.clients, submissionID)
	}
}
