package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
)

// VideoHandler は動画リンクの抽出ハンドラー。
// 字幕（トランスクリプト）が取得できればそれを本文とし、
// 取得できない場合は動画説明文へフォールバックする。字幕欠落は
// パイプラインを中断しない。
type VideoHandler struct {
	client ExtractionClient
	logger *slog.Logger
}

// NewVideoHandler はVideoHandlerの新しいインスタンスを生成する。
func NewVideoHandler(client ExtractionClient, logger *slog.Logger) *VideoHandler {
	return &VideoHandler{client: client, logger: logger}
}

// Extract は動画リンクからコンテンツを抽出する。
func (h *VideoHandler) Extract(ctx context.Context, sub model.ContentSubmission) (*model.ExtractedContent, error) {
	result, err := h.client.Extract(ctx, sub.SourceURL)
	if err != nil {
		return nil, model.NewExtractionFailedError(err)
	}

	metadata := map[string]string{"source_url": sub.SourceURL}
	body := result.Transcript
	method := "video_transcript"

	if strings.TrimSpace(body) == "" {
		// 字幕なしは非致命。説明文で継続する。
		h.logger.Warn("動画のトランスクリプトが取得できないため説明文で継続します",
			slog.String("submission_id", sub.ID),
			slog.String("source_url", sub.SourceURL),
		)
		body = result.Content
		method = "video_description"
		metadata["transcript_missing"] = "true"
	}

	if strings.TrimSpace(body) == "" {
		return nil, model.NewExtractionFailedError(errEmptyBody{url: sub.SourceURL})
	}

	return &model.ExtractedContent{
		Title:            fallbackTitle(result.Title, sub.SourceURL),
		Body:             body,
		Author:           result.Author,
		PublishedAt:      result.PublishedDate,
		ExtractionMethod: method,
		Metadata:         metadata,
	}, nil
}
