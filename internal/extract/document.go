package extract

import (
	"context"
	"strings"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/security"
)

// DocumentHandler は汎用ドキュメントの抽出ハンドラー。
// 形式判定を含めて外部抽出サービスに委譲する。
type DocumentHandler struct {
	client    ExtractionClient
	sanitizer security.TextSanitizerService
}

// NewDocumentHandler はDocumentHandlerの新しいインスタンスを生成する。
func NewDocumentHandler(client ExtractionClient, sanitizer security.TextSanitizerService) *DocumentHandler {
	return &DocumentHandler{client: client, sanitizer: sanitizer}
}

// Extract は汎用ドキュメントからコンテンツを抽出する。
func (h *DocumentHandler) Extract(ctx context.Context, sub model.ContentSubmission) (*model.ExtractedContent, error) {
	result, err := h.client.Extract(ctx, sub.SourceURL)
	if err != nil {
		return nil, model.NewExtractionFailedError(err)
	}

	body := h.sanitizer.PlainText(result.Content)
	if strings.TrimSpace(body) == "" {
		return nil, model.NewExtractionFailedError(errEmptyBody{url: sub.SourceURL})
	}

	return &model.ExtractedContent{
		Title:            fallbackTitle(result.Title, sub.SourceURL),
		Body:             body,
		Author:           result.Author,
		PublishedAt:      result.PublishedDate,
		ExtractionMethod: "document",
		Metadata:         map[string]string{"source_url": sub.SourceURL},
	}, nil
}
