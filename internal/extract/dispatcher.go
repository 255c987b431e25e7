package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
)

// Handler はコンテンツ種別ごとの抽出ハンドラーのインターフェース。
// ハンドラーはTitle/Body/Author/PublishedAtを埋め、統一の後処理
// （語数・読了時間・品質スコア・言語判定）はディスパッチャーが適用する。
type Handler interface {
	// Extract は投稿のソースから正規化前のコンテンツを抽出する。
	Extract(ctx context.Context, sub model.ContentSubmission) (*model.ExtractedContent, error)
}

// Dispatcher は投稿をコンテンツ種別に応じたハンドラーへ振り分け、
// 結果に統一の後処理を適用する。
type Dispatcher struct {
	handlers map[model.ContentType]Handler
	logger   *slog.Logger
}

// NewDispatcher は全コンテンツ種別のハンドラーを登録したDispatcherを生成する。
// サポートする種別とハンドラーの対応はここで網羅的に固定される。
func NewDispatcher(
	web *WebHandler,
	video *VideoHandler,
	pdf *PDFHandler,
	doc *DocumentHandler,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		handlers: map[model.ContentType]Handler{
			model.ContentTypeWebURL:    web,
			model.ContentTypeVideoLink: video,
			model.ContentTypePDF:       pdf,
			model.ContentTypeDocument:  doc,
		},
		logger: logger,
	}
}

// Extract は投稿を対応するハンドラーへ振り分けて抽出を実行し、
// 統一の後処理を適用したExtractedContentを返す。
// 上流の失敗はExtractionFailedとしてそのまま伝播する。
func (d *Dispatcher) Extract(ctx context.Context, sub model.ContentSubmission) (*model.ExtractedContent, error) {
	handler, ok := d.handlers[sub.ContentType]
	if !ok {
		return nil, model.NewValidationError(
			fmt.Sprintf("コンテンツ種別 %s のハンドラーが存在しません", sub.ContentType))
	}

	content, err := handler.Extract(ctx, sub)
	if err != nil {
		d.logger.Error("コンテンツ抽出に失敗しました",
			slog.String("submission_id", sub.ID),
			slog.String("content_type", string(sub.ContentType)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	finalize(content)

	d.logger.Info("コンテンツ抽出が完了しました",
		slog.String("submission_id", sub.ID),
		slog.String("content_type", string(sub.ContentType)),
		slog.Int("word_count", content.WordCount),
		slog.Int("quality_score", content.QualityScore),
	)

	return content, nil
}

// finalize はハンドラーの結果に統一の後処理を適用する。
// 語数、読了時間、品質スコア、言語判定はすべてここで確定し、
// ハンドラー間で計算方法がぶれないようにする。
func finalize(content *model.ExtractedContent) {
	content.Body = strings.TrimSpace(content.Body)
	content.WordCount = WordCount(content.Body)
	content.ReadingTimeMinutes = ReadingTimeMinutes(content.WordCount)
	content.QualityScore = QualityScore(content.Body)
	content.Language = DetectLanguage(content.Body)
	if content.Metadata == nil {
		content.Metadata = make(map[string]string)
	}
}
