package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
)

// maxPDFBytes は取得を許可するPDFの最大サイズ（20MB）。
const maxPDFBytes = 20 * 1024 * 1024

// PDFHandler はPDFドキュメントの抽出ハンドラー。
// SSRF防止付きクライアントでPDF本体を取得し、ローカルでテキストを抽出する。
// PDFのテキスト抽出は外部抽出サービスを経由しない。
type PDFHandler struct {
	httpClient *http.Client
}

// NewPDFHandler はPDFHandlerの新しいインスタンスを生成する。
// httpClientにはSourceGuardServiceが生成する安全なクライアントを渡すこと。
func NewPDFHandler(httpClient *http.Client) *PDFHandler {
	return &PDFHandler{httpClient: httpClient}
}

// Extract はPDFを取得してテキストを抽出する。
func (h *PDFHandler) Extract(ctx context.Context, sub model.ContentSubmission) (*model.ExtractedContent, error) {
	data, err := h.fetch(ctx, sub.SourceURL)
	if err != nil {
		return nil, model.NewExtractionFailedError(err)
	}

	text, err := extractPDFText(data)
	if err != nil {
		return nil, model.NewExtractionFailedError(err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, model.NewExtractionFailedError(errEmptyBody{url: sub.SourceURL})
	}

	return &model.ExtractedContent{
		Title:            pdfTitle(sub.SourceURL),
		Body:             text,
		ExtractionMethod: "pdf_text",
		Metadata: map[string]string{
			"source_url": sub.SourceURL,
			"pdf_bytes":  fmt.Sprintf("%d", len(data)),
		},
	}, nil
}

// fetch はPDF本体をダウンロードする。サイズ上限を超えた場合はエラーを返す。
func (h *PDFHandler) fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("PDFの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("PDFの取得でステータス %d が返されました", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes+1))
	if err != nil {
		return nil, fmt.Errorf("PDFの読み取りに失敗しました: %w", err)
	}
	if len(data) > maxPDFBytes {
		return nil, fmt.Errorf("PDFのサイズが上限 %d バイトを超えています", maxPDFBytes)
	}

	return data, nil
}

// extractPDFText はPDFバイト列からプレーンテキストを抽出する。
func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("PDFのパースに失敗しました: %w", err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("PDFのテキスト抽出に失敗しました: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(textReader); err != nil {
		return "", fmt.Errorf("PDFテキストの読み取りに失敗しました: %w", err)
	}

	return buf.String(), nil
}

// pdfTitle はURLのファイル名部分からタイトルを組み立てる。
func pdfTitle(sourceURL string) string {
	base := path.Base(sourceURL)
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		return sourceURL
	}
	return strings.ReplaceAll(base, "_", " ")
}
