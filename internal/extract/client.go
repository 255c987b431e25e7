// Package extract はソースコンテンツの抽出と正規化を提供する。
// コンテンツ種別ごとのハンドラーへのディスパッチ、外部抽出サービスの
// クライアント、品質ヒューリスティックの計算を含む。
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// ExtractResult は外部抽出サービスが返す生の抽出結果を表す。
type ExtractResult struct {
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Author        string     `json:"author,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	Transcript    string     `json:"transcript,omitempty"`
}

// ExtractionClient は外部コンテンツ抽出サービスのインターフェース。
// 実際のフェッチとパースはサービス側が行い、本パッケージは結果の
// 正規化と品質評価のみを担う。
type ExtractionClient interface {
	// Extract は指定URLのコンテンツを抽出サービスに依頼する。
	Extract(ctx context.Context, sourceURL string) (*ExtractResult, error)

	// HealthCheck は抽出サービスの死活を確認する。
	HealthCheck(ctx context.Context) bool
}

// HTTPExtractionClient はHTTP経由で抽出サービスを呼び出すクライアント。
type HTTPExtractionClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
	apiKey     string
}

// NewHTTPExtractionClient はHTTPExtractionClientの新しいインスタンスを生成する。
func NewHTTPExtractionClient(httpClient *http.Client, logger *slog.Logger, endpoint, apiKey string) *HTTPExtractionClient {
	return &HTTPExtractionClient{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		apiKey:     apiKey,
	}
}

// Extract は指定URLのコンテンツ抽出を抽出サービスに依頼する。
// サービス障害はそのままエラーとして返す。握り潰してはならない。
func (c *HTTPExtractionClient) Extract(ctx context.Context, sourceURL string) (*ExtractResult, error) {
	reqURL, err := url.Parse(c.endpoint + "/extract")
	if err != nil {
		return nil, fmt.Errorf("抽出サービスのエンドポイントが不正です: %w", err)
	}
	q := reqURL.Query()
	q.Set("url", sourceURL)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("抽出サービスの呼び出しに失敗しました",
			slog.String("source_url", sourceURL),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("抽出サービスの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error("抽出サービスがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("source_url", sourceURL),
		)
		return nil, fmt.Errorf("抽出サービスがステータス %d を返しました: %s", resp.StatusCode, string(body))
	}

	var result ExtractResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("抽出結果のパースに失敗しました: %w", err)
	}

	return &result, nil
}

// HealthCheck は抽出サービスの死活を確認する。
func (c *HTTPExtractionClient) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
