package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PurgeResult はCDNパージ要求の受理結果を表す。
type PurgeResult struct {
	Success             bool      `json:"success"`
	EstimatedCompletion time.Time `json:"estimated_completion"`
}

// CDNPurger はCDNエッジキャッシュのパージを抽象化する。
// パージの失敗はパイプラインを止めない。呼び出し側が警告ログで吸収する。
type CDNPurger interface {
	Purge(ctx context.Context, paths []string) (PurgeResult, error)
}

// HTTPCDNPurger はHTTP API経由のCDNPurger実装。
type HTTPCDNPurger struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPCDNPurger はHTTPCDNPurgerの新しいインスタンスを生成する。
func NewHTTPCDNPurger(endpoint, apiKey string, timeout time.Duration) *HTTPCDNPurger {
	return &HTTPCDNPurger{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Purge は指定パスのエッジキャッシュのパージを要求する。
func (p *HTTPCDNPurger) Purge(ctx context.Context, paths []string) (PurgeResult, error) {
	if len(paths) == 0 {
		return PurgeResult{Success: true, EstimatedCompletion: time.Now()}, nil
	}

	payload, err := json.Marshal(map[string][]string{"paths": paths})
	if err != nil {
		return PurgeResult{}, fmt.Errorf("パージリクエストのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/purge", bytes.NewReader(payload))
	if err != nil {
		return PurgeResult{}, fmt.Errorf("パージリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return PurgeResult{}, fmt.Errorf("CDNパージの要求に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return PurgeResult{}, fmt.Errorf("CDN APIがエラーを返しました: status=%d", resp.StatusCode)
	}

	var result PurgeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return PurgeResult{}, fmt.Errorf("CDN APIレスポンスのデコードに失敗しました: %w", err)
	}
	return result, nil
}
