// Package storage は音声ファイルの外部ストレージとCDNパージのクライアントを提供する。
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// StoredObject は格納済みオブジェクトのメタデータを表す。
type StoredObject struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	SizeBytes int64     `json:"size_bytes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ObjectStorage は音声ファイルの格納・削除・一覧を抽象化する。
type ObjectStorage interface {
	// Put はペイロードをkeyに格納し、公開URLを返す。
	Put(ctx context.Context, key string, contentType string, payload []byte) (StoredObject, error)
	// Delete はkeyのオブジェクトを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, key string) error
	// List はprefix配下のオブジェクト一覧を返す。
	List(ctx context.Context, prefix string) ([]StoredObject, error)
}

// HTTPObjectStorage はHTTP API経由のObjectStorage実装。
type HTTPObjectStorage struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPObjectStorage はHTTPObjectStorageの新しいインスタンスを生成する。
func NewHTTPObjectStorage(endpoint, apiKey string, timeout time.Duration) *HTTPObjectStorage {
	return &HTTPObjectStorage{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Put はペイロードをアップロードする。
func (s *HTTPObjectStorage) Put(ctx context.Context, key string, contentType string, payload []byte) (StoredObject, error) {
	endpoint := fmt.Sprintf("%s/objects/%s", s.endpoint, url.PathEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return StoredObject{}, fmt.Errorf("アップロードリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return StoredObject{}, fmt.Errorf("オブジェクトのアップロードに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return StoredObject{}, fmt.Errorf("ストレージAPIがエラーを返しました: status=%d body=%s", resp.StatusCode, string(body))
	}

	var stored StoredObject
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		return StoredObject{}, fmt.Errorf("ストレージAPIレスポンスのデコードに失敗しました: %w", err)
	}
	return stored, nil
}

// Delete はオブジェクトを削除する。404も成功扱い。
func (s *HTTPObjectStorage) Delete(ctx context.Context, key string) error {
	endpoint := fmt.Sprintf("%s/objects/%s", s.endpoint, url.PathEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("削除リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("オブジェクトの削除に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("ストレージAPIがエラーを返しました: status=%d", resp.StatusCode)
	}
	return nil
}

// List はprefix配下のオブジェクト一覧を取得する。
func (s *HTTPObjectStorage) List(ctx context.Context, prefix string) ([]StoredObject, error) {
	endpoint := fmt.Sprintf("%s/objects?prefix=%s", s.endpoint, url.QueryEscape(prefix))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("一覧リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("オブジェクト一覧の取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ストレージAPIがエラーを返しました: status=%d", resp.StatusCode)
	}

	var result struct {
		Objects []StoredObject `json:"objects"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ストレージAPIレスポンスのデコードに失敗しました: %w", err)
	}
	return result.Objects, nil
}
