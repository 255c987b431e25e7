package script

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
)

// Generator は抽出コンテンツからポッドキャスト台本を生成するインターフェース。
type Generator interface {
	Generate(ctx context.Context, content *model.ExtractedContent, policy Policy, tone string) (string, error)
}

// LLMConfig はLLMクライアントの設定。
type LLMConfig struct {
	Endpoint string
	Model    string
	APIKey   string
}

// LLMGenerator はOpenAI互換のchat completions APIで台本を生成するクライアント。
type LLMGenerator struct {
	cfg        LLMConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewLLMGenerator はLLMGeneratorの新しいインスタンスを生成する。
func NewLLMGenerator(cfg LLMConfig, httpClient *http.Client, logger *slog.Logger) *LLMGenerator {
	return &LLMGenerator{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
	}
}

// chatResponse はchat completions APIのレスポンスの必要部分。
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate は抽出コンテンツからポリシーに沿った台本を生成する。
func (g *LLMGenerator) Generate(ctx context.Context, content *model.ExtractedContent, policy Policy, tone string) (string, error) {
	if g.cfg.APIKey == "" || g.cfg.Endpoint == "" || g.cfg.Model == "" {
		return "", fmt.Errorf("LLMクライアントの設定が不足しています")
	}
	if tone == "" {
		tone = policy.DefaultTone
	}

	system := fmt.Sprintf(
		"あなたはポッドキャストの台本作家です。以下の構成で台本を書いてください: "+
			"イントロ（フック付き）、キーポイント%d〜%d個（つなぎの文を入れる）、まとめ、アウトロ。"+
			"トーン: %s。目標語数: %d〜%d語。段落は空行で区切ること。",
		policy.MinKeyPoints, policy.MaxKeyPoints, tone, policy.MinWords(), policy.MaxWords())

	user := fmt.Sprintf("タイトル: %s\n\n本文:\n%s", content.Title, content.Body)

	body, err := json.Marshal(map[string]any{
		"model": g.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("台本生成リクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("台本生成APIがエラーを返しました %s: %s",
			resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("台本生成レスポンスのパースに失敗しました: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("台本生成レスポンスにchoicesが含まれていません")
	}

	script := strings.TrimSpace(parsed.Choices[0].Message.Content)
	g.logger.Info("台本を生成しました",
		slog.String("model", g.cfg.Model),
		slog.Int("script_chars", len(script)),
	)

	return script, nil
}
