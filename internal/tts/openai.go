package tts

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

// defaultOpenAIEndpoint はOpenAI speech APIの既定エンドポイント。
const defaultOpenAIEndpoint = "https://api.openai.com/v1"

// OpenAIProvider はOpenAIのspeech APIを呼び出すTTSプロバイダー。
type OpenAIProvider struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
	apiKey     string
	model      string
}

// NewOpenAIProvider はOpenAIProviderの新しいインスタンスを生成する。
// endpointが空の場合は既定エンドポイントを使用する。
func NewOpenAIProvider(httpClient *http.Client, logger *slog.Logger, apiKey, endpoint string) *OpenAIProvider {
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}
	return &OpenAIProvider{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      "tts-1",
	}
}

// Name はプロバイダーの識別名を返す。
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Synthesize はテキストから音声データ（mp3）を合成する。
func (p *OpenAIProvider) Synthesize(ctx context.Context, text string, cfg VoiceConfig) ([]byte, error) {
	speed := cfg.Speed
	if speed <= 0 {
		speed = 1.0
	}

	payload, err := json.Marshal(map[string]any{
		"model":           p.model,
		"input":           text,
		"voice":           cfg.VoiceID,
		"speed":           speed,
		"response_format": "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.endpoint+"/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openaiの音声合成リクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("openaiがステータス %d を返しました: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("音声データの読み取りに失敗しました: %w", err)
	}

	p.logger.Info("openaiで音声を合成しました",
		slog.String("voice", cfg.VoiceID),
		slog.Int("audio_bytes", len(audio)),
	)
	return audio, nil
}

// openAIVoiceIDs はOpenAIが提供する固定の音声セット。
// OpenAIには音声一覧APIがないため、既知のセットを返す。
var openAIVoiceIDs = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// ListVoices は提供可能な音声の一覧を返す。
// 死活確認に成功した場合は全音声をavailable、失敗した場合はdegradedとして返す。
func (p *OpenAIProvider) ListVoices(ctx context.Context) ([]model.VoiceProfile, error) {
	availability := model.VoiceAvailable
	if !p.HealthCheck(ctx) {
		availability = model.VoiceDegraded
	}

	voices := make([]model.VoiceProfile, 0, len(openAIVoiceIDs))
	for _, id := range openAIVoiceIDs {
		voices = append(voices, model.VoiceProfile{
			ID:           id,
			DisplayName:  strings.ToUpper(id[:1]) + id[1:],
			Provider:     p.Name(),
			Locale:       "en-US",
			Availability: availability,
			QualityTier:  model.VoiceTierStandard,
		})
	}
	return voices, nil
}

// HealthCheck はAPIの死活を確認する。モデル一覧エンドポイントを使用する。
func (p *OpenAIProvider) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
