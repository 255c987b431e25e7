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

// defaultElevenLabsEndpoint はElevenLabs APIの既定エンドポイント。
const defaultElevenLabsEndpoint = "https://api.elevenlabs.io/v1"

// ElevenLabsProvider はElevenLabsのAPIを呼び出すTTSプロバイダー。
type ElevenLabsProvider struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
	apiKey     string
}

// NewElevenLabsProvider はElevenLabsProviderの新しいインスタンスを生成する。
func NewElevenLabsProvider(httpClient *http.Client, logger *slog.Logger, apiKey, endpoint string) *ElevenLabsProvider {
	if endpoint == "" {
		endpoint = defaultElevenLabsEndpoint
	}
	return &ElevenLabsProvider{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		apiKey:     apiKey,
	}
}

// Name はプロバイダーの識別名を返す。
func (p *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

// Synthesize はテキストから音声データ（mp3）を合成する。
// VoiceConfigのスタイルと速度は、ElevenLabsのスキーマが許す範囲で
// voice_settingsへ引き継ぐ。
func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text string, cfg VoiceConfig) ([]byte, error) {
	speed := cfg.Speed
	if speed <= 0 {
		speed = 1.0
	}

	payload, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": "eleven_multilingual_v2",
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
			"speed":            speed,
			"style":            styleExaggeration(cfg.Style),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", p.endpoint, cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabsの音声合成リクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("elevenlabsがステータス %d を返しました: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("音声データの読み取りに失敗しました: %w", err)
	}

	p.logger.Info("elevenlabsで音声を合成しました",
		slog.String("voice", cfg.VoiceID),
		slog.Int("audio_bytes", len(audio)),
	)
	return audio, nil
}

// voicesResponse はElevenLabsの音声一覧APIのレスポンス。
type voicesResponse struct {
	Voices []struct {
		VoiceID string            `json:"voice_id"`
		Name    string            `json:"name"`
		Labels  map[string]string `json:"labels"`
	} `json:"voices"`
}

// ListVoices は提供可能な音声の一覧を取得する。
func (p *ElevenLabsProvider) ListVoices(ctx context.Context) ([]model.VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("音声一覧の取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabsがステータス %d を返しました", resp.StatusCode)
	}

	var parsed voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("音声一覧のパースに失敗しました: %w", err)
	}

	voices := make([]model.VoiceProfile, 0, len(parsed.Voices))
	for _, v := range parsed.Voices {
		profile := model.VoiceProfile{
			ID:           v.VoiceID,
			DisplayName:  v.Name,
			Provider:     p.Name(),
			Locale:       "en-US",
			Gender:       v.Labels["gender"],
			Availability: model.VoiceAvailable,
			QualityTier:  model.VoiceTierPremium,
		}
		if accent, ok := v.Labels["accent"]; ok {
			profile.StyleTags = append(profile.StyleTags, accent)
		}
		voices = append(voices, profile)
	}
	return voices, nil
}

// HealthCheck はAPIの死活を確認する。
func (p *ElevenLabsProvider) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/user", nil)
	if err != nil {
		return false
	}
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// styleExaggeration はスタイル指定をElevenLabsのstyle値へ写像する。
func styleExaggeration(style string) float64 {
	switch style {
	case "energetic":
		return 0.8
	case "calm":
		return 0.1
	case "authoritative":
		return 0.4
	default:
		return 0.3
	}
}
