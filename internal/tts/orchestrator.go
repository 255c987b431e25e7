package tts

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/extract"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
)

// speechWordsPerMinute は推定尺の計算に使用する発話速度（語/分）。
const speechWordsPerMinute = 150

// providerQualityBonus はプロバイダーごとの固定品質加点。
// 観測・ランキング用途のヒューリスティックであり、正しさの判定には使わない。
var providerQualityBonus = map[string]int{
	"openai":     10,
	"elevenlabs": 15,
}

// GenerateResult は音声生成の結果を表す。
type GenerateResult struct {
	Audio           []byte
	DurationSeconds int
	ProviderUsed    string
	VoiceUsed       string
	QualityScore    int
}

// Orchestrator はプライマリ/セカンダリのTTSプロバイダーを統括する。
// 一時的なプロバイダー障害に対して、もう一方のプロバイダーへ
// 一度だけ決定的にフォールバックする。
type Orchestrator struct {
	primary   Provider
	secondary Provider
	logger    *slog.Logger
}

// NewOrchestrator はOrchestratorの新しいインスタンスを生成する。
func NewOrchestrator(primary, secondary Provider, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// Generate はテキストから音声を生成する。
//   - 空テキストは即座にEmptyInputで失敗する。プロバイダー呼び出しは
//     一切行わず、リトライもフォールバックもしない（呼び出し側のバグ）。
//   - プライマリが失敗した場合、同じ音声/スタイル指定のまま
//     セカンダリへ一度だけフォールバックする。
//   - 両方失敗した場合は両方の原因を添えてAllProvidersFailedを返す。
func (o *Orchestrator) Generate(ctx context.Context, text string, cfg VoiceConfig) (*GenerateResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, model.NewEmptyInputError()
	}

	audio, primaryErr := o.primary.Synthesize(ctx, text, cfg)
	if primaryErr == nil {
		return o.buildResult(text, audio, o.primary.Name(), cfg), nil
	}

	o.logger.Warn("プライマリTTSプロバイダーが失敗したためセカンダリへフォールバックします",
		slog.String("primary", o.primary.Name()),
		slog.String("secondary", o.secondary.Name()),
		slog.String("error", primaryErr.Error()),
	)

	audio, secondaryErr := o.secondary.Synthesize(ctx, text, cfg)
	if secondaryErr == nil {
		return o.buildResult(text, audio, o.secondary.Name(), cfg), nil
	}

	o.logger.Error("全てのTTSプロバイダーが失敗しました",
		slog.String("primary_error", primaryErr.Error()),
		slog.String("secondary_error", secondaryErr.Error()),
	)
	return nil, model.NewAllProvidersFailedError(primaryErr, secondaryErr)
}

// buildResult は合成結果に推定尺と品質スコアを付与する。
func (o *Orchestrator) buildResult(text string, audio []byte, provider string, cfg VoiceConfig) *GenerateResult {
	wc := extract.WordCount(text)
	return &GenerateResult{
		Audio:           audio,
		DurationSeconds: EstimateDurationSeconds(wc, cfg.Speed),
		ProviderUsed:    provider,
		VoiceUsed:       cfg.VoiceID,
		QualityScore:    audioQualityScore(text, provider),
	}
}

// EstimateDurationSeconds は語数と速度倍率から音声の尺（秒）を推定する。
// wordCount / (150 × speedMultiplier) × 60 を下限1秒で返す。
func EstimateDurationSeconds(wordCount int, speedMultiplier float64) int {
	if speedMultiplier <= 0 {
		speedMultiplier = 1.0
	}
	seconds := int(float64(wordCount) / (speechWordsPerMinute * speedMultiplier) * 60)
	if seconds < 1 {
		return 1
	}
	return seconds
}

// audioQualityScore は音声の品質スコアを[0,100]で算出する。
// テキスト品質ヒューリスティックにプロバイダーごとの固定加点を足した
// 有界な観測用指標である。
func audioQualityScore(text string, provider string) int {
	score := extract.QualityScore(text) + providerQualityBonus[provider]
	if score > 100 {
		return 100
	}
	return score
}
