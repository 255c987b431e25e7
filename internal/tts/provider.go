// Package tts はテキスト読み上げ音声の生成を提供する。
// プライマリ/セカンダリのプロバイダー委譲と決定的なフォールバック、
// 推定尺と品質ヒューリスティックの算出を含む。
package tts

import (
	"context"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
)

// VoiceConfig は音声合成のパラメータを表す。
type VoiceConfig struct {
	VoiceID string
	Locale  string
	Style   string
	Speed   float64 // 1.0が標準速度
}

// Provider はTTSプロバイダーのインターフェース。
// 各プロバイダーはHTTP APIへの薄いラッパーであり、リトライや
// フォールバックの判断はオーケストレーターが行う。
type Provider interface {
	// Name はプロバイダーの識別名を返す。
	Name() string

	// Synthesize はテキストから音声データを合成する。
	Synthesize(ctx context.Context, text string, cfg VoiceConfig) ([]byte, error)

	// ListVoices は提供可能な音声の一覧を返す。
	ListVoices(ctx context.Context) ([]model.VoiceProfile, error)

	// HealthCheck はプロバイダーの死活を確認する。
	HealthCheck(ctx context.Context) bool
}
