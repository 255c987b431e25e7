// Package model はドメインモデルを定義する。
package model

// VoiceAvailability は音声の利用可否状態を表す。
type VoiceAvailability string

const (
	// VoiceAvailable は正常に利用可能な状態。
	VoiceAvailable VoiceAvailability = "available"
	// VoiceUnavailable は利用不可の状態。
	VoiceUnavailable VoiceAvailability = "unavailable"
	// VoiceDegraded は品質低下中だが利用可能な状態。
	VoiceDegraded VoiceAvailability = "degraded"
)

// VoiceTier は音声の品質ティアを表す。
type VoiceTier string

const (
	// VoiceTierStandard は標準品質の音声。
	VoiceTierStandard VoiceTier = "standard"
	// VoiceTierPremium は高品質の音声。
	VoiceTierPremium VoiceTier = "premium"
)

// VoiceProfile はTTSプロバイダーが提供する音声の属性を表す。
// カタログのリフレッシュ時にセット全体が原子的に置き換えられ、
// 個々のフィールドが書き換えられることはない。
type VoiceProfile struct {
	ID           string
	DisplayName  string
	Provider     string
	Locale       string
	Gender       string
	StyleTags    []string
	Availability VoiceAvailability
	QualityTier  VoiceTier
}
