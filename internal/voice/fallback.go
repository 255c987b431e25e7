package voice

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
)

//go:embed chains.yaml
var chainsYAML []byte

// chainTable はchains.yamlのスキーマ。
type chainTable struct {
	Chains map[string][]string `yaml:"chains"`
}

// Selection は音声解決の結果を表す。
type Selection struct {
	VoiceID       string
	WasFallback   bool
	FallbackLevel int // 希望音声を除く1始まりのフォールバック段数。希望音声が使えた場合は0
	Reason        string
}

// Resolver は希望音声をロケール別の固定フォールバックチェーンで解決する。
// チェーンは埋め込み設定テーブルから読み込まれ、順序は決定的。
type Resolver struct {
	catalog *Catalog
	chains  map[string][]string
	logger  *slog.Logger
}

// NewResolver は埋め込みのチェーンテーブルを読み込んだResolverを生成する。
func NewResolver(catalog *Catalog, logger *slog.Logger) (*Resolver, error) {
	var table chainTable
	if err := yaml.Unmarshal(chainsYAML, &table); err != nil {
		return nil, fmt.Errorf("フォールバックチェーンの読み込みに失敗しました: %w", err)
	}
	if len(table.Chains["default"]) == 0 {
		return nil, fmt.Errorf("フォールバックチェーンにdefaultエントリが必要です")
	}
	return &Resolver{
		catalog: catalog,
		chains:  table.Chains,
		logger:  logger,
	}, nil
}

// ChainFor は指定ロケールのフォールバックチェーンを返す。
// ロケール未定義の場合はdefaultチェーンを返す。
func (r *Resolver) ChainFor(locale string) []string {
	if chain, ok := r.chains[locale]; ok && len(chain) > 0 {
		return chain
	}
	return r.chains["default"]
}

// SelectWithFallback は希望音声をチェーンで解決する。
//   - 希望音声が指定され、availableであればそれを使用する（fallbackLevel=0）
//   - そうでなければチェーンを先頭から走査し、最初のavailableを返す。
//     fallbackLevelは希望音声を除いた1始まりの段数で、チェーンが
//     希望音声を先頭に含む場合でも最初の代替がlevel 1となる
//   - チェーン全滅の場合は最終エントリをベストエフォートで返す。
//     チェーンにエントリが存在する限り、音声の可用性だけを理由に
//     パイプライン全体を失敗させてはならない。
func (r *Resolver) SelectWithFallback(ctx context.Context, preferredVoiceID, locale string) Selection {
	if preferredVoiceID != "" {
		if v, ok := r.catalog.Lookup(ctx, preferredVoiceID); ok && v.Availability == model.VoiceAvailable {
			return Selection{
				VoiceID:       preferredVoiceID,
				WasFallback:   false,
				FallbackLevel: 0,
				Reason:        "希望音声が利用可能です",
			}
		}
	}

	chain := r.ChainFor(locale)
	level := 0
	for _, candidate := range chain {
		if candidate == preferredVoiceID {
			// 希望音声は確認済みの利用不可。段数には数えない
			continue
		}
		level++
		if v, ok := r.catalog.Lookup(ctx, candidate); ok && v.Availability == model.VoiceAvailable {
			sel := Selection{
				VoiceID:       candidate,
				WasFallback:   true,
				FallbackLevel: level,
				Reason: fmt.Sprintf("フォールバック %d 段目の音声 %s を使用します",
					level, candidate),
			}
			r.logger.Info("音声フォールバックが発生しました",
				slog.String("preferred", preferredVoiceID),
				slog.String("selected", candidate),
				slog.Int("fallback_level", sel.FallbackLevel),
			)
			return sel
		}
	}

	// チェーン全滅。最終エントリでベストエフォート継続する。
	last := chain[len(chain)-1]
	r.logger.Warn("チェーン内の全音声が利用不可のため最終手段で継続します",
		slog.String("preferred", preferredVoiceID),
		slog.String("selected", last),
		slog.String("locale", locale),
	)
	return Selection{
		VoiceID:       last,
		WasFallback:   true,
		FallbackLevel: level,
		Reason:        fmt.Sprintf("チェーン内の全音声が利用不可のため最終手段として %s を使用します", last),
	}
}
