// Package voice は音声カタログの管理とフォールバック解決を提供する。
package voice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
)

// DefaultCacheTTL は音声カタログキャッシュの既定の有効期間。
const DefaultCacheTTL = time.Hour

// VoiceLister は上流の音声一覧を提供するインターフェース。
// TTSプロバイダーが実装する。
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]model.VoiceProfile, error)
}

// Catalog は発話可能な音声のキャッシュ付きカタログ。
// リフレッシュはキャッシュセット全体の原子的な置き換えとして行われ、
// リフレッシュ失敗時は前回のキャッシュを保持する。可用性は緩やかに
// 劣化し、決して全損しない。進行中のリフレッシュは既存キャッシュの
// 読み取りをブロックしない。
type Catalog struct {
	sources []VoiceLister
	logger  *slog.Logger
	ttl     time.Duration

	mu          sync.RWMutex
	voices      map[string]model.VoiceProfile
	refreshedAt time.Time
}

// NewCatalog は指定ソースから音声を収集するCatalogを生成する。
// ttlが0以下の場合はDefaultCacheTTLを使用する。
func NewCatalog(sources []VoiceLister, logger *slog.Logger, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Catalog{
		sources: sources,
		logger:  logger,
		ttl:     ttl,
		voices:  make(map[string]model.VoiceProfile),
	}
}

// Lookup は指定IDの音声を返す。キャッシュが期限切れの場合はリフレッシュを試みる。
// リフレッシュに失敗しても古いキャッシュで応答する。
func (c *Catalog) Lookup(ctx context.Context, voiceID string) (model.VoiceProfile, bool) {
	c.ensureFresh(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.voices[voiceID]
	return v, ok
}

// Refresh は全ソースから音声一覧を取得し、キャッシュを原子的に置き換える。
// すべてのソースが失敗した場合はエラーを返し、既存キャッシュは保持される。
// 一部のソースのみ失敗した場合は取得できた分で置き換える。
func (c *Catalog) Refresh(ctx context.Context) error {
	fresh := make(map[string]model.VoiceProfile)
	var failures int

	for _, source := range c.sources {
		voices, err := source.ListVoices(ctx)
		if err != nil {
			failures++
			c.logger.Warn("音声一覧の取得に失敗しました",
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, v := range voices {
			fresh[v.ID] = v
		}
	}

	if failures == len(c.sources) {
		// 全滅。前回のキャッシュを維持する。
		return fmt.Errorf("全ての音声ソースからの取得に失敗しました (%d件)", failures)
	}

	c.mu.Lock()
	c.voices = fresh
	c.refreshedAt = time.Now()
	c.mu.Unlock()

	c.logger.Info("音声カタログをリフレッシュしました",
		slog.Int("voice_count", len(fresh)),
		slog.Int("failed_sources", failures),
	)
	return nil
}

// ensureFresh はキャッシュが期限切れの場合にリフレッシュを試みる。
// 失敗してもエラーは呼び出し元へ返さない。古いキャッシュのまま継続する。
func (c *Catalog) ensureFresh(ctx context.Context) {
	c.mu.RLock()
	stale := time.Since(c.refreshedAt) > c.ttl
	c.mu.RUnlock()

	if !stale {
		return
	}
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("音声カタログのリフレッシュに失敗したため前回のキャッシュで継続します",
			slog.String("error", err.Error()),
		)
	}
}

// StartRefreshLoop は固定間隔でカタログをリフレッシュするループを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (c *Catalog) StartRefreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 起動直後に1回実行
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("初回の音声カタログリフレッシュに失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("音声カタログの定期リフレッシュに失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Size は現在キャッシュされている音声数を返す。
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.voices)
}
