package feedgen

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/metrics"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
)

// EpisodeSource はフィード組み立てに必要なエピソード一覧を提供する。
type EpisodeSource interface {
	ListByFeed(ctx context.Context, feedID string) ([]model.Episode, error)
}

// Service はフィードの遅延再構築とキャッシュ提供を担うサービス。
type Service struct {
	source    EpisodeSource
	builder   *Builder
	cache     *Cache
	meta      FeedMetadata
	opts      BuildOptions
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(source EpisodeSource, meta FeedMetadata, opts BuildOptions, collector metrics.MetricsCollector, logger *slog.Logger) *Service {
	return &Service{
		source:    source,
		builder:   NewBuilder(),
		cache:     NewCache(),
		meta:      meta,
		opts:      opts,
		collector: collector,
		logger:    logger,
	}
}

// Feed はfeedIDのレンダリング済みフィードを返す。キャッシュが有効なら
// そのまま返し、無効ならエピソードを再取得して再構築する。
func (s *Service) Feed(ctx context.Context, feedID string) ([]byte, error) {
	if payload, ok := s.cache.Get(feedID); ok {
		s.collector.RecordFeedCacheHit()
		s.logger.Debug("フィードキャッシュヒット", slog.String("feed_id", feedID))
		return payload, nil
	}
	s.collector.RecordFeedCacheMiss()

	episodes, err := s.source.ListByFeed(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("エピソード一覧の取得に失敗しました: %w", err)
	}

	payload, err := s.builder.Build(episodes, s.meta, s.opts)
	if err != nil {
		return nil, err
	}

	s.cache.Put(feedID, payload)
	s.logger.Info("フィードを再構築しました",
		slog.String("feed_id", feedID),
		slog.Int("episode_count", len(episodes)),
	)
	return payload, nil
}

// Invalidate はfeedIDのキャッシュを無効化する。エピソードの追加・更新後に
// 呼ばれ、次回アクセス時に再構築が走る。
func (s *Service) Invalidate(feedID string) {
	s.cache.Invalidate(feedID)
	s.logger.Info("フィードキャッシュを無効化しました", slog.String("feed_id", feedID))
}

// Cache は内部キャッシュを返す。検査用途。
func (s *Service) Cache() *Cache {
	return s.cache
}
