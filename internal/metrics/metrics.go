// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// パイプラインやサービス層から利用する。
type MetricsCollector interface {
	RecordSubmissionAccepted(contentType string)
	RecordPipelineSuccess()
	RecordPipelineFailure(stage string)
	RecordStageLatency(stage string, duration time.Duration)
	RecordJobRetry()
	RecordProviderFallback()
	RecordVoiceFallback(level int)
	RecordFeedCacheHit()
	RecordFeedCacheMiss()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	submissionAccepted *prometheus.CounterVec
	pipelineSuccess    prometheus.Counter
	pipelineFailure    *prometheus.CounterVec
	stageLatency       *prometheus.HistogramVec
	jobRetry           prometheus.Counter
	providerFallback   prometheus.Counter
	voiceFallback      *prometheus.CounterVec
	feedCacheHit       prometheus.Counter
	feedCacheMiss      prometheus.Counter
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		submissionAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podgen_submission_accepted_total",
			Help: "受け付けた投稿のコンテンツ種別ごとの合計数",
		}, []string{"content_type"}),
		pipelineSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podgen_pipeline_success_total",
			Help: "パイプライン処理成功の合計数",
		}),
		pipelineFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podgen_pipeline_failure_total",
			Help: "パイプライン処理失敗のステージごとの合計数",
		}, []string{"stage"}),
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "podgen_stage_latency_seconds",
			Help:    "パイプライン各ステージのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		jobRetry: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podgen_job_retry_total",
			Help: "ジョブリトライの合計数",
		}),
		providerFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podgen_tts_provider_fallback_total",
			Help: "TTSプロバイダーのフォールバック発生数",
		}),
		voiceFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podgen_voice_fallback_total",
			Help: "ボイスフォールバックの段数ごとの発生数",
		}, []string{"level"}),
		feedCacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podgen_feed_cache_hit_total",
			Help: "フィードキャッシュヒットの合計数",
		}),
		feedCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podgen_feed_cache_miss_total",
			Help: "フィードキャッシュミス（再構築）の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podgen_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.submissionAccepted,
		c.pipelineSuccess,
		c.pipelineFailure,
		c.stageLatency,
		c.jobRetry,
		c.providerFallback,
		c.voiceFallback,
		c.feedCacheHit,
		c.feedCacheMiss,
		c.httpStatus,
	)

	return c
}

// RecordSubmissionAccepted は投稿の受け付けを記録する。
func (c *Collector) RecordSubmissionAccepted(contentType string) {
	c.submissionAccepted.WithLabelValues(contentType).Inc()
}

// RecordPipelineSuccess はパイプライン処理成功を記録する。
func (c *Collector) RecordPipelineSuccess() {
	c.pipelineSuccess.Inc()
}

// RecordPipelineFailure はパイプライン処理失敗を記録する。
func (c *Collector) RecordPipelineFailure(stage string) {
	c.pipelineFailure.WithLabelValues(stage).Inc()
}

// RecordStageLatency はステージのレイテンシを記録する。
func (c *Collector) RecordStageLatency(stage string, duration time.Duration) {
	c.stageLatency.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordJobRetry はジョブリトライを記録する。
func (c *Collector) RecordJobRetry() {
	c.jobRetry.Inc()
}

// RecordProviderFallback はTTSプロバイダーのフォールバックを記録する。
func (c *Collector) RecordProviderFallback() {
	c.providerFallback.Inc()
}

// RecordVoiceFallback はボイスフォールバックの段数を記録する。
func (c *Collector) RecordVoiceFallback(level int) {
	c.voiceFallback.WithLabelValues(strconv.Itoa(level)).Inc()
}

// RecordFeedCacheHit はフィードキャッシュヒットを記録する。
func (c *Collector) RecordFeedCacheHit() {
	c.feedCacheHit.Inc()
}

// RecordFeedCacheMiss はフィードキャッシュミスを記録する。
func (c *Collector) RecordFeedCacheMiss() {
	c.feedCacheMiss.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
