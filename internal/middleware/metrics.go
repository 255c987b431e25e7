package middleware

import (
	"net/http"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/metrics"
)

// NewMetricsMiddleware はレスポンスのHTTPステータスコードをメトリクスに記録する
// ミドルウェアを返す。ステータスクラスごとの分布をPrometheusで観測するために使う。
func NewMetricsMiddleware(collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			collector.RecordHTTPStatus(rec.statusCode)
		})
	}
}
