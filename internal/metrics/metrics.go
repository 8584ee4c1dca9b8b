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
// APIクライアントやミドルウェアから利用する。
type MetricsCollector interface {
	RecordAPICall(operation, outcome string, statusCode int, duration time.Duration)
	RecordSessionEvent(event string)
	RecordRateLimited(limitType string)
}

// セッションイベント名。
const (
	SessionLogin    = "login"
	SessionLogout   = "logout"
	SessionExpired  = "expired"
	SessionRegister = "register"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	apiCalls      *prometheus.CounterVec
	apiStatus     *prometheus.CounterVec
	apiLatency    *prometheus.HistogramVec
	sessionEvents *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogfront_api_calls_total",
			Help: "ブログAPI呼び出しの合計数（操作・結果別）",
		}, []string{"operation", "outcome"}),
		apiStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogfront_api_status_total",
			Help: "ブログAPIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blogfront_api_latency_seconds",
			Help:    "ブログAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogfront_session_events_total",
			Help: "セッションイベントの合計数",
		}, []string{"event"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogfront_rate_limited_total",
			Help: "レート制限で拒否したリクエスト数",
		}, []string{"limit_type"}),
	}

	reg.MustRegister(
		c.apiCalls,
		c.apiStatus,
		c.apiLatency,
		c.sessionEvents,
		c.rateLimited,
	)

	return c
}

// RecordAPICall はAPI呼び出し1件を記録する。
// statusCode が0（レスポンスなし）の場合はステータス別カウンタを更新しない。
func (c *Collector) RecordAPICall(operation, outcome string, statusCode int, duration time.Duration) {
	c.apiCalls.WithLabelValues(operation, outcome).Inc()
	if statusCode != 0 {
		c.apiStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	}
	c.apiLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSessionEvent はセッションイベントを記録する。
func (c *Collector) RecordSessionEvent(event string) {
	c.sessionEvents.WithLabelValues(event).Inc()
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(limitType string) {
	c.rateLimited.WithLabelValues(limitType).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
