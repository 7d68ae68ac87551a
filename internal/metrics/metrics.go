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
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPRequest(statusCode int, duration time.Duration)
	RecordAuthSuccess(kind string)
	RecordAuthFailure(kind string)
	RecordPostCreated()
	RecordPostView()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus   *prometheus.CounterVec
	httpDuration prometheus.Histogram
	authSuccess  *prometheus.CounterVec
	authFailure  *prometheus.CounterVec
	postsCreated prometheus.Counter
	postViews    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inkwell_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		httpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inkwell_http_duration_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		authSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inkwell_auth_success_total",
			Help: "認証成功の合計数（register/login別）",
		}, []string{"kind"}),
		authFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inkwell_auth_failure_total",
			Help: "認証失敗の合計数（register/login別）",
		}, []string{"kind"}),
		postsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inkwell_posts_created_total",
			Help: "作成された記事の合計数",
		}),
		postViews: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inkwell_post_views_total",
			Help: "記録された記事閲覧の合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.httpDuration,
		c.authSuccess,
		c.authFailure,
		c.postsCreated,
		c.postViews,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストのステータスコードとレイテンシを記録する。
func (c *Collector) RecordHTTPRequest(statusCode int, duration time.Duration) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.httpDuration.Observe(duration.Seconds())
}

// RecordAuthSuccess は認証成功を記録する。
func (c *Collector) RecordAuthSuccess(kind string) {
	c.authSuccess.WithLabelValues(kind).Inc()
}

// RecordAuthFailure は認証失敗を記録する。
func (c *Collector) RecordAuthFailure(kind string) {
	c.authFailure.WithLabelValues(kind).Inc()
}

// RecordPostCreated は記事の作成を記録する。
func (c *Collector) RecordPostCreated() {
	c.postsCreated.Inc()
}

// RecordPostView は記事の閲覧を記録する。
func (c *Collector) RecordPostView() {
	c.postViews.Inc()
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
