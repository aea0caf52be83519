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
	RecordHTTPStatus(method, path string, status int, duration time.Duration)
	RecordAuthDenial(reason string)
	RecordValidationFailure(docType string)
	RecordUploadRejected(reason string)
	RecordStoreOp(op string, duration time.Duration, err error)
	RecordNewsRefresh(success bool, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus        *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	authDenials       *prometheus.CounterVec
	validationFails   *prometheus.CounterVec
	uploadRejected    *prometheus.CounterVec
	storeOps          *prometheus.CounterVec
	storeOpDuration   *prometheus.HistogramVec
	newsRefresh       *prometheus.CounterVec
	newsRefreshDurSec prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "estatebase_http_requests_total",
			Help: "HTTPメソッド・ステータスコード別のリクエスト数",
		}, []string{"method", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "estatebase_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		authDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "estatebase_auth_denials_total",
			Help: "認証・認可による拒否の合計数（理由別）",
		}, []string{"reason"}),
		validationFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "estatebase_validation_failures_total",
			Help: "スキーマ検証失敗の合計数（ドキュメントタイプ別）",
		}, []string{"doc_type"}),
		uploadRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "estatebase_upload_rejected_total",
			Help: "アップロード拒否の合計数（理由別）",
		}, []string{"reason"}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "estatebase_store_ops_total",
			Help: "ドキュメントストア操作の合計数（操作・結果別）",
		}, []string{"op", "result"}),
		storeOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "estatebase_store_op_duration_seconds",
			Help:    "ドキュメントストア操作の処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		newsRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "estatebase_news_refresh_total",
			Help: "ニュースフィード再取得の合計数（結果別）",
		}, []string{"result"}),
		newsRefreshDurSec: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "estatebase_news_refresh_duration_seconds",
			Help:    "ニュースフィード再取得の処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.httpDuration,
		c.authDenials,
		c.validationFails,
		c.uploadRejected,
		c.storeOps,
		c.storeOpDuration,
		c.newsRefresh,
		c.newsRefreshDurSec,
	)

	return c
}

// RecordHTTPStatus はHTTPリクエストのステータスコードと処理時間を記録する。
// pathはカーディナリティ爆発を避けるためラベルには使用しない。
func (c *Collector) RecordHTTPStatus(method, path string, status int, duration time.Duration) {
	c.httpStatus.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordAuthDenial は認証・認可の拒否を記録する。
// reasonは"unauthenticated"または"not_allowlisted"。
func (c *Collector) RecordAuthDenial(reason string) {
	c.authDenials.WithLabelValues(reason).Inc()
}

// RecordValidationFailure はスキーマ検証の失敗を記録する。
func (c *Collector) RecordValidationFailure(docType string) {
	c.validationFails.WithLabelValues(docType).Inc()
}

// RecordUploadRejected はアップロードの拒否を記録する。
// reasonは"too_large"、"unsupported_mime"、"rate_limited"のいずれか。
func (c *Collector) RecordUploadRejected(reason string) {
	c.uploadRejected.WithLabelValues(reason).Inc()
}

// RecordStoreOp はドキュメントストア操作の結果と処理時間を記録する。
func (c *Collector) RecordStoreOp(op string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.storeOps.WithLabelValues(op, result).Inc()
	c.storeOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordNewsRefresh はニュースフィード再取得の結果と処理時間を記録する。
func (c *Collector) RecordNewsRefresh(success bool, duration time.Duration) {
	result := "ok"
	if !success {
		result = "error"
	}
	c.newsRefresh.WithLabelValues(result).Inc()
	c.newsRefreshDurSec.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
