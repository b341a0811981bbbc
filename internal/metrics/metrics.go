// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordLoginAttempt(provider string)
	RecordLoginSuccess(provider string)
	RecordLoginFailure(provider string, reason string)
	RecordAccountProvisioned(provider string)
	RecordCallbackLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginAttempts      *prometheus.CounterVec
	loginSuccess       *prometheus.CounterVec
	loginFailure       *prometheus.CounterVec
	accountProvisioned *prometheus.CounterVec
	callbackLatency    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idbridge_login_attempts_total",
			Help: "外部ログインチャレンジ開始の合計数",
		}, []string{"provider"}),
		loginSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idbridge_login_success_total",
			Help: "外部ログイン成功の合計数",
		}, []string{"provider"}),
		loginFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idbridge_login_failure_total",
			Help: "外部ログイン失敗の合計数（理由別）",
		}, []string{"provider", "reason"}),
		accountProvisioned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idbridge_accounts_provisioned_total",
			Help: "自動登録されたアカウントの合計数",
		}, []string{"provider"}),
		callbackLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "idbridge_callback_latency_seconds",
			Help:    "コールバック処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.loginAttempts,
		c.loginSuccess,
		c.loginFailure,
		c.accountProvisioned,
		c.callbackLatency,
	)

	return c
}

// RecordLoginAttempt はチャレンジ開始を記録する。
func (c *Collector) RecordLoginAttempt(provider string) {
	c.loginAttempts.WithLabelValues(provider).Inc()
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess(provider string) {
	c.loginSuccess.WithLabelValues(provider).Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure(provider string, reason string) {
	c.loginFailure.WithLabelValues(provider, reason).Inc()
}

// RecordAccountProvisioned はアカウント自動登録を記録する。
func (c *Collector) RecordAccountProvisioned(provider string) {
	c.accountProvisioned.WithLabelValues(provider).Inc()
}

// RecordCallbackLatency はコールバック処理のレイテンシを記録する。
func (c *Collector) RecordCallbackLatency(duration time.Duration) {
	c.callbackLatency.Observe(duration.Seconds())
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
