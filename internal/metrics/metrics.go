// Package metrics は Prometheus 形式のアプリケーションメトリクスを提供します。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果のラベル値
const (
	LoginSucceeded = "success"
	LoginFailed    = "failure"
	LoginThrottled = "throttled"
)

// Metrics はアプリケーションで使うメトリクスをまとめたものです。
type Metrics struct {
	SignUps          prometheus.Counter
	Logins           *prometheus.CounterVec
	LogOuts          prometheus.Counter
	RestrictedVisits prometheus.Counter
	GateRedirects    prometheus.Counter

	gatherer prometheus.Gatherer
}

// New は専用レジストリにメトリクスを登録して返します。
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		SignUps: factory.NewCounter(prometheus.CounterOpts{
			Name: "members_only_signups_total",
			Help: "Number of users created through sign-up.",
		}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "members_only_logins_total",
			Help: "Log-in attempts by result.",
		}, []string{"result"}),
		LogOuts: factory.NewCounter(prometheus.CounterOpts{
			Name: "members_only_logouts_total",
			Help: "Number of destroyed sessions.",
		}),
		RestrictedVisits: factory.NewCounter(prometheus.CounterOpts{
			Name: "members_only_restricted_visits_total",
			Help: "Authenticated visits to the restricted page.",
		}),
		GateRedirects: factory.NewCounter(prometheus.CounterOpts{
			Name: "members_only_gate_redirects_total",
			Help: "Anonymous requests bounced by the authentication gate.",
		}),
		gatherer: reg,
	}
}

// Handler は /metrics 用のハンドラーを返します。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
