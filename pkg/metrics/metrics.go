package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics Prometheus メトリクス一式（専用レジストリに登録）
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 認証
	LoginsTotal *prometheus.CounterVec

	// アシスタントラン
	AssistantRunsTotal   *prometheus.CounterVec
	AssistantRunDuration prometheus.Histogram
	AssistantRunPolls    prometheus.Histogram

	// 提出保存
	SubmissionSavesTotal *prometheus.CounterVec
}

// New メトリクスを生成し専用レジストリへ登録する
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hinotama_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hinotama_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		LoginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hinotama_logins_total",
			Help: "Total number of login attempts by principal type and outcome.",
		}, []string{"principal", "outcome"}),

		AssistantRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hinotama_assistant_runs_total",
			Help: "Total number of assistant runs by outcome.",
		}, []string{"assistant", "outcome"}),

		AssistantRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hinotama_assistant_run_duration_seconds",
			Help:    "Assistant run wall time in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),

		AssistantRunPolls: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hinotama_assistant_run_polls",
			Help:    "Number of status polls per assistant run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),

		SubmissionSavesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hinotama_submission_saves_total",
			Help: "Total number of submission persistence attempts by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginsTotal,
		m.AssistantRunsTotal,
		m.AssistantRunDuration,
		m.AssistantRunPolls,
		m.SubmissionSavesTotal,
	)

	return m
}

// Handler /metrics 用の HTTP ハンドラを返す
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
