package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AnalysisRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackflow_analysis_requests_total",
			Help: "Analysis requests by action and outcome (ok or error kind)",
		},
		[]string{"action", "outcome"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackflow_analysis_cache_lookups_total",
			Help: "Summary cache lookups by result",
		},
		[]string{"result"},
	)

	LLMDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedbackflow_llm_request_duration_seconds",
			Help:    "Latency of chat completion calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"action"},
	)

	QuotaRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feedbackflow_quota_rejections_total",
			Help: "Requests rejected by the daily AI quota",
		},
	)
)

// Init registers metrics with Prometheus
func Init() {
	prometheus.MustRegister(AnalysisRequests)
	prometheus.MustRegister(CacheLookups)
	prometheus.MustRegister(LLMDuration)
	prometheus.MustRegister(QuotaRejections)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
