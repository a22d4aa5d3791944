package gateway

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	kindText  = "text"
	kindImage = "image"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comic_gateway_requests_total",
			Help: "Total number of requests to model providers.",
		},
		[]string{"provider", "kind", "status"},
	)
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "comic_gateway_request_duration_seconds",
			Help:    "Histogram of model provider request durations.",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		},
		[]string{"provider", "kind"},
	)
	promptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "comic_gateway_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(50, 50, 20),
		},
		[]string{"provider", "model"},
	)
	completionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "comic_gateway_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(50, 50, 20),
		},
		[]string{"provider", "model"},
	)
)

// statusLabel значение метки status: "success" или HTTP код / "error".
func statusLabel(err error) string {
	if err == nil {
		return "success"
	}
	if ue, ok := err.(*UpstreamError); ok && ue.Status != 0 {
		return strconv.Itoa(ue.Status)
	}
	return "error"
}
