package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	pathAsync    = "async"
	pathBlocking = "blocking"
	pathNone     = "none"

	resultOK        = "ok"
	resultError     = "error"
	resultHTTPError = "http_error"
	resultThrottled = "throttled"

	// request written, no status before the async deadline
	resultUnconfirmed = "unconfirmed"
)

var (
	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clickhook",
		Subsystem: "webhook",
		Name:      "deliveries_total",
		Help:      "Webhook delivery attempts by path and result.",
	}, []string{"path", "result"})

	deliveryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "clickhook",
		Subsystem: "webhook",
		Name:      "delivery_duration_seconds",
		Help:      "Latency of blocking webhook requests.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"path"})
)
