package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scan_duration_seconds",
			Help:    "Duration of one mailbox scan cycle in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		},
	)

	ScanCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_cycles_total",
			Help: "Total number of scan cycles",
		},
		[]string{"status"}, // status: success, failed
	)

	MessagesScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_scanned_total",
			Help: "Total number of mailbox messages inspected",
		},
	)

	NewAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "new_alerts_total",
			Help: "Total number of newly discovered alerts",
		},
		[]string{"category"},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Total number of webhook notification attempts",
		},
		[]string{"status"}, // status: success, failed
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

// RecordScan records the outcome and duration of one scan cycle.
func RecordScan(status string, duration time.Duration) {
	ScanCycles.WithLabelValues(status).Inc()
	ScanDuration.Observe(duration.Seconds())
}

// RecordHTTPRequestDuration records HTTP request latency.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
