package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Poll loop Prometheus metrics.
var (
	PollCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "allowance_logger",
			Name:      "poll_cycles_total",
			Help:      "Completed poll cycles",
		},
	)

	PollCyclesSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "allowance_logger",
			Name:      "poll_cycles_skipped_total",
			Help:      "Poll ticks skipped because the previous cycle was still running",
		},
	)

	PollCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "allowance_logger",
			Name:      "poll_cycle_duration_seconds",
			Help:      "Poll cycle duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	FetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "allowance_logger",
			Name:      "fetch_errors_total",
			Help:      "Allowance fetches that failed and skipped the wallet",
		},
		[]string{"wallet"},
	)

	AllowanceRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "allowance_logger",
			Name:      "allowance_remaining",
			Help:      "Last observed total remaining allowance",
		},
		[]string{"wallet"},
	)

	ChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "allowance_logger",
			Name:      "changes_total",
			Help:      "Reported allowance changes",
		},
		[]string{"kind"},
	)

	WebhookErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "allowance_logger",
			Name:      "webhook_errors_total",
			Help:      "Webhook deliveries that failed",
		},
		[]string{"type"}, // "embed" / "file"
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			PollCyclesTotal,
			PollCyclesSkippedTotal,
			PollCycleDuration,
			FetchErrorsTotal,
			AllowanceRemaining,
			ChangesTotal,
			WebhookErrorsTotal,
		)
	})
}
