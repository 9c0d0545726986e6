package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics definitions
var (
	ParseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sift_parse_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	RuleEvalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sift_rule_eval_seconds",
		Help:    "Time spent evaluating a single rule against one tree.",
		Buckets: prometheus.DefBuckets,
	}, []string{"rule"})

	ScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sift_scan_seconds",
		Help:    "Time spent on a full scan or measure run.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	FindingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sift_findings_total",
		Help: "Total number of findings emitted, by category.",
	}, []string{"category"})

	RuleErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sift_rule_errors_total",
		Help: "Total number of rules that failed to compile or execute.",
	})

	MeasuredValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sift_measured_value",
		Help: "Last value recorded by a rule's measurement callback.",
	}, []string{"rule", "metric"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sift_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)

// PromSink forwards measured values to the MeasuredValue gauge. It satisfies
// rules.MetricSink.
type PromSink struct{}

func (PromSink) Record(rule, metric string, value float64) {
	MeasuredValue.WithLabelValues(rule, metric).Set(value)
}

// Serve exposes /metrics on addr. It blocks, so callers run it in a
// goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
