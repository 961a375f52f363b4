package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "igtracker_cycles_total",
		Help: "Collect-and-reconcile cycles by outcome",
	}, []string{"outcome"})
	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "igtracker_cycle_duration_seconds",
		Help:    "Duration of a full collect-and-reconcile cycle",
		Buckets: []float64{30, 60, 120, 300, 600, 1200, 2400, 3600},
	})
	CollectionPasses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "igtracker_collection_passes_total",
		Help: "Collection passes by result",
	}, []string{"result"})
	PassQuality = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "igtracker_collection_pass_quality_ratio",
		Help:    "Collected over expected identifiers per pass",
		Buckets: []float64{0.25, 0.5, 0.75, 0.85, 0.9, 0.95, 0.99, 1, 1.1},
	})
	LoadAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "igtracker_collection_load_attempts",
		Help:    "Load-more requests issued before a pass converged",
		Buckets: prometheus.LinearBuckets(10, 20, 8),
	})
	HistoryEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "igtracker_history_events_total",
		Help: "History events appended by kind",
	}, []string{"kind"})
	ReciprocityChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "igtracker_reciprocity_checks_total",
		Help: "Reciprocity checks by result",
	}, []string{"result"})
	ActiveAccounts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "igtracker_active_accounts",
		Help: "Accounts present in the latest snapshot",
	})
	MutualAccounts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "igtracker_mutual_accounts",
		Help: "Active accounts that follow back",
	})
)

// Pass results
const (
	PassAccepted  = "accepted"
	PassShortfall = "shortfall"
	PassError     = "error"
)

// Reciprocity results
const (
	ReciprocityYes     = "reciprocates"
	ReciprocityNo      = "one_way"
	ReciprocityFailure = "failure"
)

func init() {
	prometheus.MustRegister(
		Cycles,
		CycleDuration,
		CollectionPasses,
		PassQuality,
		LoadAttempts,
		HistoryEvents,
		ReciprocityChecks,
		ActiveAccounts,
		MutualAccounts,
	)
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle records a finished cycle
func ObserveCycle(start time.Time, outcome string) {
	Cycles.WithLabelValues(outcome).Inc()
	CycleDuration.Observe(time.Since(start).Seconds())
}

// ObservePass records one collection pass
func ObservePass(result string, quality float64, attempts int) {
	CollectionPasses.WithLabelValues(result).Inc()
	if result != PassError {
		PassQuality.Observe(quality)
	}
	if attempts > 0 {
		LoadAttempts.Observe(float64(attempts))
	}
}

// IncHistoryEvent counts an appended history event
func IncHistoryEvent(kind string) { HistoryEvents.WithLabelValues(kind).Inc() }

// IncReciprocityCheck counts a reciprocity check outcome
func IncReciprocityCheck(result string) { ReciprocityChecks.WithLabelValues(result).Inc() }

// SetAccountGauges publishes the current totals
func SetAccountGauges(active, mutual int) {
	ActiveAccounts.Set(float64(active))
	MutualAccounts.Set(float64(mutual))
}
