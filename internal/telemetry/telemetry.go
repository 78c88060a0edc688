package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	adapterFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hfagent_adapter_fetches_total",
		Help: "News adapter fetches by adapter and outcome.",
	}, []string{"adapter", "outcome"})

	adapterFetchSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hfagent_adapter_fetch_seconds",
		Help:    "News adapter fetch latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"adapter"})

	adapterArticles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hfagent_adapter_articles_total",
		Help: "Articles returned by each news adapter.",
	}, []string{"adapter"})

	oracleCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hfagent_oracle_calls_total",
		Help: "Analysis oracle invocations by function and outcome.",
	}, []string{"function", "outcome"})

	trackingOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hfagent_tracking_ops_total",
		Help: "Tracking lifecycle operations by kind and outcome.",
	}, []string{"op", "outcome"})

	trackedEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hfagent_tracked_entries",
		Help: "Number of currently tracked (scenario, play) pairs.",
	})
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveAdapterFetch records one adapter fetch attempt.
func ObserveAdapterFetch(adapter string, d time.Duration, articles int, err error) {
	adapterFetches.WithLabelValues(adapter, outcome(err)).Inc()
	adapterFetchSeconds.WithLabelValues(adapter).Observe(d.Seconds())
	if err == nil {
		adapterArticles.WithLabelValues(adapter).Add(float64(articles))
	}
}

// ObserveOracleCall records one oracle invocation.
func ObserveOracleCall(function string, err error) {
	oracleCalls.WithLabelValues(function, outcome(err)).Inc()
}

// ObserveTrackingOp records one Start/Refresh/Stop transition.
func ObserveTrackingOp(op string, err error) {
	trackingOps.WithLabelValues(op, outcome(err)).Inc()
}

// SetTrackedEntries updates the live tracked-entry gauge.
func SetTrackedEntries(n int) {
	trackedEntries.Set(float64(n))
}
