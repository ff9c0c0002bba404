package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SearchMetrics counts unit cache behaviour for transaction search.
type SearchMetrics struct {
	lookups  *prometheus.CounterVec
	failures prometheus.Counter
}

// NewSearchMetrics registers the search metrics on the provided registerer.
func NewSearchMetrics(reg prometheus.Registerer) *SearchMetrics {
	if reg == nil {
		return &SearchMetrics{}
	}
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "search_unit_cache_lookups_total",
		Help: "Unit ids resolved during transaction search, by cache result.",
	}, []string{"result"})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "search_unit_lookup_failures_total",
		Help: "Batch unit lookups that failed.",
	})
	reg.MustRegister(lookups, failures)
	return &SearchMetrics{lookups: lookups, failures: failures}
}

func (m *SearchMetrics) CacheHits(n int) {
	if m == nil || m.lookups == nil || n <= 0 {
		return
	}
	m.lookups.WithLabelValues("hit").Add(float64(n))
}

func (m *SearchMetrics) CacheMisses(n int) {
	if m == nil || m.lookups == nil || n <= 0 {
		return
	}
	m.lookups.WithLabelValues("miss").Add(float64(n))
}

func (m *SearchMetrics) LookupFailed() {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.Inc()
}

// TimelineMetrics counts timeline reconstructions by outcome.
type TimelineMetrics struct {
	traces *prometheus.CounterVec
	points prometheus.Histogram
}

func NewTimelineMetrics(reg prometheus.Registerer) *TimelineMetrics {
	if reg == nil {
		return &TimelineMetrics{}
	}
	traces := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unit_traces_total",
		Help: "Unit traces served, by outcome.",
	}, []string{"outcome"})
	points := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "unit_timeline_points",
		Help:    "Number of points in reconstructed unit timelines.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 50},
	})
	reg.MustRegister(traces, points)
	return &TimelineMetrics{traces: traces, points: points}
}

func (m *TimelineMetrics) ObserveTrace(outcome string) {
	if m == nil || m.traces == nil {
		return
	}
	m.traces.WithLabelValues(outcome).Inc()
}

func (m *TimelineMetrics) ObservePoints(n int) {
	if m == nil || m.points == nil {
		return
	}
	m.points.Observe(float64(n))
}
