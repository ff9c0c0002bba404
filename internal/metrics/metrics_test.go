package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestSearchMetricsCountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSearchMetrics(reg)
	m.CacheHits(3)
	m.CacheMisses(2)
	m.CacheMisses(0)
	m.LookupFailed()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := counterValue(mfs, "search_unit_cache_lookups_total", "result", "hit"); err != nil || got != 3 {
		t.Fatalf("expected hit=3, got %f (%v)", got, err)
	}
	if got, err := counterValue(mfs, "search_unit_cache_lookups_total", "result", "miss"); err != nil || got != 2 {
		t.Fatalf("expected miss=2, got %f (%v)", got, err)
	}
	if got, err := counterValue(mfs, "search_unit_lookup_failures_total", "", ""); err != nil || got != 1 {
		t.Fatalf("expected failures=1, got %f (%v)", got, err)
	}
}

func TestTimelineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTimelineMetrics(reg)
	m.ObserveTrace("ok")
	m.ObservePoints(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := counterValue(mfs, "unit_traces_total", "outcome", "ok"); err != nil || got != 1 {
		t.Fatalf("expected ok=1, got %f (%v)", got, err)
	}
	mf := findMetricFamily(mfs, "unit_timeline_points")
	if mf == nil || mf.GetMetric()[0].GetHistogram().GetSampleSum() != 3 {
		t.Fatalf("expected histogram sum 3")
	}
}

func TestNilRegistererIsSafe(t *testing.T) {
	NewSearchMetrics(nil).CacheHits(1)
	NewTimelineMetrics(nil).ObserveTrace("ok")
	var m *SearchMetrics
	m.LookupFailed()
}

func counterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if label == "" || matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
