package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// sample returns the value of the series of name whose labels include want.
func sample(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue next
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, want)
	return 0
}

func TestMetrics_CountersMove(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TreatyOpened()
	m.TreatyOpened()
	m.TreatyFinalized(true)
	m.TreatyFinalized(false)
	m.TreatyFinalized(false)
	m.AcceptRejected("E_GOLD")
	m.SetActiveTreaties(3)
	m.RequestHandled("DIPL_INIT_MEETING_REQ", time.Millisecond)
	m.ClauseChanged("GOLD", false)

	if got := sample(t, reg, "envoy_treaties_opened_total", nil); got != 2 {
		t.Fatalf("opened: got %v want 2", got)
	}
	if got := sample(t, reg, "envoy_treaties_finalized_total", map[string]string{"outcome": "dissolved"}); got != 2 {
		t.Fatalf("dissolved: got %v want 2", got)
	}
	if got := sample(t, reg, "envoy_treaties_active", nil); got != 3 {
		t.Fatalf("active: got %v want 3", got)
	}
	if got := sample(t, reg, "envoy_requests_total", map[string]string{"type": "DIPL_INIT_MEETING_REQ"}); got != 1 {
		t.Fatalf("requests: got %v want 1", got)
	}
	if got := sample(t, reg, "envoy_request_duration_seconds", nil); got != 1 {
		t.Fatalf("duration samples: got %v want 1", got)
	}
	if got := sample(t, reg, "envoy_clause_changes_total", map[string]string{"kind": "GOLD", "op": "remove"}); got != 1 {
		t.Fatalf("clause changes: got %v want 1", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.TreatyOpened()
	m.TreatyFinalized(true)
	m.ClientDropped()
	m.RequestHandled("x", time.Second)
	m.SetConnections(1)
}
