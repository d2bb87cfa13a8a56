package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/rawblock/txscan-engine/internal/model"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMetrics_ObserveScan_RecordsDurationAndOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	result := model.ScanResult{
		RiskLevel:           model.RiskDanger,
		ScanTimeMs:          42,
		ComponentTimes:      map[model.AnalyzerName]float64{model.AnalyzerProgram: 5},
		FailedComponents:    []model.AnalyzerName{model.AnalyzerML},
		CompletedComponents: []model.AnalyzerName{model.AnalyzerProgram},
	}
	m.ObserveScan(result)

	if got := counterValue(t, m.ScanTotal.WithLabelValues("DANGER")); got != 1 {
		t.Errorf("expected scan_total{risk_level=DANGER}=1, got %v", got)
	}
	if got := counterValue(t, m.ComponentFailures.WithLabelValues("ml_analysis")); got != 1 {
		t.Errorf("expected component_failures_total{component=ml_analysis}=1, got %v", got)
	}
}

func TestMetrics_RecordCacheOutcome_TracksHitAndMiss(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordCacheOutcome("scan_results", true)
	m.RecordCacheOutcome("scan_results", false)

	if got := counterValue(t, m.CacheHits.WithLabelValues("scan_results", "hit")); got != 1 {
		t.Errorf("expected 1 hit, got %v", got)
	}
	if got := counterValue(t, m.CacheHits.WithLabelValues("scan_results", "miss")); got != 1 {
		t.Errorf("expected 1 miss, got %v", got)
	}
}

func TestBreakerStateValue_MapsKnownStates(t *testing.T) {
	cases := map[string]float64{"closed": 0, "half-open": 1, "open": 2, "unknown": 0}
	for state, want := range cases {
		if got := breakerStateValue(state); got != want {
			t.Errorf("breakerStateValue(%q) = %v, want %v", state, got, want)
		}
	}
}
