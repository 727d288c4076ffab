package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherFamily(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	return nil
}

func metricWithLabels(family *dto.MetricFamily, want map[string]string) *dto.Metric {
	if family == nil {
		return nil
	}
outer:
	for _, metric := range family.GetMetric() {
		labels := map[string]string{}
		for _, pair := range metric.GetLabel() {
			labels[pair.GetName()] = pair.GetValue()
		}
		for key, value := range want {
			if labels[key] != value {
				continue outer
			}
		}
		return metric
	}
	return nil
}

func TestModuleMetricsObserve(t *testing.T) {
	metrics := ModuleMetrics()
	metrics.Observe("assets", "mint", 200, 5*time.Millisecond)
	metrics.Observe("assets", "mint", 500, 5*time.Millisecond)
	metrics.RecordThrottle("rpc", "rate_limit")

	requests := gatherFamily(t, "land_module_requests_total")
	success := metricWithLabels(requests, map[string]string{
		"module": "assets", "method": "mint", "outcome": "success",
	})
	if success == nil || success.GetCounter().GetValue() < 1 {
		t.Fatalf("success counter missing or zero: %v", requests)
	}
	failure := metricWithLabels(requests, map[string]string{
		"module": "assets", "method": "mint", "outcome": "error",
	})
	if failure == nil || failure.GetCounter().GetValue() < 1 {
		t.Fatal("error counter missing or zero")
	}

	errs := gatherFamily(t, "land_module_errors_total")
	if metricWithLabels(errs, map[string]string{"status": "500"}) == nil {
		t.Fatal("expected an error sample labelled with the HTTP status")
	}

	throttles := gatherFamily(t, "land_module_throttles_total")
	if metricWithLabels(throttles, map[string]string{"module": "rpc", "reason": "rate_limit"}) == nil {
		t.Fatal("expected a throttle sample")
	}
}

func TestAuditMetricsTrackAnomaliesByKind(t *testing.T) {
	Audit().ObserveRun(map[string]int{"escrow_mismatch": 2}, time.Second, nil)

	anomalies := gatherFamily(t, "land_audit_anomalies")
	sample := metricWithLabels(anomalies, map[string]string{"kind": "escrow_mismatch"})
	if sample == nil || sample.GetGauge().GetValue() != 2 {
		t.Fatalf("expected anomaly gauge of 2, got %v", anomalies)
	}

	// A clean follow-up run resets the stale gauge.
	Audit().ObserveRun(nil, time.Second, nil)
	anomalies = gatherFamily(t, "land_audit_anomalies")
	if metricWithLabels(anomalies, map[string]string{"kind": "escrow_mismatch"}) != nil {
		t.Fatal("expected anomaly gauges to reset after a clean run")
	}

	runs := gatherFamily(t, "land_audit_runs_total")
	if metricWithLabels(runs, map[string]string{"outcome": "clean"}) == nil {
		t.Fatal("expected a clean run sample")
	}
}

func TestArchiveMetrics(t *testing.T) {
	Archive().RecordStored("assets.minted")
	Archive().SetLag(3)

	stored := gatherFamily(t, "land_archive_events_stored_total")
	if metricWithLabels(stored, map[string]string{"type": "assets.minted"}) == nil {
		t.Fatal("expected a stored-event sample")
	}
	lag := gatherFamily(t, "land_archive_lag_events")
	if lag == nil || lag.GetMetric()[0].GetGauge().GetValue() != 3 {
		t.Fatalf("expected lag gauge of 3, got %v", lag)
	}
}
