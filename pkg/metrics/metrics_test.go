package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewManagerRegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewManager(WithPrometheusRegistry(reg), WithNamespace("test"), WithSubsystem("engine"))
	if m == nil {
		t.Fatal("manager is nil")
	}

	m.balanceRuns.Inc()
	m.movesPlanned.Add(3)
	m.cohortCount.Set(7)
	m.balanceDuration.Observe(0.25)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("no metric families registered")
	}

	want := map[string]bool{
		"test_engine_balance_runs_total":       false,
		"test_engine_moves_planned_total":      false,
		"test_engine_cohort_count":             false,
		"test_engine_balance_duration_seconds": false,
	}
	for _, f := range families {
		if _, ok := want[f.GetName()]; ok {
			want[f.GetName()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestGlobalHelpers(t *testing.T) {
	// Helpers must not panic on the global manager.
	RecordBalanceRun()
	RecordBalanceRejected()
	RecordBalanceAborted()
	RecordBalanceDuration(0.1)
	RecordMovesPlanned(2)
	RecordMovesDeferred(1)
	RecordMoveCommitted()
	RecordCohortMerge()
	RecordCohortSplit()
	RecordGlobalFallback()
	RecordAggregationRun()
	RecordAggregationDuration(0.05)
	UpdateSnapshotCount(4)
	UpdateCohortCount(3)
	UpdateMemberCount(60)
	UpdateGlobalBucketSize(5)
	RecordMovement()
	RecordGhostRequest()
	RecordBenchmarkHit()
	RecordBenchmarkMiss()

	if GetRegistry() == nil {
		t.Fatal("global registry is nil")
	}
}
