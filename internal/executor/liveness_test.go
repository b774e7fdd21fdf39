package executor

import (
	"context"
	"testing"
	"time"
)

func TestLivenessScoreAllIndicatorsActive(t *testing.T) {
	prev := ProcessMetrics{ContextSwitches: 0, NetworkBytes: 0}
	cur := ProcessMetrics{RunningState: true, CPUPercent: 5, ContextSwitches: 20, NetworkBytes: 500}

	got := LivenessScore(prev, cur)
	if got != 0 {
		t.Errorf("score = %v, want 0", got)
	}
}

func TestLivenessScoreAllIndicatorsInactiveIsStuck(t *testing.T) {
	prev := ProcessMetrics{ContextSwitches: 10, NetworkBytes: 100}
	cur := ProcessMetrics{RunningState: false, CPUPercent: 0, ContextSwitches: 10, NetworkBytes: 100}

	got := LivenessScore(prev, cur)
	if got != 4 {
		t.Errorf("score = %v, want 4", got)
	}
	if got < StuckThreshold {
		t.Errorf("score %v should reach stuck threshold %v", got, StuckThreshold)
	}
}

func TestLivenessScoreSingleIndicatorNeverSufficient(t *testing.T) {
	// Only the process-state indicator is active; cpu/ctxsw/net are
	// flat and score inactive. Three inactive indicators add up to 3,
	// still below StuckThreshold: inactivity on some indicators is never
	// sufficient while one of them shows activity.
	prev := ProcessMetrics{}
	cur := ProcessMetrics{RunningState: true}

	got := LivenessScore(prev, cur)
	if got >= StuckThreshold {
		t.Errorf("score = %v, want below StuckThreshold while one indicator is active", got)
	}
}

func TestLivenessMonitorFiresOnceAfterSustainedStuckScore(t *testing.T) {
	calls := 0
	sampler := SamplerFunc(func(pid int) (ProcessMetrics, error) {
		return ProcessMetrics{RunningState: false, CPUPercent: 0, ContextSwitches: 1, NetworkBytes: 1}, nil
	})

	m := NewLivenessMonitor(sampler, 5*time.Millisecond, 20*time.Millisecond, func() { calls++ })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx, 1)
	time.Sleep(120 * time.Millisecond)
	m.Stop()

	if calls != 1 {
		t.Errorf("onStale called %d times, want exactly 1", calls)
	}
}
