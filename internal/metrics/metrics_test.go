package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"jsbsim-bridge/internal/governor"
	"jsbsim-bridge/internal/session"
	"jsbsim-bridge/internal/transport"
	"jsbsim-bridge/internal/wire"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	return m.GetGauge().GetValue()
}

func histogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	if err := h.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestObserverFeedsCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	obs := m.Observer()

	if v := gaugeValue(t, m.Status.WithLabelValues("disconnected")); v != 1 {
		t.Fatalf("initial disconnected gauge = %v", v)
	}

	obs.OnTransition(session.Disconnected, session.Connecting, nil)
	obs.OnTransition(session.Connecting, session.Synchronized, nil)
	for i := 0; i < 3; i++ {
		obs.OnStep(wire.StateFrame{SimTime: float64(i) * 0.02}, governor.StepTiming{Elapsed: 3 * time.Millisecond})
	}
	obs.OnViolation(&governor.TimingViolation{})
	closed := fmt.Errorf("recv: %w", transport.ErrClosed)
	obs.OnTransition(session.Synchronized, session.Faulted, closed)
	obs.OnReconnect(1, 250*time.Millisecond)

	if v := counterValue(t, m.StepsTotal); v != 3 {
		t.Errorf("steps_total = %v, want 3", v)
	}
	if n := histogramCount(t, m.StepDuration); n != 3 {
		t.Errorf("step_duration count = %d, want 3", n)
	}
	if v := gaugeValue(t, m.SimTime); v != 0.04 {
		t.Errorf("sim_time = %v, want 0.04", v)
	}
	if v := counterValue(t, m.Violations); v != 1 {
		t.Errorf("violations = %v, want 1", v)
	}
	if v := counterValue(t, m.FaultsTotal.WithLabelValues("closed")); v != 1 {
		t.Errorf("faults{closed} = %v, want 1", v)
	}
	if v := counterValue(t, m.Reconnects); v != 1 {
		t.Errorf("reconnects = %v, want 1", v)
	}
	if v := counterValue(t, m.BackoffWaited); v != 0.25 {
		t.Errorf("backoff seconds = %v, want 0.25", v)
	}
	if v := gaugeValue(t, m.Status.WithLabelValues("faulted")); v != 1 {
		t.Errorf("faulted gauge = %v, want 1", v)
	}
	if v := gaugeValue(t, m.Status.WithLabelValues("synchronized")); v != 0 {
		t.Errorf("synchronized gauge = %v, want 0", v)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("no metric families registered")
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{&transport.ConnectError{Kind: transport.AlreadyBound, Err: errors.New("x")}, "already_bound"},
		{&transport.ConnectError{Kind: transport.Unreachable, Err: errors.New("x")}, "unreachable"},
		{transport.ErrTimeout, "timeout"},
		{fmt.Errorf("read: %w", transport.ErrClosed), "closed"},
		{&wire.DecodeError{Kind: wire.Truncated}, "truncated"},
		{&wire.DecodeError{Kind: wire.Malformed}, "malformed"},
		{errors.New("boom"), "other"},
	}
	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Errorf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
