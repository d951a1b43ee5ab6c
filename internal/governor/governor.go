// Step pacing and timing supervision
package governor

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultTolerance = 2.0
	DefaultThreshold = 3
)

// Config sets the target rate and the lateness policy.
type Config struct {
	RateHz    float64
	Tolerance float64 // multiple of the period after which a step is late
	Threshold int     // consecutive late steps tolerated before a violation, DefaultThreshold when unset
	Now       func() time.Time
	Sleep     func(ctx context.Context, d time.Duration) error
}

// StepHandle identifies a step in progress.
type StepHandle struct {
	Index uint64
	Start time.Time
}

// StepTiming is the measurement for a finished step.
type StepTiming struct {
	Index       uint64
	Elapsed     time.Duration // begin to end of the exchange
	Interval    time.Duration // since the previous begin, zero for the first step
	Late        bool
	Consecutive int
	Violation   *TimingViolation
}

// TimingViolation reports a rate the peer is not keeping up with. It is
// advisory and never changes the session state.
type TimingViolation struct {
	Index       uint64
	Consecutive int
	Observed    time.Duration
	Period      time.Duration
	Tolerance   float64
}

func (v *TimingViolation) Error() string {
	return fmt.Sprintf("timing violation at step %d: %d consecutive steps late, observed %s against period %s (tolerance %.1fx)",
		v.Index, v.Consecutive, v.Observed, v.Period, v.Tolerance)
}

// Governor tracks step intervals against the configured period.
type Governor struct {
	period    time.Duration
	tolerance float64
	threshold int
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	next        uint64
	lastBegin   time.Time
	consecutive int
	violations  uint64
}

// New returns a Governor for cfg. A non-positive rate disables pacing.
func New(cfg Config) *Governor {
	g := &Governor{
		tolerance: cfg.Tolerance,
		threshold: cfg.Threshold,
		now:       cfg.Now,
		sleep:     cfg.Sleep,
	}
	if cfg.RateHz > 0 {
		g.period = time.Duration(float64(time.Second) / cfg.RateHz)
	}
	if g.tolerance <= 1 {
		g.tolerance = DefaultTolerance
	}
	if g.threshold <= 0 {
		g.threshold = DefaultThreshold
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.sleep == nil {
		g.sleep = Sleep
	}
	return g
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Period returns the configured step period.
func (g *Governor) Period() time.Duration { return g.period }

// Pace blocks until one period has passed since the previous step began.
func (g *Governor) Pace(ctx context.Context) error {
	g.mu.Lock()
	last := g.lastBegin
	g.mu.Unlock()
	if g.period <= 0 || last.IsZero() {
		return ctx.Err()
	}
	return g.sleep(ctx, last.Add(g.period).Sub(g.now()))
}

// BeginStep marks the start of an exchange.
func (g *Governor) BeginStep() StepHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	h := StepHandle{Index: g.next, Start: g.now()}
	g.next++
	return h
}

// EndStep measures the step and updates the late-step streak.
func (g *Governor) EndStep(h StepHandle) StepTiming {
	end := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	st := StepTiming{Index: h.Index, Elapsed: end.Sub(h.Start)}
	if !g.lastBegin.IsZero() {
		st.Interval = h.Start.Sub(g.lastBegin)
	}
	g.lastBegin = h.Start

	if g.period <= 0 {
		return st
	}
	limit := time.Duration(float64(g.period) * g.tolerance)
	observed := st.Elapsed
	if st.Interval > observed {
		observed = st.Interval
	}
	st.Late = observed > limit
	if !st.Late {
		g.consecutive = 0
		return st
	}
	g.consecutive++
	st.Consecutive = g.consecutive
	if g.consecutive > g.threshold {
		g.violations++
		st.Violation = &TimingViolation{
			Index:       h.Index,
			Consecutive: g.consecutive,
			Observed:    observed,
			Period:      g.period,
			Tolerance:   g.tolerance,
		}
	}
	return st
}

// Violations returns the number of violations reported so far.
func (g *Governor) Violations() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.violations
}

// Reset forgets the previous step, e.g. after a reconnect, so the outage
// is not counted as a slow interval.
func (g *Governor) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastBegin = time.Time{}
	g.consecutive = 0
}
