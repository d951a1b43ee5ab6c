// Package bridge is the caller-facing API for driving a JSBSim console:
// start a session, step it at a fixed rate, read its status and stop it.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"jsbsim-bridge/internal/session"
	"jsbsim-bridge/internal/wire"
)

const tracerName = "jsbsim-bridge"

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger passed to every session.
func WithLogger(l *slog.Logger) Option { return func(b *Bridge) { b.log = l } }

// WithObserver registers session callbacks (metrics, recording).
func WithObserver(o session.Observer) Option { return func(b *Bridge) { b.obs = o } }

// WithDialer replaces the TCP dialer.
func WithDialer(d session.Dialer) Option { return func(b *Bridge) { b.dial = d } }

// WithTracer replaces the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option { return func(b *Bridge) { b.tracer = t } }

// Bridge owns at most one live session at a time. After Stop a new
// session can be started with Start.
type Bridge struct {
	log    *slog.Logger
	obs    session.Observer
	dial   session.Dialer
	tracer trace.Tracer

	mu sync.Mutex
	m  *session.Machine
}

// New returns an idle Bridge.
func New(opts ...Option) *Bridge {
	b := &Bridge{log: slog.Default()}
	for _, o := range opts {
		o(b)
	}
	if b.tracer == nil {
		b.tracer = otel.Tracer(tracerName)
	}
	return b
}

// Start opens a session with cfg. A connect failure is returned but the
// session stays live in Faulted; the next Step retries. Start on a live
// session returns session.ErrAlreadyStarted.
func (b *Bridge) Start(ctx context.Context, cfg session.Config) error {
	b.mu.Lock()
	if b.m != nil {
		b.mu.Unlock()
		return session.ErrAlreadyStarted
	}
	opts := []session.Option{session.WithLogger(b.log), session.WithObserver(b.obs)}
	if b.dial != nil {
		opts = append(opts, session.WithDialer(b.dial))
	}
	m := session.New(cfg, opts...)
	b.m = m
	b.mu.Unlock()

	ctx, span := b.tracer.Start(ctx, "bridge.start", trace.WithAttributes(
		attribute.String("jsbsim.addr", m.Config().Target.Addr()),
		attribute.Float64("jsbsim.rate_hz", m.Config().RateHz),
	))
	defer span.End()

	err := m.Start(ctx)
	endSpan(span, err)
	return err
}

// Step sends f and returns the resulting state. Errors are *session.StepError.
func (b *Bridge) Step(ctx context.Context, f wire.ControlFrame) (wire.StateFrame, error) {
	m := b.machine()
	if m == nil {
		return wire.StateFrame{}, &session.StepError{Status: session.Disconnected, Err: session.ErrNotStarted}
	}

	ctx, span := b.tracer.Start(ctx, "bridge.step")
	defer span.End()

	state, err := m.Step(ctx, f)
	var se *session.StepError
	if errors.As(err, &se) {
		span.SetAttributes(attribute.Int64("jsbsim.step", int64(se.Step)))
	} else {
		span.SetAttributes(attribute.Int64("jsbsim.step", int64(state.Step)))
	}
	span.SetAttributes(attribute.String("jsbsim.status", m.Status().String()))
	endSpan(span, err)
	return state, err
}

// Status reports the session status; Disconnected when no session is live.
func (b *Bridge) Status() session.Status {
	if m := b.machine(); m != nil {
		return m.Status()
	}
	return session.Disconnected
}

// Latest returns the last state received in the live session.
func (b *Bridge) Latest() (wire.StateFrame, bool) {
	if m := b.machine(); m != nil {
		return m.Latest()
	}
	return wire.StateFrame{}, false
}

// Violations returns the timing violations counted in the live session.
func (b *Bridge) Violations() uint64 {
	if m := b.machine(); m != nil {
		return m.Violations()
	}
	return 0
}

// Stop tears the session down. It is idempotent and always returns nil.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	m := b.m
	b.m = nil
	b.mu.Unlock()
	if m != nil {
		m.Stop()
		b.log.Info("session stopped")
	}
	return nil
}

func (b *Bridge) machine() *session.Machine {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.m
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
