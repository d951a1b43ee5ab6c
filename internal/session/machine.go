// Connection state machine driving one exchange per step
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"jsbsim-bridge/internal/governor"
	"jsbsim-bridge/internal/transport"
	"jsbsim-bridge/internal/wire"
)

// Conn is the transport as seen by the machine.
type Conn interface {
	Send([]byte) error
	Recv(timeout time.Duration, lines int) ([]byte, error)
	Close() error
}

// Dialer opens a Conn.
type Dialer func(ctx context.Context, target transport.Target, opts transport.Options) (Conn, error)

// DialTCP is the default Dialer.
func DialTCP(ctx context.Context, target transport.Target, opts transport.Options) (Conn, error) {
	s, err := transport.Dial(ctx, target, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Observer receives notifications from the machine. Callbacks run on the
// goroutine that caused the event, never concurrently with each other, and
// must not call back into the machine.
type Observer struct {
	OnTransition func(from, to Status, cause error)
	OnStep       func(state wire.StateFrame, timing governor.StepTiming)
	OnViolation  func(v *governor.TimingViolation)
	OnReconnect  func(attempt int, delay time.Duration)
}

// Observers fans callbacks out to every observer in order.
func Observers(obs ...Observer) Observer {
	return Observer{
		OnTransition: func(from, to Status, cause error) {
			for _, o := range obs {
				if o.OnTransition != nil {
					o.OnTransition(from, to, cause)
				}
			}
		},
		OnStep: func(state wire.StateFrame, timing governor.StepTiming) {
			for _, o := range obs {
				if o.OnStep != nil {
					o.OnStep(state, timing)
				}
			}
		},
		OnViolation: func(v *governor.TimingViolation) {
			for _, o := range obs {
				if o.OnViolation != nil {
					o.OnViolation(v)
				}
			}
		},
		OnReconnect: func(attempt int, delay time.Duration) {
			for _, o := range obs {
				if o.OnReconnect != nil {
					o.OnReconnect(attempt, delay)
				}
			}
		},
	}
}

// Option configures a Machine.
type Option func(*Machine)

// WithDialer replaces the TCP dialer.
func WithDialer(d Dialer) Option { return func(m *Machine) { m.dial = d } }

// WithSleep replaces the backoff sleep.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Machine) { m.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(m *Machine) { m.log = l } }

// WithObserver registers callbacks.
func WithObserver(o Observer) Option { return func(m *Machine) { m.obs = o } }

// WithGovernor replaces the governor built from Config.
func WithGovernor(g *governor.Governor) Option { return func(m *Machine) { m.gov = g } }

// Machine sequences Disconnected -> Connecting -> Synchronized -> Faulted ->
// Reconnecting. It is the only writer of the session status. A Machine is
// used for a single session; Stop is terminal.
type Machine struct {
	cfg   Config
	codec *wire.Codec
	gov   *governor.Governor
	dial  Dialer
	sleep func(ctx context.Context, d time.Duration) error
	log   *slog.Logger
	obs   Observer

	exMu sync.Mutex // one exchange in flight

	mu           sync.Mutex
	status       Status
	conn         Conn
	started      bool
	stopped      bool
	faults       int
	attempts     int
	alreadyBound bool
	fatal        error
	step         uint64
	latest       wire.StateFrame
	haveLatest   bool

	stopCtx    context.Context
	stopCancel context.CancelFunc
}

// New returns a Machine in the Disconnected state.
func New(cfg Config, opts ...Option) *Machine {
	cfg = cfg.WithDefaults()
	m := &Machine{
		cfg:   cfg,
		codec: wire.NewCodec(cfg.IterationsPerStep),
		dial:  DialTCP,
		sleep: governor.Sleep,
		log:   slog.Default(),
	}
	m.stopCtx, m.stopCancel = context.WithCancel(context.Background())
	for _, o := range opts {
		o(m)
	}
	if m.gov == nil {
		m.gov = governor.New(governor.Config{
			RateHz:    cfg.RateHz,
			Tolerance: cfg.ViolationTolerance,
			Threshold: cfg.ViolationThreshold,
		})
	}
	return m
}

// Config returns the session configuration with defaults applied.
func (m *Machine) Config() Config { return m.cfg }

// Status returns the current state.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Latest returns the most recent state frame.
func (m *Machine) Latest() (wire.StateFrame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, m.haveLatest
}

// Violations returns the number of timing violations seen.
func (m *Machine) Violations() uint64 { return m.gov.Violations() }

// Start connects to the peer. A connect failure leaves the machine Faulted
// (or Disconnected when fatal); the next Step retries.
func (m *Machine) Start(ctx context.Context) error {
	m.exMu.Lock()
	defer m.exMu.Unlock()

	m.mu.Lock()
	switch {
	case m.stopped:
		m.mu.Unlock()
		return ErrStopped
	case m.started:
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	ctx, cancel := m.bind(ctx)
	defer cancel()

	m.transition(Connecting, nil)
	conn, err := m.connect(ctx)
	if err != nil {
		if m.isStopped() {
			return ErrStopped
		}
		return m.fault(err)
	}
	return m.attach(conn)
}

// Step sends one control frame and returns the resulting state. When the
// machine is Faulted it first reconnects after the backoff delay.
func (m *Machine) Step(ctx context.Context, f wire.ControlFrame) (wire.StateFrame, error) {
	m.exMu.Lock()
	defer m.exMu.Unlock()

	m.mu.Lock()
	status, stopped, started, fatal, step := m.status, m.stopped, m.started, m.fatal, m.step
	m.mu.Unlock()

	switch {
	case stopped:
		return wire.StateFrame{}, m.stepError(step, ErrStopped)
	case fatal != nil:
		return wire.StateFrame{}, m.stepError(step, fatal)
	case !started:
		return wire.StateFrame{}, m.stepError(step, ErrNotStarted)
	}
	if err := f.Validate(); err != nil {
		return wire.StateFrame{}, m.stepError(step, err)
	}

	ctx, cancel := m.bind(ctx)
	defer cancel()

	if status == Faulted {
		if err := m.reconnect(ctx); err != nil {
			return wire.StateFrame{}, m.stepError(step, err)
		}
	}
	return m.exchange(ctx, f)
}

// Exec runs an ad-hoc console command while Synchronized. decode receives
// the n response lines; an I/O or decode failure faults the session like a
// failed step.
func (m *Machine) Exec(ctx context.Context, req []byte, n int, decode func([]byte) error) error {
	m.exMu.Lock()
	defer m.exMu.Unlock()

	m.mu.Lock()
	status, conn := m.status, m.conn
	m.mu.Unlock()
	if status != Synchronized || conn == nil {
		return fmt.Errorf("%w (status %s)", ErrNotSynchronized, status)
	}
	if err := conn.Send(req); err != nil {
		return m.failExchange(err)
	}
	data, err := conn.Recv(m.timeout(ctx), n)
	if err != nil {
		return m.failExchange(err)
	}
	if err := decode(data); err != nil {
		return m.failExchange(err)
	}
	return nil
}

// Stop moves the machine to Disconnected from any state, unblocks an
// in-flight exchange and releases the transport. It is idempotent.
func (m *Machine) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	from := m.status
	conn := m.conn
	m.conn = nil
	m.status = Disconnected
	m.mu.Unlock()

	m.stopCancel()
	if conn != nil {
		conn.Close()
	}

	// wait for an in-flight exchange to observe the closed transport
	m.exMu.Lock()
	defer m.exMu.Unlock()
	m.notifyTransition(from, Disconnected, ErrStopped)
}

// bind derives a context that is also cancelled by Stop.
func (m *Machine) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	release := context.AfterFunc(m.stopCtx, cancel)
	return ctx, func() {
		release()
		cancel()
	}
}

func (m *Machine) timeout(ctx context.Context) time.Duration {
	d := m.cfg.StepTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < d {
			d = left
		}
	}
	return d
}

func (m *Machine) connect(ctx context.Context) (Conn, error) {
	return m.dial(ctx, m.cfg.Target, transport.Options{
		ConnectTimeout: m.cfg.ConnectTimeout,
		WriteTimeout:   m.cfg.StepTimeout,
		LocalPort:      m.cfg.LocalPort,
		ReuseAddr:      m.cfg.ReuseAddr,
		Logger:         m.log,
	})
}

// attach installs a fresh connection and enters Synchronized.
func (m *Machine) attach(conn Conn) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		conn.Close()
		return ErrStopped
	}
	m.conn = conn
	m.alreadyBound = false
	m.mu.Unlock()

	m.gov.Reset()
	m.transition(Synchronized, nil)
	m.log.Info("session synchronized", "addr", m.cfg.Target.Addr(), "rate_hz", m.cfg.RateHz)
	return nil
}

func (m *Machine) reconnect(ctx context.Context) error {
	m.mu.Lock()
	m.attempts++
	attempt, bound := m.attempts, m.alreadyBound
	m.mu.Unlock()

	delay := m.cfg.Backoff(attempt, bound)
	m.transition(Reconnecting, nil)
	m.log.Info("reconnecting", "attempt", attempt, "delay", delay, "already_bound", bound)
	if m.obs.OnReconnect != nil {
		m.obs.OnReconnect(attempt, delay)
	}

	if err := m.sleep(ctx, delay); err != nil {
		if m.isStopped() {
			return ErrStopped
		}
		// caller gave up while waiting; the attempt is not a fault
		m.transition(Faulted, err)
		return err
	}
	conn, err := m.connect(ctx)
	if err != nil {
		if m.isStopped() {
			return ErrStopped
		}
		return m.fault(err)
	}
	return m.attach(conn)
}

func (m *Machine) exchange(ctx context.Context, f wire.ControlFrame) (wire.StateFrame, error) {
	if err := m.gov.Pace(ctx); err != nil {
		if m.isStopped() {
			err = ErrStopped
		}
		return wire.StateFrame{}, m.stepError(m.currentStep(), err)
	}

	m.mu.Lock()
	conn, step := m.conn, m.step
	m.mu.Unlock()
	if conn == nil {
		return wire.StateFrame{}, m.stepError(step, ErrStopped)
	}
	f.Step = step

	h := m.gov.BeginStep()
	deadline := time.Now().Add(m.timeout(ctx))
	if err := conn.Send(m.codec.Encode(f)); err != nil {
		return wire.StateFrame{}, m.stepError(step, m.failExchange(err))
	}
	data, err := conn.Recv(time.Until(deadline), wire.FrameLines())
	if err != nil {
		return wire.StateFrame{}, m.stepError(step, m.failExchange(err))
	}
	before, err := m.codec.Decode(data)
	if err != nil {
		return wire.StateFrame{}, m.stepError(step, m.failExchange(err))
	}
	state, err := m.settle(conn, before, deadline)
	if err != nil {
		return wire.StateFrame{}, m.stepError(step, m.failExchange(err))
	}
	timing := m.gov.EndStep(h)
	state.Step = step

	m.mu.Lock()
	m.step++
	m.faults = 0
	m.attempts = 0
	m.latest = state
	m.haveLatest = true
	m.mu.Unlock()

	if v := timing.Violation; v != nil {
		m.log.Warn("timing violation", "step", step, "consecutive", v.Consecutive, "observed", v.Observed, "period", v.Period)
		if m.obs.OnViolation != nil {
			m.obs.OnViolation(v)
		}
	}
	if m.obs.OnStep != nil {
		m.obs.OnStep(state, timing)
	}
	return state, nil
}

// settle reads the state until the simulation clock stops moving. The
// reads batched with a step are answered before its iterations run, so
// prev starts as the state the step began from. A peer that holds after
// the iterations reports the same sim time twice in a row.
func (m *Machine) settle(conn Conn, prev wire.StateFrame, deadline time.Time) (wire.StateFrame, error) {
	req := m.codec.EncodeRead()
	for {
		if err := conn.Send(req); err != nil {
			return wire.StateFrame{}, err
		}
		data, err := conn.Recv(time.Until(deadline), wire.ReadLines())
		if err != nil {
			return wire.StateFrame{}, err
		}
		s, err := m.codec.DecodeRead(data)
		if err != nil {
			return wire.StateFrame{}, err
		}
		if s.SimTime == prev.SimTime {
			return s, nil
		}
		prev = s
	}
}

// failExchange releases the transport after an I/O or decode error and
// faults the session, unless the error was caused by Stop.
func (m *Machine) failExchange(cause error) error {
	m.mu.Lock()
	stopped := m.stopped
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	if stopped {
		return ErrStopped
	}
	return m.fault(cause)
}

// fault enters Faulted and, when no retry is left, Disconnected.
func (m *Machine) fault(cause error) error {
	m.mu.Lock()
	m.faults++
	faults := m.faults
	if errors.Is(cause, transport.ErrAlreadyBound) {
		m.alreadyBound = true
	}
	m.mu.Unlock()

	m.log.Warn("session fault", "faults", faults, "max_retries", m.cfg.MaxRetries, "err", cause)
	m.transition(Faulted, cause)

	var fatal error
	switch {
	case m.cfg.FailFastOnBound && errors.Is(cause, transport.ErrAlreadyBound):
		fatal = fmt.Errorf("%w: %w", ErrBoundFailFast, cause)
	case faults > m.cfg.MaxRetries:
		fatal = fmt.Errorf("%w after %d faults: %w", ErrRetryBudgetExhausted, faults, cause)
	default:
		return cause
	}

	m.mu.Lock()
	m.fatal = fatal
	m.mu.Unlock()
	m.log.Error("session failed", "err", fatal)
	m.transition(Disconnected, fatal)
	return fatal
}

func (m *Machine) currentStep() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

func (m *Machine) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// transition moves to the next state. After Stop all transitions are dropped.
func (m *Machine) transition(to Status, cause error) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	from := m.status
	if !CanTransition(from, to) {
		m.mu.Unlock()
		m.log.Error("illegal transition", "from", from, "to", to)
		return
	}
	m.status = to
	m.mu.Unlock()
	if from != to {
		m.log.Debug("transition", "from", from, "to", to, "cause", cause)
	}
	m.notifyTransition(from, to, cause)
}

func (m *Machine) notifyTransition(from, to Status, cause error) {
	if from != to && m.obs.OnTransition != nil {
		m.obs.OnTransition(from, to, cause)
	}
}

func (m *Machine) stepError(step uint64, err error) error {
	return &StepError{Step: step, Status: m.Status(), Err: err}
}
