// TCP session with the JSBSim console
package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"jsbsim-bridge/internal/wire"
)

const lineBuffer = 256

// Target is the peer's listening endpoint.
type Target struct {
	Host string
	Port int
}

// Addr returns host:port.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Options tune how a Session is dialed and written to.
type Options struct {
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	// LocalPort binds the client side to a fixed port when non-zero.
	LocalPort int
	ReuseAddr bool
	Logger    *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 2 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Session owns one TCP connection to the console. Send and Recv must be
// called from a single goroutine; Close may be called from any goroutine.
type Session struct {
	conn         net.Conn
	log          *slog.Logger
	writeTimeout time.Duration

	lines   chan string
	eof     chan struct{}
	readErr error

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to target and waits for the console greeting.
func Dial(ctx context.Context, target Target, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	addr := target.Addr()

	d := net.Dialer{Timeout: opts.ConnectTimeout}
	if opts.LocalPort > 0 {
		d.LocalAddr = &net.TCPAddr{Port: opts.LocalPort}
	}
	if opts.ReuseAddr {
		d.Control = reuseAddrControl
	}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classifyDialError(addr, err)
	}

	s := newSession(conn, opts)
	stop := context.AfterFunc(ctx, func() { s.Close() })
	greeting, err := s.Recv(opts.ConnectTimeout, 1)
	stop()
	if err != nil {
		s.Close()
		if ctx.Err() != nil {
			return nil, &ConnectError{Kind: Unreachable, Addr: addr, Err: ctx.Err()}
		}
		kind := Unreachable
		if errors.Is(err, ErrClosed) {
			// Accepted and dropped before the greeting: a stale listener.
			kind = AlreadyBound
		}
		return nil, &ConnectError{Kind: kind, Addr: addr, Err: err}
	}
	s.log.Debug("connected", "addr", addr, "local", conn.LocalAddr().String(), "greeting", string(bytes.TrimSpace(greeting)))
	return s, nil
}

// NewSession wraps an established connection. It is used by tests and by
// callers that dial on their own; no greeting is awaited.
func NewSession(conn net.Conn, opts Options) *Session {
	return newSession(conn, opts.withDefaults())
}

func newSession(conn net.Conn, opts Options) *Session {
	s := &Session{
		conn:         conn,
		log:          opts.Logger,
		writeTimeout: opts.WriteTimeout,
		lines:        make(chan string, lineBuffer),
		eof:          make(chan struct{}),
		done:         make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func classifyDialError(addr string, err error) error {
	if isBindError(err) {
		return &ConnectError{Kind: AlreadyBound, Addr: addr, Err: err}
	}
	return &ConnectError{Kind: Unreachable, Addr: addr, Err: err}
}

func (s *Session) readLoop() {
	defer close(s.eof)
	r := bufio.NewReader(s.conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			s.readErr = err
			return
		}
		select {
		case s.lines <- line:
		case <-s.done:
			s.readErr = net.ErrClosed
			return
		}
	}
}

// Send writes one request. Lines left over from an earlier step are
// discarded first so a response always belongs to the latest request.
func (s *Session) Send(b []byte) error {
	if dropped := s.drain(); dropped > 0 {
		s.log.Debug("dropped stale lines", "count", dropped)
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	if _, err := s.conn.Write(b); err != nil {
		return s.ioError(err)
	}
	return nil
}

func (s *Session) drain() int {
	n := 0
	for {
		select {
		case <-s.lines:
			n++
		default:
			return n
		}
	}
}

// Recv collects n non-filler response lines, blocking up to timeout.
func (s *Session) Recv(timeout time.Duration, n int) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var buf bytes.Buffer
	got := 0
	take := func(line string) {
		if wire.IsFiller(line) {
			return
		}
		buf.WriteString(line)
		got++
	}
	for got < n {
		select {
		case line := <-s.lines:
			take(line)
		case <-s.done:
			return nil, ErrClosed
		case <-timer.C:
			return nil, ErrTimeout
		case <-s.eof:
			for got < n {
				select {
				case line := <-s.lines:
					take(line)
					continue
				default:
				}
				return nil, s.ioError(s.readErr)
			}
		}
	}
	return buf.Bytes(), nil
}

func (s *Session) ioError(err error) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrClosed, err)
}

// Close releases the socket. It is safe to call more than once and from
// another goroutine while Recv is blocked.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() string { return s.conn.RemoteAddr().String() }
