// Package peer emulates the JSBSim TCP console closely enough to exercise
// the bridge without a simulator binary. It answers set, get, iterate,
// hold, resume and quit the way the console does, including the prompt and
// acknowledging iterate before the iterations run.
package peer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"jsbsim-bridge/internal/wire"
)

const greeting = "Connected to JSBSim server"

// Options shape the emulated peer.
type Options struct {
	// RateHz is the simulated integration rate; one iterate advances 1/RateHz.
	RateHz float64
	// Initial seeds the state properties.
	Initial wire.StateFrame
	// Fixed, when set, is reported for every state read regardless of controls.
	Fixed *wire.StateFrame
	// Latency delays every iterate reply.
	Latency time.Duration
	// CloseAfterSteps drops a connection when it receives iterate number
	// CloseAfterSteps+1. Zero never drops.
	CloseAfterSteps int
	Logger          *slog.Logger
}

// Server is an emulated console listening on TCP.
type Server struct {
	ln   net.Listener
	opts Options
	log  *slog.Logger

	mu    sync.Mutex
	model *model
	conns map[net.Conn]struct{}

	accepted atomic.Int64
	steps    atomic.Int64
	held     atomic.Bool
}

// Listen binds addr (e.g. ":5556" or "127.0.0.1:0").
func Listen(addr string, opts Options) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		ln:    ln,
		opts:  opts,
		log:   opts.Logger,
		model: newModel(opts.RateHz, opts.Initial, opts.Fixed),
		conns: make(map[net.Conn]struct{}),
	}, nil
}

// Addr returns the listening address.
func (s *Server) Addr() *net.TCPAddr { return s.ln.Addr().(*net.TCPAddr) }

// Accepted returns the number of connections accepted so far.
func (s *Server) Accepted() int { return int(s.accepted.Load()) }

// Steps returns the number of iterate commands served.
func (s *Server) Steps() int { return int(s.steps.Load()) }

// Serve accepts connections until ctx is done or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()
	s.log.Info("console emulator listening", "addr", s.ln.Addr().String())
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.accepted.Add(1)
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		go s.handle(conn)
	}
}

// Close stops accepting and drops every open connection.
func (s *Server) Close() error {
	err := s.ln.Close()
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	return err
}

func (s *Server) handle(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()
	log := s.log.With("remote", conn.RemoteAddr().String())
	log.Debug("client connected")

	w := bufio.NewWriter(conn)
	fmt.Fprintf(w, "%s\n%s ", greeting, wire.Prompt)
	if err := w.Flush(); err != nil {
		return
	}

	steps, pending := 0, 0
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			if fields[0] == "iterate" {
				steps++
				if s.opts.CloseAfterSteps > 0 && steps > s.opts.CloseAfterSteps {
					log.Debug("dropping connection", "after_steps", s.opts.CloseAfterSteps)
					return
				}
				if s.opts.Latency > 0 {
					time.Sleep(s.opts.Latency)
				}
			}
			reply, n, quit := s.execute(fields)
			pending += n
			fmt.Fprintf(w, "%s\n%s ", reply, wire.Prompt)
			if err := w.Flush(); err != nil || quit {
				return
			}
		}
		// Like the console, iterations run only once every command
		// already received has been answered.
		if pending > 0 && r.Buffered() == 0 {
			s.advance(pending)
			pending = 0
		}
	}
}

func (s *Server) advance(iterations int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model.advance(iterations)
}

// execute runs one console command and returns its reply line and the
// iterations it queued.
func (s *Server) execute(fields []string) (string, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch fields[0] {
	case "set":
		if len(fields) != 3 {
			return "Usage: set <property> <value>", 0, false
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return "Invalid value " + fields[2], 0, false
		}
		s.model.set(fields[1], v)
		return wire.AckSet, 0, false
	case "get":
		if len(fields) != 2 {
			return "Usage: get <property>", 0, false
		}
		v, ok := s.model.get(fields[1])
		if !ok {
			return "No property by the name " + fields[1], 0, false
		}
		return fields[1] + " = " + strconv.FormatFloat(v, 'g', -1, 64), 0, false
	case "iterate":
		n := 1
		if len(fields) > 1 {
			if v, err := strconv.Atoi(fields[1]); err == nil && v > 0 {
				n = v
			}
		}
		s.steps.Add(1)
		return strconv.Itoa(n) + " " + wire.AckIterate, n, false
	case "hold":
		s.held.Store(true)
		return "Holding", 0, false
	case "resume":
		s.held.Store(false)
		return wire.AckResume, 0, false
	case "quit":
		return "Closing connection", 0, true
	default:
		return "Unknown command: " + fields[0], 0, false
	}
}

// Held reports whether the last hold has not been resumed.
func (s *Server) Held() bool { return s.held.Load() }
