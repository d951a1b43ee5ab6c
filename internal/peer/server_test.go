package peer

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"jsbsim-bridge/internal/wire"
)

func startServer(t *testing.T, opts Options) *Server {
	t.Helper()
	srv, err := Listen("127.0.0.1:0", opts)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)
	t.Cleanup(cancel)
	return srv
}

// readReply reads the next non-filler line, stripping the prompt.
func readReply(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if wire.IsFiller(line) {
			continue
		}
		return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), wire.Prompt))
	}
}

func TestConsoleCommands(t *testing.T) {
	srv := startServer(t, Options{RateHz: 4})
	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	r := bufio.NewReader(conn)

	if got := readReply(t, r); got != greeting {
		t.Fatalf("greeting = %q", got)
	}

	cases := []struct {
		cmd  string
		want string
	}{
		{"set fcs/throttle-cmd-norm 1", wire.AckSet},
		{"get fcs/throttle-cmd-norm", "fcs/throttle-cmd-norm = 1"},
		{"get simulation/sim-time-sec", "simulation/sim-time-sec = 0"},
		{"iterate 10", "10 " + wire.AckIterate},
		{"get simulation/sim-time-sec", "simulation/sim-time-sec = 2.5"},
		{"get no/such-prop", "No property by the name no/such-prop"},
		{"hold", "Holding"},
		{"resume", wire.AckResume},
		{"bogus", "Unknown command: bogus"},
	}
	for _, tc := range cases {
		if _, err := conn.Write([]byte(tc.cmd + "\n")); err != nil {
			t.Fatalf("write %q: %v", tc.cmd, err)
		}
		if got := readReply(t, r); got != tc.want {
			t.Fatalf("%s -> %q, want %q", tc.cmd, got, tc.want)
		}
	}
	if srv.Steps() != 1 {
		t.Fatalf("Steps() = %d, want 1", srv.Steps())
	}
}

func TestIterateRunsAfterBatch(t *testing.T) {
	srv := startServer(t, Options{RateHz: 4})
	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	r := bufio.NewReader(conn)
	readReply(t, r)

	batch := "set fcs/throttle-cmd-norm 1\niterate 2\nget simulation/sim-time-sec\nget velocities/u-fps\n"
	if _, err := conn.Write([]byte(batch)); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := []string{
		wire.AckSet,
		"2 " + wire.AckIterate,
		"simulation/sim-time-sec = 0",
		"velocities/u-fps = 0",
	}
	for _, w := range want {
		if got := readReply(t, r); got != w {
			t.Fatalf("batch reply %q, want %q", got, w)
		}
	}

	conn.Write([]byte("get simulation/sim-time-sec\n"))
	if got := readReply(t, r); got != "simulation/sim-time-sec = 0.5" {
		t.Fatalf("after batch: %q", got)
	}
	conn.Write([]byte("get velocities/u-fps\n"))
	if got := readReply(t, r); got == "velocities/u-fps = 0" {
		t.Fatalf("throttle had no effect: %q", got)
	}
}

func TestFixedStateAnswersFullFrame(t *testing.T) {
	fixed := wire.StateFrame{SimTime: 1, Lat: 10, Lon: 20, Alt: 3000, U: 200}
	srv := startServer(t, Options{Fixed: &fixed})
	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	r := bufio.NewReader(conn)
	readReply(t, r)

	codec := wire.NewCodec(2)
	if _, err := conn.Write(codec.Encode(wire.ControlFrame{Throttle: 0.8})); err != nil {
		t.Fatalf("write: %v", err)
	}
	var b strings.Builder
	for i := 0; i < wire.FrameLines(); i++ {
		b.WriteString(readReply(t, r) + "\n")
	}
	got, err := codec.Decode([]byte(b.String()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != fixed {
		t.Fatalf("got %+v, want %+v", got, fixed)
	}
}

func TestCloseAfterSteps(t *testing.T) {
	srv := startServer(t, Options{CloseAfterSteps: 1})
	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	r := bufio.NewReader(conn)
	readReply(t, r)

	conn.Write([]byte("iterate 1\n"))
	readReply(t, r)
	conn.Write([]byte("iterate 1\n"))
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		if !wire.IsFiller(line) {
			t.Fatalf("expected the connection to drop, got %q", line)
		}
	}
}
