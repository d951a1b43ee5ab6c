package wire

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func sampleState() StateFrame {
	return StateFrame{
		SimTime: 12.5,
		Lat:     47.449,
		Lon:     -122.309,
		Alt:     1523.25,
		Phi:     0.01,
		Theta:   0.052,
		Psi:     -1.570796,
		P:       0.001,
		Q:       -0.002,
		R:       3e-05,
		U:       211.7,
		V:       -0.4,
		W:       5.125,
	}
}

func TestEncodeLayout(t *testing.T) {
	c := NewCodec(8)
	data := string(c.Encode(ControlFrame{Aileron: 0.1, Elevator: -0.05, Throttle: 1}))
	lines := strings.Split(strings.TrimSuffix(data, "\n"), "\n")
	if len(lines) != FrameLines() {
		t.Fatalf("encoded %d lines, want %d", len(lines), FrameLines())
	}
	if lines[0] != "set fcs/aileron-cmd-norm 0.1" {
		t.Fatalf("first line = %q", lines[0])
	}
	if lines[3] != "set fcs/throttle-cmd-norm 1" {
		t.Fatalf("throttle line = %q", lines[3])
	}
	if lines[5] != "iterate 8" {
		t.Fatalf("iterate line = %q", lines[5])
	}
	if lines[6] != "get simulation/sim-time-sec" {
		t.Fatalf("first get line = %q", lines[6])
	}
}

func TestStateRoundTrip(t *testing.T) {
	c := NewCodec(1)
	want := sampleState()
	got, err := c.Decode(EncodeState(want))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestStateRead(t *testing.T) {
	c := NewCodec(1)
	req := strings.Split(strings.TrimSuffix(string(c.EncodeRead()), "\n"), "\n")
	if len(req) != ReadLines() || req[0] != "get simulation/sim-time-sec" {
		t.Fatalf("read request = %q", req)
	}

	full := strings.Split(string(EncodeState(sampleState())), "\n")
	reply := strings.Join(full[FrameLines()-ReadLines():], "\n")
	got, err := c.DecodeRead([]byte(reply))
	if err != nil {
		t.Fatalf("DecodeRead: %v", err)
	}
	if got != sampleState() {
		t.Fatalf("got %+v, want %+v", got, sampleState())
	}
	if _, err := c.DecodeRead(EncodeState(sampleState())); !errors.Is(err, ErrMalformed) {
		t.Fatalf("full step reply: err = %v, want ErrMalformed", err)
	}
}

func TestControlRoundTrip(t *testing.T) {
	c := NewCodec(4)
	want := ControlFrame{Aileron: -0.25, Elevator: 0.125, Rudder: 0.3, Throttle: 0.75, Flaps: 0.5}
	got, iterations, err := DecodeControl(c.Encode(want))
	if err != nil {
		t.Fatalf("DecodeControl: %v", err)
	}
	if iterations != 4 {
		t.Fatalf("iterations = %d, want 4", iterations)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestDecodeSkipsPromptAndBlankLines(t *testing.T) {
	c := NewCodec(1)
	var b strings.Builder
	b.WriteString("\n" + Prompt + "\n")
	for i, line := range strings.Split(strings.TrimSuffix(string(EncodeState(sampleState())), "\n"), "\n") {
		if i%2 == 0 {
			b.WriteString(Prompt + " ")
		}
		b.WriteString(line + "\r\n")
	}
	got, err := c.Decode([]byte(b.String()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != sampleState() {
		t.Fatalf("got %+v", got)
	}
}

func TestDecodeTruncated(t *testing.T) {
	c := NewCodec(1)
	full := EncodeState(sampleState())
	for _, n := range []int{0, 1, 10, len(full) / 2, len(full) - 1} {
		_, err := c.Decode(full[:n])
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("Decode(%d bytes) err = %v, want ErrTruncated", n, err)
		}
		var de *DecodeError
		if !errors.As(err, &de) || de.Kind != Truncated {
			t.Fatalf("Decode(%d bytes) err = %#v, want *DecodeError{Truncated}", n, err)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	c := NewCodec(1)
	base := string(EncodeState(sampleState()))
	cases := []struct {
		name string
		data string
	}{
		{"nan value", strings.Replace(base, "position/h-sl-ft = 1523.25", "position/h-sl-ft = NaN", 1)},
		{"inf value", strings.Replace(base, "velocities/u-fps = 211.7", "velocities/u-fps = +Inf", 1)},
		{"garbage value", strings.Replace(base, "attitude/phi-rad = 0.01", "attitude/phi-rad = abc", 1)},
		{"wrong property", strings.Replace(base, "position/lat-gc-deg", "position/lat-geod-deg", 1)},
		{"missing equals", strings.Replace(base, "attitude/psi-rad = -1.570796", "attitude/psi-rad -1.570796", 1)},
		{"bad set ack", strings.Replace(base, AckSet, "Unknown property", 1)},
		{"bad iterate ack", strings.Replace(base, AckIterate, "Simulation suspended", 1)},
		{"trailing line", base + "extra output\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Decode([]byte(tc.data))
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestValidateRejectsNonFinite(t *testing.T) {
	if err := (ControlFrame{Throttle: 1}).Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := (ControlFrame{Rudder: math.NaN()}).Validate(); !errors.Is(err, ErrMalformed) {
		t.Fatalf("Validate NaN err = %v", err)
	}
}

func TestSingleProperty(t *testing.T) {
	v, err := DecodeGet("fcs/throttle-cmd-norm", []byte(Prompt+" fcs/throttle-cmd-norm = 0.5\n"))
	if err != nil || v != 0.5 {
		t.Fatalf("DecodeGet = %v, %v", v, err)
	}
	if err := DecodeAck(AckSet, []byte("set successful\n")); err != nil {
		t.Fatalf("DecodeAck: %v", err)
	}
	if err := DecodeAck(AckResume, []byte("Failed\n")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("DecodeAck err = %v", err)
	}
	if err := DecodeAck("", []byte("Holding")); !errors.Is(err, ErrTruncated) {
		t.Fatalf("DecodeAck partial err = %v", err)
	}
}
