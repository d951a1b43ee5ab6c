package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeState renders the console's response to an encoded step, as a
// peer would print it for the given state.
func EncodeState(s StateFrame) []byte {
	var b strings.Builder
	for range controlLayout {
		b.WriteString(AckSet + "\n")
	}
	b.WriteString(AckIterate + "\n")
	for _, fld := range stateLayout {
		fmt.Fprintf(&b, "%s = %s\n", fld.prop, formatFloat(fld.get(&s)))
	}
	return []byte(b.String())
}

// DecodeControl parses a step request back into the control frame and the
// requested iteration count.
func DecodeControl(data []byte) (ControlFrame, int, error) {
	var f ControlFrame
	lines, err := responseLines(data, FrameLines())
	if err != nil {
		return f, 0, err
	}
	n := 0
	for _, fld := range controlLayout {
		fields := strings.Fields(lines[n])
		if len(fields) != 3 || fields[0] != "set" || fields[1] != fld.prop {
			return f, 0, malformed(n+1, "expected set %s, got %q", fld.prop, lines[n])
		}
		v, err := parseFloat(n+1, fields[2])
		if err != nil {
			return f, 0, err
		}
		fld.set(&f, v)
		n++
	}
	fields := strings.Fields(lines[n])
	if len(fields) != 2 || fields[0] != "iterate" {
		return f, 0, malformed(n+1, "expected iterate, got %q", lines[n])
	}
	iterations, err := strconv.Atoi(fields[1])
	if err != nil || iterations < 1 {
		return f, 0, malformed(n+1, "bad iteration count %q", fields[1])
	}
	n++
	for _, fld := range stateLayout {
		if lines[n] != "get "+fld.prop {
			return f, 0, malformed(n+1, "expected get %s, got %q", fld.prop, lines[n])
		}
		n++
	}
	return f, iterations, nil
}
