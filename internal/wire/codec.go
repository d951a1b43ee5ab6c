package wire

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Prompt is printed by the JSBSim console before it reads a command.
const Prompt = "JSBSim>"

// Acknowledgement suffixes printed by the console.
const (
	AckSet     = "set successful"
	AckIterate = "Iterations performed"
	AckResume  = "Resuming"
)

var (
	// ErrTruncated is returned when fewer bytes than a full frame are available.
	ErrTruncated = errors.New("wire: truncated frame")
	// ErrMalformed is returned when a line cannot be parsed as expected.
	ErrMalformed = errors.New("wire: malformed frame")
)

// DecodeKind classifies a DecodeError.
type DecodeKind int

const (
	Truncated DecodeKind = iota + 1
	Malformed
)

func (k DecodeKind) String() string {
	switch k {
	case Truncated:
		return "truncated"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// DecodeError describes why a response could not be decoded.
// Line is the 1-based index of the offending response line, or 0.
type DecodeError struct {
	Kind   DecodeKind
	Line   int
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("wire: %s frame at line %d: %s", e.Kind, e.Line, e.Detail)
	}
	return fmt.Sprintf("wire: %s frame: %s", e.Kind, e.Detail)
}

// Unwrap lets errors.Is match ErrTruncated and ErrMalformed.
func (e *DecodeError) Unwrap() error {
	if e.Kind == Truncated {
		return ErrTruncated
	}
	return ErrMalformed
}

func truncated(format string, args ...any) error {
	return &DecodeError{Kind: Truncated, Detail: fmt.Sprintf(format, args...)}
}

func malformed(line int, format string, args ...any) error {
	return &DecodeError{Kind: Malformed, Line: line, Detail: fmt.Sprintf(format, args...)}
}

// Codec converts frames to and from the console line protocol.
type Codec struct {
	iterations int
}

// NewCodec returns a codec that advances the peer by iterations per step.
// Values below one are raised to one.
func NewCodec(iterations int) *Codec {
	if iterations < 1 {
		iterations = 1
	}
	return &Codec{iterations: iterations}
}

// Iterations reports the number of peer iterations per step.
func (c *Codec) Iterations() int { return c.iterations }

// FrameLines is the number of response lines a full state frame spans.
func FrameLines() int {
	return len(controlLayout) + 1 + len(stateLayout)
}

// ReadLines is the number of response lines a state read spans.
func ReadLines() int {
	return len(stateLayout)
}

// IsFiller reports whether a console line carries no response data.
func IsFiller(line string) bool {
	s := strings.TrimSpace(line)
	return s == "" || s == Prompt
}

// clean strips the prompt and surrounding whitespace from a response line.
func clean(line string) string {
	s := strings.TrimSpace(line)
	for strings.HasPrefix(s, Prompt) {
		s = strings.TrimSpace(strings.TrimPrefix(s, Prompt))
	}
	return s
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloat(line int, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, malformed(line, "value %q is not a number", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, malformed(line, "value %q is not finite", raw)
	}
	return v, nil
}

// Validate rejects control values the peer cannot represent.
func (f ControlFrame) Validate() error {
	for _, fld := range controlLayout {
		v := fld.get(&f)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return malformed(0, "control %s is not finite", fld.prop)
		}
	}
	return nil
}

// Encode renders the request for one step: the control writes, the
// iterate command and the state reads. The console acknowledges iterate
// before the iterations run, so the reads in the same request report the
// state the step started from.
func (c *Codec) Encode(f ControlFrame) []byte {
	var b strings.Builder
	for _, fld := range controlLayout {
		b.WriteString(EncodeSetLine(fld.prop, fld.get(&f)))
	}
	fmt.Fprintf(&b, "iterate %d\n", c.iterations)
	for _, fld := range stateLayout {
		b.WriteString(EncodeGetLine(fld.prop))
	}
	return []byte(b.String())
}

// Decode parses the peer's response to an encoded step.
func (c *Codec) Decode(data []byte) (StateFrame, error) {
	var s StateFrame
	lines, err := responseLines(data, FrameLines())
	if err != nil {
		return s, err
	}
	n := 0
	for range controlLayout {
		if err := checkAck(n+1, lines[n], AckSet); err != nil {
			return s, err
		}
		n++
	}
	if err := checkAck(n+1, lines[n], AckIterate); err != nil {
		return s, err
	}
	n++
	return decodeState(lines, n)
}

// EncodeRead renders the state reads alone.
func (c *Codec) EncodeRead() []byte {
	var b strings.Builder
	for _, fld := range stateLayout {
		b.WriteString(EncodeGetLine(fld.prop))
	}
	return []byte(b.String())
}

// DecodeRead parses the peer's response to EncodeRead.
func (c *Codec) DecodeRead(data []byte) (StateFrame, error) {
	lines, err := responseLines(data, ReadLines())
	if err != nil {
		return StateFrame{}, err
	}
	return decodeState(lines, 0)
}

// decodeState parses the get replies starting at lines[n].
func decodeState(lines []string, n int) (StateFrame, error) {
	var s StateFrame
	for _, fld := range stateLayout {
		v, err := parseGet(n+1, fld.prop, lines[n])
		if err != nil {
			return s, err
		}
		fld.set(&s, v)
		n++
	}
	return s, nil
}

// responseLines splits data into exactly want cleaned, non-filler lines.
func responseLines(data []byte, want int) ([]string, error) {
	text := string(data)
	complete := text
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		complete = text[:i+1]
	} else {
		complete = ""
	}
	var lines []string
	for _, raw := range strings.Split(complete, "\n") {
		if IsFiller(raw) {
			continue
		}
		lines = append(lines, clean(raw))
	}
	if len(lines) < want {
		return nil, truncated("got %d of %d lines", len(lines), want)
	}
	if len(lines) > want {
		return nil, malformed(want+1, "unexpected trailing line %q", lines[want])
	}
	return lines, nil
}

func checkAck(line int, got, want string) error {
	if !strings.HasSuffix(got, want) {
		return malformed(line, "expected %q, got %q", want, got)
	}
	return nil
}

func parseGet(line int, prop, got string) (float64, error) {
	key, val, ok := strings.Cut(got, "=")
	if !ok {
		return 0, malformed(line, "expected %q = <value>, got %q", prop, got)
	}
	if strings.TrimSpace(key) != prop {
		return 0, malformed(line, "expected property %q, got %q", prop, strings.TrimSpace(key))
	}
	return parseFloat(line, val)
}

// EncodeSetLine renders a single property write.
func EncodeSetLine(prop string, v float64) string {
	return "set " + prop + " " + formatFloat(v) + "\n"
}

// EncodeGetLine renders a single property read.
func EncodeGetLine(prop string) string {
	return "get " + prop + "\n"
}

// DecodeGet parses the console's reply to a single property read.
func DecodeGet(prop string, data []byte) (float64, error) {
	lines, err := responseLines(data, 1)
	if err != nil {
		return 0, err
	}
	return parseGet(1, prop, lines[0])
}

// DecodeAck checks a single acknowledgement line. An empty want accepts
// any non-filler line.
func DecodeAck(want string, data []byte) error {
	lines, err := responseLines(data, 1)
	if err != nil {
		return err
	}
	if want == "" {
		return nil
	}
	return checkAck(1, lines[0], want)
}
