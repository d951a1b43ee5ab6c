// Writers printing state rows to STDOUT
package record

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewStdoutWriter returns a colorized writer when stdout is a terminal and
// a JSON writer otherwise.
func NewStdoutWriter() Writer {
	if IsTerminal(os.Stdout) {
		return &ColorStdoutWriter{out: os.Stdout}
	}
	return NewJSONStdoutWriter()
}

// JSONStdoutWriter prints rows as JSON lines.
type JSONStdoutWriter struct {
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

// Write outputs a state row in JSON format.
func (w *JSONStdoutWriter) Write(row StateRow) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}

// WriteEvent outputs a transition event in JSON format.
func (w *JSONStdoutWriter) WriteEvent(e EventRow) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}

// ColorStdoutWriter prints human-friendly, colorized rows.
type ColorStdoutWriter struct {
	out io.Writer
}

// Write outputs a single state row in colorized format.
func (w *ColorStdoutWriter) Write(row StateRow) error {
	stepColor := colorGreen
	if row.Late {
		stepColor = colorYellow
	}
	fmt.Fprintf(w.out, "%s[%s]%s ", colorGray, row.Timestamp.Format(time.RFC3339Nano), colorReset)
	fmt.Fprintf(w.out, "%sstep=%d%s ", stepColor, row.Step, colorReset)
	fmt.Fprintf(w.out, "%st=%.3f%s ", colorBlue, row.SimTime, colorReset)
	fmt.Fprintf(w.out, "%slat=%.6f lon=%.6f%s ", colorGreen, row.Lat, row.Lon, colorReset)
	fmt.Fprintf(w.out, "%salt=%.1f%s ", colorMagenta, row.Alt, colorReset)
	fmt.Fprintf(w.out, "%satt=(%.3f,%.3f,%.3f)%s ", colorCyan, row.Phi, row.Theta, row.Psi, colorReset)
	fmt.Fprintf(w.out, "%su=%.1f%s ", colorYellow, row.U, colorReset)
	_, err := fmt.Fprintf(w.out, "%s%.1fms%s\n", colorGray, row.ElapsedMs, colorReset)
	return err
}

// WriteEvent outputs a transition event in colorized format.
func (w *ColorStdoutWriter) WriteEvent(e EventRow) error {
	c := statusColor(e.To)
	fmt.Fprintf(w.out, "%s[%s]%s %s%s -> %s%s", colorGray, e.Timestamp.Format(time.RFC3339Nano), colorReset, c, e.From, e.To, colorReset)
	if e.Cause != "" {
		fmt.Fprintf(w.out, " %scause=%s%s", colorRed, e.Cause, colorReset)
	}
	_, err := fmt.Fprintln(w.out)
	return err
}

func statusColor(status string) string {
	switch status {
	case "synchronized":
		return colorGreen
	case "faulted":
		return colorRed
	case "connecting", "reconnecting":
		return colorYellow
	default:
		return colorGray
	}
}
