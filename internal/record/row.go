// Package record persists and displays the state produced by a bridge
// session: one StateRow per completed step and one EventRow per status
// transition.
package record

import (
	"time"

	"jsbsim-bridge/internal/governor"
	"jsbsim-bridge/internal/session"
	"jsbsim-bridge/internal/wire"
)

// StateRow is one completed step.
type StateRow struct {
	SessionID string `json:"session_id"` // TAG
	wire.StateFrame
	ElapsedMs float64   `json:"elapsed_ms"`
	Late      bool      `json:"late"`
	Timestamp time.Time `json:"ts"` // TIME INDEX
}

// NewStateRow builds a row from a decoded frame and its timing.
func NewStateRow(sessionID string, state wire.StateFrame, timing governor.StepTiming, ts time.Time) StateRow {
	return StateRow{
		SessionID:  sessionID,
		StateFrame: state,
		ElapsedMs:  float64(timing.Elapsed) / float64(time.Millisecond),
		Late:       timing.Late,
		Timestamp:  ts,
	}
}

// EventRow is one status transition.
type EventRow struct {
	SessionID string    `json:"session_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Cause     string    `json:"cause,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// NewEventRow builds a row from a transition.
func NewEventRow(sessionID string, from, to session.Status, cause error, ts time.Time) EventRow {
	e := EventRow{SessionID: sessionID, From: from.String(), To: to.String(), Timestamp: ts}
	if cause != nil {
		e.Cause = cause.Error()
	}
	return e
}

// StateWriter handles state rows.
type StateWriter interface {
	Write(StateRow) error
}

// Optional: writers may support batch mode.
type batchWriter interface {
	WriteBatch([]StateRow) error
}

// EventWriter handles transition events.
type EventWriter interface {
	WriteEvent(EventRow) error
}

// Writer handles both row kinds.
type Writer interface {
	StateWriter
	EventWriter
}
