package record

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"jsbsim-bridge/internal/governor"
	"jsbsim-bridge/internal/session"
	"jsbsim-bridge/internal/wire"
)

// Recorder turns session callbacks into rows. Write failures are logged
// and counted; they never interrupt stepping.
type Recorder struct {
	id     string
	states StateWriter
	events EventWriter
	log    *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	errors int
}

// NewRecorder returns a Recorder tagging rows with a fresh session ID.
// events may be nil.
func NewRecorder(states StateWriter, events EventWriter, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		id:     uuid.NewString(),
		states: states,
		events: events,
		log:    log,
		now:    time.Now,
	}
}

// SessionID returns the ID written into every row.
func (r *Recorder) SessionID() string { return r.id }

// Errors returns the number of failed writes.
func (r *Recorder) Errors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors
}

// Observer returns the session callbacks that record rows.
func (r *Recorder) Observer() session.Observer {
	return session.Observer{
		OnStep: func(state wire.StateFrame, timing governor.StepTiming) {
			if r.states == nil {
				return
			}
			if err := r.states.Write(NewStateRow(r.id, state, timing, r.now())); err != nil {
				r.fail("state", err)
			}
		},
		OnTransition: func(from, to session.Status, cause error) {
			if r.events == nil {
				return
			}
			if err := r.events.WriteEvent(NewEventRow(r.id, from, to, cause, r.now())); err != nil {
				r.fail("event", err)
			}
		},
	}
}

func (r *Recorder) fail(kind string, err error) {
	r.mu.Lock()
	r.errors++
	r.mu.Unlock()
	r.log.Warn("record write failed", "kind", kind, "err", err)
}
