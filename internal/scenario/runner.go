package scenario

import "jsbsim-bridge/internal/wire"

// Runner tracks the active phase of a scenario while flying.
type Runner struct {
	s          *Scenario
	idx        int
	phaseStart float64
	started    bool
}

// NewRunner starts s at its first phase.
func NewRunner(s *Scenario) (*Runner, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Runner{s: s}, nil
}

// Phase returns the active phase.
func (r *Runner) Phase() Phase { return r.s.Phases[r.idx] }

// Controls returns the active phase's control frame.
func (r *Runner) Controls() wire.ControlFrame { return r.Phase().Controls.Frame() }

// Observe feeds a returned state to the triggers of the active phase and
// reports whether the phase changed. At most one transition happens per
// state.
func (r *Runner) Observe(st wire.StateFrame) bool {
	if !r.started {
		r.phaseStart = st.SimTime
		r.started = true
	}
	cur := r.Phase().Name
	for _, ev := range events(st, st.SimTime-r.phaseStart) {
		next, ok := r.s.NextPhase(cur, ev)
		if !ok {
			continue
		}
		for i, p := range r.s.Phases {
			if p.Name == next {
				r.idx = i
				break
			}
		}
		r.phaseStart = st.SimTime
		return true
	}
	return false
}

func events(st wire.StateFrame, phaseTime float64) []Event {
	return []Event{
		{EventSimTime, st.SimTime},
		{EventPhaseTime, phaseTime},
		{EventAltitude, st.Alt},
		{EventAirspeed, st.U},
		{EventHeading, st.Psi},
		{EventBank, st.Phi},
		{EventPitch, st.Theta},
	}
}
