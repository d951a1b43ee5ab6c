// Package scenario scripts the controls sent each step as a sequence of
// phases. A phase holds its controls until one of its triggers fires on
// the returned state.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"jsbsim-bridge/internal/wire"
)

// Scenario is an ordered list of control phases. The first phase is the
// starting one.
type Scenario struct {
	Name        string  `yaml:"name,omitempty"`
	Description string  `yaml:"description,omitempty"`
	Phases      []Phase `yaml:"phases"`
}

// Phase holds one set of controls and the triggers that leave it.
type Phase struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	Controls    Controls  `yaml:"controls"`
	Triggers    []Trigger `yaml:"triggers,omitempty"`
}

// Controls are the normalized commands of a phase.
type Controls struct {
	Aileron  float64 `yaml:"aileron"`
	Elevator float64 `yaml:"elevator"`
	Rudder   float64 `yaml:"rudder"`
	Throttle float64 `yaml:"throttle"`
	Flaps    float64 `yaml:"flaps"`
}

// Frame converts c to a control frame.
func (c Controls) Frame() wire.ControlFrame {
	return wire.ControlFrame{Aileron: c.Aileron, Elevator: c.Elevator, Rudder: c.Rudder, Throttle: c.Throttle, Flaps: c.Flaps}
}

func (c Controls) validate() error {
	if err := c.Frame().Validate(); err != nil {
		return err
	}
	for _, v := range []float64{c.Aileron, c.Elevator, c.Rudder} {
		if v < -1 || v > 1 {
			return fmt.Errorf("surface command %v outside [-1, 1]", v)
		}
	}
	for _, v := range []float64{c.Throttle, c.Flaps} {
		if v < 0 || v > 1 {
			return fmt.Errorf("throttle/flap command %v outside [0, 1]", v)
		}
	}
	return nil
}

// Trigger moves the scenario to Next when Event crosses Value. Below
// fires when the value drops to or under Value instead.
type Trigger struct {
	Event string  `yaml:"event"`
	Value float64 `yaml:"value"`
	Below bool    `yaml:"below,omitempty"`
	Next  string  `yaml:"next"`
}

// Event is one observed quantity.
type Event struct {
	Type  string
	Value float64
}

// Event types derived from each state frame.
const (
	EventSimTime   = "sim_time_sec"
	EventPhaseTime = "phase_time_sec"
	EventAltitude  = "alt_ft"
	EventAirspeed  = "u_fps"
	EventHeading   = "psi_rad"
	EventBank      = "phi_rad"
	EventPitch     = "theta_rad"
)

var knownEvents = map[string]bool{
	EventSimTime: true, EventPhaseTime: true, EventAltitude: true,
	EventAirspeed: true, EventHeading: true, EventBank: true, EventPitch: true,
}

// Load reads a YAML scenario definition from disk.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Resolve returns the built-in scenario called name, or loads name as a file.
func Resolve(name string) (*Scenario, error) {
	if s, ok := BuiltIn()[name]; ok {
		return &s, nil
	}
	return Load(name)
}

// Validate checks that phases exist, triggers point at known phases and
// observe known events, and every phase's controls are in range.
func (s *Scenario) Validate() error {
	if len(s.Phases) == 0 {
		return fmt.Errorf("scenario %q has no phases", s.Name)
	}
	names := make(map[string]bool, len(s.Phases))
	for _, p := range s.Phases {
		if names[p.Name] {
			return fmt.Errorf("duplicate phase %q", p.Name)
		}
		names[p.Name] = true
	}
	for _, p := range s.Phases {
		if err := p.Controls.validate(); err != nil {
			return fmt.Errorf("phase %q: %w", p.Name, err)
		}
		for _, tr := range p.Triggers {
			if !knownEvents[tr.Event] {
				return fmt.Errorf("phase %q: unknown event %q", p.Name, tr.Event)
			}
			if !names[tr.Next] {
				return fmt.Errorf("phase %q: unknown next phase %q", p.Name, tr.Next)
			}
		}
	}
	return nil
}

// NextPhase returns the name of the next phase given the current phase and event.
// If no trigger matches, ok will be false.
func (s *Scenario) NextPhase(current string, ev Event) (next string, ok bool) {
	for _, p := range s.Phases {
		if p.Name != current {
			continue
		}
		for _, tr := range p.Triggers {
			if tr.Event != ev.Type {
				continue
			}
			if (!tr.Below && ev.Value >= tr.Value) || (tr.Below && ev.Value <= tr.Value) {
				return tr.Next, true
			}
		}
	}
	return "", false
}
