package scenario

// BuiltIn returns predefined maneuver scripts.
func BuiltIn() map[string]Scenario {
	return map[string]Scenario{
		"cruise": {
			Name:        "Cruise",
			Description: "Hold a cruise trim with no further changes.",
			Phases: []Phase{
				{Name: "cruise", Controls: Controls{Throttle: 0.75, Elevator: -0.02}},
			},
		},
		"climb-and-level": {
			Name:        "Climb and level",
			Description: "Climb at full power, level off 1000 ft higher at cruise power, then hold.",
			Phases: []Phase{
				{
					Name:        "climb",
					Description: "Full power with nose-up trim.",
					Controls:    Controls{Throttle: 1, Elevator: -0.12},
					Triggers:    []Trigger{{Event: EventAltitude, Value: 6000, Next: "level"}},
				},
				{
					Name:        "level",
					Description: "Cruise power, relaxed elevator.",
					Controls:    Controls{Throttle: 0.7, Elevator: -0.03},
				},
			},
		},
		"box-turns": {
			Name:        "Box turns",
			Description: "Alternate straight legs and coordinated right turns.",
			Phases: []Phase{
				{
					Name:     "leg",
					Controls: Controls{Throttle: 0.75, Elevator: -0.02},
					Triggers: []Trigger{{Event: EventPhaseTime, Value: 30, Next: "turn"}},
				},
				{
					Name:     "turn",
					Controls: Controls{Throttle: 0.8, Elevator: -0.05, Aileron: 0.15, Rudder: 0.05},
					Triggers: []Trigger{{Event: EventPhaseTime, Value: 20, Next: "leg"}},
				},
			},
		},
		"descent": {
			Name:        "Descent",
			Description: "Idle descent with flaps to 2000 ft, then hold level.",
			Phases: []Phase{
				{
					Name:     "descend",
					Controls: Controls{Throttle: 0.2, Elevator: 0.05, Flaps: 0.33},
					Triggers: []Trigger{{Event: EventAltitude, Value: 2000, Below: true, Next: "level"}},
				},
				{
					Name:     "level",
					Controls: Controls{Throttle: 0.7, Elevator: -0.03},
				},
			},
		},
	}
}
