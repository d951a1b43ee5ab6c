// Control and state records exchanged with the JSBSim console
package wire

// ControlFrame holds the actuator commands for one step.
type ControlFrame struct {
	Step     uint64  `json:"step"`
	Aileron  float64 `json:"aileron"`
	Elevator float64 `json:"elevator"`
	Rudder   float64 `json:"rudder"`
	Throttle float64 `json:"throttle"`
	Flaps    float64 `json:"flaps"`
}

// StateFrame holds the vehicle state reported after one step.
type StateFrame struct {
	Step    uint64  `json:"step"`
	SimTime float64 `json:"sim_time_sec"`
	Lat     float64 `json:"lat_deg"`
	Lon     float64 `json:"lon_deg"`
	Alt     float64 `json:"alt_ft"`
	Phi     float64 `json:"phi_rad"`
	Theta   float64 `json:"theta_rad"`
	Psi     float64 `json:"psi_rad"`
	P       float64 `json:"p_rad_sec"`
	Q       float64 `json:"q_rad_sec"`
	R       float64 `json:"r_rad_sec"`
	U       float64 `json:"u_fps"`
	V       float64 `json:"v_fps"`
	W       float64 `json:"w_fps"`
}

// controlField maps a ControlFrame member to its JSBSim property.
type controlField struct {
	prop string
	get  func(*ControlFrame) float64
	set  func(*ControlFrame, float64)
}

// stateField maps a StateFrame member to its JSBSim property.
type stateField struct {
	prop string
	get  func(*StateFrame) float64
	set  func(*StateFrame, float64)
}

// Field order is fixed; the peer answers in the order commands were sent.
var controlLayout = []controlField{
	{"fcs/aileron-cmd-norm", func(c *ControlFrame) float64 { return c.Aileron }, func(c *ControlFrame, v float64) { c.Aileron = v }},
	{"fcs/elevator-cmd-norm", func(c *ControlFrame) float64 { return c.Elevator }, func(c *ControlFrame, v float64) { c.Elevator = v }},
	{"fcs/rudder-cmd-norm", func(c *ControlFrame) float64 { return c.Rudder }, func(c *ControlFrame, v float64) { c.Rudder = v }},
	{"fcs/throttle-cmd-norm", func(c *ControlFrame) float64 { return c.Throttle }, func(c *ControlFrame, v float64) { c.Throttle = v }},
	{"fcs/flap-cmd-norm", func(c *ControlFrame) float64 { return c.Flaps }, func(c *ControlFrame, v float64) { c.Flaps = v }},
}

var stateLayout = []stateField{
	{"simulation/sim-time-sec", func(s *StateFrame) float64 { return s.SimTime }, func(s *StateFrame, v float64) { s.SimTime = v }},
	{"position/lat-gc-deg", func(s *StateFrame) float64 { return s.Lat }, func(s *StateFrame, v float64) { s.Lat = v }},
	{"position/long-gc-deg", func(s *StateFrame) float64 { return s.Lon }, func(s *StateFrame, v float64) { s.Lon = v }},
	{"position/h-sl-ft", func(s *StateFrame) float64 { return s.Alt }, func(s *StateFrame, v float64) { s.Alt = v }},
	{"attitude/phi-rad", func(s *StateFrame) float64 { return s.Phi }, func(s *StateFrame, v float64) { s.Phi = v }},
	{"attitude/theta-rad", func(s *StateFrame) float64 { return s.Theta }, func(s *StateFrame, v float64) { s.Theta = v }},
	{"attitude/psi-rad", func(s *StateFrame) float64 { return s.Psi }, func(s *StateFrame, v float64) { s.Psi = v }},
	{"velocities/p-rad_sec", func(s *StateFrame) float64 { return s.P }, func(s *StateFrame, v float64) { s.P = v }},
	{"velocities/q-rad_sec", func(s *StateFrame) float64 { return s.Q }, func(s *StateFrame, v float64) { s.Q = v }},
	{"velocities/r-rad_sec", func(s *StateFrame) float64 { return s.R }, func(s *StateFrame, v float64) { s.R = v }},
	{"velocities/u-fps", func(s *StateFrame) float64 { return s.U }, func(s *StateFrame, v float64) { s.U = v }},
	{"velocities/v-fps", func(s *StateFrame) float64 { return s.V }, func(s *StateFrame, v float64) { s.V = v }},
	{"velocities/w-fps", func(s *StateFrame) float64 { return s.W }, func(s *StateFrame, v float64) { s.W = v }},
}

// ControlProperties lists the JSBSim properties written each step, in wire order.
func ControlProperties() []string {
	props := make([]string, len(controlLayout))
	for i, f := range controlLayout {
		props[i] = f.prop
	}
	return props
}

// StateProperties lists the JSBSim properties read each step, in wire order.
func StateProperties() []string {
	props := make([]string, len(stateLayout))
	for i, f := range stateLayout {
		props[i] = f.prop
	}
	return props
}

// Values returns the state fields in wire order.
func (s StateFrame) Values() []float64 {
	vals := make([]float64, len(stateLayout))
	for i, f := range stateLayout {
		vals[i] = f.get(&s)
	}
	return vals
}
