package peer

import (
	"math"

	"jsbsim-bridge/internal/wire"
)

const feetPerDegree = 364000.0

// model is a crude point-mass stand-in for the flight dynamics. It only
// needs to move the state in plausible directions for local testing.
type model struct {
	props map[string]float64
	fixed *wire.StateFrame
	dt    float64
}

func newModel(rateHz float64, initial wire.StateFrame, fixed *wire.StateFrame) *model {
	if rateHz <= 0 {
		rateHz = 120
	}
	m := &model{props: make(map[string]float64), fixed: fixed, dt: 1 / rateHz}
	for _, p := range wire.ControlProperties() {
		m.props[p] = 0
	}
	m.load(initial)
	return m
}

func (m *model) load(s wire.StateFrame) {
	vals := s.Values()
	for i, p := range wire.StateProperties() {
		m.props[p] = vals[i]
	}
}

func (m *model) get(prop string) (float64, bool) {
	if m.fixed != nil {
		for i, p := range wire.StateProperties() {
			if p == prop {
				return m.fixed.Values()[i], true
			}
		}
	}
	v, ok := m.props[prop]
	return v, ok
}

func (m *model) set(prop string, v float64) { m.props[prop] = v }

func (m *model) advance(iterations int) {
	p := m.props
	for i := 0; i < iterations; i++ {
		dt := m.dt
		p["simulation/sim-time-sec"] += dt

		u := p["velocities/u-fps"]
		u += (p["fcs/throttle-cmd-norm"]*250 - u) * 0.2 * dt
		p["velocities/u-fps"] = u

		p["velocities/p-rad_sec"] = p["fcs/aileron-cmd-norm"] * 0.5
		p["velocities/q-rad_sec"] = -p["fcs/elevator-cmd-norm"] * 0.2
		p["velocities/r-rad_sec"] = p["fcs/rudder-cmd-norm"]*0.1 + math.Sin(p["attitude/phi-rad"])*0.05

		p["attitude/phi-rad"] += p["velocities/p-rad_sec"] * dt
		p["attitude/theta-rad"] += p["velocities/q-rad_sec"] * dt
		p["attitude/psi-rad"] = math.Mod(p["attitude/psi-rad"]+p["velocities/r-rad_sec"]*dt, 2*math.Pi)

		theta, psi := p["attitude/theta-rad"], p["attitude/psi-rad"]
		p["velocities/w-fps"] = u * math.Sin(theta)
		p["position/h-sl-ft"] += u * math.Sin(theta) * dt
		p["position/lat-gc-deg"] += u * math.Cos(theta) * math.Cos(psi) * dt / feetPerDegree
		lat := p["position/lat-gc-deg"] * math.Pi / 180
		p["position/long-gc-deg"] += u * math.Cos(theta) * math.Sin(psi) * dt / (feetPerDegree * math.Max(math.Cos(lat), 0.01))
	}
}
