package session

import (
	"time"

	"jsbsim-bridge/internal/governor"
	"jsbsim-bridge/internal/transport"
)

// DefaultPort is the JSBSim console port.
const DefaultPort = 5556

// Config is fixed for the lifetime of a session.
type Config struct {
	Target            transport.Target
	RateHz            float64
	IterationsPerStep int
	StepTimeout       time.Duration
	ConnectTimeout    time.Duration

	MaxRetries          int
	BaseBackoff         time.Duration
	MaxBackoff          time.Duration
	AlreadyBoundBackoff time.Duration
	FailFastOnBound     bool

	LocalPort int
	ReuseAddr bool

	ViolationTolerance float64
	ViolationThreshold int
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.Target.Host == "" {
		c.Target.Host = "localhost"
	}
	if c.Target.Port == 0 {
		c.Target.Port = DefaultPort
	}
	if c.RateHz <= 0 {
		c.RateHz = 50
	}
	if c.IterationsPerStep <= 0 {
		c.IterationsPerStep = 1
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 2 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 100 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	if c.AlreadyBoundBackoff <= 0 {
		c.AlreadyBoundBackoff = 2 * time.Second
	}
	if c.ViolationTolerance <= 1 {
		c.ViolationTolerance = governor.DefaultTolerance
	}
	if c.ViolationThreshold <= 0 {
		c.ViolationThreshold = governor.DefaultThreshold
	}
	return c
}

// Backoff returns the wait before reconnect attempt n (1-based). The
// schedule doubles from base and is capped at MaxBackoff; after an
// already-bound failure it starts from AlreadyBoundBackoff instead.
func (c Config) Backoff(attempt int, alreadyBound bool) time.Duration {
	d := c.BaseBackoff
	if alreadyBound && c.AlreadyBoundBackoff > d {
		d = c.AlreadyBoundBackoff
	}
	for i := 1; i < attempt && d < c.MaxBackoff; i++ {
		d *= 2
	}
	if d > c.MaxBackoff {
		d = c.MaxBackoff
	}
	return d
}
