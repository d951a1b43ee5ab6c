// Package metrics exposes Prometheus collectors for a bridge session.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"jsbsim-bridge/internal/governor"
	"jsbsim-bridge/internal/session"
	"jsbsim-bridge/internal/transport"
	"jsbsim-bridge/internal/wire"
)

const namespace = "jsbsim_bridge"

// stepBuckets cover 1ms..~2s, the useful range for 1-1000 Hz stepping.
var stepBuckets = prometheus.ExponentialBuckets(0.001, 2, 12)

// Metrics holds the session collectors.
type Metrics struct {
	StepsTotal    prometheus.Counter
	StepDuration  prometheus.Histogram
	FaultsTotal   *prometheus.CounterVec
	Reconnects    prometheus.Counter
	Violations    prometheus.Counter
	Status        *prometheus.GaugeVec
	SimTime       prometheus.Gauge
	BackoffWaited prometheus.Counter
}

// New registers the collectors with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		StepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Steps completed with a decoded state frame",
		}),
		StepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall-clock time of one request/response exchange",
			Buckets:   stepBuckets,
		}),
		FaultsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Transitions into Faulted by cause",
		}, []string{"kind"}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts started",
		}),
		Violations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timing_violations_total",
			Help:      "Timing violations reported by the rate governor",
		}),
		Status: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_status",
			Help:      "1 for the current session status, 0 otherwise",
		}, []string{"status"}),
		SimTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sim_time_seconds",
			Help:      "Simulation time of the latest state frame",
		}),
		BackoffWaited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backoff_seconds_total",
			Help:      "Total time scheduled for reconnect backoff",
		}),
	}
	m.setStatus(session.Disconnected)
	return m
}

// Observer returns session callbacks feeding the collectors.
func (m *Metrics) Observer() session.Observer {
	return session.Observer{
		OnTransition: func(_, to session.Status, cause error) {
			m.setStatus(to)
			if to == session.Faulted {
				m.FaultsTotal.WithLabelValues(Kind(cause)).Inc()
			}
		},
		OnStep: func(state wire.StateFrame, timing governor.StepTiming) {
			m.StepsTotal.Inc()
			m.StepDuration.Observe(timing.Elapsed.Seconds())
			m.SimTime.Set(state.SimTime)
		},
		OnViolation: func(*governor.TimingViolation) {
			m.Violations.Inc()
		},
		OnReconnect: func(_ int, delay time.Duration) {
			m.Reconnects.Inc()
			m.BackoffWaited.Add(delay.Seconds())
		},
	}
}

func (m *Metrics) setStatus(cur session.Status) {
	for _, s := range session.Statuses() {
		v := 0.0
		if s == cur {
			v = 1
		}
		m.Status.WithLabelValues(s.String()).Set(v)
	}
}

// Kind names the error class used as the faults_total label.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, transport.ErrAlreadyBound):
		return "already_bound"
	case errors.Is(err, transport.ErrUnreachable):
		return "unreachable"
	case errors.Is(err, transport.ErrTimeout):
		return "timeout"
	case errors.Is(err, transport.ErrClosed):
		return "closed"
	case errors.Is(err, wire.ErrTruncated):
		return "truncated"
	case errors.Is(err, wire.ErrMalformed):
		return "malformed"
	default:
		return "other"
	}
}
