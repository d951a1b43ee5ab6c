// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"jsbsim-bridge/internal/session"
	"jsbsim-bridge/internal/transport"
	"jsbsim-bridge/internal/wire"
)

// Session holds the connection and pacing settings. Durations are in
// milliseconds; zero values take the session defaults.
type Session struct {
	Host                  string  `yaml:"host"`
	Port                  int     `yaml:"port"`
	RateHz                float64 `yaml:"rate_hz"`
	IterationsPerStep     int     `yaml:"iterations_per_step"`
	StepTimeoutMs         int     `yaml:"step_timeout_ms"`
	ConnectTimeoutMs      int     `yaml:"connect_timeout_ms"`
	MaxRetries            *int    `yaml:"max_retries"`
	BaseBackoffMs         int     `yaml:"base_backoff_ms"`
	MaxBackoffMs          int     `yaml:"max_backoff_ms"`
	AlreadyBoundBackoffMs int     `yaml:"already_bound_backoff_ms"`
	FailFastOnBound       bool    `yaml:"fail_fast_on_bound"`
	LocalPort             int     `yaml:"local_port"`
	ReuseAddr             bool    `yaml:"reuse_addr"`
	ViolationTolerance    float64 `yaml:"violation_tolerance"`
	ViolationThreshold    int     `yaml:"violation_threshold"`
}

// Controls is the trim sent every step by the fly command.
type Controls struct {
	Aileron  float64 `yaml:"aileron"`
	Elevator float64 `yaml:"elevator"`
	Rudder   float64 `yaml:"rudder"`
	Throttle float64 `yaml:"throttle"`
	Flaps    float64 `yaml:"flaps"`
}

// Greptime configures the GreptimeDB sink. An empty endpoint disables it.
type Greptime struct {
	Endpoint string `yaml:"endpoint"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// S3 configures the flight log archive. An empty bucket disables it.
type S3 struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// Sinks selects where state rows are recorded.
type Sinks struct {
	LogFile  string   `yaml:"log_file"`
	Greptime Greptime `yaml:"greptime"`
	S3       S3       `yaml:"s3"`
}

// Admin configures the HTTP surface. An empty listen address disables it.
type Admin struct {
	Listen string `yaml:"listen"`
}

// BridgeConfig is the root configuration of the fly command. Properties
// are written once after the session synchronizes.
type BridgeConfig struct {
	LogLevel   string             `yaml:"log_level"`
	Session    Session            `yaml:"session"`
	Controls   Controls           `yaml:"controls"`
	Properties map[string]float64 `yaml:"properties"`
	Sinks      Sinks              `yaml:"sinks"`
	Admin      Admin              `yaml:"admin"`
}

// Load loads YAML config, validates it against a CUE schema and applies
// environment overrides.
func Load(configPath, cueSchemaPath string) (*BridgeConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	if cueSchemaPath != "" {
		if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
			return nil, err
		}
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML without schema validation.
func Parse(data []byte) (*BridgeConfig, error) {
	var cfg BridgeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal YAML config: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from JSBSIM_ADDR, STEP_RATE_HZ,
// GREPTIMEDB_ENDPOINT and GREPTIMEDB_TABLE.
func (c *BridgeConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("JSBSIM_ADDR"); ok && v != "" {
		host, port, err := net.SplitHostPort(v)
		if err != nil {
			return fmt.Errorf("invalid JSBSIM_ADDR: %w", err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid JSBSIM_ADDR port %q: %w", port, err)
		}
		c.Session.Host, c.Session.Port = host, p
	}
	if v, ok := lookup("STEP_RATE_HZ"); ok && v != "" {
		hz, err := strconv.ParseFloat(v, 64)
		if err != nil || hz <= 0 || hz > 1000 {
			return fmt.Errorf("invalid STEP_RATE_HZ %q", v)
		}
		c.Session.RateHz = hz
	}
	if v, ok := lookup("GREPTIMEDB_ENDPOINT"); ok {
		c.Sinks.Greptime.Endpoint = v
	}
	if v, ok := lookup("GREPTIMEDB_TABLE"); ok && v != "" {
		c.Sinks.Greptime.Table = v
	}
	return nil
}

// SessionConfig converts the YAML session block.
func (c *BridgeConfig) SessionConfig() session.Config {
	s := c.Session
	retries := 5
	if s.MaxRetries != nil {
		retries = *s.MaxRetries
	}
	return session.Config{
		Target:              transport.Target{Host: s.Host, Port: s.Port},
		RateHz:              s.RateHz,
		IterationsPerStep:   s.IterationsPerStep,
		StepTimeout:         ms(s.StepTimeoutMs),
		ConnectTimeout:      ms(s.ConnectTimeoutMs),
		MaxRetries:          retries,
		BaseBackoff:         ms(s.BaseBackoffMs),
		MaxBackoff:          ms(s.MaxBackoffMs),
		AlreadyBoundBackoff: ms(s.AlreadyBoundBackoffMs),
		FailFastOnBound:     s.FailFastOnBound,
		LocalPort:           s.LocalPort,
		ReuseAddr:           s.ReuseAddr,
		ViolationTolerance:  s.ViolationTolerance,
		ViolationThreshold:  s.ViolationThreshold,
	}.WithDefaults()
}

// ControlFrame returns the configured trim.
func (c *BridgeConfig) ControlFrame() wire.ControlFrame {
	t := c.Controls
	return wire.ControlFrame{Aileron: t.Aileron, Elevator: t.Elevator, Rudder: t.Rudder, Throttle: t.Throttle, Flaps: t.Flaps}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
