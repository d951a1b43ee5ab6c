package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const schemaPath = "../../schemas/bridge.cue"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func noEnv(string) (string, bool) { return "", false }

func clearEnv(t *testing.T) {
	for _, k := range []string{"JSBSIM_ADDR", "STEP_RATE_HZ", "GREPTIMEDB_ENDPOINT", "GREPTIMEDB_TABLE"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Valid(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
log_level: debug
session:
  host: sim.local
  port: 5600
  rate_hz: 120
  step_timeout_ms: 250
  max_retries: 2
controls:
  throttle: 0.8
  elevator: -0.05
properties:
  fcs/mixture-cmd-norm: 0.9
sinks:
  log_file: flight.jsonl
`)
	cfg, err := Load(path, schemaPath)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	sc := cfg.SessionConfig()
	if sc.Target.Addr() != "sim.local:5600" || sc.RateHz != 120 || sc.StepTimeout != 250*time.Millisecond || sc.MaxRetries != 2 {
		t.Errorf("unexpected session config: %+v", sc)
	}
	if sc.BaseBackoff != 100*time.Millisecond || sc.IterationsPerStep != 1 {
		t.Errorf("defaults not applied: %+v", sc)
	}
	cf := cfg.ControlFrame()
	if cf.Throttle != 0.8 || cf.Elevator != -0.05 {
		t.Errorf("unexpected controls: %+v", cf)
	}
	if cfg.Properties["fcs/mixture-cmd-norm"] != 0.9 || cfg.Sinks.LogFile != "flight.jsonl" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestSessionConfigDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sc := cfg.SessionConfig()
	if sc.Target.Addr() != "localhost:5556" || sc.RateHz != 50 || sc.MaxRetries != 5 {
		t.Errorf("unexpected defaults: %+v", sc)
	}
	if sc.StepTimeout != time.Second || sc.MaxBackoff != 5*time.Second || sc.AlreadyBoundBackoff != 2*time.Second {
		t.Errorf("unexpected default timings: %+v", sc)
	}
}

func TestSchemaRejects(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"zero rate", "session:\n  rate_hz: 0\n"},
		{"rate too high", "session:\n  rate_hz: 1001\n"},
		{"negative retries", "session:\n  max_retries: -1\n"},
		{"port out of range", "session:\n  port: 70000\n"},
		{"throttle above one", "controls:\n  throttle: 1.5\n"},
		{"bad level", "log_level: loud\n"},
		{"string rate", "session:\n  rate_hz: fast\n"},
	}
	clearEnv(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.body)
			if _, err := Load(path, schemaPath); err == nil {
				t.Fatalf("expected schema error")
			}
		})
	}
}

func TestSchemaAcceptsShippedConfig(t *testing.T) {
	if err := ValidateWithCue("../../config/bridge.yaml", schemaPath); err != nil {
		t.Fatalf("shipped config rejected: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"JSBSIM_ADDR":         "10.0.0.5:6000",
		"STEP_RATE_HZ":        "100",
		"GREPTIMEDB_ENDPOINT": "greptime:4001",
		"GREPTIMEDB_TABLE":    "flight",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg := &BridgeConfig{}
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Session.Host != "10.0.0.5" || cfg.Session.Port != 6000 || cfg.Session.RateHz != 100 {
		t.Errorf("unexpected session: %+v", cfg.Session)
	}
	if cfg.Sinks.Greptime.Endpoint != "greptime:4001" || cfg.Sinks.Greptime.Table != "flight" {
		t.Errorf("unexpected greptime: %+v", cfg.Sinks.Greptime)
	}

	if err := (&BridgeConfig{}).ApplyEnv(noEnv); err != nil {
		t.Fatalf("empty env: %v", err)
	}
	for _, bad := range []map[string]string{
		{"JSBSIM_ADDR": "no-port"},
		{"JSBSIM_ADDR": "host:abc"},
		{"STEP_RATE_HZ": "0"},
		{"STEP_RATE_HZ": "fast"},
	} {
		err := (&BridgeConfig{}).ApplyEnv(func(k string) (string, bool) {
			v, ok := bad[k]
			return v, ok
		})
		if err == nil || !strings.Contains(err.Error(), "invalid") {
			t.Errorf("env %v: err = %v", bad, err)
		}
	}
}

func TestLoadEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("STEP_RATE_HZ", "25")
	path := writeConfig(t, "session:\n  rate_hz: 60\n")
	cfg, err := Load(path, schemaPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.RateHz != 25 {
		t.Fatalf("rate = %v, want env override 25", cfg.Session.RateHz)
	}
}
