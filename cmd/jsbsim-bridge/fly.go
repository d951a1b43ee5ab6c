package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"jsbsim-bridge/internal/admin"
	"jsbsim-bridge/internal/bridge"
	"jsbsim-bridge/internal/config"
	"jsbsim-bridge/internal/logging"
	"jsbsim-bridge/internal/metrics"
	"jsbsim-bridge/internal/record"
	"jsbsim-bridge/internal/scenario"
	"jsbsim-bridge/internal/session"
)

var (
	flyConfigPath string
	flySchemaPath string
	flySteps      uint64
	flyLogFile    string
	flyPrintOnly  bool
	flyTUI        bool
	flyAdmin      string
	flyScenario   string
)

var flyCmd = &cobra.Command{
	Use:   "fly",
	Short: "Step a JSBSim instance in real time",
	Long:  "fly connects to the JSBSim console, sends the configured trim every step and records the returned state.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flyConfigPath, flySchemaPath)
		if err != nil {
			return err
		}
		if flyLogFile != "" {
			cfg.Sinks.LogFile = flyLogFile
		}
		if cmd.Flags().Changed("admin") {
			cfg.Admin.Listen = flyAdmin
		}
		sc := cfg.SessionConfig()

		var runner *scenario.Runner
		if flyScenario != "" {
			script, err := scenario.Resolve(flyScenario)
			if err != nil {
				return err
			}
			if runner, err = scenario.NewRunner(script); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var tui *record.TUIWriter
		var logger *slog.Logger
		if flyTUI && record.IsTerminal(os.Stdout) {
			tui = record.NewTUIWriter(sc.Target.Addr(), sc.RateHz)
			defer tui.Close()
			logger = logging.NewWriter(io.Discard, cfg.LogLevel)
		} else {
			logger = logging.New(cfg.LogLevel)
		}
		ctx = logging.NewContext(ctx, logger)

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := metrics.New(reg)

		opts := writerOptions{PrintOnly: flyPrintOnly, LogFile: cfg.Sinks.LogFile}
		if tui != nil {
			opts.Display = tui
		}
		var hub *admin.Hub
		if cfg.Admin.Listen != "" {
			hub = admin.NewHub(logger)
			opts.Extra = append(opts.Extra, hub)
		}
		writer, fw, cleanup, err := newWriters(cfg, opts, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		rec := record.NewRecorder(writer, writer, logger)
		b := bridge.New(
			bridge.WithLogger(logger),
			bridge.WithObserver(session.Observers(m.Observer(), rec.Observer())),
			bridge.WithTracer(otel.Tracer("jsbsim-bridge")),
		)
		defer b.Stop()

		if hub != nil {
			srv := admin.NewServer(b, rec.SessionID(), reg, hub, logger)
			go func() {
				if err := srv.Start(ctx, cfg.Admin.Listen); err != nil {
					logger.Error("admin server failed", "err", err)
				}
			}()
			if tui != nil {
				tui.SetAdminStatus(true)
			}
		}

		logger.Info("[Main] Starting session", "target", sc.Target.Addr(), "rate_hz", sc.RateHz, "session_id", rec.SessionID())
		if err := b.Start(ctx, sc); err != nil {
			if session.IsFatal(err) {
				return err
			}
			logger.Warn("[Main] initial connect failed, retrying on first step", "err", err)
		}

		n, runErr := fly(ctx, b, cfg, flySteps, runner, logger)
		violations := b.Violations()
		b.Stop()
		logger.Info("[Main] Session stopped", "steps", n, "violations", violations, "record_errors", rec.Errors())

		if fw != nil && cfg.Sinks.S3.Bucket != "" {
			fw.Close()
			if err := archive(cfg.Sinks.S3, rec.SessionID(), fw, logger); err != nil {
				logger.Error("[Main] log archive failed", "err", err)
			}
		}
		return runErr
	},
}

// fly steps b until steps are done, ctx ends or the session fails for
// good. Controls come from runner when set, else the configured trim.
// Configured properties are written once the session first synchronizes.
func fly(ctx context.Context, b *bridge.Bridge, cfg *config.BridgeConfig, steps uint64, runner *scenario.Runner, log *slog.Logger) (uint64, error) {
	ctrl := cfg.ControlFrame()
	if runner != nil {
		log.Info("[Scenario] phase", "name", runner.Phase().Name)
	}
	applied := len(cfg.Properties) == 0
	var done uint64
	for steps == 0 || done < steps {
		if ctx.Err() != nil {
			return done, nil
		}
		if !applied && b.Status() == session.Synchronized {
			if err := applyProperties(ctx, b, cfg.Properties); err != nil {
				log.Warn("[Main] property write failed", "err", err)
			} else {
				applied = true
			}
		}
		if runner != nil {
			ctrl = runner.Controls()
		}
		st, err := b.Step(ctx, ctrl)
		if err != nil {
			if ctx.Err() != nil {
				return done, nil
			}
			if session.IsFatal(err) || errors.Is(err, session.ErrNotStarted) || errors.Is(err, session.ErrStopped) {
				return done, err
			}
			log.Warn("[Main] step failed", "err", err)
			continue
		}
		done++
		if runner != nil && runner.Observe(st) {
			log.Info("[Scenario] phase", "name", runner.Phase().Name, "sim_time", st.SimTime, "alt_ft", st.Alt)
		}
	}
	return done, nil
}

func applyProperties(ctx context.Context, b *bridge.Bridge, props map[string]float64) error {
	log := logging.FromContext(ctx)
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := b.Set(ctx, name, props[name]); err != nil {
			return err
		}
		log.Info("[Main] property set", "property", name, "value", props[name])
	}
	return nil
}

func archive(opts config.S3, sessionID string, fw *record.FileWriter, log *slog.Logger) error {
	a, err := record.NewS3Archiver(record.S3Options{
		Bucket:   opts.Bucket,
		Prefix:   opts.Prefix,
		Region:   opts.Region,
		Endpoint: opts.Endpoint,
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	key, err := a.Upload(ctx, sessionID, fw.StatePath())
	if err != nil {
		return err
	}
	log.Info("[Main] log archived", "bucket", opts.Bucket, "key", key)
	return nil
}

func init() {
	flyCmd.Flags().StringVar(&flyConfigPath, "config", "config/bridge.yaml", "Path to bridge configuration YAML")
	flyCmd.Flags().StringVar(&flySchemaPath, "schema", "schemas/bridge.cue", "Path to CUE schema file")
	flyCmd.Flags().Uint64Var(&flySteps, "steps", 0, "Number of steps to run (0 runs until interrupted)")
	flyCmd.Flags().StringVar(&flyLogFile, "log-file", "", "Path to export state rows (JSONL); events go to <path>.events")
	flyCmd.Flags().BoolVar(&flyPrintOnly, "print-only", false, "Print state to STDOUT instead of writing to GreptimeDB")
	flyCmd.Flags().BoolVar(&flyTUI, "tui", false, "Show a terminal dashboard instead of plain output")
	flyCmd.Flags().StringVar(&flyScenario, "scenario", "", "Built-in scenario name or scenario YAML path (default: hold the configured trim)")
	flyCmd.Flags().StringVar(&flyAdmin, "admin", "", "Admin listen address (e.g. :8080), overrides the config; empty disables")
}
