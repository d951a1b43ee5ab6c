package main

import (
	"log/slog"

	"jsbsim-bridge/internal/config"
	"jsbsim-bridge/internal/record"
)

// writerOptions select the recording sinks.
type writerOptions struct {
	PrintOnly bool
	LogFile   string
	// Display replaces STDOUT output, e.g. the TUI.
	Display   record.Writer
	Extra     []record.Writer
}

// newWriters sets up the recording sinks from config and options. It
// returns the combined writer, the JSONL file writer when a log file is
// set, and a cleanup function to close any resources.
func newWriters(cfg *config.BridgeConfig, opts writerOptions, log *slog.Logger) (record.Writer, *record.FileWriter, func(), error) {
	cleanup := func() {}

	writers, err := baseWriters(cfg, opts, log)
	if err != nil {
		return nil, nil, nil, err
	}
	writers = append(writers, opts.Extra...)

	var fw *record.FileWriter
	if opts.LogFile != "" {
		fw, err = record.NewFileWriter(opts.LogFile, opts.LogFile+".events")
		if err != nil {
			return nil, nil, nil, err
		}
		writers = append(writers, fw)
		cleanup = func() { fw.Close() }
	}
	if len(writers) == 1 {
		return writers[0], fw, cleanup, nil
	}

	sws := make([]record.StateWriter, len(writers))
	ews := make([]record.EventWriter, len(writers))
	for i, w := range writers {
		sws[i], ews[i] = w, w
	}
	return record.NewMultiWriter(sws, ews), fw, cleanup, nil
}

// baseWriters chooses the primary sink from the print-only flag and the
// GreptimeDB settings.
func baseWriters(cfg *config.BridgeConfig, opts writerOptions, log *slog.Logger) ([]record.Writer, error) {
	display := opts.Display
	if display == nil {
		display = record.NewStdoutWriter()
	}
	g := cfg.Sinks.Greptime
	if opts.PrintOnly || g.Endpoint == "" {
		return []record.Writer{display}, nil
	}
	w, err := record.NewGreptimeDBWriter(g.Endpoint, g.Database, g.Table, "", log)
	if err != nil {
		return nil, err
	}
	if opts.Display != nil {
		return []record.Writer{w, opts.Display}, nil
	}
	return []record.Writer{w}, nil
}
