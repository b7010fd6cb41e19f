// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

// aegis-live connects to the model service's telemetry stream, folds
// every sample into the live match state, and writes a snapshot of
// that state to stdout each time it changes. Renderers read the
// snapshots as newline-delimited JSON (the default) or as a CBOR
// sequence.
//
// The session reconnects after a fixed delay whenever the connection
// fails, and ends when the backend closes the stream cleanly or the
// process receives SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/aegis-c9/aegis/lib/config"
	"github.com/aegis-c9/aegis/lib/feed"
	"github.com/aegis-c9/aegis/lib/live"
	"github.com/aegis-c9/aegis/lib/logging"
	"github.com/aegis-c9/aegis/lib/process"
	"github.com/aegis-c9/aegis/lib/schema/match"
	"github.com/aegis-c9/aegis/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		process.Fatal(err)
	}
}

// options holds the command-line flags. Empty strings leave the
// configured value in place.
type options struct {
	configPath  string
	apiURL      string
	rosterPath  string
	output      string
	logFormat   string
	logLevel    string
	showVersion bool
}

func (o *options) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.configPath, "config", "", "path to the YAML config file (default: $"+config.ConfigVariable+")")
	flagSet.StringVar(&o.apiURL, "api-url", "", "backend base URL; the stream is read from {url}/"+live.StreamPath)
	flagSet.StringVar(&o.rosterPath, "roster", "", "YAML or JSONC roster file")
	flagSet.StringVar(&o.output, "output", "json", "snapshot output format: json, cbor, or none")
	flagSet.StringVar(&o.logFormat, "log-format", "", "log format: auto, text, or json")
	flagSet.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, or error")
	flagSet.BoolVar(&o.showVersion, "version", false, "print version information and exit")
}

func run(args []string, stdout io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("aegis-live", pflag.ContinueOnError)
	opts.addFlags(flagSet)

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.showVersion {
		return version.Print(stdout, "aegis-live")
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	writer, err := newSnapshotWriter(opts.output, stdout)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}
	players, err := cfg.Players()
	if err != nil {
		return err
	}
	retryDelay, err := cfg.RetryDelayDuration()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := live.NewSession(live.Config{
		BaseURL:    cfg.Stream.BaseURL,
		Roster:     players,
		RetryDelay: retryDelay,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	logger.Info("aegis live starting",
		"version", version.Info(),
		"environment", cfg.Environment,
		"session_id", session.ID(),
		"endpoint", session.Endpoint(),
		"roster_size", len(players),
		"retry_delay", retryDelay,
		"output", opts.output,
	)

	sessionDone := make(chan struct{})
	publishDone := make(chan error, 1)
	go func() {
		publishDone <- publish(session, writer, sessionDone, logger)
	}()

	runErr := session.Run(ctx)
	close(sessionDone)
	publishErr := <-publishDone

	final := session.Snapshot()
	logger.Info("session finished",
		"state", final.State,
		"connections", final.Stats.Connections,
		"samples", final.Stats.Samples,
		"decode_failures", final.Stats.DecodeFailures,
		"anomalies", final.Stats.Anomalies,
		"win_probability", final.Game.WinProbability,
	)

	return errors.Join(runErr, publishErr)
}

// loadConfig resolves the configuration file, applies flag overrides,
// and validates the result.
func loadConfig(opts options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if opts.apiURL != "" {
		cfg.Stream.BaseURL = opts.apiURL
	}
	if opts.rosterPath != "" {
		cfg.RosterFile = opts.rosterPath
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// publish writes a snapshot for every update signal until sessionDone
// closes, then writes the final snapshot. A write failure stops
// publishing; the session keeps running.
func publish(session *live.Session, writer snapshotWriter, sessionDone <-chan struct{}, logger *slog.Logger) error {
	var lastSamples uint64
	emit := func() error {
		snapshot := session.Snapshot()
		if snapshot.Stats.Samples != lastSamples {
			lastSamples = snapshot.Stats.Samples
			logAnalysis(logger, snapshot)
		}
		return writer.Write(snapshot)
	}

	for {
		select {
		case <-session.Updates():
			if err := emit(); err != nil {
				logger.Error("writing snapshot failed, output stopped", "error", err)
				<-sessionDone
				return fmt.Errorf("writing snapshot: %w", err)
			}
		case <-sessionDone:
			if err := emit(); err != nil {
				return fmt.Errorf("writing final snapshot: %w", err)
			}
			return nil
		}
	}
}

// logAnalysis logs the match-insight summary riding on the latest
// record, if it has one.
func logAnalysis(logger *slog.Logger, snapshot live.Snapshot) {
	if len(snapshot.Telemetry) == 0 || !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	sample, err := feed.Decode(string(snapshot.Telemetry))
	if err != nil {
		return
	}
	analysis, err := match.DecodeMIEAnalysis(sample.MIEAnalysis)
	if err != nil {
		logger.Debug("ignoring malformed mie_analysis", "error", err)
		return
	}
	if analysis == nil {
		return
	}
	logger.Debug("match insight",
		"summary", analysis.Summary,
		"recommendation", analysis.Recommendation,
		"squad_size", len(analysis.SquadTelemetry),
		"clutch_potential", analysis.ProbabilityMetrics.ClutchPotential,
	)
}
