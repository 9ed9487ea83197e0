// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/streamkit-io/streamkit/internal/builtins"
	"github.com/streamkit-io/streamkit/internal/config"
	"github.com/streamkit-io/streamkit/internal/engine"
	"github.com/streamkit-io/streamkit/internal/httpserver"
	xglog "github.com/streamkit-io/streamkit/internal/log"
	"github.com/streamkit-io/streamkit/internal/recorder"
	"github.com/streamkit-io/streamkit/internal/reloader"
	"github.com/streamkit-io/streamkit/internal/registry"
	"github.com/streamkit-io/streamkit/internal/telemetry"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	optionsPath := flag.String("config", "", "path to engine options file (YAML)")
	definitionPath := flag.String("definition", "", "path to saved pipeline definition (YAML)")
	recordLogPath := flag.String("record-log", "", "path to an optional badger-backed control-op replay log")
	listenAddr := flag.String("listen", ":9090", "metrics/health listen address")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	xglog.Configure(xglog.Config{Level: *logLevel, Service: "streamkit", Version: version})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := config.LoadOptions(*optionsPath)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "config.load_failed").Msg("failed to load engine options")
	}

	reg := registry.New()
	if err := builtins.Register(reg); err != nil {
		logger.Fatal().Err(err).Msg("failed to register builtin nodes")
	}

	bus := telemetry.NewBus("streamkit-engine", opts.SubscriberChannelCapacity)
	h := engine.NewHandle(engine.New(reg, bus, opts))

	var rec *recorder.GraphRecorder
	if *recordLogPath != "" {
		rec, err = recorder.Open(*recordLogPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *recordLogPath).Msg("failed to open control-op replay log")
		}
		defer rec.Close()
		if err := rec.Replay(h); err != nil {
			logger.Fatal().Err(err).Msg("failed to replay control-op log")
		}
		logger.Info().Str("path", *recordLogPath).Msg("replayed control-op log")
	}

	if *definitionPath != "" {
		def, err := config.LoadDefinition(*definitionPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *definitionPath).Msg("failed to load pipeline definition")
		}
		plan := reloader.Diff(def, h.DescribeGraph())
		if err := reloader.Apply(h, plan); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply initial pipeline definition")
		}
		recordPlan(rec, plan, logger)
		logger.Info().Str("path", *definitionPath).Int("nodes", len(def.Nodes)).Int("connections", len(def.Connections)).
			Msg("applied pipeline definition")

		watcher := config.NewDefinitionWatcher(*definitionPath, func(def *config.Definition, err error) {
			if err != nil {
				logger.Error().Err(err).Msg("pipeline definition reload aborted, file unreadable")
				return
			}
			plan := reloader.Diff(def, h.DescribeGraph())
			if err := reloader.Apply(h, plan); err != nil {
				logger.Error().Err(err).Msg("pipeline definition reload failed partway through")
				return
			}
			recordPlan(rec, plan, logger)
			logger.Info().Msg("pipeline definition reloaded")
		})
		if err := watcher.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to start pipeline definition watcher")
		}
		defer watcher.Close()
	}

	srv := httpserver.New(*listenAddr, func(context.Context) bool {
		// The actor answers the node-states query from its own query channel;
		// once Run's select loop has exited the query yields nil.
		return h.GetNodeStates() != nil
	})

	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- srv.Run(ctx) }()

	logger.Info().Str("event", "startup").Str("version", version).Str("addr", *listenAddr).Msg("streamkitd started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-httpErrCh:
		if err != nil {
			logger.Error().Err(err).Msg("metrics server exited unexpectedly")
		}
	}

	if err := h.ShutdownAndWait(); err != nil {
		logger.Error().Err(err).Msg("engine shutdown did not complete cleanly")
	}
}

// recordPlan logs an already-applied reloader.Plan to rec, best-effort. rec
// is nil when --record-log was not set.
func recordPlan(rec *recorder.GraphRecorder, plan reloader.Plan, logger zerolog.Logger) {
	if rec == nil {
		return
	}
	for _, op := range plan.Disconnects {
		if err := rec.RecordDisconnect(op); err != nil {
			logger.Error().Err(err).Msg("failed to append disconnect to replay log")
		}
	}
	for _, op := range plan.Removes {
		if err := rec.RecordRemoveNode(op); err != nil {
			logger.Error().Err(err).Msg("failed to append remove_node to replay log")
		}
	}
	for _, op := range plan.Adds {
		if err := rec.RecordAddNode(op); err != nil {
			logger.Error().Err(err).Msg("failed to append add_node to replay log")
		}
	}
	for _, op := range plan.Connects {
		if err := rec.RecordConnect(op); err != nil {
			logger.Error().Err(err).Msg("failed to append connect to replay log")
		}
	}
}
