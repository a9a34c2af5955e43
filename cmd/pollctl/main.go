// Copyright © 2024 Mutker Telag <witty.text5011@fastmail.com>
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/pollctl/internal/config"
	"codeberg.org/mutker/pollctl/internal/errors"
	"codeberg.org/mutker/pollctl/internal/filter"
	"codeberg.org/mutker/pollctl/internal/logger"
	"codeberg.org/mutker/pollctl/internal/loop"
	"codeberg.org/mutker/pollctl/internal/metrics"
	"codeberg.org/mutker/pollctl/internal/pid"
	"codeberg.org/mutker/pollctl/internal/source"
	"codeberg.org/mutker/pollctl/internal/timer"
)

const appName = "pollctl"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse log level: %v\n", err)
		os.Exit(1)
	}
	logger.Init(level, logger.IsService())
	logger.Debug().Msg("Config loaded")

	if err := run(cfg); err != nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.ErrorWithCode(appErr).Msg("Exiting with error")
		} else {
			logger.Error().Err(err).Msg("Exiting with error")
		}
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	errFactory := errors.New()
	log := logger.Default()

	if err := pid.Write(appName); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(appName); err != nil {
			log.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	src, err := source.Open(source.FromConfig(cfg), log)
	if err != nil {
		return errFactory.Wrap(errors.ErrOpenSource, err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close sample source")
		}
	}()

	collector, err := metrics.NewService(metrics.FromConfig(cfg), log)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitMetrics, err)
	}
	defer func() {
		if err := collector.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close metrics")
		}
	}()

	controller, err := loop.New(loop.Options{
		Source:          src,
		Filter:          filter.New[uint16, uint32](uint8(cfg.Attenuation), uint16(cfg.InitialValue)),
		Clock:           timer.NewSystemClock(),
		ReportPeriod:    uint32(cfg.Period),
		Warmup:          uint32(cfg.Warmup),
		MaxReadFailures: cfg.MaxReadFailures,
		Collector:       collector,
		Logger:          log,
	})
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	log.Info().
		Str("source", src.Name()).
		Int("poll_interval_ms", cfg.PollInterval).
		Int("period_ms", cfg.Period).
		Int("attenuation", cfg.Attenuation).
		Msg("Starting control loop")

	if err := controller.Run(ctx, time.Duration(cfg.PollInterval)*time.Millisecond); err != nil {
		return errFactory.Wrap(errors.ErrMainLoop, err)
	}

	log.Info().Msg("Exiting...")

	return nil
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
