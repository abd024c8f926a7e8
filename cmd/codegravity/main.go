// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/AleutianAI/CodeGravity/cmd/codegravity/config"
	"github.com/AleutianAI/CodeGravity/pkg/logging"
)

func main() {
	code := 0
	if err := rootCmd.Execute(); err != nil {
		code = 1
	}
	if shutdownTelemetry != nil {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}
	if closeLogs != nil {
		_ = closeLogs()
	}
	os.Exit(code)
}

// shutdownTelemetry flushes the metric pipeline at exit. Nil when
// telemetry is disabled.
var shutdownTelemetry func(context.Context) error

// closeLogs flushes the log file at exit. Nil when file logging is
// disabled.
var closeLogs func() error

// setupLogging installs the process-wide slog handler.
func setupLogging(cfg config.LoggingConfig) error {
	logger, closeFn, err := logging.New(logging.Config{
		Level:   cfg.Level,
		Service: "codegravity",
		Dir:     cfg.Dir,
		JSON:    cfg.JSON,
	})
	if err != nil {
		return err
	}
	closeLogs = closeFn
	slog.SetDefault(logger)
	return nil
}

// setupTelemetry wires a stdout metric exporter into the global meter
// provider.
func setupTelemetry() error {
	exporter, err := stdoutmetric.New()
	if err != nil {
		return err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(provider)
	shutdownTelemetry = provider.Shutdown
	return nil
}
