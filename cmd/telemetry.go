// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cardinalhq/oteltools/pkg/telemetry"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/host"
	iruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/cardinalhq/songlake/internal/idgen"
)

// myInstanceID tags every log line from this process.
var myInstanceID int64

const otelShutdownTimeout = 10 * time.Second

// envEnabled reports whether a boolean environment variable is switched on.
func envEnabled(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// otlpExportEnabled requires both a service name and an explicit opt-in.
func otlpExportEnabled() bool {
	return os.Getenv("OTEL_SERVICE_NAME") != "" && envEnabled("ENABLE_OTLP_TELEMETRY")
}

func logLevel() slog.Level {
	if os.Getenv("DEBUG") != "" || os.Getenv("SONGLAKE_DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// newLogger writes text logs to stdout and, when exporting, fans the same
// records out to the OTel log bridge.
func newLogger(servicename string, export bool) *slog.Logger {
	var h slog.Handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()})
	if export {
		h = slogmulti.Fanout(h, otelslog.NewHandler(servicename))
	}
	return slog.New(h).With(
		slog.String("service", servicename),
		slog.Int64("instanceID", myInstanceID),
	)
}

// startHostInstrumentation is best effort; a failure only costs metrics.
func startHostInstrumentation() {
	if err := iruntime.Start(iruntime.WithMinimumReadMemStatsInterval(10 * time.Second)); err != nil {
		slog.Warn("Runtime metrics unavailable", slog.Any("error", err))
	}
	if err := host.Start(); err != nil {
		slog.Warn("Host metrics unavailable", slog.Any("error", err))
	}
}

// setupTelemetry installs the default logger and, when enabled, the OTel
// SDK. The returned context is cancelled on SIGINT or SIGTERM; the
// returned func flushes telemetry and releases the signal handler.
func setupTelemetry(servicename string) (context.Context, func() error, error) {
	myInstanceID = idgen.DefaultFlakeGenerator.NextID()
	doneCtx, doneCancel := handleSignals(context.Background())

	export := otlpExportEnabled()
	slog.SetDefault(newLogger(servicename, export))
	if !export {
		return doneCtx, func() error { doneCancel(); return nil }, nil
	}

	slog.Info("OpenTelemetry exporting enabled")
	otelShutdown, err := telemetry.SetupOTelSDK(doneCtx)
	if err != nil {
		doneCancel()
		return doneCtx, nil, fmt.Errorf("setup OpenTelemetry SDK: %w", err)
	}
	startHostInstrumentation()

	return doneCtx, func() error {
		defer doneCancel()
		slog.Info("Shutting down OpenTelemetry SDK")
		ctx, cancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
		defer cancel()
		return otelShutdown(ctx)
	}, nil
}
