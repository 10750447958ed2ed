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
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvEnabled(t *testing.T) {
	for value, want := range map[string]bool{
		"1": true, "true": true, " YES ": true, "on": true,
		"": false, "0": false, "false": false, "maybe": false,
	} {
		t.Setenv("SONGLAKE_TEST_FLAG", value)
		assert.Equal(t, want, envEnabled("SONGLAKE_TEST_FLAG"), "%q", value)
	}
}

func TestOTLPExportNeedsServiceName(t *testing.T) {
	t.Setenv("ENABLE_OTLP_TELEMETRY", "true")
	t.Setenv("OTEL_SERVICE_NAME", "")
	assert.False(t, otlpExportEnabled())

	t.Setenv("OTEL_SERVICE_NAME", "songlake")
	assert.True(t, otlpExportEnabled())

	t.Setenv("ENABLE_OTLP_TELEMETRY", "")
	assert.False(t, otlpExportEnabled())
}

func TestLogLevel(t *testing.T) {
	t.Setenv("DEBUG", "")
	t.Setenv("SONGLAKE_DEBUG", "")
	assert.Equal(t, slog.LevelInfo, logLevel())

	t.Setenv("SONGLAKE_DEBUG", "1")
	assert.Equal(t, slog.LevelDebug, logLevel())
}
