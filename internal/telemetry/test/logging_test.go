// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package telemetry_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/jaycherian/trend-audio-matcher/internal/cloud"
	"github.com/jaycherian/trend-audio-matcher/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggingCloudKeys(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	var buf bytes.Buffer
	telemetry.SetupLogging(&buf, "info")
	slog.Warn("poll slow", "video_no", "v1")
	slog.Debug("hidden")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record))
	assert.Equal(t, "WARNING", record["severity"])
	assert.Equal(t, "poll slow", record["message"])
	assert.Equal(t, "v1", record["video_no"])
	assert.Contains(t, record, "timestamp")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, telemetry.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, telemetry.ParseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, telemetry.ParseLevel("bogus"))
}

func TestSetupOpenTelemetryWithoutProject(t *testing.T) {
	shutdown, err := telemetry.SetupOpenTelemetry(context.Background(), cloud.NewConfig())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
