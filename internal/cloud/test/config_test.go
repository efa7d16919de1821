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

package cloud_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jaycherian/trend-audio-matcher/internal/cloud"
	test "github.com/jaycherian/trend-audio-matcher/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestConfigLayers(t *testing.T) {
	config := test.GetConfig()

	assert.Equal(t, "trend-audio-matcher", config.Application.Name)
	assert.Equal(t, "8000", config.Application.Port)
	assert.Equal(t, "warn", config.Application.LogLevel)
	assert.Equal(t, "testdata/uploads", config.Application.UploadDir)
	assert.Equal(t, 1, config.VideoAnalysis.PollIntervalSeconds)
	assert.Equal(t, 30, config.VideoAnalysis.PollTimeoutSeconds)
	assert.Equal(t, "TOPIC", config.VideoAnalysis.SummaryType)

	agent := config.TrendAgent()
	assert.Equal(t, "gemini-2.5-flash", agent.Model)
	assert.True(t, agent.EnableGoogle)

	require.Len(t, config.Audio.Sources, 2)
	assert.Equal(t, "ytsearch1:", config.Audio.Sources[0].SearchPrefix)
	assert.True(t, config.Audio.Sources[0].ExtractAudio)
	assert.Equal(t, "scsearch1:", config.Audio.Sources[1].SearchPrefix)

	assert.Contains(t, config.PromptTemplates.TrendPrompt, "{{ .Summary }}")
	assert.Equal(t, "/downloads", config.Storage.DownloadRoutePath)
}

func TestLoadConfigWithoutFiles(t *testing.T) {
	t.Setenv(cloud.EnvConfigFilePrefix, t.TempDir())
	t.Setenv(cloud.EnvConfigRuntime, "missing")

	config := cloud.NewConfig()
	require.NoError(t, cloud.LoadConfig(config))
	assert.Equal(t, "8000", config.Application.Port)
	assert.Equal(t, "open.spotify.com", config.Catalog.RequiredURLSubstring)
	assert.Equal(t, 0, config.VideoAnalysis.PollTimeoutSeconds)
}

func TestLoadConfigRuntimeOverridesBase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte("[application]\nport = \"9000\"\nlog_level = \"info\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.prod.toml"), []byte("[application]\nlog_level = \"error\"\n"), 0o644))
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "prod")

	config := cloud.NewConfig()
	require.NoError(t, cloud.LoadConfig(config))
	assert.Equal(t, "9000", config.Application.Port)
	assert.Equal(t, "error", config.Application.LogLevel)
}

func TestLoadConfigInvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte("[application\nport = "), 0o644))
	t.Setenv(cloud.EnvConfigFilePrefix, dir)

	assert.Error(t, cloud.LoadConfig(cloud.NewConfig()))
}

func TestTrendAgentFallback(t *testing.T) {
	config := cloud.NewConfig()
	agent := config.TrendAgent()
	assert.Equal(t, "gemini-2.5-flash", agent.Model)
	assert.True(t, agent.EnableGoogle)
}

func TestNewGenerateContentConfig(t *testing.T) {
	cfg := cloud.NewGenerateContentConfig(cloud.VertexAiLLMModel{
		Model:              "gemini-2.5-flash",
		SystemInstructions: "find songs",
		Temperature:        0.4,
		MaxTokens:          512,
		EnableGoogle:       true,
	})
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.4, *cfg.Temperature, 0.0001)
	assert.Nil(t, cfg.TopP)
	assert.Equal(t, int32(512), cfg.MaxOutputTokens)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "find songs", cfg.SystemInstruction.Parts[0].Text)
	require.Len(t, cfg.Tools, 1)
	assert.NotNil(t, cfg.Tools[0].GoogleSearch)

	plain := cloud.NewGenerateContentConfig(cloud.VertexAiLLMModel{Model: "m"})
	assert.Empty(t, plain.Tools)
	assert.Nil(t, plain.SystemInstruction)
}

func TestNewQuotaAwareModelLimits(t *testing.T) {
	unlimited := cloud.NewQuotaAwareModel(nil, "m", nil, 0)
	assert.Equal(t, rate.Inf, unlimited.RateLimit.Limit())

	limited := cloud.NewQuotaAwareModel(nil, "m", nil, 2)
	assert.Equal(t, rate.Limit(2), limited.RateLimit.Limit())
	assert.Equal(t, 2, limited.RateLimit.Burst())
}

func TestGenerateTextResponseRetries(t *testing.T) {
	boom := errors.New("quota exceeded")

	g := &test.FakeGenerator{Replies: []string{"hello"}, Errs: []error{boom, boom}}
	out, err := cloud.GenerateTextResponse(context.Background(), cloud.TokenCounters{}, 1, g, cloud.NewTextPart("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Len(t, g.Prompts, 3)

	g = &test.FakeGenerator{Errs: []error{boom, boom, boom, boom}}
	_, err = cloud.GenerateTextResponse(context.Background(), cloud.TokenCounters{}, 1, g, cloud.NewTextPart("hi"))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, g.Prompts, cloud.MaxRetries)
}

func TestGenerateTextResponseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := &test.FakeGenerator{Errs: []error{context.Canceled}}
	_, err := cloud.GenerateTextResponse(ctx, cloud.TokenCounters{}, 1, g, cloud.NewTextPart("hi"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, g.Prompts, 1)
}

func TestLoadSecrets(t *testing.T) {
	for _, key := range []string{"MEMORIES_API_KEY", "GEMINI_API_KEY", "SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Setenv("GEMINI_API_KEY", "from-env")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("MEMORIES_API_KEY=mem-key\nGEMINI_API_KEY=from-file\nSPOTIFY_CLIENT_ID=id\n"), 0o644))

	secrets, err := cloud.LoadSecrets(envFile)
	require.NoError(t, err)
	assert.Equal(t, "mem-key", secrets.MemoriesAPIKey)
	assert.Equal(t, "from-env", secrets.GeminiAPIKey)
	assert.Equal(t, "id", secrets.SpotifyClientID)
	assert.False(t, secrets.CatalogConfigured())
}

func TestLoadSecretsMissingFile(t *testing.T) {
	_, err := cloud.LoadSecrets(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestGCSObjectURI(t *testing.T) {
	obj := cloud.GCSObject{Bucket: "artifacts", Name: "audio/song.mp3"}
	assert.Equal(t, "gs://artifacts/audio/song.mp3", obj.URI())
}

var _ cloud.ContentGenerator = (*test.FakeGenerator)(nil)
