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

package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

const (
	ConfigFileBaseName  = ".env"
	ConfigFileExtension = ".toml"
	ConfigSeparator     = "."
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX"
	EnvConfigRuntime    = "GCP_RUNTIME"
	MaxRetries          = 3
)

func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// ConfigFiles returns the base and runtime configuration file names derived
// from GCP_CONFIG_PREFIX and GCP_RUNTIME. The runtime defaults to "test".
func ConfigFiles() (base string, runtime string) {
	prefix := os.Getenv(EnvConfigFilePrefix)
	if len(prefix) > 0 && !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix = prefix + string(os.PathSeparator)
	}
	env := os.Getenv(EnvConfigRuntime)
	if env == "" {
		env = "test"
	}
	base = prefix + ConfigFileBaseName + ConfigFileExtension
	runtime = prefix + ConfigFileBaseName + ConfigSeparator + env + ConfigFileExtension
	return base, runtime
}

// LoadConfig decodes the base file and then the runtime file into baseConfig.
// Either file may be absent; keys in the runtime file override the base.
func LoadConfig(baseConfig interface{}) error {
	base, runtime := ConfigFiles()
	for _, name := range []string{base, runtime} {
		if !fileExists(name) {
			slog.Debug("configuration file not found, skipping", "file", name)
			continue
		}
		if _, err := toml.DecodeFile(name, baseConfig); err != nil {
			return fmt.Errorf("failed to decode configuration file %s: %w", name, err)
		}
		slog.Debug("loaded configuration file", "file", name)
	}
	return nil
}

// ContentGenerator is the subset of a generative model the pipeline calls.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error)
}

// TokenCounters are the metrics recorded around every model call.
type TokenCounters struct {
	Input  metric.Int64Counter
	Output metric.Int64Counter
	Retry  metric.Int64Counter
}

// NewTokenCounters registers "<prefix>.token.input", "<prefix>.token.output"
// and "<prefix>.retry" on meter.
func NewTokenCounters(meter metric.Meter, prefix string) TokenCounters {
	input, _ := meter.Int64Counter(prefix + ".token.input")
	output, _ := meter.Int64Counter(prefix + ".token.output")
	retry, _ := meter.Int64Counter(prefix + ".retry")
	return TokenCounters{Input: input, Output: output, Retry: retry}
}

// GenerateTextResponse calls model and concatenates the text of every
// candidate part. Failed calls are retried until MaxRetries attempts have
// been made; a cancelled context is never retried.
func GenerateTextResponse(
	ctx context.Context,
	counters TokenCounters,
	tryCount int,
	model ContentGenerator,
	content []*genai.Content) (string, error) {

	resp, err := model.GenerateContent(ctx, content)
	if err != nil {
		if tryCount < MaxRetries && ctx.Err() == nil {
			if counters.Retry != nil {
				counters.Retry.Add(ctx, 1)
			}
			return GenerateTextResponse(ctx, counters, tryCount+1, model, content)
		}
		return "", err
	}

	if resp.UsageMetadata != nil {
		if counters.Input != nil {
			counters.Input.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
		}
		if counters.Output != nil {
			counters.Output.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
		}
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
	}
	return sb.String(), nil
}

// NewTextPart wraps a prompt as a single user content.
func NewTextPart(in string) []*genai.Content {
	return genai.Text(in)
}
