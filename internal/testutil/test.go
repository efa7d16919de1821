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

// Package test provides configuration, fixtures and fakes shared by the
// package test suites.
package test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jaycherian/trend-audio-matcher/internal/cloud"
	"github.com/jaycherian/trend-audio-matcher/internal/collaborators"
	"google.golang.org/genai"
)

// StateManager caches the test configuration for the whole test binary.
type StateManager struct {
	config *cloud.Config
}

var state = &StateManager{}

// HandleErr fails the test when err is set.
func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// SetupOS points the configuration loader at the repository configs and the
// test runtime. Test binaries run in their package directory, so the configs
// directory is searched for upwards.
func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, ConfigDir())
	if err != nil {
		return err
	}
	return os.Setenv(cloud.EnvConfigRuntime, "test")
}

// ConfigDir returns the nearest "configs" directory above the working
// directory, or "configs" when there is none.
func ConfigDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "configs"
	}
	for {
		candidate := filepath.Join(dir, "configs")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "configs"
		}
		dir = parent
	}
}

// GetConfig loads the test configuration once.
func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			log.Fatalf("failed to load test configuration: %v\n", err)
		}
		state.config = config
	}
	return state.config
}

// WriteTempVideo writes a small fake video into a test temp dir.
func WriteTempVideo(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("\x00\x00\x00\x18ftypmp42fake video bytes"), 0o644); err != nil {
		t.Fatalf("failed to write temp video: %v", err)
	}
	return p
}

// RelaySuccessBody is a relay reply carrying pageURL.
func RelaySuccessBody(pageURL string) string {
	return fmt.Sprintf(`{"status":"success","data":{"url":%q}}`, pageURL)
}

// SubmitSuccessBody is an analyzer submit reply carrying videoNo.
func SubmitSuccessBody(videoNo string) string {
	return fmt.Sprintf(`{"code":"0000","success":true,"data":{"videoNo":%q}}`, videoNo)
}

// ListVideosBody is an analyzer list reply with a single video in status.
func ListVideosBody(videoNo, status string) string {
	return fmt.Sprintf(`{"code":"0000","data":{"videos":[{"video_no":%q,"video_name":"clip","status":%q}]}}`, videoNo, status)
}

// SummaryBody is an analyzer summary reply.
func SummaryBody(summary string) string {
	return fmt.Sprintf(`{"success":true,"data":{"summary":%q}}`, summary)
}

// FakeTimer satisfies backoff.Timer and fires immediately, recording every
// requested delay.
type FakeTimer struct {
	mu     sync.Mutex
	c      chan time.Time
	starts []time.Duration
}

func NewFakeTimer() *FakeTimer {
	return &FakeTimer{c: make(chan time.Time, 1)}
}

func (t *FakeTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.starts = append(t.starts, d)
	t.mu.Unlock()
	t.c <- time.Now()
}

func (t *FakeTimer) Stop() {}

func (t *FakeTimer) C() <-chan time.Time {
	return t.c
}

// Starts returns the delays requested so far.
func (t *FakeTimer) Starts() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.starts...)
}

// FakeGenerator returns canned model replies in order and records prompts.
// Once the replies run out the last one is repeated.
type FakeGenerator struct {
	mu      sync.Mutex
	Replies []string
	Errs    []error
	Prompts []string
}

func (g *FakeGenerator) GenerateContent(_ context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var prompt strings.Builder
	for _, c := range content {
		for _, p := range c.Parts {
			prompt.WriteString(p.Text)
		}
	}
	g.Prompts = append(g.Prompts, prompt.String())
	call := len(g.Prompts) - 1
	if call < len(g.Errs) && g.Errs[call] != nil {
		return nil, g.Errs[call]
	}
	reply := ""
	if len(g.Replies) > 0 {
		reply = g.Replies[min(call, len(g.Replies)-1)]
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: reply}}}}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 5,
		},
	}, nil
}

// FakeRunner stands in for yt-dlp. Handle decides the outcome of each call;
// without a handler every call fails.
type FakeRunner struct {
	mu     sync.Mutex
	Calls  [][]string
	Handle func(args []string) (stdout string, err error)
}

func (r *FakeRunner) Run(_ context.Context, name string, args ...string) (collaborators.CommandResult, error) {
	r.mu.Lock()
	r.Calls = append(r.Calls, append([]string{name}, args...))
	r.mu.Unlock()
	if r.Handle == nil {
		return collaborators.CommandResult{Stderr: "no handler", ExitCode: 1}, fmt.Errorf("exit status 1")
	}
	out, err := r.Handle(args)
	if err != nil {
		return collaborators.CommandResult{Stdout: out, Stderr: err.Error(), ExitCode: 1}, err
	}
	return collaborators.CommandResult{Stdout: out}, nil
}

// CallCount returns how many times the runner was invoked.
func (r *FakeRunner) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}

// ProduceFile emulates a successful download: it writes a file named after
// the "-o" template with ext and returns its path as yt-dlp would print it.
func ProduceFile(args []string, ext string) (string, error) {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-o" {
			p := strings.ReplaceAll(args[i+1], "%(ext)s", ext)
			if err := os.WriteFile(p, []byte("ID3 fake audio"), 0o644); err != nil {
				return "", err
			}
			return p + "\n", nil
		}
	}
	return "", fmt.Errorf("no output template")
}

// HasArg reports whether args contains value.
func HasArg(args []string, value string) bool {
	for _, a := range args {
		if a == value {
			return true
		}
	}
	return false
}
