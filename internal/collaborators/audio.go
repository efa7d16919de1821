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

package collaborators

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/jaycherian/trend-audio-matcher/internal/cloud"
	"github.com/jaycherian/trend-audio-matcher/internal/core/model"
)

// CommandResult is the captured output of an external command.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner runs an external program to completion.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name and captures its output. A non-zero exit is returned as
// an error alongside the result.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	result := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	return result, err
}

// AudioDownloader fetches a playable audio file with yt-dlp, trying each
// configured source in order until one produces a file.
type AudioDownloader struct {
	binary    string
	outputDir string
	timeout   time.Duration
	sources   []cloud.AudioSource
	catalog   Catalog
	runner    CommandRunner
}

// NewAudioDownloader uses cloud.DefaultAudioSources when sources is empty and
// ExecRunner when runner is nil.
func NewAudioDownloader(binary, outputDir string, timeout time.Duration, sources []cloud.AudioSource, catalog Catalog, runner CommandRunner) *AudioDownloader {
	if binary == "" {
		binary = "yt-dlp"
	}
	if len(sources) == 0 {
		sources = cloud.DefaultAudioSources()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if catalog == nil {
		catalog = NotConnectedCatalog{}
	}
	return &AudioDownloader{
		binary:    binary,
		outputDir: outputDir,
		timeout:   timeout,
		sources:   sources,
		catalog:   catalog,
		runner:    runner,
	}
}

// Resolve downloads audio for a catalog link or a plain track name. A link is
// turned into "<artist> - <title> official audio" through the catalog and the
// file is named after the title; a plain name is both query and file name.
func (d *AudioDownloader) Resolve(ctx context.Context, trackOrURL string) (*model.AudioArtifact, error) {
	trackOrURL = strings.TrimSpace(trackOrURL)
	if trackOrURL == "" {
		return nil, fmt.Errorf("%w: empty track", model.ErrInvalidInput)
	}

	query, stem := trackOrURL, trackOrURL
	if isLink(trackOrURL) {
		info, err := d.catalog.LookupTrack(ctx, trackOrURL)
		if err != nil {
			return nil, err
		}
		query, stem = info.SearchQuery(), info.Title
	}
	fileStem := SanitizeFilename(stem)

	if err := os.MkdirAll(d.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	var errs []error
	for _, source := range d.sources {
		artifact, err := d.download(ctx, source, query, fileStem)
		if err == nil {
			return artifact, nil
		}
		slog.WarnContext(ctx, "audio source failed", "source", source.Name, "query", query, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", source.Name, err))
	}
	return nil, fmt.Errorf("%w: every audio source failed: %w", model.ErrCollaborator, errors.Join(errs...))
}

// DownloadArgs builds the yt-dlp arguments for one source.
func DownloadArgs(source cloud.AudioSource, query, outputTemplate string) []string {
	args := []string{
		"-f", "bestaudio/best",
		"--no-playlist",
		"--no-progress",
		"--print", "after_move:filepath",
		"-o", outputTemplate,
	}
	if source.ExtractAudio {
		format := source.AudioFormat
		if format == "" {
			format = "mp3"
		}
		args = append(args, "-x", "--audio-format", format)
		if source.AudioQuality != "" {
			args = append(args, "--audio-quality", source.AudioQuality)
		}
	}
	return append(args, source.SearchPrefix+query)
}

func (d *AudioDownloader) download(ctx context.Context, source cloud.AudioSource, query, fileStem string) (*model.AudioArtifact, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	template := filepath.Join(d.outputDir, fileStem+".%(ext)s")
	result, err := d.runner.Run(ctx, d.binary, DownloadArgs(source, query, template)...)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp exited with code %d: %v: %s", result.ExitCode, err, lastLine(result.Stderr))
	}

	produced := lastLine(result.Stdout)
	if produced == "" && source.ExtractAudio {
		produced = filepath.Join(d.outputDir, fileStem+"."+formatOrDefault(source.AudioFormat))
	}
	if produced == "" {
		return nil, errors.New("yt-dlp did not report an output file")
	}
	if _, err := os.Stat(produced); err != nil {
		return nil, fmt.Errorf("downloaded file is missing: %w", err)
	}
	return &model.AudioArtifact{
		LocalFilePath: produced,
		FileName:      filepath.Base(produced),
		Source:        source.Name,
	}, nil
}

// SanitizeFilename removes characters that are unsafe in file names, along
// with control characters and surrounding spaces and dots. It never returns
// an empty string.
func SanitizeFilename(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`\/*?:"<>|`, r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	cleaned = strings.Trim(cleaned, " .")
	if cleaned == "" {
		return "track"
	}
	return cleaned
}

func isLink(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

func formatOrDefault(format string) string {
	if format == "" {
		return "mp3"
	}
	return format
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
