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

package collaborators_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jaycherian/trend-audio-matcher/internal/collaborators"
	"github.com/jaycherian/trend-audio-matcher/internal/core/model"
	test "github.com/jaycherian/trend-audio-matcher/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	info *collaborators.TrackInfo
	err  error
	urls []string
}

func (s *stubCatalog) Resolve(context.Context, string) (*model.ResolvedTrack, error) {
	return nil, errors.New("not used")
}

func (s *stubCatalog) LookupTrack(_ context.Context, url string) (*collaborators.TrackInfo, error) {
	s.urls = append(s.urls, url)
	return s.info, s.err
}

func searchTerm(args []string) string {
	return args[len(args)-1]
}

func TestAudioResolvePrimarySource(t *testing.T) {
	dir := t.TempDir()
	runner := &test.FakeRunner{Handle: func(args []string) (string, error) {
		return test.ProduceFile(args, "mp3")
	}}
	downloader := collaborators.NewAudioDownloader("yt-dlp", dir, 0, nil, nil, runner)

	artifact, err := downloader.Resolve(context.Background(), "Artist - Song")
	require.NoError(t, err)

	assert.Equal(t, "youtube", artifact.Source)
	assert.Equal(t, "Artist - Song.mp3", artifact.FileName)
	assert.Equal(t, filepath.Join(dir, "Artist - Song.mp3"), artifact.LocalFilePath)
	require.Equal(t, 1, runner.CallCount())
	args := runner.Calls[0][1:]
	assert.Equal(t, "ytsearch1:Artist - Song", searchTerm(args))
	assert.True(t, test.HasArg(args, "-x"))
	assert.True(t, test.HasArg(args, "192K"))
	assert.True(t, test.HasArg(args, "--no-playlist"))
}

func TestAudioResolveFallsBackToSecondSource(t *testing.T) {
	runner := &test.FakeRunner{Handle: func(args []string) (string, error) {
		if strings.HasPrefix(searchTerm(args), "ytsearch1:") {
			return "", errors.New("exit status 1")
		}
		return test.ProduceFile(args, "opus")
	}}
	downloader := collaborators.NewAudioDownloader("yt-dlp", t.TempDir(), 0, nil, nil, runner)

	artifact, err := downloader.Resolve(context.Background(), "Artist - Song")
	require.NoError(t, err)

	assert.Equal(t, "soundcloud", artifact.Source)
	assert.Equal(t, "Artist - Song.opus", artifact.FileName)
	require.Equal(t, 2, runner.CallCount())
	assert.Equal(t, "scsearch1:Artist - Song", searchTerm(runner.Calls[1]))
	assert.False(t, test.HasArg(runner.Calls[1], "-x"))
}

func TestAudioResolveAllSourcesFail(t *testing.T) {
	runner := &test.FakeRunner{}
	downloader := collaborators.NewAudioDownloader("yt-dlp", t.TempDir(), 0, nil, nil, runner)

	artifact, err := downloader.Resolve(context.Background(), "Artist - Song")
	assert.Nil(t, artifact)
	assert.True(t, errors.Is(err, model.ErrCollaborator))
	assert.Equal(t, 2, runner.CallCount())
}

func TestAudioResolveReportedFileMissing(t *testing.T) {
	runner := &test.FakeRunner{Handle: func(args []string) (string, error) {
		return "/nowhere/ghost.mp3\n", nil
	}}
	downloader := collaborators.NewAudioDownloader("yt-dlp", t.TempDir(), 0, nil, nil, runner)

	_, err := downloader.Resolve(context.Background(), "Artist - Song")
	assert.True(t, errors.Is(err, model.ErrCollaborator))
}

func TestAudioResolveCatalogLink(t *testing.T) {
	catalog := &stubCatalog{info: &collaborators.TrackInfo{Title: "Song: Remix?", Artists: []string{"Artist"}}}
	runner := &test.FakeRunner{Handle: func(args []string) (string, error) {
		return test.ProduceFile(args, "mp3")
	}}
	downloader := collaborators.NewAudioDownloader("yt-dlp", t.TempDir(), 0, nil, catalog, runner)

	artifact, err := downloader.Resolve(context.Background(), "https://open.spotify.com/track/42")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://open.spotify.com/track/42"}, catalog.urls)
	assert.Equal(t, "ytsearch1:Artist - Song: Remix? official audio", searchTerm(runner.Calls[0]))
	assert.Equal(t, "Song Remix.mp3", artifact.FileName)
}

func TestAudioResolveCatalogLookupFailure(t *testing.T) {
	catalog := &stubCatalog{err: model.ErrNotFound}
	runner := &test.FakeRunner{}
	downloader := collaborators.NewAudioDownloader("yt-dlp", t.TempDir(), 0, nil, catalog, runner)

	_, err := downloader.Resolve(context.Background(), "https://open.spotify.com/track/42")
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.Equal(t, 0, runner.CallCount())
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		`AC/DC: "Back" <In> Black?`: "ACDC Back In Black",
		`a\b*c|d`:                   "abcd",
		"  .hidden.  ":              "hidden",
		`???`:                       "track",
		"tab\there":                 "tabhere",
		"Plain Name":                "Plain Name",
	}
	for in, want := range cases {
		assert.Equal(t, want, collaborators.SanitizeFilename(in), "input %q", in)
	}
}
