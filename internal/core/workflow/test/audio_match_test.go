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

package workflow_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jaycherian/trend-audio-matcher/internal/collaborators"
	"github.com/jaycherian/trend-audio-matcher/internal/core/model"
	test "github.com/jaycherian/trend-audio-matcher/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunEndToEnd(t *testing.T) {
	h := newHarness(t)

	artifact, err := h.workflow(t).Run(context.Background(), h.job(t))
	require.NoError(t, err)

	assert.Equal(t, "Song.mp3", artifact.FileName)
	assert.Equal(t, "/downloads/Song.mp3", artifact.ServedPath)
	data, err := os.ReadFile(artifact.LocalFilePath)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	assert.Equal(t, int32(3), atomic.LoadInt32(&h.pollCalls))
	assert.Contains(t, h.generator.Prompts[0], "beach sunset, chill")
	assert.Equal(t, "ytsearch1:Artist - Song official audio", h.runner.Calls[0][len(h.runner.Calls[0])-1])
}

func TestNotificationsOrderingAndTerminal(t *testing.T) {
	h := newHarness(t)
	run := h.workflow(t).Start(context.Background(), h.job(t))

	var got []model.Progress
	for p := range run.Notifications() {
		got = append(got, p)
	}

	require.NotEmpty(t, got)
	for i, p := range got {
		assert.Equal(t, i+1, p.Seq)
		assert.Equal(t, run.ID, p.RunID)
		assert.Equal(t, i == len(got)-1, p.Terminal, "only the last notification is terminal")
	}
	last := got[len(got)-1]
	assert.True(t, last.Success)
	assert.Equal(t, "DOWNLOAD_READY: /downloads/Song.mp3", last.Line())
	assert.True(t, strings.HasPrefix(got[0].Message, "Step 1"))

	var ticks int
	for _, p := range got {
		if p.Stage == model.StageAnalysisPoll && strings.Contains(p.Message, "check") {
			ticks++
		}
	}
	assert.Equal(t, 3, ticks)

	assert.Len(t, h.sink.all(), len(got))
}

func TestNotificationsAreSingleUse(t *testing.T) {
	h := newHarness(t)
	run := h.workflow(t).Start(context.Background(), h.job(t))

	first := 0
	for range run.Notifications() {
		first++
	}
	second := 0
	for range run.Notifications() {
		second++
	}
	assert.Greater(t, first, 0)
	assert.Equal(t, 0, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.submitCalls))
}

func TestEarlyStopStillCompletesRun(t *testing.T) {
	h := newHarness(t)
	run := h.workflow(t).Start(context.Background(), h.job(t))

	for range run.Notifications() {
		break
	}

	items := h.sink.all()
	require.NotEmpty(t, items)
	assert.True(t, items[len(items)-1].Terminal)
	assert.True(t, items[len(items)-1].Success)
}

func TestRunDetachedFromCallerCancellation(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	artifact, err := h.workflow(t).Run(ctx, h.job(t))
	require.NoError(t, err)
	assert.Equal(t, "Song.mp3", artifact.FileName)
}

func TestRelayFailureStopsRun(t *testing.T) {
	h := newHarness(t)
	h.relayStatus = http.StatusInternalServerError

	var got []model.Progress
	for p := range h.workflow(t).Start(context.Background(), h.job(t)).Notifications() {
		got = append(got, p)
	}

	last := got[len(got)-1]
	assert.True(t, last.Terminal)
	assert.False(t, last.Success)
	assert.Equal(t, "ERROR: relay-upload: service reported failure", last.Line())
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.submitCalls))
	assert.Empty(t, h.generator.Prompts)
}

func TestAnalyzerFailStopsBeforeSummary(t *testing.T) {
	h := newHarness(t)
	h.statuses = []string{"UNPARSE", "FAIL"}

	_, err := h.workflow(t).Run(context.Background(), h.job(t))

	var pe *model.PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, model.StageAnalysisPoll, pe.Stage)
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.summaryCalls))
}

func TestUnparseableTrendReply(t *testing.T) {
	h := newHarness(t)
	h.generator.Replies = []string{"I think a lo-fi beat would work."}

	_, err := h.workflow(t).Run(context.Background(), h.job(t))

	var pe *model.PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "trend-match: unparseable response", pe.Error())
	assert.Equal(t, 0, h.runner.CallCount())
}

func TestCatalogNotFoundShortCircuits(t *testing.T) {
	h := newHarness(t)
	h.catalog = &fixedCatalog{err: model.ErrNotFound}

	_, err := h.workflow(t).Run(context.Background(), h.job(t))

	var pe *model.PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, model.StageCatalogResolve, pe.Stage)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.Equal(t, 0, h.runner.CallCount())
}

func TestCatalogNotConnectedUsesSongName(t *testing.T) {
	h := newHarness(t)
	h.catalog = collaborators.NotConnectedCatalog{}

	artifact, err := h.workflow(t).Run(context.Background(), h.job(t))
	require.NoError(t, err)

	assert.Equal(t, "Artist - Song.mp3", artifact.FileName)
	assert.Equal(t, "ytsearch1:Artist - Song", h.runner.Calls[0][len(h.runner.Calls[0])-1])
}

func TestAudioFallbackSource(t *testing.T) {
	h := newHarness(t)
	h.runner.Handle = func(args []string) (string, error) {
		if strings.HasPrefix(args[len(args)-1], "ytsearch1:") {
			return "", errors.New("exit status 1")
		}
		return test.ProduceFile(args, "m4a")
	}

	artifact, err := h.workflow(t).Run(context.Background(), h.job(t))
	require.NoError(t, err)
	assert.Equal(t, "soundcloud", artifact.Source)
	assert.Equal(t, "/downloads/Song.m4a", artifact.ServedPath)
}

func TestAllAudioSourcesFail(t *testing.T) {
	h := newHarness(t)
	h.runner.Handle = nil

	_, err := h.workflow(t).Run(context.Background(), h.job(t))
	assert.EqualError(t, err, "audio-resolve: service reported failure")
}
