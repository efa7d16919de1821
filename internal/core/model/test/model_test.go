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

package model_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jaycherian/trend-audio-matcher/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func TestNewUploadJob(t *testing.T) {
	job := model.NewUploadJob("/tmp/uploads/a.mp4", "a.mp4")
	other := model.NewUploadJob("/tmp/uploads/a.mp4", "a.mp4")

	assert.NotEmpty(t, job.ID)
	assert.NotEqual(t, job.ID, other.ID)
	assert.Equal(t, "a.mp4", job.OriginalFilename)
	assert.WithinDuration(t, time.Now(), job.ReceivedAt, time.Second)
}

func TestAnalysisStatusOf(t *testing.T) {
	assert.Equal(t, model.AnalysisParsed, model.AnalysisStatusOf("PARSE"))
	assert.Equal(t, model.AnalysisFailed, model.AnalysisStatusOf("FAIL"))
	assert.Equal(t, model.AnalysisPending, model.AnalysisStatusOf("UNPARSE"))
	assert.Equal(t, model.AnalysisPending, model.AnalysisStatusOf(""))
}

func TestTrendPickAcceptsBothKeyStyles(t *testing.T) {
	var camel model.TrendPick
	err := json.Unmarshal([]byte(`{"songName":"A - B","trendingStartTime":"0:15","reasoning":"fits"}`), &camel)
	assert.NoError(t, err)
	assert.Equal(t, "A - B", camel.SongName)
	assert.Equal(t, "0:15", camel.TrendingStartTime)

	var snake model.TrendPick
	err = json.Unmarshal([]byte(`{"song_name":"C - D","trending_start_time":"0:30"}`), &snake)
	assert.NoError(t, err)
	assert.Equal(t, "C - D", snake.SongName)
	assert.Equal(t, "0:30", snake.TrendingStartTime)
}

func TestResolvedTrackDownloadInput(t *testing.T) {
	connected := &model.ResolvedTrack{SongName: "A - B", CatalogURL: "https://open.spotify.com/track/1", Query: "A - B", Connected: true}
	assert.Equal(t, "https://open.spotify.com/track/1", connected.DownloadInput())

	offline := &model.ResolvedTrack{SongName: "A - B", Query: "A - B"}
	assert.Equal(t, "A - B", offline.DownloadInput())
}

func TestPipelineErrorMessage(t *testing.T) {
	cause := fmt.Errorf("%w: status 502", model.ErrCollaborator)
	pe := model.NewPipelineError(model.StageRelayUpload, cause)

	assert.Equal(t, "relay-upload: service reported failure", pe.Error())
	assert.True(t, errors.Is(pe, model.ErrCollaborator))
	assert.NotContains(t, pe.Error(), "502")

	again := model.NewPipelineError(model.StagePipeline, pe)
	assert.Same(t, pe, again)

	unknown := model.NewPipelineError(model.StageAudioResolve, errors.New("boom"))
	assert.Equal(t, "audio-resolve: internal failure", unknown.Error())
}

func TestProgressLine(t *testing.T) {
	step := model.Progress{Message: "Step 1: uploading"}
	assert.Equal(t, "Step 1: uploading", step.Line())

	ready := model.Progress{Terminal: true, Success: true, Artifact: &model.AudioArtifact{ServedPath: "/downloads/track.mp3"}}
	assert.Equal(t, "DOWNLOAD_READY: /downloads/track.mp3", ready.Line())

	failed := model.Progress{Terminal: true, Error: "analysis-poll: service reported failure"}
	assert.Equal(t, "ERROR: analysis-poll: service reported failure", failed.Line())
}
