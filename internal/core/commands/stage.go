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

// Package commands holds one cor.Command per pipeline stage. Each command
// reads the value left by the stage before it, calls its collaborator and
// leaves either its output or a *model.PipelineError in the context.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jaycherian/trend-audio-matcher/internal/collaborators"
	"github.com/jaycherian/trend-audio-matcher/internal/core/cor"
	"github.com/jaycherian/trend-audio-matcher/internal/core/model"
)

// ProgressEmitterParam is the context key of the run's model.ProgressEmitter.
const ProgressEmitterParam = "__PROGRESS__"

type Relay interface {
	Upload(ctx context.Context, localFilePath string) (*model.RelayLink, error)
}

type AnalysisSubmitter interface {
	Submit(ctx context.Context, publicURL string) (string, error)
}

type AnalysisWaiter interface {
	WaitForReady(ctx context.Context, videoNo string, onTick func(collaborators.PollTick)) (*model.AnalysisHandle, error)
}

type SummaryFetcher interface {
	FetchSummary(ctx context.Context, videoNo string) (model.SummaryText, error)
}

type TrendPicker interface {
	Pick(ctx context.Context, summary model.SummaryText) (*model.TrendPick, error)
}

type TrackResolver interface {
	Resolve(ctx context.Context, songName string) (*model.ResolvedTrack, error)
}

type AudioResolver interface {
	Resolve(ctx context.Context, trackOrURL string) (*model.AudioArtifact, error)
}

type ArtifactPublisher interface {
	Publish(ctx context.Context, artifact *model.AudioArtifact) (*model.AudioArtifact, error)
}

// emit sends a progress message for stage if the run has an emitter.
func emit(context cor.Context, stage, format string, args ...interface{}) {
	if e, ok := context.Get(ProgressEmitterParam).(model.ProgressEmitter); ok && e != nil {
		e.Emit(stage, fmt.Sprintf(format, args...))
	}
}

// fail records err as the stage failure of c.
func fail(context cor.Context, c cor.Command, err error) {
	c.GetErrorCounter().Add(context.GetContext(), 1)
	pe := model.NewPipelineError(c.GetName(), err)
	slog.ErrorContext(context.GetContext(), "pipeline stage failed",
		"stage", c.GetName(), "reason", pe.Reason, "error", err)
	context.AddError(c.GetName(), pe)
}

// succeed stores out as the output of c.
func succeed(context cor.Context, c cor.Command, out interface{}) {
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), out)
}

// input fetches the typed input of c, recording a failure when it is missing
// or of the wrong type.
func input[T any](context cor.Context, c cor.Command) (T, bool) {
	v, ok := context.Get(c.GetInputParam()).(T)
	if !ok {
		fail(context, c, fmt.Errorf("%w: unexpected input %T", model.ErrInvalidInput, context.Get(c.GetInputParam())))
	}
	return v, ok
}
