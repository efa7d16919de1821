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

package workflow

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jaycherian/trend-audio-matcher/internal/core/commands"
	"github.com/jaycherian/trend-audio-matcher/internal/core/cor"
	"github.com/jaycherian/trend-audio-matcher/internal/core/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var errNoArtifact = errors.New("run finished without an artifact")

// Run is one execution of the workflow for one upload. Nothing happens until
// Notifications is iterated.
type Run struct {
	ID       string
	ctx      context.Context
	job      *model.UploadJob
	workflow *AudioMatchWorkflow
	started  atomic.Bool
}

// Start prepares a run for job. The run is detached from ctx cancellation so
// a caller that goes away does not abort calls already in flight; values and
// trace context are kept.
func (w *AudioMatchWorkflow) Start(ctx context.Context, job *model.UploadJob) *Run {
	return &Run{
		ID:       uuid.NewString(),
		ctx:      context.WithoutCancel(ctx),
		job:      job,
		workflow: w,
	}
}

// Run executes a run to completion and returns its artifact or the
// *model.PipelineError of the stage that failed.
func (w *AudioMatchWorkflow) Run(ctx context.Context, job *model.UploadJob) (*model.AudioArtifact, error) {
	var last model.Progress
	for p := range w.Start(ctx, job).Notifications() {
		last = p
	}
	if last.Success {
		return last.Artifact, nil
	}
	if last.Err != nil {
		return nil, last.Err
	}
	return nil, model.NewPipelineError(model.StagePipeline, errNoArtifact)
}

// Notifications executes the run while yielding its progress. The sequence
// is finite and ends with exactly one terminal notification. It can be
// iterated once; later iterations yield nothing. If the consumer stops early
// the run still completes, and its remaining notifications only reach the
// progress sink.
func (r *Run) Notifications() iter.Seq[model.Progress] {
	return func(yield func(model.Progress) bool) {
		if !r.started.CompareAndSwap(false, true) {
			return
		}

		ctx, span := r.workflow.GetTracer().Start(r.ctx, "audio-match-run")
		defer span.End()
		span.SetAttributes(attribute.String("run_id", r.ID), attribute.String("upload_id", r.job.ID))

		emitter := &runEmitter{ctx: ctx, runID: r.ID, yield: yield, open: true, sink: r.workflow.sink}
		chainCtx := cor.NewBaseContextWith(ctx)
		chainCtx.Add(cor.CtxIn, r.job)
		chainCtx.Add(commands.ProgressEmitterParam, model.ProgressEmitter(emitter))

		slog.InfoContext(ctx, "run started", "run_id", r.ID, "upload", r.job.OriginalFilename)
		r.execute(chainCtx)

		terminal := terminalOf(chainCtx)
		if terminal.Success {
			span.SetStatus(codes.Ok, "")
			slog.InfoContext(ctx, "run succeeded", "run_id", r.ID, "served_path", terminal.Artifact.ServedPath)
		} else {
			span.SetStatus(codes.Error, terminal.Error)
			slog.WarnContext(ctx, "run failed", "run_id", r.ID, "error", terminal.Error, "cause", terminal.Err.Err)
		}
		emitter.send(terminal)
	}
}

// execute runs the chain, turning a panic in a stage into a stage failure.
func (r *Run) execute(chainCtx cor.Context) {
	defer func() {
		if p := recover(); p != nil {
			chainCtx.AddError(model.StagePipeline, fmt.Errorf("panic: %v", p))
		}
	}()
	r.workflow.Execute(chainCtx)
}

func terminalOf(chainCtx cor.Context) model.Progress {
	if stage, err, failed := chainCtx.FirstError(); failed {
		pe := model.NewPipelineError(stage, err)
		return model.Progress{Stage: pe.Stage, Terminal: true, Error: pe.Error(), Err: pe}
	}
	artifact, ok := chainCtx.Get(commands.ArtifactParam).(*model.AudioArtifact)
	if !ok || artifact == nil {
		pe := model.NewPipelineError(model.StagePipeline, errNoArtifact)
		return model.Progress{Stage: pe.Stage, Terminal: true, Error: pe.Error(), Err: pe}
	}
	return model.Progress{
		Stage:    model.StageArtifactPublish,
		Message:  "Done",
		Terminal: true,
		Success:  true,
		Artifact: artifact,
	}
}

// runEmitter numbers notifications, copies them to the sink and yields them
// to the consumer until it stops listening.
type runEmitter struct {
	ctx   context.Context
	runID string
	seq   int
	yield func(model.Progress) bool
	open  bool
	sink  ProgressSink
}

func (e *runEmitter) Emit(stage, message string) {
	e.send(model.Progress{Stage: stage, Message: message})
}

func (e *runEmitter) send(p model.Progress) {
	e.seq++
	p.RunID = e.runID
	p.Seq = e.seq
	p.Timestamp = time.Now()
	slog.DebugContext(e.ctx, "run progress", "run_id", e.runID, "seq", p.Seq, "stage", p.Stage, "message", p.Line())
	if e.sink != nil {
		e.sink.Publish(e.ctx, p)
	}
	if e.open && !e.yield(p) {
		e.open = false
	}
}
