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

package model

import (
	"errors"
)

// Error classes shared by every collaborator adapter. Adapters wrap one of
// these with %w so the pipeline can classify a failure without knowing which
// service produced it.
var (
	ErrTransport              = errors.New("service unreachable")
	ErrCollaborator           = errors.New("service reported failure")
	ErrParse                  = errors.New("unparseable response")
	ErrNotFound               = errors.New("no result")
	ErrUnrecognizedCatalogURL = errors.New("unrecognized catalog link")
	ErrNotConnected           = errors.New("catalog not connected")
	ErrTimeout                = errors.New("timed out")
	ErrInvalidInput           = errors.New("invalid input")
)

// Pipeline stage names. They double as command names and error keys.
const (
	StageIngress         = "ingress"
	StageRelayUpload     = "relay-upload"
	StageAnalysisSubmit  = "analysis-submit"
	StageAnalysisPoll    = "analysis-poll"
	StageSummaryFetch    = "summary-fetch"
	StageTrendMatch      = "trend-match"
	StageCatalogResolve  = "catalog-resolve"
	StageAudioResolve    = "audio-resolve"
	StageArtifactPublish = "artifact-publish"
	StagePipeline        = "pipeline"
)

var reasons = []error{
	ErrTimeout,
	ErrNotFound,
	ErrUnrecognizedCatalogURL,
	ErrNotConnected,
	ErrParse,
	ErrTransport,
	ErrCollaborator,
	ErrInvalidInput,
}

// PipelineError is the caller-facing failure of a run. Error() is safe to
// show to a caller; the wrapped cause is for logs only.
type PipelineError struct {
	Stage  string
	Reason string
	Err    error
}

// NewPipelineError classifies err and attaches it to stage. An error that is
// already a PipelineError is returned as is.
func NewPipelineError(stage string, err error) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	return &PipelineError{Stage: stage, Reason: ReasonFor(err), Err: err}
}

// ReasonFor returns the fixed phrase of the first error class err belongs to.
func ReasonFor(err error) string {
	for _, class := range reasons {
		if errors.Is(err, class) {
			return class.Error()
		}
	}
	return "internal failure"
}

func (e *PipelineError) Error() string {
	return e.Stage + ": " + e.Reason
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
