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
	"time"
)

// Prefixes of the terminal line in a streamed run.
const (
	ReadyMarker = "DOWNLOAD_READY: "
	ErrorMarker = "ERROR: "
)

// Progress is one notification of a run. Seq starts at 1 and increases by one
// per notification; exactly one notification per run has Terminal set and it
// is always the last.
type Progress struct {
	RunID     string         `json:"run_id"`
	Seq       int            `json:"seq"`
	Stage     string         `json:"stage"`
	Message   string         `json:"message"`
	Terminal  bool           `json:"terminal"`
	Success   bool           `json:"success"`
	Artifact  *AudioArtifact `json:"artifact,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`

	Err *PipelineError `json:"-"`
}

// Line renders the notification as a single line of the progress stream.
func (p Progress) Line() string {
	if !p.Terminal {
		return p.Message
	}
	if p.Success && p.Artifact != nil {
		return ReadyMarker + p.Artifact.ServedPath
	}
	return ErrorMarker + p.Error
}

// ProgressEmitter receives stage messages from running commands.
type ProgressEmitter interface {
	Emit(stage, message string)
}
