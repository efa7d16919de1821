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

package commands

import (
	"github.com/jaycherian/trend-audio-matcher/internal/core/cor"
	"github.com/jaycherian/trend-audio-matcher/internal/core/model"
)

// AudioResolve downloads a playable audio file for the resolved track.
//
// Input: *model.ResolvedTrack. Output: *model.AudioArtifact.
type AudioResolve struct {
	cor.BaseCommand
	audio AudioResolver
}

func NewAudioResolve(name string, audio AudioResolver) *AudioResolve {
	return &AudioResolve{BaseCommand: *cor.NewBaseCommand(name), audio: audio}
}

func (a *AudioResolve) Execute(context cor.Context) {
	track, ok := input[*model.ResolvedTrack](context, a)
	if !ok {
		return
	}
	emit(context, a.GetName(), "Step 7: Downloading audio for %s...", track.DownloadInput())

	artifact, err := a.audio.Resolve(context.GetContext(), track.DownloadInput())
	if err != nil {
		fail(context, a, err)
		return
	}
	emit(context, a.GetName(), "Step 7: Downloaded %s from %s", artifact.FileName, artifact.Source)
	succeed(context, a, artifact)
}
