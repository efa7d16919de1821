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

// ArtifactParam is the context key of the published artifact.
const ArtifactParam = "__ARTIFACT__"

// ArtifactPublish makes the downloaded file reachable by the caller and
// records where it is served from.
//
// Input: *model.AudioArtifact. Output: *model.AudioArtifact with ServedPath.
type ArtifactPublish struct {
	cor.BaseCommand
	publisher ArtifactPublisher
}

func NewArtifactPublish(name string, publisher ArtifactPublisher) *ArtifactPublish {
	out := &ArtifactPublish{BaseCommand: *cor.NewBaseCommand(name), publisher: publisher}
	out.OutputParamName = ArtifactParam
	return out
}

func (a *ArtifactPublish) Execute(context cor.Context) {
	artifact, ok := input[*model.AudioArtifact](context, a)
	if !ok {
		return
	}
	emit(context, a.GetName(), "Step 8: Publishing %s...", artifact.FileName)

	published, err := a.publisher.Publish(context.GetContext(), artifact)
	if err != nil {
		fail(context, a, err)
		return
	}
	succeed(context, a, published)
	context.Add(cor.CtxOut, published)
}
