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

// RelayUpload hands the uploaded video to the relay host so the analyzer can
// fetch it by URL.
//
// Input: *model.UploadJob. Output: *model.RelayLink.
type RelayUpload struct {
	cor.BaseCommand
	relay Relay
}

func NewRelayUpload(name string, relay Relay) *RelayUpload {
	return &RelayUpload{BaseCommand: *cor.NewBaseCommand(name), relay: relay}
}

func (r *RelayUpload) Execute(context cor.Context) {
	job, ok := input[*model.UploadJob](context, r)
	if !ok {
		return
	}
	emit(context, r.GetName(), "Step 1: Uploading video to temporary host...")

	link, err := r.relay.Upload(context.GetContext(), job.LocalFilePath)
	if err != nil {
		fail(context, r, err)
		return
	}
	emit(context, r.GetName(), "Step 1: Video hosted at %s", link.PublicURL)
	succeed(context, r, link)
}
