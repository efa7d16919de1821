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

// SummaryFetch retrieves the topical summary of a parsed video.
//
// Input: *model.AnalysisHandle. Output: model.SummaryText.
type SummaryFetch struct {
	cor.BaseCommand
	analyzer SummaryFetcher
}

func NewSummaryFetch(name string, analyzer SummaryFetcher) *SummaryFetch {
	return &SummaryFetch{BaseCommand: *cor.NewBaseCommand(name), analyzer: analyzer}
}

func (s *SummaryFetch) Execute(context cor.Context) {
	handle, ok := input[*model.AnalysisHandle](context, s)
	if !ok {
		return
	}
	emit(context, s.GetName(), "Step 4: Fetching the video summary...")

	summary, err := s.analyzer.FetchSummary(context.GetContext(), handle.VideoNo)
	if err != nil {
		fail(context, s, err)
		return
	}
	emit(context, s.GetName(), "Step 4: Video vibe: %s", summary)
	succeed(context, s, summary)
}
