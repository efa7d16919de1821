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

// AnalysisSubmit registers the relayed video with the analyzer.
//
// Input: *model.RelayLink. Output: *model.AnalysisHandle (pending).
type AnalysisSubmit struct {
	cor.BaseCommand
	analyzer AnalysisSubmitter
}

func NewAnalysisSubmit(name string, analyzer AnalysisSubmitter) *AnalysisSubmit {
	return &AnalysisSubmit{BaseCommand: *cor.NewBaseCommand(name), analyzer: analyzer}
}

func (a *AnalysisSubmit) Execute(context cor.Context) {
	link, ok := input[*model.RelayLink](context, a)
	if !ok {
		return
	}
	emit(context, a.GetName(), "Step 2: Sending video to the analyzer...")

	videoNo, err := a.analyzer.Submit(context.GetContext(), link.PublicURL)
	if err != nil {
		fail(context, a, err)
		return
	}
	emit(context, a.GetName(), "Step 2: Analyzer accepted video %s", videoNo)
	succeed(context, a, &model.AnalysisHandle{VideoNo: videoNo, Status: model.AnalysisPending})
}
