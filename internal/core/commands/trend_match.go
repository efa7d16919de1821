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

// TrendPickParam is the context key where the chosen song is kept for the
// rest of the run.
const TrendPickParam = "__TREND_PICK__"

// TrendMatch asks the trend search for the song that best fits the summary.
//
// Input: model.SummaryText. Output: *model.TrendPick.
type TrendMatch struct {
	cor.BaseCommand
	picker TrendPicker
}

func NewTrendMatch(name string, picker TrendPicker) *TrendMatch {
	return &TrendMatch{BaseCommand: *cor.NewBaseCommand(name), picker: picker}
}

func (t *TrendMatch) Execute(context cor.Context) {
	summary, ok := input[model.SummaryText](context, t)
	if !ok {
		return
	}
	emit(context, t.GetName(), "Step 5: Searching for a trending song that matches the vibe...")

	pick, err := t.picker.Pick(context.GetContext(), summary)
	if err != nil {
		fail(context, t, err)
		return
	}
	if pick.TrendingStartTime != "" {
		emit(context, t.GetName(), "Step 5: Trending pick: %s (trend starts at %s)", pick.SongName, pick.TrendingStartTime)
	} else {
		emit(context, t.GetName(), "Step 5: Trending pick: %s", pick.SongName)
	}
	context.Add(TrendPickParam, pick)
	succeed(context, t, pick)
}
