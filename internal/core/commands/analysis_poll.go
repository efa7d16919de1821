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
	"log/slog"

	"github.com/jaycherian/trend-audio-matcher/internal/collaborators"
	"github.com/jaycherian/trend-audio-matcher/internal/core/cor"
	"github.com/jaycherian/trend-audio-matcher/internal/core/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AnalysisPoll waits until the analyzer has parsed the video, emitting one
// progress message per status check.
//
// Input: *model.AnalysisHandle. Output: *model.AnalysisHandle (parsed).
type AnalysisPoll struct {
	cor.BaseCommand
	analyzer    AnalysisWaiter
	tickCounter metric.Int64Counter
}

func NewAnalysisPoll(name string, analyzer AnalysisWaiter) *AnalysisPoll {
	out := &AnalysisPoll{BaseCommand: *cor.NewBaseCommand(name), analyzer: analyzer}
	out.tickCounter, _ = out.GetMeter().Int64Counter(name + ".ticks")
	return out
}

func (a *AnalysisPoll) Execute(context cor.Context) {
	handle, ok := input[*model.AnalysisHandle](context, a)
	if !ok {
		return
	}
	ctx := context.GetContext()
	emit(context, a.GetName(), "Step 3: Waiting for the analyzer to watch the video...")

	ready, err := a.analyzer.WaitForReady(ctx, handle.VideoNo, func(tick collaborators.PollTick) {
		if a.tickCounter != nil {
			a.tickCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(tick.Status))))
		}
		slog.DebugContext(ctx, "analysis poll", "video_no", handle.VideoNo, "attempt", tick.Attempt, "status", tick.Status)
		emit(context, a.GetName(), "Step 3: Analyzer status %s (check %d)", tick.Status, tick.Attempt)
	})
	if err != nil {
		fail(context, a, err)
		return
	}
	succeed(context, a, ready)
}
