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

package cloud

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"cloud.google.com/go/pubsub"
	"github.com/jaycherian/trend-audio-matcher/internal/core/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ProgressPublisher copies run notifications to a Pub/Sub topic so other
// systems can follow a run. Publishing is fire and forget.
type ProgressPublisher struct {
	topic *pubsub.Topic
}

func NewProgressPublisher(pubsubClient *pubsub.Client, topicID string) *ProgressPublisher {
	return &ProgressPublisher{topic: pubsubClient.Topic(topicID)}
}

// Publish sends progress as JSON with run_id, seq, stage and terminal
// attributes. Failures are logged and otherwise ignored.
func (p *ProgressPublisher) Publish(ctx context.Context, progress model.Progress) {
	_, span := otel.Tracer("progress-publisher").Start(ctx, "publish-progress")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", progress.RunID), attribute.Int("seq", progress.Seq))

	data, err := json.Marshal(progress)
	if err != nil {
		slog.WarnContext(ctx, "failed to encode progress", "run_id", progress.RunID, "error", err)
		return
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"run_id":   progress.RunID,
			"seq":      strconv.Itoa(progress.Seq),
			"stage":    progress.Stage,
			"terminal": strconv.FormatBool(progress.Terminal),
		},
	})
	go func() {
		if _, err := result.Get(ctx); err != nil {
			slog.Warn("failed to publish progress", "run_id", progress.RunID, "seq", progress.Seq, "error", err)
		}
	}()
}

// Stop flushes pending messages and stops the topic's background goroutines.
func (p *ProgressPublisher) Stop() {
	p.topic.Stop()
}
