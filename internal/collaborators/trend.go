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

package collaborators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/jaycherian/trend-audio-matcher/internal/cloud"
	"github.com/jaycherian/trend-audio-matcher/internal/core/model"
)

// DefaultTrendPrompt is used when no prompt template is configured.
const DefaultTrendPrompt = `1. Search for CURRENT trending Instagram Reels/TikTok songs ({{ .Window }}) that match this specific vibe: "{{ .Summary }}".
2. Pick the SINGLE best song match from the top lists of the Instagram story add-music feature.
3. Identify the "Trending Start Time" (the part of the song everyone uses).

OUTPUT FORMAT (Strict JSON, no other text):
{"songName": "Artist - Song Title", "trendingStartTime": "0:XX", "reasoning": "Why it fits"}`

// DefaultTrendWindow is the time window the prompt asks about when none is
// configured.
const DefaultTrendWindow = "July 2025 till now"

// TrendSearcher asks a search-grounded generative model for the trending song
// that best matches a video summary.
type TrendSearcher struct {
	model    cloud.ContentGenerator
	prompt   *template.Template
	window   string
	counters cloud.TokenCounters
}

type trendPromptData struct {
	Summary string
	Window  string
}

// NewTrendSearcher parses promptTemplate (DefaultTrendPrompt when empty).
func NewTrendSearcher(generator cloud.ContentGenerator, promptTemplate, window string, counters cloud.TokenCounters) (*TrendSearcher, error) {
	if strings.TrimSpace(promptTemplate) == "" {
		promptTemplate = DefaultTrendPrompt
	}
	if window == "" {
		window = DefaultTrendWindow
	}
	tmpl, err := template.New("trend").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trend prompt template: %w", err)
	}
	return &TrendSearcher{model: generator, prompt: tmpl, window: window, counters: counters}, nil
}

// Pick renders the prompt for summary, calls the model and parses its reply.
func (t *TrendSearcher) Pick(ctx context.Context, summary model.SummaryText) (*model.TrendPick, error) {
	var sb strings.Builder
	if err := t.prompt.Execute(&sb, trendPromptData{Summary: string(summary), Window: t.window}); err != nil {
		return nil, fmt.Errorf("failed to render trend prompt: %w", err)
	}

	reply, err := cloud.GenerateTextResponse(ctx, t.counters, 1, t.model, cloud.NewTextPart(sb.String()))
	if err != nil {
		return nil, fmt.Errorf("%w: trend search: %v", model.ErrTransport, err)
	}
	slog.DebugContext(ctx, "trend search reply", "reply", reply)
	return ParseTrendPick(reply)
}

// ParseTrendPick extracts a TrendPick from a model reply. The reply may be a
// bare JSON object, an object inside a ``` or ```json fence, or an object
// surrounded by prose. An unterminated fence, malformed JSON or an empty
// songName is a parse failure.
func ParseTrendPick(reply string) (*model.TrendPick, error) {
	text := strings.TrimSpace(reply)
	if text == "" {
		return nil, fmt.Errorf("%w: empty reply", model.ErrParse)
	}

	var pick model.TrendPick
	if err := json.Unmarshal([]byte(text), &pick); err != nil {
		if strings.Contains(text, "```") {
			inner, err := fencedBody(text)
			if err != nil {
				return nil, err
			}
			text = inner
		}
		found, err := firstObject(text)
		if err != nil {
			return nil, err
		}
		pick = *found
	}

	pick.SongName = strings.TrimSpace(pick.SongName)
	if pick.SongName == "" {
		return nil, fmt.Errorf("%w: reply has no song name", model.ErrParse)
	}
	return &pick, nil
}

// firstObject decodes the first complete JSON object in text. Decoding stops
// at the end of that object, so trailing prose is ignored.
func firstObject(text string) (*model.TrendPick, error) {
	lastErr := errors.New("reply is not a json object")
	for start := strings.Index(text, "{"); start >= 0; {
		var pick model.TrendPick
		err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&pick)
		if err == nil {
			return &pick, nil
		}
		lastErr = err
		next := strings.Index(text[start+1:], "{")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, fmt.Errorf("%w: %v", model.ErrParse, lastErr)
}

// fencedBody returns the text between the first fence and the next one,
// without a leading language tag.
func fencedBody(text string) (string, error) {
	_, after, _ := strings.Cut(text, "```")
	body, _, closed := strings.Cut(after, "```")
	if !closed {
		return "", fmt.Errorf("%w: unterminated code fence", model.ErrParse)
	}
	body = strings.TrimLeft(body, " \t")
	if first, rest, found := strings.Cut(body, "\n"); found && !strings.HasPrefix(strings.TrimSpace(first), "{") {
		body = rest
	} else if !found {
		body = strings.TrimPrefix(body, "json")
	}
	return strings.TrimSpace(body), nil
}
