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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jaycherian/trend-audio-matcher/internal/core/model"
)

const (
	DefaultAnalyzerBaseURL = "https://api.memories.ai/serve/api/v1"
	DefaultPollInterval    = 3 * time.Second
	DefaultSummaryType     = "TOPIC"
)

// VideoAnalyzer talks to the memories.ai video understanding API: submit a
// link, poll until the video is parsed, then fetch a topical summary.
type VideoAnalyzer struct {
	baseURL      string
	apiKey       string
	summaryType  string
	pollInterval time.Duration
	pollTimeout  time.Duration
	timer        backoff.Timer
	client       *http.Client
}

// AnalyzerOption customizes a VideoAnalyzer.
type AnalyzerOption func(*VideoAnalyzer)

// WithPollInterval sets the fixed delay between status polls.
func WithPollInterval(d time.Duration) AnalyzerOption {
	return func(a *VideoAnalyzer) {
		if d > 0 {
			a.pollInterval = d
		}
	}
}

// WithPollTimeout bounds WaitForReady. Zero waits until the analyzer settles.
func WithPollTimeout(d time.Duration) AnalyzerOption {
	return func(a *VideoAnalyzer) { a.pollTimeout = d }
}

// WithPollTimer replaces the timer used between polls.
func WithPollTimer(t backoff.Timer) AnalyzerOption {
	return func(a *VideoAnalyzer) { a.timer = t }
}

// WithSummaryType sets the summary flavor requested from the analyzer.
func WithSummaryType(summaryType string) AnalyzerOption {
	return func(a *VideoAnalyzer) {
		if summaryType != "" {
			a.summaryType = summaryType
		}
	}
}

// NewVideoAnalyzer authenticates every request with apiKey. An empty baseURL
// means DefaultAnalyzerBaseURL and a nil client means http.DefaultClient.
func NewVideoAnalyzer(baseURL, apiKey string, client *http.Client, opts ...AnalyzerOption) *VideoAnalyzer {
	if baseURL == "" {
		baseURL = DefaultAnalyzerBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	a := &VideoAnalyzer{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		apiKey:       apiKey,
		summaryType:  DefaultSummaryType,
		pollInterval: DefaultPollInterval,
		client:       client,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type submitReply struct {
	Success bool `json:"success"`
	Data    struct {
		VideoNo string `json:"videoNo"`
	} `json:"data"`
}

// Submit registers a public video link and returns the analyzer's video id.
func (a *VideoAnalyzer) Submit(ctx context.Context, publicURL string) (string, error) {
	form := url.Values{"url": {publicURL}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint("upload_url"), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", a.apiKey)

	var reply submitReply
	if err := doJSON(a.client, req, &reply); err != nil {
		return "", err
	}
	if !reply.Success || reply.Data.VideoNo == "" {
		return "", fmt.Errorf("%w: submit was not accepted", model.ErrCollaborator)
	}
	return reply.Data.VideoNo, nil
}

type listReply struct {
	Data struct {
		Videos []struct {
			VideoNo string `json:"video_no"`
			Status  string `json:"status"`
		} `json:"videos"`
	} `json:"data"`
}

// PollOnce asks for the current status of videoNo. A non-200 reply or an
// empty video list counts as pending; only transport and decode failures are
// returned as errors.
func (a *VideoAnalyzer) PollOnce(ctx context.Context, videoNo string) (model.AnalysisStatus, error) {
	payload, err := json.Marshal(map[string]string{"video_no": videoNo})
	if err != nil {
		return model.AnalysisPending, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint("list_videos"), bytes.NewReader(payload))
	if err != nil {
		return model.AnalysisPending, fmt.Errorf("failed to build poll request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", a.apiKey)

	var reply listReply
	err = doJSON(a.client, req, &reply)
	var se *statusError
	switch {
	case errors.As(err, &se):
		slog.DebugContext(ctx, "analyzer status request rejected, still waiting", "video_no", videoNo, "status_code", se.StatusCode)
		return model.AnalysisPending, nil
	case err != nil:
		return model.AnalysisPending, err
	}
	if len(reply.Data.Videos) == 0 {
		return model.AnalysisPending, nil
	}
	return model.AnalysisStatusOf(reply.Data.Videos[0].Status), nil
}

// PollTick describes one poll of WaitForReady.
type PollTick struct {
	Attempt int
	Status  model.AnalysisStatus
}

// errStillPending is the retryable outcome of a poll.
var errStillPending = errors.New("video still processing")

// WaitForReady polls at a fixed interval until the video is parsed. A FAIL
// status or a transport failure stops the wait at once; there is no retry on
// errors. onTick, when set, is called after every poll.
func (a *VideoAnalyzer) WaitForReady(ctx context.Context, videoNo string, onTick func(PollTick)) (*model.AnalysisHandle, error) {
	if a.pollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.pollTimeout)
		defer cancel()
	}

	handle := &model.AnalysisHandle{VideoNo: videoNo, Status: model.AnalysisPending}
	operation := func() error {
		status, err := a.PollOnce(ctx, videoNo)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(fmt.Errorf("%w: waiting for video %s", model.ErrTimeout, videoNo))
			}
			return backoff.Permanent(err)
		}
		handle.Polls++
		handle.Status = status
		if onTick != nil {
			onTick(PollTick{Attempt: handle.Polls, Status: status})
		}
		switch status {
		case model.AnalysisParsed:
			return nil
		case model.AnalysisFailed:
			return backoff.Permanent(fmt.Errorf("%w: analyzer could not process video %s", model.ErrCollaborator, videoNo))
		default:
			return errStillPending
		}
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(a.pollInterval), ctx)
	err := backoff.RetryNotifyWithTimer(operation, policy, nil, a.timer)
	if err != nil {
		if errors.Is(err, errStillPending) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return handle, fmt.Errorf("%w: waiting for video %s", model.ErrTimeout, videoNo)
		}
		return handle, err
	}
	return handle, nil
}

type summaryReply struct {
	Success *bool `json:"success"`
	Data    struct {
		Summary string `json:"summary"`
	} `json:"data"`
}

// FetchSummary returns the topical summary of a parsed video. A reply without
// a summary is a not-found failure.
func (a *VideoAnalyzer) FetchSummary(ctx context.Context, videoNo string) (model.SummaryText, error) {
	q := url.Values{"video_no": {videoNo}, "type": {a.summaryType}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint("generate_summary")+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build summary request: %w", err)
	}
	req.Header.Set("Authorization", a.apiKey)

	var reply summaryReply
	if err := doJSON(a.client, req, &reply); err != nil {
		return "", err
	}
	if reply.Success != nil && !*reply.Success {
		return "", fmt.Errorf("%w: summary request was not accepted", model.ErrCollaborator)
	}
	summary := strings.TrimSpace(reply.Data.Summary)
	if summary == "" {
		return "", fmt.Errorf("%w: analyzer returned no summary for video %s", model.ErrNotFound, videoNo)
	}
	return model.SummaryText(summary), nil
}

func (a *VideoAnalyzer) endpoint(name string) string {
	return a.baseURL + "/" + name
}
