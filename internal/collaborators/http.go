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

// Package collaborators contains the adapters for the external services a run
// depends on: the relay host, the video analyzer, the trend search model, the
// music catalog and the audio downloader. Every adapter classifies its
// failures with the error classes in the model package.
package collaborators

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jaycherian/trend-audio-matcher/internal/core/model"
)

// maxResponseBytes caps how much of a collaborator reply is read.
const maxResponseBytes = 4 << 20

// statusError is returned for non-200 replies. It wraps ErrCollaborator.
type statusError struct {
	StatusCode int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: http status %d", model.ErrCollaborator, e.StatusCode)
}

func (e *statusError) Unwrap() error {
	return model.ErrCollaborator
}

// doJSON sends req and decodes a 200 reply into target. Transport and read
// failures wrap ErrTransport, other status codes return a *statusError and an
// undecodable body wraps ErrParse.
func doJSON(client *http.Client, req *http.Request, target interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", model.ErrTransport, req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", model.ErrTransport, req.URL.Redacted(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return &statusError{StatusCode: resp.StatusCode}
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%w: decoding reply from %s: %v", model.ErrParse, req.URL.Redacted(), err)
	}
	return nil
}
