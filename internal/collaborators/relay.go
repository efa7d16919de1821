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
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/jaycherian/trend-audio-matcher/internal/core/model"
)

// DefaultRelayEndpoint is the public tmpfiles upload API.
const DefaultRelayEndpoint = "https://tmpfiles.org/api/v1/upload"

// RelayClient uploads a local file to a temporary public host and returns a
// link the analyzer can fetch directly.
type RelayClient struct {
	endpoint string
	client   *http.Client
}

// NewRelayClient posts to endpoint (the tmpfiles.org API when empty) with
// client, or http.DefaultClient when nil.
func NewRelayClient(endpoint string, client *http.Client) *RelayClient {
	if endpoint == "" {
		endpoint = DefaultRelayEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &RelayClient{endpoint: endpoint, client: client}
}

type relayReply struct {
	Status string `json:"status"`
	Data   struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Upload posts the file as the multipart field "file". Anything but a 200
// reply with status "success" and a URL is a failure.
func (r *RelayClient) Upload(ctx context.Context, localFilePath string) (*model.RelayLink, error) {
	f, err := os.Open(localFilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening upload: %v", model.ErrInvalidInput, err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(filePartHeader(filepath.Base(localFilePath), sniffMIME(f)))
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("%w: reading upload: %v", model.ErrInvalidInput, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build relay request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var reply relayReply
	if err := doJSON(r.client, req, &reply); err != nil {
		return nil, err
	}
	if reply.Status != "success" || reply.Data.URL == "" {
		return nil, fmt.Errorf("%w: relay status %q", model.ErrCollaborator, reply.Status)
	}
	return &model.RelayLink{PublicURL: DirectDownloadURL(reply.Data.URL)}, nil
}

// DirectDownloadURL turns a tmpfiles page link into its direct download form.
func DirectDownloadURL(pageURL string) string {
	return strings.ReplaceAll(pageURL, "tmpfiles.org/", "tmpfiles.org/dl/")
}

func filePartHeader(fileName, contentType string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(fileName)))
	h.Set("Content-Type", contentType)
	return h
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// sniffMIME reads the file header to guess its type and rewinds the file.
func sniffMIME(f *os.File) string {
	head := make([]byte, 261)
	n, _ := io.ReadFull(f, head)
	_, _ = f.Seek(0, io.SeekStart)
	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return "application/octet-stream"
	}
	return kind.MIME.Value
}
