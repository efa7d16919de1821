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

package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/jaycherian/trend-audio-matcher/internal/collaborators"
	"github.com/jaycherian/trend-audio-matcher/internal/core/model"
)

// Ingress stores uploaded videos in the upload directory. Any bytes are
// accepted; the detected MIME type is informational only.
type Ingress struct {
	UploadDir string
	MaxBytes  int64
}

// Store copies r into a new file named "<uuid>-<sanitized name>" and returns
// the job describing it. The file is left in place when the run ends.
func (i *Ingress) Store(originalFilename string, r io.Reader) (*model.UploadJob, error) {
	if err := os.MkdirAll(i.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	base := collaborators.SanitizeFilename(filepath.Base(originalFilename))
	localPath := filepath.Join(i.UploadDir, uuid.NewString()+"-"+base)

	f, err := os.Create(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()

	src := r
	if i.MaxBytes > 0 {
		src = io.LimitReader(r, i.MaxBytes+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	if i.MaxBytes > 0 && n > i.MaxBytes {
		_ = os.Remove(localPath)
		return nil, fmt.Errorf("%w: upload exceeds %d bytes", model.ErrInvalidInput, i.MaxBytes)
	}

	job := model.NewUploadJob(localPath, originalFilename)
	job.Size = n
	job.MIMEType = detectMIME(localPath)
	return job, nil
}

func detectMIME(localPath string) string {
	kind, err := filetype.MatchFile(localPath)
	if err != nil || kind == filetype.Unknown {
		return "application/octet-stream"
	}
	return kind.MIME.Value
}
