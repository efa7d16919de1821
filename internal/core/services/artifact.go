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

// Package services holds the service objects used by the HTTP layer and the
// pipeline: ingress of uploads and publishing of finished artifacts.
package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
	"github.com/jaycherian/trend-audio-matcher/internal/cloud"
	"github.com/jaycherian/trend-audio-matcher/internal/core/model"
)

// ArtifactService makes downloaded audio reachable by the caller. Without a
// bucket the file stays in the local download directory and is served under
// DownloadRoute; with a bucket it is copied to Cloud Storage and exposed
// through a V4 signed URL.
type ArtifactService struct {
	DownloadRoute string
	StorageClient *storage.Client
	IAMClient     *credentials.IamCredentialsClient
	SignerEmail   string
	Bucket        string
	ObjectPrefix  string
	URLExpiry     time.Duration
}

// NewArtifactService configures publishing from config and the service clients.
func NewArtifactService(config *cloud.Config, clients *cloud.ServiceClients) *ArtifactService {
	return &ArtifactService{
		DownloadRoute: config.Storage.DownloadRoutePath,
		StorageClient: clients.StorageClient,
		IAMClient:     clients.IAMClient,
		SignerEmail:   config.Application.SignerServiceAccountEmail,
		Bucket:        config.Storage.ArtifactBucket,
		ObjectPrefix:  config.Storage.ObjectPrefix,
		URLExpiry:     time.Duration(config.Storage.SignedURLMinutes) * time.Minute,
	}
}

// Publish sets ServedPath on a copy of artifact.
func (s *ArtifactService) Publish(ctx context.Context, artifact *model.AudioArtifact) (*model.AudioArtifact, error) {
	out := *artifact
	if s.Bucket == "" || s.StorageClient == nil {
		out.ServedPath = LocalServedPath(s.DownloadRoute, artifact.FileName)
		return &out, nil
	}

	obj := cloud.GCSObject{Bucket: s.Bucket, Name: path.Join(s.ObjectPrefix, artifact.FileName), MIMEType: "audio/mpeg"}
	if err := s.upload(ctx, artifact.LocalFilePath, obj); err != nil {
		return nil, err
	}
	signed, err := s.GenerateSignedURL(ctx, obj, s.URLExpiry)
	if err != nil {
		return nil, err
	}
	out.ServedPath = signed
	return &out, nil
}

// LocalServedPath is the URL path a local artifact is served from.
func LocalServedPath(route, fileName string) string {
	if route == "" {
		route = "/downloads"
	}
	return path.Join(route, url.PathEscape(fileName))
}

func (s *ArtifactService) upload(ctx context.Context, localPath string, obj cloud.GCSObject) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	w := s.StorageClient.Bucket(obj.Bucket).Object(obj.Name).NewWriter(ctx)
	w.ContentType = obj.MIMEType
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("%w: writing %s: %v", model.ErrTransport, obj.URI(), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: finalizing %s: %v", model.ErrTransport, obj.URI(), err)
	}
	slog.InfoContext(ctx, "artifact uploaded", "object", obj.URI())
	return nil
}

// GenerateSignedURL signs a GET URL for obj. With a signer email the
// signature is produced by the IAM Credentials SignBlob API, which lets the
// service sign without a private key on disk.
func (s *ArtifactService) GenerateSignedURL(ctx context.Context, obj cloud.GCSObject, expires time.Duration) (string, error) {
	if expires <= 0 {
		expires = time.Hour
	}
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expires),
	}
	if s.SignerEmail != "" && s.IAMClient != nil {
		opts.GoogleAccessID = s.SignerEmail
		opts.SignBytes = func(b []byte) ([]byte, error) {
			resp, err := s.IAMClient.SignBlob(ctx, &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.SignerEmail),
				Payload: b,
			})
			if err != nil {
				return nil, err
			}
			return resp.SignedBlob, nil
		}
	}

	u, err := s.StorageClient.Bucket(obj.Bucket).SignedURL(obj.Name, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).SignedURL(%q): %w", obj.Bucket, obj.Name, err)
	}
	return u, nil
}
