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

// Package model holds the values that flow between pipeline stages. Each
// stage consumes the value produced by the stage before it, so these types
// double as the contract between commands.
package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UploadJob is a video accepted by the ingress layer and stored on local disk.
type UploadJob struct {
	ID               string    `json:"id"`
	LocalFilePath    string    `json:"local_file_path"`
	OriginalFilename string    `json:"original_filename"`
	MIMEType         string    `json:"mime_type,omitempty"`
	Size             int64     `json:"size"`
	ReceivedAt       time.Time `json:"received_at"`
}

// NewUploadJob creates a job with a random ID stamped with the current time.
func NewUploadJob(localFilePath, originalFilename string) *UploadJob {
	return &UploadJob{
		ID:               uuid.NewString(),
		LocalFilePath:    localFilePath,
		OriginalFilename: originalFilename,
		ReceivedAt:       time.Now(),
	}
}

// RelayLink is the public direct-download URL the relay hands back.
type RelayLink struct {
	PublicURL string `json:"public_url"`
}

// AnalysisStatus is the processing state the video analyzer reports.
type AnalysisStatus string

const (
	AnalysisPending AnalysisStatus = "PENDING"
	AnalysisParsed  AnalysisStatus = "PARSE"
	AnalysisFailed  AnalysisStatus = "FAIL"
)

// AnalysisStatusOf maps a raw analyzer status onto the three states the
// pipeline cares about. Anything other than PARSE or FAIL is still pending.
func AnalysisStatusOf(raw string) AnalysisStatus {
	switch AnalysisStatus(strings.TrimSpace(raw)) {
	case AnalysisParsed:
		return AnalysisParsed
	case AnalysisFailed:
		return AnalysisFailed
	default:
		return AnalysisPending
	}
}

// AnalysisHandle identifies a video inside the analyzer.
type AnalysisHandle struct {
	VideoNo string         `json:"video_no"`
	Status  AnalysisStatus `json:"status"`
	Polls   int            `json:"polls"`
}

// SummaryText is the natural language "vibe" description of a video.
type SummaryText string

// TrendPick is the song the trend search settled on.
type TrendPick struct {
	SongName          string `json:"songName"`
	TrendingStartTime string `json:"trendingStartTime,omitempty"`
	Reasoning         string `json:"reasoning,omitempty"`
}

// UnmarshalJSON accepts both camelCase and snake_case keys; the model is not
// consistent about which it emits.
func (t *TrendPick) UnmarshalJSON(data []byte) error {
	var raw struct {
		SongName           string `json:"songName"`
		SongNameSnake      string `json:"song_name"`
		TrendingStart      string `json:"trendingStartTime"`
		TrendingStartSnake string `json:"trending_start_time"`
		Reasoning          string `json:"reasoning"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.SongName = firstNonEmpty(raw.SongName, raw.SongNameSnake)
	t.TrendingStartTime = firstNonEmpty(raw.TrendingStart, raw.TrendingStartSnake)
	t.Reasoning = raw.Reasoning
	return nil
}

// ResolvedTrack is the catalog outcome for a TrendPick. When the catalog is
// not connected, CatalogURL is empty and Query carries the raw song name.
type ResolvedTrack struct {
	SongName   string `json:"song_name"`
	CatalogURL string `json:"catalog_url,omitempty"`
	Query      string `json:"query"`
	Connected  bool   `json:"connected"`
}

// DownloadInput is the value handed to the audio stage: the catalog link
// when one exists, otherwise the free-text query.
func (r *ResolvedTrack) DownloadInput() string {
	if r.Connected && r.CatalogURL != "" {
		return r.CatalogURL
	}
	return r.Query
}

// AudioArtifact is a downloaded audio file and, once published, the path or
// URL it is served from.
type AudioArtifact struct {
	LocalFilePath string `json:"local_file_path"`
	FileName      string `json:"file_name"`
	Source        string `json:"source"`
	ServedPath    string `json:"served_path,omitempty"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
