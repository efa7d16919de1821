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

// Package cloud holds configuration loading and the clients for the external
// services the pipeline talks to.
package cloud

import "google.golang.org/genai"

// DefaultSafetySettings relaxes the content filters so descriptive summaries
// of arbitrary videos are not blocked before the trend search runs.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
}

// Relay is the temporary public file host used to hand the video to the
// analyzer.
type Relay struct {
	Endpoint string `toml:"endpoint"`
}

// VideoAnalysis configures the video understanding service.
type VideoAnalysis struct {
	BaseURL             string `toml:"base_url"`
	SummaryType         string `toml:"summary_type"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	// PollTimeoutSeconds bounds the wait for a parsed video. Zero waits forever.
	PollTimeoutSeconds int `toml:"poll_timeout_seconds"`
}

// PromptTemplates are text/template sources rendered before each model call.
type PromptTemplates struct {
	TrendPrompt string `toml:"trend"`
}

// Trend selects the agent model used for the trend search and the time window
// the prompt asks about.
type Trend struct {
	Agent  string `toml:"agent"`
	Window string `toml:"window"`
}

// VertexAiLLMModel describes one generative model and its generation settings.
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`
	SystemInstructions string  `toml:"system_instructions"`
	Temperature        float32 `toml:"temperature"`
	TopP               float32 `toml:"top_p"`
	TopK               float32 `toml:"top_k"`
	MaxTokens          int32   `toml:"max_tokens"`
	OutputFormat       string  `toml:"output_format"`
	EnableGoogle       bool    `toml:"enable_google"`
	RateLimit          int     `toml:"rate_limit"` // requests per second, 0 for unlimited
}

// Catalog configures the music catalog lookup.
type Catalog struct {
	BaseURL              string `toml:"base_url"`
	RequiredURLSubstring string `toml:"required_url_substring"`
	Market               string `toml:"market"`
}

// AudioSource is one yt-dlp search backend. Sources are tried in the order
// they are configured.
type AudioSource struct {
	Name         string `toml:"name"`
	SearchPrefix string `toml:"search_prefix"`
	ExtractAudio bool   `toml:"extract_audio"`
	AudioFormat  string `toml:"audio_format"`
	AudioQuality string `toml:"audio_quality"`
}

// Audio configures the downloader.
type Audio struct {
	Binary         string        `toml:"binary"`
	TimeoutSeconds int           `toml:"timeout_seconds"`
	Sources        []AudioSource `toml:"sources"`
}

// Storage configures where finished artifacts are published. With an empty
// ArtifactBucket the files are served from the local download directory.
type Storage struct {
	ArtifactBucket    string `toml:"artifact_bucket"`
	ObjectPrefix      string `toml:"object_prefix"`
	SignedURLMinutes  int    `toml:"signed_url_minutes"`
	DownloadRoutePath string `toml:"download_route"`
}

// Progress configures the optional Pub/Sub fan-out of run notifications.
type Progress struct {
	Topic string `toml:"topic"`
}

// Config is the whole service configuration, decoded from the layered TOML files.
type Config struct {
	Application struct {
		Name                      string `toml:"name"`
		GoogleProjectId           string `toml:"google_project_id"`
		GoogleLocation            string `toml:"location"`
		SignerServiceAccountEmail string `toml:"signer_service_account_email"`
		UploadDir                 string `toml:"upload_dir"`
		DownloadDir               string `toml:"download_dir"`
		Port                      string `toml:"port"`
		LogLevel                  string `toml:"log_level"`
		LogFile                   string `toml:"log_file"`
		HTTPTimeoutSeconds        int    `toml:"http_timeout_seconds"`
		MaxUploadMB               int64  `toml:"max_upload_mb"`
	} `toml:"application"`
	Relay           Relay                       `toml:"relay"`
	VideoAnalysis   VideoAnalysis               `toml:"video_analysis"`
	PromptTemplates PromptTemplates             `toml:"prompt_templates"`
	Trend           Trend                       `toml:"trend"`
	AgentModels     map[string]VertexAiLLMModel `toml:"agent_models"`
	Catalog         Catalog                     `toml:"catalog"`
	Audio           Audio                       `toml:"audio"`
	Storage         Storage                     `toml:"storage"`
	Progress        Progress                    `toml:"progress"`
}

// NewConfig returns a config with the defaults every deployment shares. The
// TOML layers are decoded on top of it.
func NewConfig() *Config {
	c := &Config{
		AgentModels: make(map[string]VertexAiLLMModel),
	}
	c.Application.Name = "trend-audio-matcher"
	c.Application.UploadDir = "uploads"
	c.Application.DownloadDir = "downloads"
	c.Application.Port = "8000"
	c.Application.LogLevel = "info"
	c.Application.HTTPTimeoutSeconds = 60
	c.Application.MaxUploadMB = 200
	c.Relay.Endpoint = "https://tmpfiles.org/api/v1/upload"
	c.VideoAnalysis.BaseURL = "https://api.memories.ai/serve/api/v1"
	c.VideoAnalysis.SummaryType = "TOPIC"
	c.VideoAnalysis.PollIntervalSeconds = 3
	c.Trend.Agent = "trend-search"
	c.Trend.Window = "July 2025 till now"
	c.Catalog.BaseURL = "https://api.spotify.com/v1/"
	c.Catalog.RequiredURLSubstring = "open.spotify.com"
	c.Audio.Binary = "yt-dlp"
	c.Storage.SignedURLMinutes = 60
	c.Storage.DownloadRoutePath = "/downloads"
	return c
}

// TrendAgent returns the model settings for the trend search, falling back to
// gemini-2.5-flash with Google Search grounding when none is configured.
func (c *Config) TrendAgent() VertexAiLLMModel {
	if m, ok := c.AgentModels[c.Trend.Agent]; ok && m.Model != "" {
		return m
	}
	return VertexAiLLMModel{Model: "gemini-2.5-flash", EnableGoogle: true, RateLimit: 1}
}

// DefaultAudioSources is used when no [[audio.sources]] are configured: a
// video site search converted to 192K mp3, then a SoundCloud search kept in
// its native format.
func DefaultAudioSources() []AudioSource {
	return []AudioSource{
		{Name: "youtube", SearchPrefix: "ytsearch1:", ExtractAudio: true, AudioFormat: "mp3", AudioQuality: "192K"},
		{Name: "soundcloud", SearchPrefix: "scsearch1:"},
	}
}
