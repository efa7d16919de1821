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
	"fmt"
	"log/slog"
	"net/http"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"google.golang.org/genai"
)

// ServiceClients holds every external client the service uses. Clients whose
// feature is not configured stay nil.
type ServiceClients struct {
	HTTPClient        *http.Client
	GenAIClient       *genai.Client
	StorageClient     *storage.Client
	IAMClient         *credentials.IamCredentialsClient
	PubsubClient      *pubsub.Client
	ProgressPublisher *ProgressPublisher
	AgentModels       map[string]*QuotaAwareGenerativeAIModel
}

// Close releases every client that was opened.
func (c *ServiceClients) Close() {
	if c.ProgressPublisher != nil {
		c.ProgressPublisher.Stop()
	}
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.IAMClient != nil {
		_ = c.IAMClient.Close()
	}
}

// NewCloudServiceClients creates the clients required by config. The genai
// client uses the Gemini API when a key is present and Vertex AI otherwise.
// Storage, IAM and Pub/Sub clients are only created when the artifact bucket
// or the progress topic is configured.
func NewCloudServiceClients(ctx context.Context, config *Config, secrets *Secrets) (cloud *ServiceClients, err error) {
	cloud = &ServiceClients{
		HTTPClient:  &http.Client{Timeout: time.Duration(config.Application.HTTPTimeoutSeconds) * time.Second},
		AgentModels: make(map[string]*QuotaAwareGenerativeAIModel),
	}
	defer func() {
		if err != nil {
			cloud.Close()
		}
	}()

	genaiConfig := &genai.ClientConfig{
		Project:  config.Application.GoogleProjectId,
		Location: config.Application.GoogleLocation,
		Backend:  genai.BackendVertexAI,
	}
	if secrets.GeminiAPIKey != "" {
		genaiConfig = &genai.ClientConfig{APIKey: secrets.GeminiAPIKey, Backend: genai.BackendGeminiAPI}
	}
	gc, err := genai.NewClient(ctx, genaiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	cloud.GenAIClient = gc

	agents := config.AgentModels
	if _, ok := agents[config.Trend.Agent]; !ok {
		agents = map[string]VertexAiLLMModel{config.Trend.Agent: config.TrendAgent()}
		for k, v := range config.AgentModels {
			agents[k] = v
		}
	}
	for name, values := range agents {
		slog.Debug("registering agent model", "agent", name, "model", values.Model)
		cloud.AgentModels[name] = NewQuotaAwareModel(NewGenerateContentConfig(values), values.Model, gc.Models, values.RateLimit)
	}

	if config.Storage.ArtifactBucket != "" {
		sc, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		cloud.StorageClient = sc

		if config.Application.SignerServiceAccountEmail != "" {
			ic, err := credentials.NewIamCredentialsClient(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to create iam credentials client: %w", err)
			}
			cloud.IAMClient = ic
		}
	}

	if config.Progress.Topic != "" {
		pc, err := pubsub.NewClient(ctx, config.Application.GoogleProjectId)
		if err != nil {
			return nil, fmt.Errorf("failed to create pubsub client: %w", err)
		}
		cloud.PubsubClient = pc
		cloud.ProgressPublisher = NewProgressPublisher(pc, config.Progress.Topic)
	}

	return cloud, nil
}

// NewGenerateContentConfig translates model settings into a genai request
// config. Google Search grounding is attached when EnableGoogle is set.
func NewGenerateContentConfig(values VertexAiLLMModel) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SafetySettings:   DefaultSafetySettings,
		ResponseMIMEType: values.OutputFormat,
		MaxOutputTokens:  values.MaxTokens,
		Tools:            []*genai.Tool{},
	}
	if values.Temperature > 0 {
		cfg.Temperature = genai.Ptr[float32](values.Temperature)
	}
	if values.TopP > 0 {
		cfg.TopP = genai.Ptr[float32](values.TopP)
	}
	if values.TopK > 0 {
		cfg.TopK = genai.Ptr[float32](values.TopK)
	}
	if values.SystemInstructions != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}}
	}
	if values.EnableGoogle {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	return cfg
}
