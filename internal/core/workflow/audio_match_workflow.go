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

// Package workflow assembles the pipeline commands into runnable chains.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/jaycherian/trend-audio-matcher/internal/cloud"
	"github.com/jaycherian/trend-audio-matcher/internal/collaborators"
	"github.com/jaycherian/trend-audio-matcher/internal/core/commands"
	"github.com/jaycherian/trend-audio-matcher/internal/core/cor"
	"github.com/jaycherian/trend-audio-matcher/internal/core/model"
	"go.opentelemetry.io/otel"
)

// Analyzer is the video analyzer as the workflow sees it.
type Analyzer interface {
	commands.AnalysisSubmitter
	commands.AnalysisWaiter
	commands.SummaryFetcher
}

// Collaborators are the adapters one pipeline run calls, in stage order.
type Collaborators struct {
	Relay     commands.Relay
	Analyzer  Analyzer
	Trend     commands.TrendPicker
	Catalog   commands.TrackResolver
	Audio     commands.AudioResolver
	Publisher commands.ArtifactPublisher
}

// ProgressSink receives a copy of every notification of every run.
type ProgressSink interface {
	Publish(ctx context.Context, progress model.Progress)
}

// AudioMatchWorkflow turns an uploaded video into a trending audio file:
// relay, analyze, summarize, pick a trend, resolve it in the catalog,
// download the audio and publish it. The first failing stage ends the run.
type AudioMatchWorkflow struct {
	cor.BaseCommand
	collaborators Collaborators
	sink          ProgressSink
	chain         cor.Chain
}

func (w *AudioMatchWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

func (w *AudioMatchWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewRelayUpload(model.StageRelayUpload, w.collaborators.Relay))
	out.AddCommand(commands.NewAnalysisSubmit(model.StageAnalysisSubmit, w.collaborators.Analyzer))
	out.AddCommand(commands.NewAnalysisPoll(model.StageAnalysisPoll, w.collaborators.Analyzer))
	out.AddCommand(commands.NewSummaryFetch(model.StageSummaryFetch, w.collaborators.Analyzer))
	out.AddCommand(commands.NewTrendMatch(model.StageTrendMatch, w.collaborators.Trend))
	out.AddCommand(commands.NewCatalogResolve(model.StageCatalogResolve, w.collaborators.Catalog))
	out.AddCommand(commands.NewAudioResolve(model.StageAudioResolve, w.collaborators.Audio))
	out.AddCommand(commands.NewArtifactPublish(model.StageArtifactPublish, w.collaborators.Publisher))
	w.chain = out
}

// NewAudioMatchWorkflow builds the workflow over c. sink may be nil.
func NewAudioMatchWorkflow(c Collaborators, sink ProgressSink) *AudioMatchWorkflow {
	w := &AudioMatchWorkflow{
		BaseCommand:   *cor.NewBaseCommand("audio-match-pipeline"),
		collaborators: c,
		sink:          sink,
	}
	w.initializeChain()
	return w
}

// NewAudioMatchPipeline wires the production collaborators from config and
// the service clients. The catalog falls back to NotConnectedCatalog when
// its credentials are missing.
func NewAudioMatchPipeline(
	ctx context.Context,
	config *cloud.Config,
	serviceClients *cloud.ServiceClients,
	secrets *cloud.Secrets,
	publisher commands.ArtifactPublisher) (*AudioMatchWorkflow, error) {

	httpClient := serviceClients.HTTPClient

	analyzer := collaborators.NewVideoAnalyzer(
		config.VideoAnalysis.BaseURL,
		secrets.MemoriesAPIKey,
		httpClient,
		collaborators.WithPollInterval(time.Duration(config.VideoAnalysis.PollIntervalSeconds)*time.Second),
		collaborators.WithPollTimeout(time.Duration(config.VideoAnalysis.PollTimeoutSeconds)*time.Second),
		collaborators.WithSummaryType(config.VideoAnalysis.SummaryType),
	)

	agent, ok := serviceClients.AgentModels[config.Trend.Agent]
	if !ok {
		return nil, fmt.Errorf("no agent model registered for %q", config.Trend.Agent)
	}
	trend, err := collaborators.NewTrendSearcher(
		agent,
		config.PromptTemplates.TrendPrompt,
		config.Trend.Window,
		cloud.NewTokenCounters(otel.Meter(cor.MeterName), model.StageTrendMatch),
	)
	if err != nil {
		return nil, err
	}

	var catalog collaborators.Catalog = collaborators.NotConnectedCatalog{}
	if secrets.CatalogConfigured() {
		catalog = collaborators.NewSpotifyCatalog(ctx, secrets.SpotifyClientID, secrets.SpotifyClientSecret,
			config.Catalog.BaseURL, config.Catalog.RequiredURLSubstring).WithMarket(config.Catalog.Market)
	}

	audio := collaborators.NewAudioDownloader(
		config.Audio.Binary,
		config.Application.DownloadDir,
		time.Duration(config.Audio.TimeoutSeconds)*time.Second,
		config.Audio.Sources,
		catalog,
		collaborators.ExecRunner{},
	)

	var sink ProgressSink
	if serviceClients.ProgressPublisher != nil {
		sink = serviceClients.ProgressPublisher
	}

	return NewAudioMatchWorkflow(Collaborators{
		Relay:     collaborators.NewRelayClient(config.Relay.Endpoint, httpClient),
		Analyzer:  analyzer,
		Trend:     trend,
		Catalog:   catalog,
		Audio:     audio,
		Publisher: publisher,
	}, sink), nil
}
