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

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/jaycherian/trend-audio-matcher/internal/api"
	"github.com/jaycherian/trend-audio-matcher/internal/cloud"
	"github.com/jaycherian/trend-audio-matcher/internal/core/services"
	"github.com/jaycherian/trend-audio-matcher/internal/core/workflow"
)

type StateManager struct {
	config   *cloud.Config
	secrets  *cloud.Secrets
	cloud    *cloud.ServiceClients
	handlers *api.Handlers
}

var state = &StateManager{}

// SetupOS defaults the configuration prefix and runtime when the environment
// leaves them unset.
func SetupOS() (err error) {
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(cloud.EnvConfigRuntime) == "" {
		err = os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return err
}

func GetConfig() *cloud.Config {
	if state.config == nil {
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup os for server: %v\n", err)
		}
		config := cloud.NewConfig()
		if err = cloud.LoadConfig(config); err != nil {
			log.Fatalf("failed to load configuration: %v\n", err)
		}
		state.config = config
	}
	return state.config
}

// LogWriter is stdout, teed into the configured log file when there is one.
func LogWriter(config *cloud.Config) (io.Writer, error) {
	if config.Application.LogFile == "" {
		return os.Stdout, nil
	}
	if err := os.MkdirAll(filepath.Dir(config.Application.LogFile), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(config.Application.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return io.MultiWriter(os.Stdout, f), nil
}

func InitState(ctx context.Context) error {
	config := GetConfig()

	secrets, err := cloud.LoadSecrets()
	if err != nil {
		return err
	}
	state.secrets = secrets

	for _, dir := range []string{config.Application.UploadDir, config.Application.DownloadDir} {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config, secrets)
	if err != nil {
		return err
	}
	state.cloud = cloudClients

	artifacts := services.NewArtifactService(config, cloudClients)
	pipeline, err := workflow.NewAudioMatchPipeline(ctx, config, cloudClients, secrets, artifacts)
	if err != nil {
		return err
	}

	state.handlers = &api.Handlers{
		Pipeline: pipeline,
		Ingress: &services.Ingress{
			UploadDir: config.Application.UploadDir,
			MaxBytes:  config.Application.MaxUploadMB << 20,
		},
		DownloadDir: config.Application.DownloadDir,
	}
	return nil
}
