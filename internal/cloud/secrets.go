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
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Secrets are the credentials for the external services. They never live in
// the TOML files.
type Secrets struct {
	MemoriesAPIKey      string `envconfig:"MEMORIES_API_KEY"`
	GeminiAPIKey        string `envconfig:"GEMINI_API_KEY"`
	SpotifyClientID     string `envconfig:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `envconfig:"SPOTIFY_CLIENT_SECRET"`
}

// LoadSecrets loads envFiles (".env" when none are given) into the process
// environment and then reads the secret variables. Missing files are not an
// error; variables already set in the environment win over file values.
func LoadSecrets(envFiles ...string) (*Secrets, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}
	s := &Secrets{}
	if err := envconfig.Process("", s); err != nil {
		return nil, fmt.Errorf("failed to read secrets from environment: %w", err)
	}
	return s, nil
}

// CatalogConfigured reports whether both catalog credentials are present.
func (s *Secrets) CatalogConfigured() bool {
	return s.SpotifyClientID != "" && s.SpotifyClientSecret != ""
}
