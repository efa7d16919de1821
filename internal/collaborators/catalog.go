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
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/jaycherian/trend-audio-matcher/internal/core/model"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultCatalogURLSubstring is the host every accepted catalog link contains.
const DefaultCatalogURLSubstring = "open.spotify.com"

// Catalog resolves a free-text song name to a canonical catalog entry and
// looks up the metadata behind a catalog link.
type Catalog interface {
	Resolve(ctx context.Context, songName string) (*model.ResolvedTrack, error)
	LookupTrack(ctx context.Context, catalogURL string) (*TrackInfo, error)
}

// TrackInfo is the metadata the audio stage needs to build a search query.
type TrackInfo struct {
	Title   string
	Artists []string
}

// SearchQuery is "<first artist> - <title> official audio", or the title
// alone when no artist is known.
func (t *TrackInfo) SearchQuery() string {
	if len(t.Artists) == 0 || t.Artists[0] == "" {
		return t.Title + " official audio"
	}
	return t.Artists[0] + " - " + t.Title + " official audio"
}

// SpotifyCatalog is the Catalog backed by the Spotify Web API.
type SpotifyCatalog struct {
	client       *spotify.Client
	requiredHost string
	market       string
}

// NewSpotifyCatalog authenticates with the client credentials flow. Tokens
// are fetched lazily on the first request.
func NewSpotifyCatalog(ctx context.Context, clientID, clientSecret, baseURL, requiredHost string) *SpotifyCatalog {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return NewSpotifyCatalogWithClient(cfg.Client(ctx), baseURL, requiredHost)
}

// NewSpotifyCatalogWithClient uses httpClient as is, which must already add
// authorization. An empty requiredHost disables the link check.
func NewSpotifyCatalogWithClient(httpClient *http.Client, baseURL, requiredHost string) *SpotifyCatalog {
	var opts []spotify.ClientOption
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, spotify.WithBaseURL(baseURL))
	}
	return &SpotifyCatalog{client: spotify.New(httpClient, opts...), requiredHost: requiredHost}
}

// WithMarket restricts searches and lookups to tracks playable in the given
// ISO 3166-1 alpha-2 market. An empty code means no restriction.
func (s *SpotifyCatalog) WithMarket(code string) *SpotifyCatalog {
	s.market = code
	return s
}

func (s *SpotifyCatalog) requestOptions(opts ...spotify.RequestOption) []spotify.RequestOption {
	if s.market != "" {
		opts = append(opts, spotify.Market(s.market))
	}
	return opts
}

// Resolve searches for songName and returns the first track's link. No hits
// is ErrNotFound; a link outside the catalog host is ErrUnrecognizedCatalogURL.
func (s *SpotifyCatalog) Resolve(ctx context.Context, songName string) (*model.ResolvedTrack, error) {
	results, err := s.client.Search(ctx, songName, spotify.SearchTypeTrack, s.requestOptions(spotify.Limit(1))...)
	if err != nil {
		return nil, classifySpotifyError(err)
	}
	if results == nil || results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return nil, fmt.Errorf("%w: no catalog track for %q", model.ErrNotFound, songName)
	}
	link := results.Tracks.Tracks[0].ExternalURLs["spotify"]
	if link == "" {
		return nil, fmt.Errorf("%w: first track has no catalog link", model.ErrNotFound)
	}
	if s.requiredHost != "" && !strings.Contains(link, s.requiredHost) {
		return nil, fmt.Errorf("%w: %s", model.ErrUnrecognizedCatalogURL, link)
	}
	return &model.ResolvedTrack{SongName: songName, CatalogURL: link, Query: songName, Connected: true}, nil
}

// LookupTrack fetches the title and artists behind a track link.
func (s *SpotifyCatalog) LookupTrack(ctx context.Context, catalogURL string) (*TrackInfo, error) {
	id, err := TrackIDFromURL(catalogURL)
	if err != nil {
		return nil, err
	}
	track, err := s.client.GetTrack(ctx, spotify.ID(id), s.requestOptions()...)
	if err != nil {
		return nil, classifySpotifyError(err)
	}
	info := &TrackInfo{Title: track.Name}
	for _, a := range track.Artists {
		info.Artists = append(info.Artists, a.Name)
	}
	return info, nil
}

// TrackIDFromURL returns the id segment of a ".../track/<id>" link.
func TrackIDFromURL(catalogURL string) (string, error) {
	u, err := url.Parse(catalogURL)
	if err != nil || u.Path == "" {
		return "", fmt.Errorf("%w: %s", model.ErrUnrecognizedCatalogURL, catalogURL)
	}
	dir, id := path.Split(strings.TrimSuffix(u.Path, "/"))
	if id == "" || path.Base(strings.TrimSuffix(dir, "/")) != "track" {
		return "", fmt.Errorf("%w: %s", model.ErrUnrecognizedCatalogURL, catalogURL)
	}
	return id, nil
}

func classifySpotifyError(err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusNotFound {
			return fmt.Errorf("%w: %v", model.ErrNotFound, err)
		}
		return fmt.Errorf("%w: %v", model.ErrCollaborator, err)
	}
	return fmt.Errorf("%w: %v", model.ErrTransport, err)
}

// NotConnectedCatalog stands in for the catalog when no credentials are
// configured. Every call fails with ErrNotConnected.
type NotConnectedCatalog struct{}

// Resolve always fails with ErrNotConnected.
func (NotConnectedCatalog) Resolve(context.Context, string) (*model.ResolvedTrack, error) {
	return nil, model.ErrNotConnected
}

// LookupTrack always fails with ErrNotConnected.
func (NotConnectedCatalog) LookupTrack(context.Context, string) (*TrackInfo, error) {
	return nil, model.ErrNotConnected
}
