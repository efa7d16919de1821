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

package commands

import (
	"errors"

	"github.com/jaycherian/trend-audio-matcher/internal/core/cor"
	"github.com/jaycherian/trend-audio-matcher/internal/core/model"
)

// CatalogResolve maps the picked song onto a catalog entry. When the catalog
// is not connected the song name is passed on unchanged. A song the catalog
// does not know ends the run.
//
// Input: *model.TrendPick. Output: *model.ResolvedTrack.
type CatalogResolve struct {
	cor.BaseCommand
	catalog TrackResolver
}

func NewCatalogResolve(name string, catalog TrackResolver) *CatalogResolve {
	return &CatalogResolve{BaseCommand: *cor.NewBaseCommand(name), catalog: catalog}
}

func (c *CatalogResolve) Execute(context cor.Context) {
	pick, ok := input[*model.TrendPick](context, c)
	if !ok {
		return
	}
	emit(context, c.GetName(), "Step 6: Looking up %q in the music catalog...", pick.SongName)

	track, err := c.catalog.Resolve(context.GetContext(), pick.SongName)
	switch {
	case errors.Is(err, model.ErrNotConnected):
		emit(context, c.GetName(), "Step 6: Catalog not connected, searching audio by name")
		succeed(context, c, &model.ResolvedTrack{SongName: pick.SongName, Query: pick.SongName})
	case err != nil:
		fail(context, c, err)
	default:
		emit(context, c.GetName(), "Step 6: Catalog match: %s", track.CatalogURL)
		succeed(context, c, track)
	}
}
