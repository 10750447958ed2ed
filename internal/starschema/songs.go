// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package starschema

import (
	"context"
	"fmt"

	"github.com/cardinalhq/songlake/internal/rowset"
)

// Song record columns.
const (
	ColSongID          = "song_id"
	ColTitle           = "title"
	ColArtistID        = "artist_id"
	ColYear            = "year"
	ColDuration        = "duration"
	ColArtistName      = "artist_name"
	ColArtistLocation  = "artist_location"
	ColArtistLatitude  = "artist_latitude"
	ColArtistLongitude = "artist_longitude"
)

// SongsColumns are the columns of the songs dimension, in order.
var SongsColumns = []string{ColSongID, ColTitle, ColArtistID, ColYear, ColDuration}

// ArtistsColumns are the columns of the artists dimension, in order.
var ArtistsColumns = []string{ColArtistID, "name", "location", "latitude", "longitude"}

// BuildSongsTable keeps one row per song record with its identifying columns.
func BuildSongsTable(ctx context.Context, songs rowset.RowSet) (rowset.RowSet, error) {
	out, err := songs.Select(ctx, rowset.Cols(SongsColumns...)...)
	if err != nil {
		return nil, fmt.Errorf("songs table: %w", err)
	}
	return out, nil
}

// BuildArtistsTable extracts the artist columns of each song record and drops
// rows identical in all five columns. An artist whose attributes differ
// between records keeps one row per variant.
func BuildArtistsTable(ctx context.Context, songs rowset.RowSet) (rowset.RowSet, error) {
	projected, err := songs.Select(ctx,
		rowset.Col(ColArtistID),
		rowset.Rename(ColArtistName, "name"),
		rowset.Rename(ColArtistLocation, "location"),
		rowset.Rename(ColArtistLatitude, "latitude"),
		rowset.Rename(ColArtistLongitude, "longitude"),
	)
	if err != nil {
		return nil, fmt.Errorf("artists table: %w", err)
	}
	out, err := projected.Distinct(ctx)
	if err != nil {
		return nil, fmt.Errorf("artists table: %w", err)
	}
	return out, nil
}

// BuildSongTables builds the songs and artists dimensions from song records.
func BuildSongTables(ctx context.Context, songs rowset.RowSet) (songsTable, artistsTable rowset.RowSet, err error) {
	if songsTable, err = BuildSongsTable(ctx, songs); err != nil {
		return nil, nil, err
	}
	if artistsTable, err = BuildArtistsTable(ctx, songs); err != nil {
		return nil, nil, err
	}
	return songsTable, artistsTable, nil
}
