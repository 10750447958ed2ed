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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/songlake/internal/duckdbx"
	"github.com/cardinalhq/songlake/internal/rowset"
	"github.com/cardinalhq/songlake/pipeline"
)

var songSchema = rowset.NewSchema(
	rowset.Column{Name: ColArtistID, Type: rowset.DataTypeString},
	rowset.Column{Name: ColArtistLatitude, Type: rowset.DataTypeFloat64},
	rowset.Column{Name: ColArtistLocation, Type: rowset.DataTypeString},
	rowset.Column{Name: ColArtistLongitude, Type: rowset.DataTypeFloat64},
	rowset.Column{Name: ColArtistName, Type: rowset.DataTypeString},
	rowset.Column{Name: ColDuration, Type: rowset.DataTypeFloat64},
	rowset.Column{Name: "num_songs", Type: rowset.DataTypeInt64},
	rowset.Column{Name: ColSongID, Type: rowset.DataTypeString},
	rowset.Column{Name: ColTitle, Type: rowset.DataTypeString},
	rowset.Column{Name: ColYear, Type: rowset.DataTypeInt64},
)

var logSchema = rowset.NewSchema(
	rowset.Column{Name: ColArtist, Type: rowset.DataTypeString},
	rowset.Column{Name: ColFirstName, Type: rowset.DataTypeString},
	rowset.Column{Name: ColGender, Type: rowset.DataTypeString},
	rowset.Column{Name: ColLastName, Type: rowset.DataTypeString},
	rowset.Column{Name: ColLevel, Type: rowset.DataTypeString},
	rowset.Column{Name: ColLocation, Type: rowset.DataTypeString},
	rowset.Column{Name: ColPage, Type: rowset.DataTypeString},
	rowset.Column{Name: ColSessionID, Type: rowset.DataTypeInt64},
	rowset.Column{Name: ColSong, Type: rowset.DataTypeString},
	rowset.Column{Name: ColTs, Type: rowset.DataTypeInt64},
	rowset.Column{Name: ColUserAgent, Type: rowset.DataTypeString},
	rowset.Column{Name: ColUserID, Type: rowset.DataTypeString},
)

func songRecord(songID, title, artistID, artistName string, year int64) map[string]any {
	return map[string]any{
		ColSongID: songID, ColTitle: title, ColArtistID: artistID, ColArtistName: artistName,
		ColYear: year, ColDuration: 200.5, "num_songs": int64(1),
		ColArtistLocation: "Chicago", ColArtistLatitude: 41.88, ColArtistLongitude: -87.63,
	}
}

func logRecord(page, userID, level, artist, song string, ts int64) map[string]any {
	return map[string]any{
		ColArtist: artist, ColSong: song, ColPage: page, ColTs: ts,
		ColUserID: userID, ColFirstName: "Lily", ColLastName: "Koch", ColGender: "F", ColLevel: level,
		ColSessionID: int64(818), ColLocation: "Chicago-Naperville-Elgin, IL-IN-WI", ColUserAgent: "Mozilla/5.0",
	}
}

// engine loads test input into one RowSet implementation.
type engine struct {
	name string
	load func(t *testing.T, schema *rowset.Schema, rows []map[string]any) rowset.RowSet
}

func memoryRows(t *testing.T, schema *rowset.Schema, rows []map[string]any) *rowset.Memory {
	t.Helper()
	prs := make([]pipeline.Row, len(rows))
	for i, r := range rows {
		prs[i] = pipeline.FromStringMap(r)
	}
	m, err := rowset.NewMemory(schema, prs)
	require.NoError(t, err)
	return m
}

func engines(t *testing.T) []engine {
	db, err := duckdbx.NewDB(duckdbx.WithSettings(duckdbx.Settings{TempDirectory: t.TempDir(), PoolSize: 2}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	eng := duckdbx.NewEngine(db)

	return []engine{
		{name: "memory", load: func(t *testing.T, schema *rowset.Schema, rows []map[string]any) rowset.RowSet {
			return memoryRows(t, schema, rows)
		}},
		{name: "duckdb", load: func(t *testing.T, schema *rowset.Schema, rows []map[string]any) rowset.RowSet {
			tbl, err := eng.Load(context.Background(), memoryRows(t, schema, rows))
			require.NoError(t, err)
			return tbl
		}},
	}
}

func collect(t *testing.T, rs rowset.RowSet) []map[string]any {
	t.Helper()
	rows, err := rs.Collect(context.Background())
	require.NoError(t, err)
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = pipeline.ToStringMap(r)
	}
	return out
}

func TestBuildSongTables(t *testing.T) {
	ctx := context.Background()
	for _, e := range engines(t) {
		t.Run(e.name, func(t *testing.T) {
			songs := e.load(t, songSchema, []map[string]any{
				songRecord("SOA", "Setanta matins", "AR1", "Elena", 0),
				songRecord("SOB", "Intro", "AR1", "Elena", 2004),
				songRecord("SOC", "Intro", "AR2", "Tweeterfriendly Music", 2008),
			})

			songsTbl, artistsTbl, err := BuildSongTables(ctx, songs)
			require.NoError(t, err)

			assert.Equal(t, SongsColumns, songsTbl.Schema().Names())
			assert.ElementsMatch(t, []map[string]any{
				{ColSongID: "SOA", ColTitle: "Setanta matins", ColArtistID: "AR1", ColYear: int64(0), ColDuration: 200.5},
				{ColSongID: "SOB", ColTitle: "Intro", ColArtistID: "AR1", ColYear: int64(2004), ColDuration: 200.5},
				{ColSongID: "SOC", ColTitle: "Intro", ColArtistID: "AR2", ColYear: int64(2008), ColDuration: 200.5},
			}, collect(t, songsTbl))

			assert.Equal(t, ArtistsColumns, artistsTbl.Schema().Names())
			assert.ElementsMatch(t, []map[string]any{
				{ColArtistID: "AR1", "name": "Elena", "location": "Chicago", "latitude": 41.88, "longitude": -87.63},
				{ColArtistID: "AR2", "name": "Tweeterfriendly Music", "location": "Chicago", "latitude": 41.88, "longitude": -87.63},
			}, collect(t, artistsTbl))
		})
	}
}

func TestBuildArtistsTableKeepsVariants(t *testing.T) {
	ctx := context.Background()
	a := songRecord("SOA", "One", "AR1", "Elena", 0)
	b := songRecord("SOB", "Two", "AR1", "Elena feat. Someone", 0)
	artists, err := BuildArtistsTable(ctx, memoryRows(t, songSchema, []map[string]any{a, b}))
	require.NoError(t, err)
	n, err := artists.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestBuildSongsTableMissingColumn(t *testing.T) {
	schema := rowset.NewSchema(rowset.Column{Name: ColSongID, Type: rowset.DataTypeString})
	_, err := BuildSongsTable(context.Background(), memoryRows(t, schema, nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, rowset.ErrSchema))
}

func TestFilterAndUsers(t *testing.T) {
	ctx := context.Background()
	for _, e := range engines(t) {
		t.Run(e.name, func(t *testing.T) {
			logs := e.load(t, logSchema, []map[string]any{
				logRecord("NextSong", "26", "free", "Elena", "Intro", 1542241826796),
				logRecord("Home", "26", "free", "", "", 1542241826000),
				logRecord("NextSong", "26", "free", "Elena", "Intro", 1542241900000),
				logRecord("NextSong", "26", "paid", "Elena", "Intro", 1542242000000),
				logRecord("Logout", "27", "paid", "", "", 1542243000000),
			})

			plays, err := FilterSongPlays(ctx, logs)
			require.NoError(t, err)
			n, err := plays.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(3), n)

			users, err := BuildUsersTable(ctx, plays)
			require.NoError(t, err)
			assert.Equal(t, UsersColumns, users.Schema().Names())
			assert.ElementsMatch(t, []map[string]any{
				{"user_id": "26", "first_name": "Lily", "last_name": "Koch", ColGender: "F", ColLevel: "free"},
				{"user_id": "26", "first_name": "Lily", "last_name": "Koch", ColGender: "F", ColLevel: "paid"},
			}, collect(t, users))
		})
	}
}

func TestBuildTimeTable(t *testing.T) {
	ctx := context.Background()
	for _, e := range engines(t) {
		t.Run(e.name, func(t *testing.T) {
			plays := e.load(t, logSchema, []map[string]any{
				logRecord("NextSong", "26", "free", "Elena", "Intro", 1542241826796),
				logRecord("NextSong", "27", "paid", "Other", "Song", 1542241826796),
			})

			tt, err := BuildTimeTable(ctx, plays, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, TimeColumns, tt.Schema().Names())
			assert.Equal(t, []map[string]any{{
				ColTs: int64(1542241826796), ColHour: int64(0), ColDay: int64(15), ColWeek: int64(46),
				ColMonth: int64(11), ColYear: int64(2018), ColWeekday: "Thu",
			}}, collect(t, tt))
		})
	}
}

func TestBuildTimeTableNullTimestamp(t *testing.T) {
	rec := logRecord("NextSong", "26", "free", "Elena", "Intro", 0)
	rec[ColTs] = nil
	_, err := BuildTimeTable(context.Background(), memoryRows(t, logSchema, []map[string]any{rec}), time.UTC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "ts"`)
}

func TestBuildSongplaysTable(t *testing.T) {
	ctx := context.Background()
	for _, e := range engines(t) {
		t.Run(e.name, func(t *testing.T) {
			songs := e.load(t, songSchema, []map[string]any{
				songRecord("SOA", "Intro", "AR1", "Elena", 2004),
				songRecord("SOB", "Intro", "AR1", "Elena", 2005),
				songRecord("SOC", "Other", "AR2", "Someone", 2005),
			})
			plays := e.load(t, logSchema, []map[string]any{
				logRecord("NextSong", "26", "free", "Elena", "Intro", 1542241826796),
				logRecord("NextSong", "27", "paid", "Nobody", "Nothing", 1543622400000),
			})

			sp, err := BuildSongplaysTable(ctx, plays, songs, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, SongplaysColumns, sp.Schema().Names())

			base := func(user, level string, ts, year, month int64) map[string]any {
				return map[string]any{
					"start_time": ts, "user_id": user, ColLevel: level,
					"session_id": int64(818), ColLocation: "Chicago-Naperville-Elgin, IL-IN-WI",
					"user_agent": "Mozilla/5.0", ColYear: year, ColMonth: month,
				}
			}
			matchA := base("26", "free", 1542241826796, 2018, 11)
			matchA[ColSongID], matchA[ColArtistID] = "SOA", "AR1"
			matchB := base("26", "free", 1542241826796, 2018, 11)
			matchB[ColSongID], matchB[ColArtistID] = "SOB", "AR1"
			// 2018-12-01T00:00:00Z; null song_id and artist_id are absent.
			unmatched := base("27", "paid", 1543622400000, 2018, 12)

			assert.ElementsMatch(t, []map[string]any{matchA, matchB, unmatched}, collect(t, sp))
		})
	}
}

func TestBuildSongplaysTableSongSchemaRequired(t *testing.T) {
	songs := memoryRows(t, rowset.NewSchema(rowset.Column{Name: ColTitle, Type: rowset.DataTypeString}), nil)
	plays := memoryRows(t, logSchema, nil)
	_, err := BuildSongplaysTable(context.Background(), plays, songs, time.UTC)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rowset.ErrSchema))
}

func TestBuildersOnEmptyInput(t *testing.T) {
	ctx := context.Background()
	plays := memoryRows(t, logSchema, nil)
	songs := memoryRows(t, songSchema, nil)

	users, err := BuildUsersTable(ctx, plays)
	require.NoError(t, err)
	assert.Empty(t, collect(t, users))

	tt, err := BuildTimeTable(ctx, plays, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, collect(t, tt))

	sp, err := BuildSongplaysTable(ctx, plays, songs, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, collect(t, sp))
}
