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

package rowset

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/songlake/pipeline"
)

func mustMemory(t *testing.T, schema *Schema, rows ...map[string]any) *Memory {
	t.Helper()
	prs := make([]pipeline.Row, len(rows))
	for i, r := range rows {
		prs[i] = pipeline.FromStringMap(r)
	}
	m, err := NewMemory(schema, prs)
	require.NoError(t, err)
	return m
}

func collectMaps(t *testing.T, rs RowSet) []map[string]any {
	t.Helper()
	rows, err := rs.Collect(context.Background())
	require.NoError(t, err)
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = pipeline.ToStringMap(r)
	}
	return out
}

func TestNewMemory_NormalizesRows(t *testing.T) {
	schema := NewSchema(
		Column{Name: "year", Type: DataTypeInt64},
		Column{Name: "duration", Type: DataTypeFloat64},
	)
	m := mustMemory(t, schema,
		map[string]any{"year": float64(1972), "duration": int64(218), "extra": "dropped"},
		map[string]any{"year": nil},
	)

	assert.Equal(t, []map[string]any{
		{"year": int64(1972), "duration": float64(218)},
		{},
	}, collectMaps(t, m))
}

func TestNewMemory_ConversionError(t *testing.T) {
	schema := NewSchema(Column{Name: "year", Type: DataTypeInt64})
	_, err := NewMemory(schema, []pipeline.Row{pipeline.FromStringMap(map[string]any{"year": 1972.5})})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "year")
}

func TestMemory_Select(t *testing.T) {
	ctx := context.Background()
	schema := NewSchema(
		Column{Name: "artist_id", Type: DataTypeString},
		Column{Name: "artist_name", Type: DataTypeString},
		Column{Name: "artist_latitude", Type: DataTypeFloat64},
	)
	m := mustMemory(t, schema,
		map[string]any{"artist_id": "AR1", "artist_name": "Casual", "artist_latitude": 35.14968},
		map[string]any{"artist_id": "AR2", "artist_name": "Clp"},
	)

	out, err := m.Select(ctx, Col("artist_id"), Rename("artist_name", "name"), Rename("artist_latitude", "latitude"))
	require.NoError(t, err)

	assert.Equal(t, []string{"artist_id", "name", "latitude"}, out.Schema().Names())
	col, ok := out.Schema().Lookup("latitude")
	require.True(t, ok)
	assert.Equal(t, DataTypeFloat64, col.Type)

	assert.Equal(t, []map[string]any{
		{"artist_id": "AR1", "name": "Casual", "latitude": 35.14968},
		{"artist_id": "AR2", "name": "Clp"},
	}, collectMaps(t, out))

	// The input is untouched.
	assert.Equal(t, []string{"artist_id", "artist_name", "artist_latitude"}, m.Schema().Names())
}

func TestMemory_SelectMissingColumn(t *testing.T) {
	schema := NewSchema(Column{Name: "song_id", Type: DataTypeString})
	m := mustMemory(t, schema)

	_, err := m.Select(context.Background(), Col("song_id"), Col("title"), Col("artist_id"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "select", se.Op)
	assert.Equal(t, []string{"artist_id", "title"}, se.Missing)
}

func TestMemory_SelectDuplicateOutput(t *testing.T) {
	schema := NewSchema(
		Column{Name: "a", Type: DataTypeString},
		Column{Name: "b", Type: DataTypeString},
	)
	m := mustMemory(t, schema)

	_, err := m.Select(context.Background(), Col("a"), Rename("b", "a"))
	var de *DuplicateColumnError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "a", de.Name)
}

func TestMemory_Where(t *testing.T) {
	ctx := context.Background()
	schema := NewSchema(
		Column{Name: "page", Type: DataTypeString},
		Column{Name: "ts", Type: DataTypeInt64},
	)
	m := mustMemory(t, schema,
		map[string]any{"page": "NextSong", "ts": int64(1)},
		map[string]any{"page": "Home", "ts": int64(2)},
		map[string]any{"ts": int64(3)},
		map[string]any{"page": "nextsong", "ts": int64(4)},
		map[string]any{"page": "NextSong", "ts": int64(5)},
	)

	out, err := m.Where(ctx, Eq("page", "NextSong"))
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"page": "NextSong", "ts": int64(1)},
		{"page": "NextSong", "ts": int64(5)},
	}, collectMaps(t, out))

	none, err := m.Where(ctx, Eq("page", nil))
	require.NoError(t, err)
	n, err := none.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = m.Where(ctx, Eq("missing", "x"))
	assert.ErrorIs(t, err, ErrSchema)
}

func TestMemory_Distinct(t *testing.T) {
	ctx := context.Background()
	schema := NewSchema(
		Column{Name: "artist_id", Type: DataTypeString},
		Column{Name: "location", Type: DataTypeString},
		Column{Name: "latitude", Type: DataTypeFloat64},
	)
	m := mustMemory(t, schema,
		map[string]any{"artist_id": "AR1", "location": "Hamilton, Ohio"},
		map[string]any{"artist_id": "AR1", "location": "Hamilton, Ohio"},
		map[string]any{"artist_id": "AR1", "location": "Hamilton, Ohio", "latitude": 39.4},
		map[string]any{"artist_id": "AR1", "location": "Hamilton, Ohio", "latitude": 39.4},
		map[string]any{"artist_id": "AR2"},
		map[string]any{"artist_id": "AR2", "location": nil},
	)

	out, err := m.Distinct(ctx)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"artist_id": "AR1", "location": "Hamilton, Ohio"},
		{"artist_id": "AR1", "location": "Hamilton, Ohio", "latitude": 39.4},
		{"artist_id": "AR2"},
	}, collectMaps(t, out))
}

func TestMemory_Derive(t *testing.T) {
	ctx := context.Background()
	schema := NewSchema(Column{Name: "ts", Type: DataTypeInt64})
	m := mustMemory(t, schema,
		map[string]any{"ts": int64(2000)},
		map[string]any{"ts": int64(4000)},
	)

	secKey := Column{Name: "seconds", Type: DataTypeInt64}
	out, err := m.Derive(ctx, []Column{secKey}, func(in, out pipeline.Row) error {
		ts, _ := in.GetInt64(schema.columns[0].Key())
		out[secKey.Key()] = ts / 1000
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ts", "seconds"}, out.Schema().Names())
	assert.Equal(t, []map[string]any{
		{"ts": int64(2000), "seconds": int64(2)},
		{"ts": int64(4000), "seconds": int64(4)},
	}, collectMaps(t, out))

	// Input rows are not modified.
	assert.Equal(t, []map[string]any{{"ts": int64(2000)}, {"ts": int64(4000)}}, collectMaps(t, m))

	_, err = m.Derive(ctx, []Column{{Name: "ts", Type: DataTypeInt64}}, func(in, out pipeline.Row) error { return nil })
	var de *DuplicateColumnError
	assert.True(t, errors.As(err, &de))

	boom := errors.New("boom")
	_, err = m.Derive(ctx, []Column{secKey}, func(in, out pipeline.Row) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestMemory_LeftJoin(t *testing.T) {
	ctx := context.Background()
	logs := mustMemory(t, NewSchema(
		Column{Name: "artist", Type: DataTypeString},
		Column{Name: "song", Type: DataTypeString},
		Column{Name: "ts", Type: DataTypeInt64},
	),
		map[string]any{"artist": "Elena", "song": "Setanta matins", "ts": int64(1)},
		map[string]any{"artist": "Nobody", "song": "Unknown", "ts": int64(2)},
		map[string]any{"song": "Setanta matins", "ts": int64(3)},
		map[string]any{"artist": "Dup", "song": "Twice", "ts": int64(4)},
	)
	songs := mustMemory(t, NewSchema(
		Column{Name: "song_id", Type: DataTypeString},
		Column{Name: "title", Type: DataTypeString},
		Column{Name: "artist_id", Type: DataTypeString},
		Column{Name: "artist_name", Type: DataTypeString},
	),
		map[string]any{"song_id": "SO1", "title": "Setanta matins", "artist_id": "AR1", "artist_name": "Elena"},
		map[string]any{"song_id": "SO2", "title": "Twice", "artist_id": "AR2", "artist_name": "Dup"},
		map[string]any{"song_id": "SO3", "title": "Twice", "artist_id": "AR3", "artist_name": "Dup"},
		map[string]any{"song_id": "SO4", "title": "Setanta matins", "artist_id": "AR4"},
	)

	out, err := logs.LeftJoin(ctx, songs,
		[]JoinKey{{Left: "artist", Right: "artist_name"}, {Left: "song", Right: "title"}},
		Col("song_id"), Col("artist_id"))
	require.NoError(t, err)

	assert.Equal(t, []string{"artist", "song", "ts", "song_id", "artist_id"}, out.Schema().Names())
	assert.Equal(t, []map[string]any{
		{"artist": "Elena", "song": "Setanta matins", "ts": int64(1), "song_id": "SO1", "artist_id": "AR1"},
		{"artist": "Nobody", "song": "Unknown", "ts": int64(2)},
		{"song": "Setanta matins", "ts": int64(3)},
		{"artist": "Dup", "song": "Twice", "ts": int64(4), "song_id": "SO2", "artist_id": "AR2"},
		{"artist": "Dup", "song": "Twice", "ts": int64(4), "song_id": "SO3", "artist_id": "AR3"},
	}, collectMaps(t, out))
}

func TestMemory_LeftJoinCoercesKeyTypes(t *testing.T) {
	ctx := context.Background()
	left := mustMemory(t, NewSchema(Column{Name: "user", Type: DataTypeString}),
		map[string]any{"user": "26"},
	)
	right := mustMemory(t, NewSchema(
		Column{Name: "user_id", Type: DataTypeInt64},
		Column{Name: "level", Type: DataTypeString},
	),
		map[string]any{"user_id": int64(26), "level": "free"},
	)

	out, err := left.LeftJoin(ctx, right, []JoinKey{{Left: "user", Right: "user_id"}}, Col("level"))
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"user": "26", "level": "free"}}, collectMaps(t, out))
}

func TestMemory_LeftJoinErrors(t *testing.T) {
	ctx := context.Background()
	left := mustMemory(t, NewSchema(Column{Name: "a", Type: DataTypeString}))
	right := mustMemory(t, NewSchema(
		Column{Name: "a", Type: DataTypeString},
		Column{Name: "b", Type: DataTypeString},
	))

	_, err := left.LeftJoin(ctx, right, []JoinKey{{Left: "a", Right: "missing"}}, Col("b"))
	assert.ErrorIs(t, err, ErrSchema)

	_, err = left.LeftJoin(ctx, right, []JoinKey{{Left: "a", Right: "a"}}, Col("a"))
	var de *DuplicateColumnError
	assert.True(t, errors.As(err, &de))

	_, err = left.LeftJoin(ctx, right, nil, Col("b"))
	assert.Error(t, err)
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := mustMemory(t, NewSchema(Column{Name: "a", Type: DataTypeString}), map[string]any{"a": "x"})

	_, err := m.Select(ctx, Col("a"))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = m.Distinct(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
