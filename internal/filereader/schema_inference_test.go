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

package filereader

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cardinalhq/songlake/internal/rowset"
	"github.com/cardinalhq/songlake/pipeline"
	"github.com/cardinalhq/songlake/pipeline/wkk"
)

func TestInferTypeFromValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  rowset.DataType
	}{
		{"nil", nil, rowset.DataTypeUnknown},
		{"bool", true, rowset.DataTypeBool},
		{"int64", int64(7), rowset.DataTypeInt64},
		{"int32", int32(7), rowset.DataTypeInt64},
		{"integral float", 2018.0, rowset.DataTypeInt64},
		{"fractional float", 218.93179, rowset.DataTypeFloat64},
		{"string", "NextSong", rowset.DataTypeString},
		{"bytes", []byte("x"), rowset.DataTypeBytes},
		{"array", []any{1}, rowset.DataTypeAny},
		{"object", map[string]any{"a": 1}, rowset.DataTypeAny},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferTypeFromValue(tt.value))
		})
	}
}

func TestInferTypeFromString(t *testing.T) {
	tests := []struct {
		in       string
		wantType rowset.DataType
		wantVal  any
	}{
		{"", rowset.DataTypeString, ""},
		{"2018", rowset.DataTypeInt64, int64(2018)},
		{"0", rowset.DataTypeInt64, int64(0)},
		{"-3.5", rowset.DataTypeFloat64, -3.5},
		{"true", rowset.DataTypeBool, true},
		{"ARJIE2Y1187B994AB7", rowset.DataTypeString, "ARJIE2Y1187B994AB7"},
	}
	for _, tt := range tests {
		dt, v := InferTypeFromString(tt.in)
		assert.Equal(t, tt.wantType, dt, tt.in)
		assert.Equal(t, tt.wantVal, v, tt.in)
	}
}

func TestSchemaBuilderPromotion(t *testing.T) {
	sb := NewSchemaBuilder()
	sb.AddRow(pipeline.Row{
		wkk.RowKeyArtistLatitude: nil,
		wkk.RowKeyDuration:       int64(200),
		wkk.RowKeyUserID:         "39",
		wkk.RowKeyTs:             int64(1542241826796),
	})
	sb.AddRow(pipeline.Row{
		wkk.RowKeyDuration: 218.93179,
		wkk.RowKeyUserID:   int64(40),
		wkk.RowKeyLevel:    "free",
	})

	other := NewSchemaBuilder()
	other.AddValue(wkk.RowKeyLevel, true)
	sb.Merge(other)

	schema := sb.Build()
	assert.Equal(t, []string{"artist_latitude", "duration", "level", "ts", "userId"}, schema.Names())

	want := map[string]rowset.DataType{
		"artist_latitude": rowset.DataTypeString, // only ever null
		"duration":        rowset.DataTypeFloat64,
		"level":           rowset.DataTypeString,
		"ts":              rowset.DataTypeInt64,
		"userId":          rowset.DataTypeString,
	}
	for name, dt := range want {
		col, ok := schema.Lookup(name)
		assert.True(t, ok, name)
		assert.Equal(t, dt, col.Type, name)
	}
}

func TestPartitionValues(t *testing.T) {
	vals, err := PartitionValues("songs/", "songs/year=2018/artist_id=AR%2F1/part-00000-x.parquet")
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"year": "2018", "artist_id": "AR/1"}, vals)

	vals, err = PartitionValues("", "part-00000-x.parquet")
	assert.NoError(t, err)
	assert.Empty(t, vals)

	_, err = PartitionValues("t/", "t/year=%zz/part.parquet")
	assert.Error(t, err)
}
