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

package schemabuilder

import (
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/songlake/internal/rowset"
)

func TestWriterOptions(t *testing.T) {
	nodes := map[string]parquet.Node{
		"test_field": parquet.Optional(parquet.Int(64)),
	}
	options := WriterOptions(t.TempDir(), NewSchema(nodes))

	_, err := parquet.NewWriterConfig(options...)
	require.NoError(t, err)
}

func TestWantDictionary(t *testing.T) {
	assert.False(t, wantDictionary("title"))
	assert.False(t, wantDictionary("user_agent"))
	assert.True(t, wantDictionary("artist_id"))
}

func TestBuildFromSchema(t *testing.T) {
	schema := rowset.NewSchema(
		rowset.Column{Name: "song_id", Type: rowset.DataTypeString},
		rowset.Column{Name: "title", Type: rowset.DataTypeString},
		rowset.Column{Name: "artist_id", Type: rowset.DataTypeString},
		rowset.Column{Name: "year", Type: rowset.DataTypeInt64},
		rowset.Column{Name: "duration", Type: rowset.DataTypeFloat64},
		rowset.Column{Name: "tags", Type: rowset.DataTypeAny},
		rowset.Column{Name: "explicit", Type: rowset.DataTypeBool},
	)

	nodes, err := BuildFromSchema(schema, "year", "artist_id")
	require.NoError(t, err)
	assert.Len(t, nodes, 5)
	assert.NotContains(t, nodes, "year")
	assert.NotContains(t, nodes, "artist_id")

	for name, node := range nodes {
		assert.True(t, node.Optional(), name)
		assert.True(t, node.Leaf(), name)
	}
	assert.Equal(t, parquet.Double, nodes["duration"].Type().Kind())
	assert.Equal(t, parquet.ByteArray, nodes["tags"].Type().Kind())
	assert.Equal(t, parquet.Boolean, nodes["explicit"].Type().Kind())

	ps := NewSchema(nodes)
	assert.Len(t, ps.Fields(), 5)
}

func TestNodeForTypeUnknown(t *testing.T) {
	_, err := NodeForType("x", rowset.DataTypeUnknown)
	assert.Error(t, err)
}
