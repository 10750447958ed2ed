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

// Package schemabuilder turns row-set schemas into parquet-go schemas.
package schemabuilder

import (
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/cardinalhq/songlake/internal/constants"
	"github.com/cardinalhq/songlake/internal/rowset"
)

// WriterOptions returns the options every table file is written with.
func WriterOptions(tmpdir string, schema *parquet.Schema) []parquet.WriterOption {
	return []parquet.WriterOption{
		schema,
		parquet.Compression(&parquet.Zstd),
		parquet.PageBufferSize(constants.ParquetPageBufSize),
		parquet.ColumnIndexSizeLimit(1024),
		parquet.MaxRowsPerRowGroup(80_000),
		parquet.ColumnPageBuffers(
			parquet.NewFileBufferPool(tmpdir, "buffers.*"),
		),
		parquet.CreatedBy("songlake", "", ""),
	}
}

// Free-text columns rarely repeat, so dictionary pages only cost space.
var dictionaryFieldOverride = map[string]bool{
	"title":      false,
	"user_agent": false,
}

// wantDictionary returns true if the field should use dictionary encoding.
func wantDictionary(name string) bool {
	v, ok := dictionaryFieldOverride[name]
	if ok {
		return v
	}
	return true
}

// NodeForType returns the optional parquet leaf for a column type. Any
// columns are stored as JSON text.
func NodeForType(name string, dt rowset.DataType) (parquet.Node, error) {
	enc := func(n parquet.Node) parquet.Node {
		if wantDictionary(name) {
			n = parquet.Encoded(n, &parquet.RLEDictionary)
		}
		return n
	}

	switch dt {
	case rowset.DataTypeString, rowset.DataTypeAny:
		return parquet.Optional(enc(parquet.String())), nil
	case rowset.DataTypeInt64:
		return parquet.Optional(enc(parquet.Int(64))), nil
	case rowset.DataTypeFloat64:
		return parquet.Optional(enc(parquet.Leaf(parquet.DoubleType))), nil
	case rowset.DataTypeBool:
		// RLE dictionary is not defined for booleans.
		return parquet.Optional(parquet.Leaf(parquet.BooleanType)), nil
	case rowset.DataTypeBytes:
		return parquet.Optional(parquet.Leaf(parquet.ByteArrayType)), nil
	default:
		return nil, fmt.Errorf("column %q: unsupported type %s", name, dt)
	}
}

// BuildFromSchema returns the parquet nodes for every column of schema
// except the excluded ones.
func BuildFromSchema(schema *rowset.Schema, exclude ...string) (map[string]parquet.Node, error) {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	nodes := make(map[string]parquet.Node, schema.Len())
	for _, col := range schema.Columns() {
		if skip[col.Name] {
			continue
		}
		node, err := NodeForType(col.Name, col.Type)
		if err != nil {
			return nil, err
		}
		nodes[col.Name] = node
	}
	return nodes, nil
}

// NewSchema builds the parquet schema for a table file.
func NewSchema(nodes map[string]parquet.Node) *parquet.Schema {
	return parquet.NewSchema("songlake", parquet.Group(nodes))
}
