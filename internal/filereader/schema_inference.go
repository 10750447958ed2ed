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
	"slices"
	"strconv"

	"github.com/cardinalhq/songlake/internal/rowset"
	"github.com/cardinalhq/songlake/pipeline"
	"github.com/cardinalhq/songlake/pipeline/wkk"
)

// InferTypeFromValue determines the DataType from a Go value.
// This handles values from JSON decoding or Parquet reading.
func InferTypeFromValue(value any) rowset.DataType {
	if value == nil {
		return rowset.DataTypeUnknown
	}

	switch v := value.(type) {
	case bool:
		return rowset.DataTypeBool
	case int64, int32, int:
		return rowset.DataTypeInt64
	case float64:
		// Check if it's actually an integer
		if v == float64(int64(v)) {
			return rowset.DataTypeInt64
		}
		return rowset.DataTypeFloat64
	case float32:
		return rowset.DataTypeFloat64
	case string:
		return rowset.DataTypeString
	case []byte:
		return rowset.DataTypeBytes
	default:
		// Arrays and objects pass through as-is.
		return rowset.DataTypeAny
	}
}

// InferTypeFromString attempts to parse a string and determine its type.
// Returns the inferred DataType and the parsed value. Partition path values
// start as strings and are typed this way.
func InferTypeFromString(s string) (rowset.DataType, any) {
	if s == "" {
		return rowset.DataTypeString, ""
	}

	// Integers before bool: ParseBool accepts "1" and "0".
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return rowset.DataTypeInt64, i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return rowset.DataTypeFloat64, f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return rowset.DataTypeBool, b
	}
	return rowset.DataTypeString, s
}

// SchemaBuilder builds a schema by scanning rows and promoting column types.
type SchemaBuilder struct {
	types map[wkk.RowKey]rowset.DataType
}

// NewSchemaBuilder creates a new schema builder.
func NewSchemaBuilder() *SchemaBuilder {
	return &SchemaBuilder{types: make(map[wkk.RowKey]rowset.DataType)}
}

// AddValue records a value for a column, promoting the column type if needed.
// A nil value records the column without typing it.
func (sb *SchemaBuilder) AddValue(key wkk.RowKey, value any) {
	sb.AddType(key, InferTypeFromValue(value))
}

// AddType records a known type for a column.
func (sb *SchemaBuilder) AddType(key wkk.RowKey, dt rowset.DataType) {
	sb.types[key] = rowset.PromoteType(sb.types[key], dt)
}

// AddRow records every column of row.
func (sb *SchemaBuilder) AddRow(row pipeline.Row) {
	for k, v := range row {
		sb.AddValue(k, v)
	}
}

// Merge folds another builder's columns into this one.
func (sb *SchemaBuilder) Merge(other *SchemaBuilder) {
	for k, dt := range other.types {
		sb.AddType(k, dt)
	}
}

// Build returns the schema with columns sorted by name. Columns that were
// only ever null are typed as strings.
func (sb *SchemaBuilder) Build() *rowset.Schema {
	names := make([]string, 0, len(sb.types))
	for k := range sb.types {
		names = append(names, wkk.RowKeyValue(k))
	}
	slices.Sort(names)

	cols := make([]rowset.Column, 0, len(names))
	for _, name := range names {
		dt := sb.types[wkk.NewRowKey(name)]
		if dt == rowset.DataTypeUnknown {
			dt = rowset.DataTypeString
		}
		cols = append(cols, rowset.Column{Name: name, Type: dt})
	}
	return rowset.NewSchema(cols...)
}
