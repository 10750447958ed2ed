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
	"errors"
	"fmt"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cardinalhq/songlake/pipeline/wkk"
)

// ErrSchema is a sentinel error indicating a referenced column is absent.
// Use errors.Is(err, ErrSchema) to check for this error.
// Use errors.As(err, &SchemaError{}) to extract details.
var ErrSchema = errors.New("schema error")

// SchemaError reports columns that an operation referenced but the row-set does not have.
type SchemaError struct {
	// Op is the operation that needed the columns, e.g. "select".
	Op string
	// Missing lists the absent column names in sorted order.
	Missing []string
	// Available lists the columns the row-set does have.
	Available []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s: missing column(s) %s (have %s)",
		ErrSchema, e.Op, strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// DataType represents the type of data in a column.
type DataType int

const (
	DataTypeUnknown DataType = iota // Unknown/uninitialized type - should not be used
	DataTypeString
	DataTypeInt64
	DataTypeFloat64
	DataTypeBool
	DataTypeBytes
	DataTypeAny // For complex types (list, struct, map) that are passed through as-is
)

func (dt DataType) String() string {
	switch dt {
	case DataTypeUnknown:
		return "unknown"
	case DataTypeString:
		return "string"
	case DataTypeInt64:
		return "int64"
	case DataTypeFloat64:
		return "float64"
	case DataTypeBool:
		return "bool"
	case DataTypeBytes:
		return "bytes"
	case DataTypeAny:
		return "any"
	default:
		return "unknown"
	}
}

// Column describes a single named, typed column.
type Column struct {
	Name string
	Type DataType
}

// Key returns the interned row key for the column.
func (c Column) Key() wkk.RowKey {
	return wkk.NewRowKey(c.Name)
}

// Schema is an ordered set of uniquely named columns.
type Schema struct {
	columns []Column
	index   map[string]int
}

// NewSchema builds a schema from the given columns. Later duplicates of a
// name replace the earlier column's type but keep its position.
func NewSchema(columns ...Column) *Schema {
	s := &Schema{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		s.add(c)
	}
	return s
}

func (s *Schema) add(c Column) {
	if i, ok := s.index[c.Name]; ok {
		s.columns[i] = c
		return
	}
	s.index[c.Name] = len(s.columns)
	s.columns = append(s.columns, c)
}

// Columns returns a copy of the columns in order.
func (s *Schema) Columns() []Column {
	return slices.Clone(s.columns)
}

// Names returns the column names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// Len returns the number of columns.
func (s *Schema) Len() int {
	return len(s.columns)
}

// Lookup returns the column with the given name.
func (s *Schema) Lookup(name string) (Column, bool) {
	i, ok := s.index[name]
	if !ok {
		return Column{}, false
	}
	return s.columns[i], true
}

// Has returns true if the schema has the specified column.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Require returns a *SchemaError naming every column in names that the schema lacks.
func (s *Schema) Require(op string, names ...string) error {
	missing := mapset.NewThreadUnsafeSet(names...).Difference(mapset.NewThreadUnsafeSet(s.Names()...))
	if missing.Cardinality() == 0 {
		return nil
	}
	m := missing.ToSlice()
	slices.Sort(m)
	return &SchemaError{Op: op, Missing: m, Available: s.Names()}
}

// Equal reports whether both schemas have the same columns in the same order.
func (s *Schema) Equal(other *Schema) bool {
	return slices.Equal(s.columns, other.columns)
}

func (s *Schema) String() string {
	parts := make([]string, len(s.columns))
	for i, c := range s.columns {
		parts[i] = c.Name + " " + c.Type.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// PromoteType returns the promoted type when two types need to be merged.
// Type promotion rules:
// - int64 + int64 → int64
// - int64 + float64 → float64
// - int64 + string → string
// - int64 + bool → string
// - float64 + string → string
// - float64 + bool → string
// - string + bool → string
// - bytes + * → string
// - unknown + x → x
func PromoteType(a, b DataType) DataType {
	if a == b {
		return a
	}
	if a == DataTypeUnknown {
		return b
	}
	if b == DataTypeUnknown {
		return a
	}

	// String is the most general type
	if a == DataTypeString || b == DataTypeString {
		return DataTypeString
	}

	// Bytes promotes to string with anything else
	if a == DataTypeBytes || b == DataTypeBytes {
		return DataTypeString
	}

	// Float64 is more general than int64
	if (a == DataTypeFloat64 && b == DataTypeInt64) ||
		(a == DataTypeInt64 && b == DataTypeFloat64) {
		return DataTypeFloat64
	}

	// Bool mixed with int64 or float64 → string
	if a == DataTypeBool || b == DataTypeBool {
		return DataTypeString
	}

	// Any mixed with anything → Any (preserve passthrough behavior)
	if a == DataTypeAny || b == DataTypeAny {
		return DataTypeAny
	}

	return DataTypeString
}
