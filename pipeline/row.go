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

package pipeline

import (
	"maps"

	"github.com/cardinalhq/songlake/pipeline/wkk"
)

// Row represents a single data row as a map of RowKey to any value.
// A missing key and a nil value both mean null.
type Row map[wkk.RowKey]any

// CopyRow creates a shallow copy of a row.
func CopyRow(in Row) Row {
	out := make(Row, len(in))
	maps.Copy(out, in)
	return out
}

// ToStringMap converts a Row to map[string]any for encoders that need string keys.
func ToStringMap(row Row) map[string]any {
	result := make(map[string]any, len(row))
	for key, value := range row {
		result[string(key.Value())] = value
	}
	return result
}

// FromStringMap interns the keys of a string-keyed map into a Row.
func FromStringMap(m map[string]any) Row {
	row := make(Row, len(m))
	for k, v := range m {
		row[wkk.NewRowKey(k)] = v
	}
	return row
}

// GetString returns the value under key when it is a string, else "".
func (r Row) GetString(key wkk.RowKey) string {
	s, _ := r[key].(string)
	return s
}

// GetInt64 returns the value under key as an int64. Floats are truncated.
func (r Row) GetInt64(key wkk.RowKey) (int64, bool) {
	switch v := r[key].(type) {
	case float64:
		return int64(v), true
	case float32:
		return int64(v), true
	default:
		return asInt64(v)
	}
}

// GetFloat64 returns the value under key as a float64, widening integers.
func (r Row) GetFloat64(key wkk.RowKey) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	default:
		i, ok := asInt64(v)
		return float64(i), ok
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	}
	return 0, false
}

// IsNull reports whether the key is absent or holds nil.
func (r Row) IsNull(key wkk.RowKey) bool {
	v, ok := r[key]
	return !ok || v == nil
}
