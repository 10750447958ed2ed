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
	"bytes"
	"context"
	"fmt"
	"reflect"

	"github.com/cardinalhq/songlake/pipeline"
	"github.com/cardinalhq/songlake/pipeline/wkk"
)

// Memory is a RowSet held entirely in process memory.
type Memory struct {
	schema *Schema
	rows   []pipeline.Row
}

var _ RowSet = (*Memory)(nil)

// NewMemory normalizes rows to schema and returns them as a row-set.
// The rows are modified in place.
func NewMemory(schema *Schema, rows []pipeline.Row) (*Memory, error) {
	for i, row := range rows {
		if err := NormalizeRow(row, schema); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return &Memory{schema: schema, rows: rows}, nil
}

// FromRowSet materializes any row-set into memory.
func FromRowSet(ctx context.Context, rs RowSet) (*Memory, error) {
	if m, ok := rs.(*Memory); ok {
		return m, nil
	}
	rows, err := rs.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return &Memory{schema: rs.Schema(), rows: rows}, nil
}

func (m *Memory) Schema() *Schema {
	return m.schema
}

func (m *Memory) Select(ctx context.Context, cols ...Projection) (RowSet, error) {
	schema, err := projectedSchema(m.schema, cols)
	if err != nil {
		return nil, err
	}

	type mapping struct{ from, to wkk.RowKey }
	maps := make([]mapping, len(cols))
	for i, p := range cols {
		maps[i] = mapping{from: wkk.NewRowKey(p.Source), to: wkk.NewRowKey(p.As)}
	}

	out := make([]pipeline.Row, len(m.rows))
	for i, row := range m.rows {
		if i%4096 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		nr := make(pipeline.Row, len(maps))
		for _, mp := range maps {
			if v, ok := row[mp.from]; ok && v != nil {
				nr[mp.to] = v
			}
		}
		out[i] = nr
	}
	return &Memory{schema: schema, rows: out}, nil
}

func (m *Memory) Where(ctx context.Context, pred Predicate) (RowSet, error) {
	if err := m.schema.Require("where", pred.Column); err != nil {
		return nil, err
	}
	col, _ := m.schema.Lookup(pred.Column)
	want, err := ConvertValue(pred.Value, col.Type)
	if err != nil {
		return nil, fmt.Errorf("where %s: %w", pred.Column, err)
	}
	if want == nil {
		return &Memory{schema: m.schema}, nil
	}

	key := col.Key()
	var out []pipeline.Row
	for i, row := range m.rows {
		if i%4096 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		v, ok := row[key]
		if !ok || v == nil {
			continue
		}
		if valuesEqual(v, want) {
			out = append(out, row)
		}
	}
	return &Memory{schema: m.schema, rows: out}, nil
}

func (m *Memory) Distinct(ctx context.Context) (RowSet, error) {
	keys := schemaKeys(m.schema)
	seen := newFingerprintSet[struct{}]()
	var out []pipeline.Row
	for i, row := range m.rows {
		if i%4096 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		enc, err := encodeValues(row, keys)
		if err != nil {
			return nil, err
		}
		if seen.insert(enc, struct{}{}) {
			out = append(out, row)
		}
	}
	return &Memory{schema: m.schema, rows: out}, nil
}

func (m *Memory) Derive(ctx context.Context, cols []Column, fn DeriveFunc) (RowSet, error) {
	schema, err := derivedSchema(m.schema, cols)
	if err != nil {
		return nil, err
	}

	out := make([]pipeline.Row, len(m.rows))
	for i, row := range m.rows {
		if i%4096 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		nr := pipeline.CopyRow(row)
		if err := fn(row, nr); err != nil {
			return nil, fmt.Errorf("derive row %d: %w", i, err)
		}
		if err := NormalizeRow(nr, schema); err != nil {
			return nil, fmt.Errorf("derive row %d: %w", i, err)
		}
		out[i] = nr
	}
	return &Memory{schema: schema, rows: out}, nil
}

func (m *Memory) LeftJoin(ctx context.Context, right RowSet, keys []JoinKey, cols ...Projection) (RowSet, error) {
	schema, err := joinedSchema(m.schema, right.Schema(), keys, cols)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("left join: at least one key is required")
	}

	rm, err := FromRowSet(ctx, right)
	if err != nil {
		return nil, fmt.Errorf("left join: %w", err)
	}

	leftKeys := make([]wkk.RowKey, len(keys))
	rightKeys := make([]wkk.RowKey, len(keys))
	keyTypes := make([]DataType, len(keys))
	for i, k := range keys {
		lc, _ := m.schema.Lookup(k.Left)
		rc, _ := rm.schema.Lookup(k.Right)
		leftKeys[i] = lc.Key()
		rightKeys[i] = rc.Key()
		keyTypes[i] = PromoteType(lc.Type, rc.Type)
	}

	// Build side: right rows indexed by their join key.
	index := newFingerprintSet[[]int]()
	for i, row := range rm.rows {
		enc, ok, err := encodeJoinKey(row, rightKeys, keyTypes)
		if err != nil {
			return nil, fmt.Errorf("left join: %w", err)
		}
		if !ok {
			continue
		}
		if matches, found := index.get(enc); found {
			*matches = append(*matches, i)
			continue
		}
		index.insert(enc, []int{i})
	}

	type mapping struct{ from, to wkk.RowKey }
	proj := make([]mapping, len(cols))
	for i, p := range cols {
		proj[i] = mapping{from: wkk.NewRowKey(p.Source), to: wkk.NewRowKey(p.As)}
	}

	out := make([]pipeline.Row, 0, len(m.rows))
	for i, row := range m.rows {
		if i%4096 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		enc, ok, err := encodeJoinKey(row, leftKeys, keyTypes)
		if err != nil {
			return nil, fmt.Errorf("left join: %w", err)
		}
		var matches []int
		if ok {
			if found, hit := index.get(enc); hit {
				matches = *found
			}
		}
		if len(matches) == 0 {
			out = append(out, pipeline.CopyRow(row))
			continue
		}
		for _, ri := range matches {
			nr := pipeline.CopyRow(row)
			for _, mp := range proj {
				if v, ok := rm.rows[ri][mp.from]; ok && v != nil {
					nr[mp.to] = v
				}
			}
			out = append(out, nr)
		}
	}
	return &Memory{schema: schema, rows: out}, nil
}

func (m *Memory) Count(_ context.Context) (int64, error) {
	return int64(len(m.rows)), nil
}

func (m *Memory) Collect(_ context.Context) ([]pipeline.Row, error) {
	return m.rows, nil
}

// Rows returns the rows without copying.
func (m *Memory) Rows() []pipeline.Row {
	return m.rows
}

func schemaKeys(s *Schema) []wkk.RowKey {
	cols := s.Columns()
	keys := make([]wkk.RowKey, len(cols))
	for i, c := range cols {
		keys[i] = c.Key()
	}
	return keys
}

// encodeJoinKey coerces the key values to their join types and encodes them.
// ok is false when any key value is null.
func encodeJoinKey(row pipeline.Row, keys []wkk.RowKey, types []DataType) ([]byte, bool, error) {
	vals := make([]any, len(keys))
	for i, k := range keys {
		v, present := row[k]
		if !present || v == nil {
			return nil, false, nil
		}
		cv, err := ConvertValue(v, types[i])
		if err != nil {
			return nil, false, fmt.Errorf("join key %s: %w", wkk.RowKeyValue(k), err)
		}
		vals[i] = cv
	}
	enc, err := encodeSlice(vals)
	if err != nil {
		return nil, false, err
	}
	return enc, true, nil
}

func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	default:
		return reflect.DeepEqual(a, b)
	}
}
