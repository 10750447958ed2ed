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

// Package rowset defines the row-set abstraction the star-schema builders are
// written against: an ordered sequence of rows over named, typed columns that
// supports projection, filtering, full-row deduplication, per-row derivation,
// and an equi left outer join.
//
// Memory is the in-process implementation. Other packages provide engine-backed
// implementations of the same interface.
package rowset

import (
	"context"

	"github.com/cardinalhq/songlake/pipeline"
)

// RowSet is an immutable collection of rows with a fixed schema.
// Every operation returns a new RowSet and leaves the receiver untouched.
type RowSet interface {
	// Schema returns the columns of every row.
	Schema() *Schema

	// Select projects (and optionally renames) columns, one output row per input row.
	// Referencing an absent column returns a *SchemaError.
	Select(ctx context.Context, cols ...Projection) (RowSet, error)

	// Where retains only the rows matching pred.
	Where(ctx context.Context, pred Predicate) (RowSet, error)

	// Distinct removes rows that are equal in every column. Nulls compare equal.
	Distinct(ctx context.Context) (RowSet, error)

	// Derive appends the given columns, computed per row by fn.
	Derive(ctx context.Context, cols []Column, fn DeriveFunc) (RowSet, error)

	// LeftJoin keeps every row of the receiver and appends the projected columns
	// of each matching right row. A left row with several matches produces one
	// output row per match; a left row with none gets nulls. Null keys never match.
	LeftJoin(ctx context.Context, right RowSet, keys []JoinKey, cols ...Projection) (RowSet, error)

	// Count returns the number of rows.
	Count(ctx context.Context) (int64, error)

	// Collect materializes every row. Rows hold values of their column's type
	// or no entry for null. Callers must not modify the returned rows.
	Collect(ctx context.Context) ([]pipeline.Row, error)
}

// Projection selects column Source and names it As in the output.
type Projection struct {
	Source string
	As     string
}

// Col projects a column under its own name.
func Col(name string) Projection {
	return Projection{Source: name, As: name}
}

// Rename projects column source under a new name.
func Rename(source, as string) Projection {
	return Projection{Source: source, As: as}
}

// Cols projects each named column under its own name.
func Cols(names ...string) []Projection {
	out := make([]Projection, len(names))
	for i, n := range names {
		out[i] = Col(n)
	}
	return out
}

// JoinKey pairs a left column with the right column it must equal.
type JoinKey struct {
	Left  string
	Right string
}

// Op is a comparison operator for predicates.
type Op int

const (
	OpEq Op = iota
)

// Predicate compares a column against a literal value. A null column value
// never satisfies a predicate.
type Predicate struct {
	Column string
	Op     Op
	Value  any
}

// Eq matches rows whose column equals value.
func Eq(column string, value any) Predicate {
	return Predicate{Column: column, Op: OpEq, Value: value}
}

// DeriveFunc computes derived columns for one row. The function reads the
// input row and sets the derived columns on out; out starts as a copy of in.
type DeriveFunc func(in pipeline.Row, out pipeline.Row) error

// projectedSchema validates projections against the input schema and returns
// the output schema.
func projectedSchema(in *Schema, cols []Projection) (*Schema, error) {
	sources := make([]string, len(cols))
	for i, p := range cols {
		sources[i] = p.Source
	}
	if err := in.Require("select", sources...); err != nil {
		return nil, err
	}

	out := make([]Column, 0, len(cols))
	seen := make(map[string]bool, len(cols))
	for _, p := range cols {
		if seen[p.As] {
			return nil, &DuplicateColumnError{Op: "select", Name: p.As}
		}
		seen[p.As] = true
		src, _ := in.Lookup(p.Source)
		out = append(out, Column{Name: p.As, Type: src.Type})
	}
	return NewSchema(out...), nil
}

// joinedSchema validates a left join and returns its output schema.
func joinedSchema(left, right *Schema, keys []JoinKey, cols []Projection) (*Schema, error) {
	leftKeys := make([]string, len(keys))
	rightKeys := make([]string, len(keys))
	for i, k := range keys {
		leftKeys[i] = k.Left
		rightKeys[i] = k.Right
	}
	if err := left.Require("left join", leftKeys...); err != nil {
		return nil, err
	}
	if err := right.Require("left join", rightKeys...); err != nil {
		return nil, err
	}

	projected, err := projectedSchema(right, cols)
	if err != nil {
		return nil, err
	}

	out := left.Columns()
	for _, c := range projected.Columns() {
		if left.Has(c.Name) {
			return nil, &DuplicateColumnError{Op: "left join", Name: c.Name}
		}
		out = append(out, c)
	}
	return NewSchema(out...), nil
}

// derivedSchema validates derived columns and returns the output schema.
func derivedSchema(in *Schema, cols []Column) (*Schema, error) {
	out := in.Columns()
	for _, c := range cols {
		if in.Has(c.Name) {
			return nil, &DuplicateColumnError{Op: "derive", Name: c.Name}
		}
		out = append(out, c)
	}
	return NewSchema(out...), nil
}

// DuplicateColumnError reports an operation that would produce two columns with one name.
type DuplicateColumnError struct {
	Op   string
	Name string
}

func (e *DuplicateColumnError) Error() string {
	return e.Op + ": duplicate output column " + e.Name
}
