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

package duckdbx

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/duckdb/duckdb-go/v2"

	"github.com/cardinalhq/songlake/internal/rowset"
	"github.com/cardinalhq/songlake/pipeline"
	"github.com/cardinalhq/songlake/pipeline/wkk"
)

// Engine executes row-set operations as SQL against a DB. Loaded and
// derived row-sets are stored as tables; Select, Where, Distinct and
// LeftJoin only define views over them, so intermediate results take no
// space in the database.
type Engine struct {
	db  *DB
	seq atomic.Int64
}

// NewEngine returns an engine that stores its tables in db.
func NewEngine(db *DB) *Engine {
	return &Engine{db: db}
}

// Table is a row-set held by the engine, either as a stored table or as a
// view over stored tables.
type Table struct {
	engine *Engine
	name   string
	schema *rowset.Schema
	view   bool
}

var _ rowset.RowSet = (*Table)(nil)

func (e *Engine) nextTableName() string {
	return fmt.Sprintf("rs_%d", e.seq.Add(1))
}

// Load copies rs into a new engine table using the DuckDB Appender.
// Columns of type Any are stored as their JSON text.
func (e *Engine) Load(ctx context.Context, rs rowset.RowSet) (*Table, error) {
	if t, ok := rs.(*Table); ok && t.engine == e {
		return t, nil
	}
	rows, err := rs.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return e.loadRows(ctx, rs.Schema(), rows)
}

func (e *Engine) loadRows(ctx context.Context, schema *rowset.Schema, rows []pipeline.Row) (*Table, error) {
	cols := schema.Columns()
	for i := range cols {
		cols[i].Type = storedType(cols[i].Type)
	}
	stored := rowset.NewSchema(cols...)

	conn, release, err := e.db.GetConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	defer release()

	if len(cols) == 0 {
		return nil, fmt.Errorf("load: schema has no columns")
	}

	name := e.nextTableName()
	if _, err := conn.ExecContext(ctx, buildCreateTableSQL(name, cols)); err != nil {
		return nil, fmt.Errorf("create table %s: %w", name, err)
	}

	keys := make([]wkk.RowKey, len(cols))
	for i, c := range cols {
		keys[i] = c.Key()
	}

	err = conn.Raw(func(driverConn any) error {
		rawConn, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("failed to get driver connection")
		}
		appender, err := duckdb.NewAppenderFromConn(rawConn, "main", name)
		if err != nil {
			return fmt.Errorf("create appender: %w", err)
		}

		values := make([]driver.Value, len(cols))
		for n, row := range rows {
			for i, k := range keys {
				v, err := rowset.ConvertValue(row[k], cols[i].Type)
				if err != nil {
					_ = appender.Close()
					return fmt.Errorf("row %d column %s: %w", n, cols[i].Name, err)
				}
				values[i] = v
			}
			if err := appender.AppendRow(values...); err != nil {
				_ = appender.Close()
				return fmt.Errorf("append row %d: %w", n, err)
			}
		}
		return appender.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("load table %s: %w", name, err)
	}

	return &Table{engine: e, name: name, schema: stored}, nil
}

// Name returns the engine table name.
func (t *Table) Name() string {
	return t.name
}

func (t *Table) Schema() *rowset.Schema {
	return t.schema
}

// IsView reports whether the row-set is a view rather than stored rows.
func (t *Table) IsView() bool {
	return t.view
}

// defineView names query as a new view with the given schema. Nothing is
// evaluated until the view is read.
func (t *Table) defineView(ctx context.Context, schema *rowset.Schema, query string) (*Table, error) {
	conn, release, err := t.engine.db.GetConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	defer release()

	name := t.engine.nextTableName()
	if _, err := conn.ExecContext(ctx, "CREATE VIEW "+quoteIdent(name)+" AS "+query); err != nil {
		return nil, fmt.Errorf("create view %s: %w", name, err)
	}
	return &Table{engine: t.engine, name: name, schema: schema, view: true}, nil
}

func (t *Table) Select(ctx context.Context, cols ...rowset.Projection) (rowset.RowSet, error) {
	sources := make([]string, len(cols))
	for i, p := range cols {
		sources[i] = p.Source
	}
	if err := t.schema.Require("select", sources...); err != nil {
		return nil, err
	}

	out := make([]rowset.Column, 0, len(cols))
	exprs := make([]string, 0, len(cols))
	seen := make(map[string]bool, len(cols))
	for _, p := range cols {
		if seen[p.As] {
			return nil, &rowset.DuplicateColumnError{Op: "select", Name: p.As}
		}
		seen[p.As] = true
		src, _ := t.schema.Lookup(p.Source)
		out = append(out, rowset.Column{Name: p.As, Type: src.Type})
		exprs = append(exprs, quoteIdent(p.Source)+" AS "+quoteIdent(p.As))
	}

	query := "SELECT " + strings.Join(exprs, ", ") + " FROM " + quoteIdent(t.name)
	return t.defineView(ctx, rowset.NewSchema(out...), query)
}

func (t *Table) Where(ctx context.Context, pred rowset.Predicate) (rowset.RowSet, error) {
	if err := t.schema.Require("where", pred.Column); err != nil {
		return nil, err
	}
	col, _ := t.schema.Lookup(pred.Column)
	want, err := rowset.ConvertValue(pred.Value, col.Type)
	if err != nil {
		return nil, fmt.Errorf("where %s: %w", pred.Column, err)
	}

	query := "SELECT * FROM " + quoteIdent(t.name)
	if want == nil {
		return t.defineView(ctx, t.schema, query+" WHERE false")
	}
	lit, err := sqlLiteral(want)
	if err != nil {
		return nil, fmt.Errorf("where %s: %w", pred.Column, err)
	}
	return t.defineView(ctx, t.schema, query+" WHERE "+quoteIdent(pred.Column)+" = "+lit)
}

func (t *Table) Distinct(ctx context.Context) (rowset.RowSet, error) {
	return t.defineView(ctx, t.schema, "SELECT DISTINCT * FROM "+quoteIdent(t.name))
}

// Derive runs fn in Go over every row and loads the result as a new table.
func (t *Table) Derive(ctx context.Context, cols []rowset.Column, fn rowset.DeriveFunc) (rowset.RowSet, error) {
	m, err := rowset.FromRowSet(ctx, t)
	if err != nil {
		return nil, err
	}
	derived, err := m.Derive(ctx, cols, fn)
	if err != nil {
		return nil, err
	}
	return t.engine.Load(ctx, derived)
}

func (t *Table) LeftJoin(ctx context.Context, right rowset.RowSet, keys []rowset.JoinKey, cols ...rowset.Projection) (rowset.RowSet, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("left join: at least one key is required")
	}
	rt, err := t.engine.Load(ctx, right)
	if err != nil {
		return nil, fmt.Errorf("left join: %w", err)
	}

	leftKeys := make([]string, len(keys))
	rightKeys := make([]string, len(keys))
	for i, k := range keys {
		leftKeys[i] = k.Left
		rightKeys[i] = k.Right
	}
	if err := t.schema.Require("left join", leftKeys...); err != nil {
		return nil, err
	}
	if err := rt.schema.Require("left join", rightKeys...); err != nil {
		return nil, err
	}

	outCols := t.schema.Columns()
	exprs := []string{"l.*"}
	for _, p := range cols {
		src, ok := rt.schema.Lookup(p.Source)
		if !ok {
			return nil, rt.schema.Require("select", p.Source)
		}
		for _, c := range outCols {
			if c.Name == p.As {
				return nil, &rowset.DuplicateColumnError{Op: "left join", Name: p.As}
			}
		}
		outCols = append(outCols, rowset.Column{Name: p.As, Type: src.Type})
		exprs = append(exprs, "r."+quoteIdent(p.Source)+" AS "+quoteIdent(p.As))
	}

	conds := make([]string, len(keys))
	for i, k := range keys {
		lc, _ := t.schema.Lookup(k.Left)
		rc, _ := rt.schema.Lookup(k.Right)
		sqlType := duckDBType(storedType(rowset.PromoteType(lc.Type, rc.Type)))
		conds[i] = fmt.Sprintf("CAST(l.%s AS %s) = CAST(r.%s AS %s)",
			quoteIdent(k.Left), sqlType, quoteIdent(k.Right), sqlType)
	}

	query := "SELECT " + strings.Join(exprs, ", ") +
		" FROM " + quoteIdent(t.name) + " l LEFT JOIN " + quoteIdent(rt.name) + " r ON " +
		strings.Join(conds, " AND ")
	return t.defineView(ctx, rowset.NewSchema(outCols...), query)
}

func (t *Table) Count(ctx context.Context) (int64, error) {
	conn, release, err := t.engine.db.GetConnection(ctx)
	if err != nil {
		return 0, fmt.Errorf("get connection: %w", err)
	}
	defer release()

	var n int64
	if err := conn.QueryRowContext(ctx, "SELECT count(*) FROM "+quoteIdent(t.name)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.name, err)
	}
	return n, nil
}

func (t *Table) Collect(ctx context.Context) ([]pipeline.Row, error) {
	conn, release, err := t.engine.db.GetConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	defer release()

	cols := t.schema.Columns()
	names := make([]string, len(cols))
	keys := make([]wkk.RowKey, len(cols))
	for i, c := range cols {
		names[i] = quoteIdent(c.Name)
		keys[i] = c.Key()
	}

	rows, err := conn.QueryContext(ctx, "SELECT "+strings.Join(names, ", ")+" FROM "+quoteIdent(t.name))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", t.name, err)
	}
	defer func() { _ = rows.Close() }()

	var out []pipeline.Row
	for rows.Next() {
		targets := make([]any, len(cols))
		for i, c := range cols {
			targets[i] = scanTarget(c.Type)
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		row := make(pipeline.Row, len(cols))
		for i, k := range keys {
			if v := scannedValue(targets[i]); v != nil {
				row[k] = v
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", t.name, err)
	}
	return out, nil
}

// storedType maps row-set types onto the ones the engine stores natively.
func storedType(dt rowset.DataType) rowset.DataType {
	switch dt {
	case rowset.DataTypeInt64, rowset.DataTypeFloat64, rowset.DataTypeBool, rowset.DataTypeBytes:
		return dt
	default:
		return rowset.DataTypeString
	}
}

func duckDBType(dt rowset.DataType) string {
	switch dt {
	case rowset.DataTypeBool:
		return "BOOLEAN"
	case rowset.DataTypeInt64:
		return "BIGINT"
	case rowset.DataTypeFloat64:
		return "DOUBLE"
	case rowset.DataTypeBytes:
		return "BLOB"
	default:
		return "VARCHAR"
	}
}

func buildCreateTableSQL(tableName string, cols []rowset.Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = quoteIdent(c.Name) + " " + duckDBType(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(tableName), strings.Join(defs, ", "))
}

func sqlLiteral(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return "'" + escapeSingle(x) + "'", nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return "CAST('" + strconv.FormatFloat(x, 'g', -1, 64) + "' AS DOUBLE)", nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("unsupported literal type %T", v)
	}
}

func scanTarget(dt rowset.DataType) any {
	switch dt {
	case rowset.DataTypeInt64:
		return new(sql.NullInt64)
	case rowset.DataTypeFloat64:
		return new(sql.NullFloat64)
	case rowset.DataTypeBool:
		return new(sql.NullBool)
	case rowset.DataTypeBytes:
		return new([]byte)
	default:
		return new(sql.NullString)
	}
}

func scannedValue(target any) any {
	switch v := target.(type) {
	case *sql.NullInt64:
		if v.Valid {
			return v.Int64
		}
	case *sql.NullFloat64:
		if v.Valid {
			return v.Float64
		}
	case *sql.NullBool:
		if v.Valid {
			return v.Bool
		}
	case *sql.NullString:
		if v.Valid {
			return v.String
		}
	case *[]byte:
		if *v != nil {
			return *v
		}
	}
	return nil
}
