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

package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/cardinalhq/songlake/internal/duckdbx"
	"github.com/cardinalhq/songlake/internal/rowset"
)

// Engine names accepted by ParseEngine.
const (
	EngineMemory = "memory"
	EngineDuckDB = "duckdb"
)

// DuckDBLoader copies source records into tables of e so the transforms run
// as SQL.
func DuckDBLoader(e *duckdbx.Engine) Loader {
	return func(ctx context.Context, rs *rowset.Memory) (rowset.RowSet, error) {
		return e.Load(ctx, rs)
	}
}

// NewLoader returns the loader for the named engine and a function that
// releases whatever it opened.
func NewLoader(name string, settings duckdbx.Settings) (Loader, func() error, error) {
	switch name {
	case "", EngineMemory:
		return MemoryLoader, func() error { return nil }, nil
	case EngineDuckDB:
		db, err := duckdbx.NewDB(
			duckdbx.WithSettings(settings),
			duckdbx.WithMetrics(30*time.Second),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("open duckdb: %w", err)
		}
		return DuckDBLoader(duckdbx.NewEngine(db)), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown engine %q (want %q or %q)", name, EngineMemory, EngineDuckDB)
	}
}
