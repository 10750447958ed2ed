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
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/duckdb/duckdb-go/v2"
)

// DB is a single on-disk DuckDB database reached through a bounded pool of
// connections. Every connection sees the same catalog, so a table created
// on one is visible to the rest.
type DB struct {
	path    string
	ownsDir bool // path lives in a directory NewDB created

	dsn      string
	poolSize int

	openOnce sync.Once
	sqlDB    *sql.DB
	openErr  error

	metricsPeriod time.Duration
	stopMetrics   context.CancelFunc
}

// Settings tune the database.
type Settings struct {
	MemoryLimitMB int64  // 0 leaves DuckDB's default
	TempDirectory string // holds the database file and spill files
	PoolSize      int    // 0 picks a size from GOMAXPROCS
	Threads       int    // 0 uses GOMAXPROCS
}

type dbConfig struct {
	path          string
	metricsPeriod time.Duration
	settings      Settings
}

// DBOption configures NewDB.
type DBOption func(*dbConfig)

// WithDatabasePath opens the database at path instead of a scratch file.
// The path is left in place on Close.
func WithDatabasePath(path string) DBOption {
	return func(cfg *dbConfig) {
		if path == "" {
			panic("WithDatabasePath: path must not be empty")
		}
		cfg.path = path
	}
}

// WithMetrics polls DuckDB memory statistics every period (30s when zero)
// until the DB is closed.
func WithMetrics(period time.Duration) DBOption {
	return func(cfg *dbConfig) {
		if period <= 0 {
			period = 30 * time.Second
		}
		cfg.metricsPeriod = period
	}
}

func WithSettings(settings Settings) DBOption {
	return func(cfg *dbConfig) {
		cfg.settings = settings
	}
}

// NewDB prepares a database. Nothing is opened until the first
// GetConnection call.
func NewDB(opts ...DBOption) (*DB, error) {
	var cfg dbConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	s := cfg.settings

	d := &DB{
		path:          cfg.path,
		poolSize:      s.PoolSize,
		metricsPeriod: cfg.metricsPeriod,
	}
	if d.path == "" {
		dir, err := os.MkdirTemp(s.TempDirectory, "duckdb-")
		if err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		d.path = filepath.Join(dir, "rowsets.ddb")
		d.ownsDir = true
	}
	if d.poolSize <= 0 {
		d.poolSize = min(8, max(2, runtime.GOMAXPROCS(0)/2))
	}
	threads := s.Threads
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	d.dsn = buildDSN(d.path, &s, threads)

	slog.Info("Opening duckdb database",
		slog.String("path", d.path),
		slog.Int("poolSize", d.poolSize),
		slog.Int("threads", threads),
		slog.Int64("memoryLimitMB", s.MemoryLimitMB),
	)

	if d.metricsPeriod > 0 {
		var ctx context.Context
		ctx, d.stopMetrics = context.WithCancel(context.Background())
		go d.pollMemoryMetrics(ctx)
	}
	return d, nil
}

// Close releases every connection and, for scratch databases, removes the
// database directory.
func (d *DB) Close() error {
	if d.stopMetrics != nil {
		d.stopMetrics()
	}
	// Ensure a concurrent first open cannot race the close.
	d.openOnce.Do(func() { d.openErr = sql.ErrConnDone })
	if d.sqlDB != nil {
		_ = d.sqlDB.Close()
	}
	if d.ownsDir {
		return os.RemoveAll(filepath.Dir(d.path))
	}
	return nil
}

func (d *DB) GetDatabasePath() string {
	return d.path
}

// GetConnection hands out a pooled connection. Call release when done.
func (d *DB) GetConnection(ctx context.Context) (conn *sql.Conn, release func(), err error) {
	d.openOnce.Do(d.open)
	if d.openErr != nil {
		return nil, nil, d.openErr
	}
	conn, err = d.sqlDB.Conn(ctx)
	if err != nil {
		return nil, nil, err
	}
	return conn, func() { _ = conn.Close() }, nil
}

func (d *DB) open() {
	connector, err := duckdb.NewConnector(d.dsn, initConnection)
	if err != nil {
		d.openErr = fmt.Errorf("duckdb connector: %w", err)
		return
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(d.poolSize)
	db.SetMaxIdleConns(d.poolSize)
	d.sqlDB = db
}

// connectionSetup runs on every new connection. Loads rely on table scans
// returning rows in insertion order.
var connectionSetup = []string{
	"SET preserve_insertion_order = true",
	"PRAGMA enable_object_cache",
}

func initConnection(execer driver.ExecerContext) error {
	for _, stmt := range connectionSetup {
		if _, err := execer.ExecContext(context.Background(), stmt, nil); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}

// buildDSN puts the settings DuckDB accepts at open time into the DSN
// query string.
func buildDSN(path string, s *Settings, threads int) string {
	params := make([]string, 0, 3)
	if s.MemoryLimitMB > 0 {
		params = append(params, fmt.Sprintf("memory_limit=%dMB", s.MemoryLimitMB))
	}
	params = append(params, fmt.Sprintf("threads=%d", threads))
	if s.TempDirectory != "" {
		params = append(params, "temp_directory="+s.TempDirectory)
	}
	return path + "?" + strings.Join(params, "&")
}

func escapeSingle(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
