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
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(WithSettings(Settings{TempDirectory: t.TempDir(), PoolSize: 2}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestTablesVisibleAcrossConnections(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	writer, releaseWriter, err := db.GetConnection(ctx)
	require.NoError(t, err)
	defer releaseWriter()

	_, err = writer.ExecContext(ctx, `CREATE TABLE songs (song_id VARCHAR, year BIGINT)`)
	require.NoError(t, err)
	_, err = writer.ExecContext(ctx, `INSERT INTO songs VALUES ('SOUPIRU12A6D4FA1E1', 0), ('SOZCTXZ12AB0182364', 2004)`)
	require.NoError(t, err)

	reader, releaseReader, err := db.GetConnection(ctx)
	require.NoError(t, err)
	defer releaseReader()

	var n int
	require.NoError(t, reader.QueryRowContext(ctx, `SELECT count(*) FROM songs WHERE year > 0`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	conn, release, err := db.GetConnection(ctx)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `CREATE TABLE plays (session_id BIGINT)`)
	require.NoError(t, err)
	release()

	const workers = 10
	errs := make(chan error, workers)
	for i := range workers {
		go func(session int) {
			conn, release, err := db.GetConnection(ctx)
			if err != nil {
				errs <- fmt.Errorf("connection %d: %w", session, err)
				return
			}
			defer release()
			_, err = conn.ExecContext(ctx, `INSERT INTO plays VALUES (?)`, session)
			errs <- err
		}(i)
	}
	for range workers {
		require.NoError(t, <-errs)
	}

	conn, release, err = db.GetConnection(ctx)
	require.NoError(t, err)
	defer release()

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT count(DISTINCT session_id) FROM plays`).Scan(&n))
	assert.Equal(t, workers, n)
}

func TestGetConnectionAfterClose(t *testing.T) {
	db, err := NewDB(WithSettings(Settings{TempDirectory: t.TempDir()}))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, _, err = db.GetConnection(context.Background())
	assert.Error(t, err)
}

func TestWithDatabasePathEmptyPanics(t *testing.T) {
	assert.PanicsWithValue(t, "WithDatabasePath: path must not be empty", func() {
		WithDatabasePath("")(&dbConfig{})
	})
}

func TestCloseDoesNotDeleteUserProvidedPaths(t *testing.T) {
	ctx := context.Background()

	t.Run("UserProvidedPath", func(t *testing.T) {
		testDir := t.TempDir()
		dbPath := filepath.Join(testDir, "my.ddb")
		otherFile := filepath.Join(testDir, "important.txt")
		require.NoError(t, os.WriteFile(otherFile, []byte("important data"), 0644))

		db, err := NewDB(WithDatabasePath(dbPath))
		require.NoError(t, err)
		assert.Equal(t, dbPath, db.GetDatabasePath())

		conn, release, err := db.GetConnection(ctx)
		require.NoError(t, err)
		_, err = conn.ExecContext(ctx, `SELECT 1`)
		require.NoError(t, err)
		release()
		require.NoError(t, db.Close())

		_, err = os.Stat(otherFile)
		assert.NoError(t, err)
		_, err = os.Stat(dbPath)
		assert.NoError(t, err)
	})

	t.Run("InternalTempPath", func(t *testing.T) {
		db, err := NewDB(WithSettings(Settings{TempDirectory: t.TempDir()}))
		require.NoError(t, err)
		dbDir := filepath.Dir(db.GetDatabasePath())

		conn, release, err := db.GetConnection(ctx)
		require.NoError(t, err)
		_, err = conn.ExecContext(ctx, `SELECT 1`)
		require.NoError(t, err)
		release()
		require.NoError(t, db.Close())

		_, err = os.Stat(dbDir)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN("/tmp/x.ddb", &Settings{MemoryLimitMB: 512, TempDirectory: "/tmp/spill"}, 4)
	assert.Equal(t, "/tmp/x.ddb?memory_limit=512MB&threads=4&temp_directory=/tmp/spill", dsn)
}

func TestParseSize(t *testing.T) {
	tests := map[string]int64{
		"0 bytes":   0,
		"512 bytes": 512,
		"1.5 KiB":   1536,
		"2 MiB":     2 * 1024 * 1024,
		"1 GiB":     1024 * 1024 * 1024,
		"42":        42,
		"":          0,
		"abc":       0,
		"3 parsecs": 0,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseSize(in), in)
	}
}
