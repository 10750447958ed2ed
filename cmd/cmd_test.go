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

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/songlake/config"
	"github.com/cardinalhq/songlake/internal/cloudstorage"
)

func writeInput(t *testing.T, root, rel string, lines ...string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func runLocal(t *testing.T, engine string) (string, map[string]int64) {
	t.Helper()
	input, output := t.TempDir(), t.TempDir()
	writeInput(t, input, "song_data/A/A/A/TRAAAAW128F429D538.json",
		`{"num_songs": 1, "artist_id": "ARD7TVE1187B99BFB1", "artist_latitude": null, "artist_longitude": null, "artist_location": "California - LA", "artist_name": "Casual", "song_id": "SOMZWCG12A8C13C480", "title": "I Didn't Mean To", "duration": 218.93179, "year": 0}`)
	writeInput(t, input, "log_data/2018-11-15-events.json",
		`{"artist":"Casual","firstName":"Lily","gender":"F","lastName":"Koch","level":"free","location":"Chicago","page":"NextSong","sessionId":818,"song":"I Didn't Mean To","ts":1542241826796,"userAgent":"Mozilla/5.0","userId":"26"}`,
		`{"artist":null,"firstName":"Lily","gender":"F","lastName":"Koch","level":"free","location":"Chicago","page":"Home","sessionId":818,"song":null,"ts":1542241900000,"userAgent":"Mozilla/5.0","userId":"26"}`)

	cfg := config.DefaultConfig()
	cfg.ETL.Input = "file://" + input
	cfg.ETL.Output = "file://" + output
	cfg.ETL.Engine = engine
	cfg.ETL.TmpDir = t.TempDir()

	results, err := runETL(context.Background(), cfg)
	require.NoError(t, err)
	counts := map[string]int64{}
	for _, r := range results {
		counts[r.Table] = r.Rows
	}
	return output, counts
}

func TestRunETL(t *testing.T) {
	for _, engine := range []string{"memory", "duckdb"} {
		t.Run(engine, func(t *testing.T) {
			_, counts := runLocal(t, engine)
			assert.Equal(t, map[string]int64{
				"artists": 1, "songplays": 1, "songs": 1, "time": 1, "users": 1,
			}, counts)
		})
	}
}

func TestRunETLBadTimeZone(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ETL.TimeZone = "Nowhere/Special"
	_, err := runETL(context.Background(), cfg)
	assert.Error(t, err)
}

func TestParquetCatAndSchema(t *testing.T) {
	output, _ := runLocal(t, "memory")

	var buf bytes.Buffer
	err := runParquetCat(context.Background(), &buf, cloudstorage.NewFileClientProvider(""), "file://"+filepath.Join(output, "time/time.parquet"), 0)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var row map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &row))
	assert.Equal(t, "Thu", row["weekday"])
	assert.EqualValues(t, 2018, row["year"])
	assert.EqualValues(t, 11, row["month"])
	assert.EqualValues(t, 1542241826796, row["ts"])

	parts, err := filepath.Glob(filepath.Join(output, "time", "time.parquet", "year=2018", "month=11", "*.parquet"))
	require.NoError(t, err)
	require.Len(t, parts, 1)

	buf.Reset()
	require.NoError(t, runParquetSchema(&buf, parts[0]))
	schema := buf.String()
	assert.Contains(t, schema, "weekday")
	assert.Contains(t, schema, "hour")
	assert.NotContains(t, schema, "month", "partition columns are not stored in part files")
}

func TestParquetCatLimit(t *testing.T) {
	out, _ := runLocal(t, "memory")
	var buf bytes.Buffer
	require.NoError(t, runParquetCat(context.Background(), &buf, cloudstorage.NewFileClientProvider(""), "file://"+filepath.Join(out, "users/users.parquet"), 1))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestParquetCatMissingTable(t *testing.T) {
	var buf bytes.Buffer
	err := runParquetCat(context.Background(), &buf, cloudstorage.NewFileClientProvider(""), "file://"+t.TempDir(), 0)
	assert.Error(t, err)
}
