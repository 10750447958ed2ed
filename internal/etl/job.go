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
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/songlake/internal/cloudstorage"
	"github.com/cardinalhq/songlake/internal/filereader"
	"github.com/cardinalhq/songlake/internal/logctx"
	"github.com/cardinalhq/songlake/internal/parquetwriter"
	"github.com/cardinalhq/songlake/internal/rowset"
	"github.com/cardinalhq/songlake/internal/starschema"
)

// Source paths relative to the input location.
const (
	SongDataPattern = "song_data/*/*/*/*.json"
	LogDataPattern  = "log_data/*.json"
	SongDataDir     = "song_data"
)

// Output tables and their partition columns.
var (
	SongsTable     = Table{Name: "songs", Path: "songs/songs.parquet", PartitionBy: []string{"year", "artist_id"}}
	ArtistsTable   = Table{Name: "artists", Path: "artists/artists.parquet"}
	UsersTable     = Table{Name: "users", Path: "users/users.parquet"}
	TimeTable      = Table{Name: "time", Path: "time/time.parquet", PartitionBy: []string{"year", "month"}}
	SongplaysTable = Table{Name: "songplays", Path: "songplays/songplays.parquet", PartitionBy: []string{"year", "month"}}
)

// Table describes one output table.
type Table struct {
	Name        string
	Path        string
	PartitionBy []string
}

// TableResult reports what was written for one table.
type TableResult struct {
	Table       string
	Destination string
	Rows        int64
	Files       int
	Partitions  int
	Duration    time.Duration
}

// Loader places source records into the engine that runs the transforms.
type Loader func(ctx context.Context, rs *rowset.Memory) (rowset.RowSet, error)

// MemoryLoader runs the transforms on the records as read.
func MemoryLoader(_ context.Context, rs *rowset.Memory) (rowset.RowSet, error) {
	return rs, nil
}

// Config holds the job's locations and derivation settings.
type Config struct {
	Input    string
	Output   string
	TimeZone *time.Location
}

// Job extracts song and log records, reshapes them into the star schema and
// writes the five tables.
type Job struct {
	config Config
	input  cloudstorage.Location
	output cloudstorage.Location
	reader *filereader.Reader
	writer *parquetwriter.PartitionedWriter
	load   Loader

	mu      sync.Mutex
	results []TableResult
}

// JobOption configures a Job.
type JobOption func(*Job)

// WithLoader sets the engine loader. The default keeps records in memory.
func WithLoader(l Loader) JobOption {
	return func(j *Job) { j.load = l }
}

// NewJob validates the input and output locations and returns a Job.
func NewJob(config Config, reader *filereader.Reader, writer *parquetwriter.PartitionedWriter, opts ...JobOption) (*Job, error) {
	input, err := cloudstorage.ParseLocation(config.Input)
	if err != nil {
		return nil, fmt.Errorf("input location: %w", err)
	}
	output, err := cloudstorage.ParseLocation(config.Output)
	if err != nil {
		return nil, fmt.Errorf("output location: %w", err)
	}
	if config.TimeZone == nil {
		config.TimeZone = time.UTC
	}
	j := &Job{
		config: config,
		input:  input,
		output: output,
		reader: reader,
		writer: writer,
		load:   MemoryLoader,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Run processes song data and log data concurrently. The first failure
// cancels the other pipeline and is returned.
func (j *Job) Run(ctx context.Context) ([]TableResult, error) {
	ll := logctx.FromContext(ctx)
	start := time.Now()
	ll.Info("Starting run",
		slog.String("input", j.input.String()),
		slog.String("output", j.output.String()),
		slog.String("timeZone", j.config.TimeZone.String()),
		slog.String("runID", j.writer.RunID()))

	j.mu.Lock()
	j.results = nil
	j.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return j.ProcessSongData(gctx) })
	g.Go(func() error { return j.ProcessLogData(gctx) })
	err := g.Wait()

	results := j.Results()
	if err != nil {
		runsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "failed")))
		return results, err
	}
	runsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "succeeded")))
	ll.Info("Run complete",
		slog.Int("tables", len(results)),
		slog.Duration("duration", time.Since(start)))
	return results, nil
}

// Results returns the tables written so far, ordered by name.
func (j *Job) Results() []TableResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := slices.Clone(j.results)
	slices.SortFunc(out, func(a, b TableResult) int { return strings.Compare(a.Table, b.Table) })
	return out
}

// ProcessSongData builds the songs and artists tables from the song records.
func (j *Job) ProcessSongData(ctx context.Context) error {
	ctx = logctx.With(ctx, slog.String("pipeline", "song_data"))
	songs, err := j.readSource(ctx, SongDataPattern, false)
	if err != nil {
		return fmt.Errorf("process song data: %w", err)
	}

	songsTbl, artistsTbl, err := starschema.BuildSongTables(ctx, songs)
	if err != nil {
		return fmt.Errorf("process song data: %w", err)
	}
	if err := j.writeTable(ctx, SongsTable, songsTbl); err != nil {
		return fmt.Errorf("process song data: %w", err)
	}
	if err := j.writeTable(ctx, ArtistsTable, artistsTbl); err != nil {
		return fmt.Errorf("process song data: %w", err)
	}
	return nil
}

// ProcessLogData builds the users, time and songplays tables from the log
// records. The songplays join reads every song record under song_data.
func (j *Job) ProcessLogData(ctx context.Context) error {
	ctx = logctx.With(ctx, slog.String("pipeline", "log_data"))
	logs, err := j.readSource(ctx, LogDataPattern, false)
	if err != nil {
		return fmt.Errorf("process log data: %w", err)
	}

	plays, err := starschema.FilterSongPlays(ctx, logs)
	if err != nil {
		return fmt.Errorf("process log data: %w", err)
	}

	users, err := starschema.BuildUsersTable(ctx, plays)
	if err != nil {
		return fmt.Errorf("process log data: %w", err)
	}
	if err := j.writeTable(ctx, UsersTable, users); err != nil {
		return fmt.Errorf("process log data: %w", err)
	}

	timeTbl, err := starschema.BuildTimeTable(ctx, plays, j.config.TimeZone)
	if err != nil {
		return fmt.Errorf("process log data: %w", err)
	}
	if err := j.writeTable(ctx, TimeTable, timeTbl); err != nil {
		return fmt.Errorf("process log data: %w", err)
	}

	songs, err := j.readSource(ctx, SongDataDir, true)
	if err != nil {
		return fmt.Errorf("process log data: %w", err)
	}
	songplays, err := starschema.BuildSongplaysTable(ctx, plays, songs, j.config.TimeZone)
	if err != nil {
		return fmt.Errorf("process log data: %w", err)
	}
	if err := j.writeTable(ctx, SongplaysTable, songplays); err != nil {
		return fmt.Errorf("process log data: %w", err)
	}
	return nil
}

func (j *Job) readSource(ctx context.Context, rel string, recursive bool) (rowset.RowSet, error) {
	url := j.input.Join(rel).String()
	var (
		m   *rowset.Memory
		err error
	)
	if recursive {
		m, err = j.reader.ReadDirectory(ctx, url)
	} else {
		m, err = j.reader.Read(ctx, url)
	}
	if err != nil {
		return nil, err
	}
	rs, err := j.load(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", url, err)
	}
	return rs, nil
}

func (j *Job) writeTable(ctx context.Context, t Table, rs rowset.RowSet) error {
	start := time.Now()
	dest := j.output.Join(t.Path).String()
	stats, err := j.writer.Write(ctx, rs, dest, t.PartitionBy...)
	if err != nil {
		return fmt.Errorf("write %s table: %w", t.Name, err)
	}

	res := TableResult{
		Table:       t.Name,
		Destination: dest,
		Rows:        stats.Rows,
		Files:       stats.Files,
		Partitions:  stats.Partitions,
		Duration:    time.Since(start),
	}
	j.mu.Lock()
	j.results = append(j.results, res)
	j.mu.Unlock()

	tableRows.Add(ctx, res.Rows, metric.WithAttributes(attribute.String("table", t.Name)))
	logctx.FromContext(ctx).Info("Table written",
		slog.String("table", t.Name),
		slog.String("destination", dest),
		slog.Int64("rows", res.Rows),
		slog.Int("files", res.Files),
		slog.Int("partitions", res.Partitions),
		slog.Duration("duration", res.Duration))
	return nil
}
