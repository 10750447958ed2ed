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

package parquetwriter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/songlake/internal/cloudstorage"
	"github.com/cardinalhq/songlake/internal/constants"
	"github.com/cardinalhq/songlake/internal/logctx"
	"github.com/cardinalhq/songlake/internal/parquetwriter/schemabuilder"
	"github.com/cardinalhq/songlake/internal/rowset"
	"github.com/cardinalhq/songlake/pipeline"
	"github.com/cardinalhq/songlake/pipeline/wkk"
)

// PartitionedWriter persists row-sets as Hive-partitioned Parquet tables,
// replacing whatever was stored at the destination before.
type PartitionedWriter struct {
	provider cloudstorage.ClientProvider
	config   WriterConfig
}

// WriteStats summarizes one table write.
type WriteStats struct {
	Rows       int64
	Files      int
	Partitions int
}

type partFile struct {
	key  string
	rows []pipeline.Row
}

// NewPartitionedWriter validates config and returns a writer.
func NewPartitionedWriter(provider cloudstorage.ClientProvider, config WriterConfig) (*PartitionedWriter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.RunID == "" {
		config.RunID = uuid.NewString()
	}
	return &PartitionedWriter{provider: provider, config: config}, nil
}

// RunID returns the identifier embedded in part file names.
func (w *PartitionedWriter) RunID() string {
	return w.config.RunID
}

// Write stores rs at destination, one directory level per partition column
// in the order given. Partition columns are encoded in the directory names
// and left out of the files. Existing objects under destination are deleted
// first, and a _SUCCESS marker is written once every part file is uploaded.
func (w *PartitionedWriter) Write(ctx context.Context, rs rowset.RowSet, destination string, partitionCols ...string) (WriteStats, error) {
	schema := rs.Schema()
	if err := schema.Require("write", partitionCols...); err != nil {
		return WriteStats{}, err
	}
	sinkErr := func(err error) error {
		return &SinkWriteError{Destination: destination, Err: err}
	}

	loc, err := cloudstorage.ParseLocation(destination)
	if err != nil {
		return WriteStats{}, sinkErr(err)
	}
	if loc.Key == "" {
		return WriteStats{}, sinkErr(fmt.Errorf("refusing to overwrite the root of %q", loc.Bucket))
	}
	if dup := firstDuplicate(partitionCols); dup != "" {
		return WriteStats{}, sinkErr(fmt.Errorf("partition column %q given twice", dup))
	}

	nodes, err := schemabuilder.BuildFromSchema(schema, partitionCols...)
	if err != nil {
		return WriteStats{}, sinkErr(err)
	}
	if len(nodes) == 0 {
		return WriteStats{}, sinkErr(errors.New("cannot use all columns as partition columns"))
	}
	pschema := schemabuilder.NewSchema(nodes)

	var dataCols []rowset.Column
	for _, col := range schema.Columns() {
		if !slices.Contains(partitionCols, col.Name) {
			dataCols = append(dataCols, col)
		}
	}

	start := time.Now()
	rows, err := rs.Collect(ctx)
	if err != nil {
		return WriteStats{}, fmt.Errorf("collect rows for %s: %w", destination, err)
	}

	files, partitions := w.planFiles(loc, rows, partitionCols)

	client, err := w.provider.NewClient(ctx, loc)
	if err != nil {
		return WriteStats{}, sinkErr(err)
	}
	if err := clearDestination(ctx, client, loc); err != nil {
		return WriteStats{}, sinkErr(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.GetConcurrency())
	for _, pf := range files {
		g.Go(func() error {
			if err := w.writeFile(gctx, client, loc.Bucket, pf, pschema, dataCols); err != nil {
				return fmt.Errorf("part file %s: %w", pf.key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return WriteStats{}, sinkErr(err)
	}

	if err := w.writeMarker(ctx, client, loc); err != nil {
		return WriteStats{}, sinkErr(err)
	}

	table := path.Base(loc.Key)
	attrs := metric.WithAttributes(attribute.String("table", table))
	rowsWritten.Add(ctx, int64(len(rows)), attrs)
	filesWritten.Add(ctx, int64(len(files)), attrs)

	stats := WriteStats{Rows: int64(len(rows)), Files: len(files), Partitions: partitions}
	logctx.FromContext(ctx).Info("Wrote table",
		slog.String("destination", loc.String()),
		slog.Int64("rows", stats.Rows),
		slog.Int("files", stats.Files),
		slog.Int("partitions", stats.Partitions),
		slog.Duration("duration", time.Since(start)))
	return stats, nil
}

// planFiles groups rows by partition directory and splits each group into
// part files. An unpartitioned write always produces at least one file so
// the table schema survives an empty input.
func (w *PartitionedWriter) planFiles(loc cloudstorage.Location, rows []pipeline.Row, partitionCols []string) ([]partFile, int) {
	groups := make(map[string][]pipeline.Row)
	values := make([]any, len(partitionCols))
	for _, row := range rows {
		for i, name := range partitionCols {
			values[i] = row[wkk.NewRowKey(name)]
		}
		dir := partitionPath(partitionCols, values)
		groups[dir] = append(groups[dir], row)
	}
	if len(partitionCols) == 0 && len(groups) == 0 {
		groups[""] = nil
	}

	dirs := make([]string, 0, len(groups))
	for dir := range groups {
		dirs = append(dirs, dir)
	}
	slices.Sort(dirs)

	limit := int(w.config.GetRecordsPerFile())
	var files []partFile
	for _, dir := range dirs {
		group := groups[dir]
		part := 0
		for {
			n := len(group)
			if limit > 0 && n > limit {
				n = limit
			}
			name := fmt.Sprintf("part-%05d-%s.parquet", part, w.config.RunID)
			files = append(files, partFile{key: loc.Join(dir, name).Key, rows: group[:n]})
			group = group[n:]
			part++
			if len(group) == 0 {
				break
			}
		}
	}
	partitions := len(dirs)
	if len(partitionCols) == 0 {
		partitions = 0
	}
	return files, partitions
}

// clearDestination deletes the object at the destination key and every
// object below it.
func clearDestination(ctx context.Context, client cloudstorage.Client, loc cloudstorage.Location) error {
	objs, err := client.ListObjects(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return fmt.Errorf("list existing objects: %w", err)
	}
	prefix := loc.Prefix()
	var keys []string
	for _, obj := range objs {
		if obj.Key == loc.Key || strings.HasPrefix(obj.Key, prefix) {
			keys = append(keys, obj.Key)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	failed, err := client.DeleteObjects(ctx, loc.Bucket, keys)
	if err != nil {
		return fmt.Errorf("delete existing objects: %w", err)
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to delete %d of %d existing objects, first %q", len(failed), len(keys), failed[0])
	}
	logctx.FromContext(ctx).Debug("Cleared destination",
		slog.String("destination", loc.String()),
		slog.Int("objects", len(keys)))
	return nil
}

func (w *PartitionedWriter) writeFile(ctx context.Context, client cloudstorage.Client, bucket string, pf partFile, pschema *parquet.Schema, dataCols []rowset.Column) error {
	tmp, err := os.CreateTemp(w.config.TmpDir, "part-*.parquet")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := encodeRows(tmp, pf.rows, pschema, dataCols, w.config.TmpDir); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return client.UploadObject(ctx, bucket, pf.key, tmp.Name())
}

// encodeRows writes rows as one Parquet file. Any columns are stored as
// their JSON text.
func encodeRows(out *os.File, rows []pipeline.Row, pschema *parquet.Schema, dataCols []rowset.Column, tmpdir string) error {
	cfg, err := parquet.NewWriterConfig(schemabuilder.WriterOptions(tmpdir, pschema)...)
	if err != nil {
		return fmt.Errorf("failed to create writer config: %w", err)
	}
	writer := parquet.NewGenericWriter[map[string]any](out, cfg)

	batch := make([]map[string]any, 0, constants.DefaultBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := writer.Write(batch); err != nil {
			return fmt.Errorf("failed to write rows to parquet: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for _, row := range rows {
		m := make(map[string]any, len(dataCols))
		for _, col := range dataCols {
			v := row[col.Key()]
			if v == nil {
				continue
			}
			if col.Type == rowset.DataTypeAny {
				if v, err = rowset.ConvertValue(v, rowset.DataTypeString); err != nil {
					return err
				}
			}
			m[col.Name] = v
		}
		batch = append(batch, m)
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				_ = writer.Close()
				return err
			}
		}
	}
	if err := flush(); err != nil {
		_ = writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

func (w *PartitionedWriter) writeMarker(ctx context.Context, client cloudstorage.Client, loc cloudstorage.Location) error {
	tmp, err := os.CreateTemp(w.config.TmpDir, "success-*")
	if err != nil {
		return fmt.Errorf("create marker file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if err := tmp.Close(); err != nil {
		return err
	}
	return client.UploadObject(ctx, loc.Bucket, loc.Join(constants.SuccessMarker).Key, tmp.Name())
}

func firstDuplicate(names []string) string {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return n
		}
		seen[n] = true
	}
	return ""
}
