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

package filereader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/songlake/internal/cloudstorage"
	"github.com/cardinalhq/songlake/internal/constants"
	"github.com/cardinalhq/songlake/internal/logctx"
	"github.com/cardinalhq/songlake/internal/rowset"
	"github.com/cardinalhq/songlake/pipeline"
	"github.com/cardinalhq/songlake/pipeline/wkk"
)

// ReadParquetDataset reads every Parquet file below dataset and restores the
// partition columns encoded as col=value directory segments.
func (r *Reader) ReadParquetDataset(ctx context.Context, dataset string) (*rowset.Memory, error) {
	loc, err := cloudstorage.ParseLocation(dataset)
	if err != nil {
		return nil, &SourceReadError{Pattern: dataset, Err: err}
	}
	prefix := loc.Prefix()

	client, objs, err := r.list(ctx, loc, prefix)
	if err != nil {
		return nil, &SourceReadError{Pattern: dataset, Err: err}
	}

	var keys []string
	for _, obj := range objs {
		if !hiddenKey(obj.Key) && strings.HasSuffix(obj.Key, ".parquet") {
			keys = append(keys, obj.Key)
		}
	}
	if len(keys) == 0 {
		return nil, &SourceReadError{Pattern: dataset, Err: errNoMatches}
	}

	start := time.Now()
	results := make([]objectResult, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, key := range keys {
		g.Go(func() error {
			res, err := r.readParquetObject(gctx, client, loc.Bucket, prefix, key)
			if err != nil {
				return &SourceReadError{Pattern: dataset, Key: key, Err: err}
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sb := NewSchemaBuilder()
	var rows []pipeline.Row
	for _, res := range results {
		sb.Merge(res.schema)
		rows = append(rows, res.rows...)
	}
	schema := sb.Build()
	mem, err := rowset.NewMemory(schema, rows)
	if err != nil {
		return nil, &SourceReadError{Pattern: dataset, Err: err}
	}

	logctx.FromContext(ctx).Debug("Read parquet dataset",
		slog.String("dataset", dataset),
		slog.Int("files", len(keys)),
		slog.Int("rows", len(rows)),
		slog.Duration("duration", time.Since(start)))
	return mem, nil
}

// PartitionValues parses the col=value segments of a key relative to the
// dataset prefix. Values are returned percent-decoded.
func PartitionValues(prefix, key string) (map[string]string, error) {
	rel := strings.TrimPrefix(key, prefix)
	segments := strings.Split(rel, "/")
	values := make(map[string]string)
	for _, seg := range segments[:len(segments)-1] {
		name, raw, ok := strings.Cut(seg, "=")
		if !ok || name == "" {
			continue
		}
		v, err := url.PathUnescape(raw)
		if err != nil {
			return nil, fmt.Errorf("partition segment %q: %w", seg, err)
		}
		values[name] = v
	}
	return values, nil
}

func (r *Reader) readParquetObject(ctx context.Context, client cloudstorage.Client, bucket, prefix, key string) (objectResult, error) {
	parts, err := PartitionValues(prefix, key)
	if err != nil {
		return objectResult{}, err
	}

	tmpfile, size, notFound, err := client.DownloadObject(ctx, r.tmpDir, bucket, key)
	if err != nil {
		return objectResult{}, err
	}
	if notFound {
		return objectResult{}, errors.New("object not found")
	}
	defer func() { _ = os.Remove(tmpfile) }()

	f, err := os.Open(tmpfile)
	if err != nil {
		return objectResult{}, err
	}
	defer func() { _ = f.Close() }()

	pf, err := parquet.OpenFile(f, size)
	if err != nil {
		return objectResult{}, fmt.Errorf("failed to open parquet file: %w", err)
	}

	res := objectResult{schema: NewSchemaBuilder()}
	for _, field := range pf.Schema().Fields() {
		res.schema.AddType(wkk.NewRowKey(field.Name()), ParquetLeafType(field))
	}

	partKeys := make(map[wkk.RowKey]any, len(parts))
	for name, raw := range parts {
		key := wkk.NewRowKey(name)
		if raw == constants.HiveDefaultPartition {
			res.schema.AddType(key, rowset.DataTypeUnknown)
			partKeys[key] = nil
			continue
		}
		dt, v := InferTypeFromString(raw)
		res.schema.AddType(key, dt)
		partKeys[key] = v
	}

	pfr := parquet.NewGenericReader[map[string]any](pf, pf.Schema())
	defer func() { _ = pfr.Close() }()

	buf := make([]map[string]any, constants.DefaultBatchSize)
	for i := range buf {
		buf[i] = make(map[string]any)
	}
	for {
		if err := ctx.Err(); err != nil {
			return objectResult{}, err
		}
		for i := range buf {
			clear(buf[i])
		}
		n, err := pfr.Read(buf)
		for i := range n {
			row := pipeline.FromStringMap(buf[i])
			for k, v := range partKeys {
				row[k] = v
			}
			res.rows = append(res.rows, row)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return objectResult{}, fmt.Errorf("parquet reader error: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return res, nil
}

// ParquetLeafType maps a top-level parquet field to a row-set column type.
func ParquetLeafType(field parquet.Field) rowset.DataType {
	if !field.Leaf() {
		return rowset.DataTypeAny
	}
	t := field.Type()
	switch t.Kind() {
	case parquet.Boolean:
		return rowset.DataTypeBool
	case parquet.Int32, parquet.Int64:
		return rowset.DataTypeInt64
	case parquet.Float, parquet.Double:
		return rowset.DataTypeFloat64
	case parquet.ByteArray, parquet.FixedLenByteArray:
		if lt := t.LogicalType(); lt != nil && lt.UTF8 != nil {
			return rowset.DataTypeString
		}
		return rowset.DataTypeBytes
	default:
		return rowset.DataTypeAny
	}
}
