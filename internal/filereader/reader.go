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
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/songlake/internal/cloudstorage"
	"github.com/cardinalhq/songlake/internal/logctx"
	"github.com/cardinalhq/songlake/internal/rowset"
	"github.com/cardinalhq/songlake/pipeline"
)

const defaultReadConcurrency = 8

// Reader loads JSON-lines source records from object storage.
type Reader struct {
	provider    cloudstorage.ClientProvider
	tmpDir      string
	concurrency int
}

// Option configures a Reader.
type Option func(*Reader)

// WithTempDir sets where objects are downloaded before parsing.
func WithTempDir(dir string) Option {
	return func(r *Reader) { r.tmpDir = dir }
}

// WithConcurrency limits how many objects are fetched and parsed at once.
func WithConcurrency(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewReader returns a Reader using provider to reach storage.
func NewReader(provider cloudstorage.ClientProvider, opts ...Option) *Reader {
	r := &Reader{
		provider:    provider,
		concurrency: defaultReadConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read loads every object matching pattern. The key part of the pattern may
// use *, ?, [...], {a,b} and ** globs. A pattern that matches nothing is an
// error.
func (r *Reader) Read(ctx context.Context, pattern string) (*rowset.Memory, error) {
	loc, err := cloudstorage.ParseLocation(pattern)
	if err != nil {
		return nil, &SourceReadError{Pattern: pattern, Err: err}
	}
	if !doublestar.ValidatePattern(loc.Key) {
		return nil, &SourceReadError{Pattern: pattern, Err: doublestar.ErrBadPattern}
	}

	base, _ := doublestar.SplitPattern(loc.Key)
	prefix := ""
	if base != "." {
		prefix = base + "/"
	}

	client, objs, err := r.list(ctx, loc, prefix)
	if err != nil {
		return nil, &SourceReadError{Pattern: pattern, Err: err}
	}

	var keys []string
	for _, obj := range objs {
		if hiddenKey(obj.Key) {
			continue
		}
		// ValidatePattern passed, so Match cannot fail.
		if ok, _ := doublestar.Match(loc.Key, obj.Key); ok {
			keys = append(keys, obj.Key)
		}
	}
	return r.readObjects(ctx, pattern, client, loc.Bucket, keys)
}

// ReadDirectory loads every .json or .json.gz object below url, at any depth.
func (r *Reader) ReadDirectory(ctx context.Context, url string) (*rowset.Memory, error) {
	loc, err := cloudstorage.ParseLocation(url)
	if err != nil {
		return nil, &SourceReadError{Pattern: url, Err: err}
	}

	client, objs, err := r.list(ctx, loc, loc.Prefix())
	if err != nil {
		return nil, &SourceReadError{Pattern: url, Err: err}
	}

	var keys []string
	for _, obj := range objs {
		if hiddenKey(obj.Key) {
			continue
		}
		if strings.HasSuffix(obj.Key, ".json") || strings.HasSuffix(obj.Key, ".json.gz") {
			keys = append(keys, obj.Key)
		}
	}
	return r.readObjects(ctx, url, client, loc.Bucket, keys)
}

func (r *Reader) list(ctx context.Context, loc cloudstorage.Location, prefix string) (cloudstorage.Client, []cloudstorage.ObjectInfo, error) {
	client, err := r.provider.NewClient(ctx, loc)
	if err != nil {
		return nil, nil, err
	}
	objs, err := client.ListObjects(ctx, loc.Bucket, prefix)
	if err != nil {
		return nil, nil, err
	}
	return client, objs, nil
}

// hiddenKey reports whether the object's base name marks it as metadata,
// such as _SUCCESS or .crc files.
func hiddenKey(key string) bool {
	name := path.Base(key)
	return strings.HasSuffix(key, "/") || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

type objectResult struct {
	rows   []pipeline.Row
	schema *SchemaBuilder
}

func (r *Reader) readObjects(ctx context.Context, pattern string, client cloudstorage.Client, bucket string, keys []string) (*rowset.Memory, error) {
	if len(keys) == 0 {
		return nil, &SourceReadError{Pattern: pattern, Err: errNoMatches}
	}

	ll := logctx.FromContext(ctx)
	start := time.Now()

	results := make([]objectResult, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, key := range keys {
		g.Go(func() error {
			res, err := r.readObject(gctx, client, bucket, key)
			if err != nil {
				return &SourceReadError{Pattern: pattern, Key: key, Err: err}
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sb := NewSchemaBuilder()
	total := 0
	for _, res := range results {
		sb.Merge(res.schema)
		total += len(res.rows)
	}
	rows := make([]pipeline.Row, 0, total)
	for _, res := range results {
		rows = append(rows, res.rows...)
	}

	schema := sb.Build()
	mem, err := rowset.NewMemory(schema, rows)
	if err != nil {
		return nil, &SourceReadError{Pattern: pattern, Err: err}
	}

	ll.Info("Read source records",
		slog.String("pattern", pattern),
		slog.Int("objects", len(keys)),
		slog.Int("rows", total),
		slog.String("schema", schema.String()),
		slog.Duration("duration", time.Since(start)))
	return mem, nil
}

func (r *Reader) readObject(ctx context.Context, client cloudstorage.Client, bucket, key string) (objectResult, error) {
	tmpfile, _, notFound, err := client.DownloadObject(ctx, r.tmpDir, bucket, key)
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
	rc, err := maybeGunzip(f)
	if err != nil {
		_ = f.Close()
		return objectResult{}, err
	}
	jr, err := NewJSONLinesReader(rc, 0)
	if err != nil {
		_ = rc.Close()
		return objectResult{}, err
	}
	defer func() { _ = jr.Close() }()

	res := objectResult{schema: NewSchemaBuilder()}
	for {
		batch, err := jr.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return objectResult{}, err
		}
		for _, row := range batch {
			res.schema.AddRow(row)
		}
		res.rows = append(res.rows, batch...)
	}

	attrs := otelmetric.WithAttributes(attribute.String("bucket", bucket))
	objectsInCounter.Add(ctx, 1, attrs)
	rowsInCounter.Add(ctx, int64(len(res.rows)), attrs)
	return res, nil
}
