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

package cloudstorage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Download failure reasons recorded on songlake.storage.download.errors.
const (
	reasonNotFound   = "not_found"
	reasonCopyFailed = "copy_failed"
	reasonUnknown    = "unknown"
)

func startObjectSpan(ctx context.Context, tracer trace.Tracer, name, bucket, key string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "cloudstorage."+name, trace.WithAttributes(
		attribute.String("bucket", bucket),
		attribute.String("key", key),
	))
}

func bucketAttrs(bucket string, extra ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(append([]attribute.KeyValue{attribute.String("bucket", bucket)}, extra...)...)
}

func recordDownload(ctx context.Context, bucket string, size int64) {
	downloadCount.Add(ctx, 1, bucketAttrs(bucket))
	downloadBytes.Add(ctx, size, bucketAttrs(bucket))
}

func recordDownloadFailure(ctx context.Context, bucket, reason string) {
	downloadErrors.Add(ctx, 1, bucketAttrs(bucket, attribute.String("reason", reason)))
}

func recordUpload(ctx context.Context, bucket string, size int64) {
	uploadCount.Add(ctx, 1, bucketAttrs(bucket))
	uploadBytes.Add(ctx, size, bucketAttrs(bucket))
}

// createStagingFile makes the temp file a download lands in. The object's
// base name is kept as a suffix so readers can still sniff the extension.
func createStagingFile(tmpdir, key string) (*os.File, error) {
	f, err := os.CreateTemp(tmpdir, "*-"+filepath.Base(key))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return f, nil
}

func discardStagingFile(f *os.File) {
	_ = f.Close()
	_ = os.Remove(f.Name())
}

// spoolObject copies body into a fresh staging file and returns its name
// and size. On failure nothing is left behind in tmpdir.
func spoolObject(ctx context.Context, tmpdir, bucket, key string, body io.Reader) (string, int64, error) {
	f, err := createStagingFile(tmpdir, key)
	if err != nil {
		return "", 0, err
	}
	size, err := io.Copy(f, body)
	if err == nil {
		err = f.Close()
	}
	if err != nil {
		discardStagingFile(f)
		recordDownloadFailure(ctx, bucket, reasonCopyFailed)
		return "", 0, fmt.Errorf("copy %s/%s: %w", bucket, key, err)
	}
	recordDownload(ctx, bucket, size)
	return f.Name(), size, nil
}

// openUploadSource opens a local file for upload and reports its size.
func openUploadSource(name string) (*os.File, int64, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, 0, fmt.Errorf("open source file %s: %w", name, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat source file %s: %w", name, err)
	}
	return f, st.Size(), nil
}

// deleteOneByOne is the fallback for stores without a batch delete call.
// del must treat a missing object as success.
func deleteOneByOne(ctx context.Context, tracer trace.Tracer, name, bucket string, keys []string, del func(context.Context, string) error) []string {
	if len(keys) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "cloudstorage."+name, trace.WithAttributes(
		attribute.String("bucket", bucket),
		attribute.Int("object_count", len(keys)),
	))
	defer span.End()

	var failed []string
	for _, key := range keys {
		if err := del(ctx, key); err != nil {
			failed = append(failed, key)
			span.RecordError(err)
		}
	}
	if len(failed) > 0 {
		span.SetAttributes(attribute.Int("failed_object_count", len(failed)))
	}
	return failed
}
