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
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/iterator"

	"github.com/cardinalhq/songlake/internal/gcpclient"
)

// gcsClient serves gs:// locations.
type gcsClient struct {
	storageClient *gcpclient.StorageClient
}

func (c *gcsClient) object(bucket, key string) *storage.ObjectHandle {
	return c.storageClient.Client.Bucket(bucket).Object(key)
}

func (c *gcsClient) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	ctx, span := c.storageClient.Tracer.Start(ctx, "cloudstorage.gcsListObjects")
	defer span.End()
	span.SetAttributes(attribute.String("bucket", bucket), attribute.String("prefix", prefix))

	// Only name and size are needed; skip the rest of the attributes.
	q := &storage.Query{Prefix: prefix}
	if err := q.SetAttrSelection([]string{"Name", "Size"}); err != nil {
		return nil, err
	}

	var out []ObjectInfo
	for it := c.storageClient.Client.Bucket(bucket).Objects(ctx, q); ; {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			span.SetAttributes(attribute.Int("object_count", len(out)))
			return out, nil
		}
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("list gs://%s/%s: %w", bucket, prefix, err)
		}
		out = append(out, ObjectInfo{Key: attrs.Name, Size: attrs.Size})
	}
}

func (c *gcsClient) DownloadObject(ctx context.Context, tmpdir, bucket, key string) (string, int64, bool, error) {
	ctx, span := startObjectSpan(ctx, c.storageClient.Tracer, "gcsDownloadObject", bucket, key)
	defer span.End()

	// Fetch stored bytes as-is, even for gzip-encoded objects.
	r, err := c.object(bucket, key).ReadCompressed(true).NewReader(ctx)
	switch {
	case errors.Is(err, storage.ErrObjectNotExist):
		recordDownloadFailure(ctx, bucket, reasonNotFound)
		return "", 0, true, nil
	case err != nil:
		recordDownloadFailure(ctx, bucket, reasonUnknown)
		span.RecordError(err)
		return "", 0, false, fmt.Errorf("download gs://%s/%s: %w", bucket, key, err)
	}
	defer func() { _ = r.Close() }()

	name, size, err := spoolObject(ctx, tmpdir, bucket, key, r)
	if err != nil {
		return "", 0, false, err
	}
	return name, size, false, nil
}

func (c *gcsClient) UploadObject(ctx context.Context, bucket, key, sourceFilename string) error {
	ctx, span := startObjectSpan(ctx, c.storageClient.Tracer, "gcsUploadObject", bucket, key)
	defer span.End()

	src, size, err := openUploadSource(sourceFilename)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	w := c.object(bucket, key).NewWriter(ctx)
	w.ContentType = contentTypeFor(key)
	w.Metadata = map[string]string{"writer": writerMetadata}
	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload gs://%s/%s: %w", bucket, key, err)
	}
	// The object only becomes visible once Close succeeds.
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish upload gs://%s/%s: %w", bucket, key, err)
	}
	recordUpload(ctx, bucket, size)
	return nil
}

func (c *gcsClient) DeleteObject(ctx context.Context, bucket, key string) error {
	ctx, span := startObjectSpan(ctx, c.storageClient.Tracer, "gcsDeleteObject", bucket, key)
	defer span.End()
	return c.remove(ctx, bucket, key)
}

func (c *gcsClient) remove(ctx context.Context, bucket, key string) error {
	err := c.object(bucket, key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete gs://%s/%s: %w", bucket, key, err)
	}
	return nil
}

func (c *gcsClient) DeleteObjects(ctx context.Context, bucket string, keys []string) ([]string, error) {
	return deleteOneByOne(ctx, c.storageClient.Tracer, "gcsDeleteObjects", bucket, keys,
		func(ctx context.Context, key string) error { return c.remove(ctx, bucket, key) }), nil
}
