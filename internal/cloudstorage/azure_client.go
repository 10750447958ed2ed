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

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cardinalhq/songlake/internal/azureclient"
)

// azureClient serves wasb:// and wasbs:// locations. The location's
// container is passed around as the bucket.
type azureClient struct {
	blobClient *azureclient.BlobClient
}

func blobMissing(err error) bool {
	return bloberror.HasCode(err, bloberror.BlobNotFound)
}

func (c *azureClient) ListObjects(ctx context.Context, container, prefix string) ([]ObjectInfo, error) {
	ctx, span := c.blobClient.Tracer.Start(ctx, "cloudstorage.azureListObjects")
	defer span.End()
	span.SetAttributes(attribute.String("bucket", container), attribute.String("prefix", prefix))

	var out []ObjectInfo
	pager := c.blobClient.Client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{Prefix: to.Ptr(prefix)})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("list container %s prefix %q: %w", container, prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			var size int64
			if props := item.Properties; props != nil && props.ContentLength != nil {
				size = *props.ContentLength
			}
			out = append(out, ObjectInfo{Key: *item.Name, Size: size})
		}
	}
	span.SetAttributes(attribute.Int("object_count", len(out)))
	return out, nil
}

func (c *azureClient) DownloadObject(ctx context.Context, tmpdir, container, blobName string) (string, int64, bool, error) {
	ctx, span := startObjectSpan(ctx, c.blobClient.Tracer, "azureDownloadObject", container, blobName)
	defer span.End()

	resp, err := c.blobClient.Client.DownloadStream(ctx, container, blobName, nil)
	if err != nil {
		if blobMissing(err) {
			recordDownloadFailure(ctx, container, reasonNotFound)
			return "", 0, true, nil
		}
		recordDownloadFailure(ctx, container, reasonUnknown)
		span.RecordError(err)
		return "", 0, false, fmt.Errorf("download blob %s/%s: %w", container, blobName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	name, size, err := spoolObject(ctx, tmpdir, container, blobName, resp.Body)
	if err != nil {
		return "", 0, false, err
	}
	return name, size, false, nil
}

func (c *azureClient) UploadObject(ctx context.Context, container, blobName, sourceFilename string) error {
	ctx, span := startObjectSpan(ctx, c.blobClient.Tracer, "azureUploadObject", container, blobName)
	defer span.End()

	src, size, err := openUploadSource(sourceFilename)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(contentTypeFor(blobName))},
		Metadata:    map[string]*string{"writer": to.Ptr(writerMetadata)},
	}
	if _, err := c.blobClient.Client.UploadStream(ctx, container, blobName, src, opts); err != nil {
		return fmt.Errorf("upload blob %s/%s: %w", container, blobName, err)
	}
	recordUpload(ctx, container, size)
	return nil
}

func (c *azureClient) DeleteObject(ctx context.Context, container, blobName string) error {
	ctx, span := startObjectSpan(ctx, c.blobClient.Tracer, "azureDeleteObject", container, blobName)
	defer span.End()
	return c.remove(ctx, container, blobName)
}

func (c *azureClient) remove(ctx context.Context, container, blobName string) error {
	if _, err := c.blobClient.Client.DeleteBlob(ctx, container, blobName, nil); err != nil && !blobMissing(err) {
		return fmt.Errorf("delete blob %s/%s: %w", container, blobName, err)
	}
	return nil
}

func (c *azureClient) DeleteObjects(ctx context.Context, container string, keys []string) ([]string, error) {
	return deleteOneByOne(ctx, c.blobClient.Tracer, "azureDeleteObjects", container, keys,
		func(ctx context.Context, key string) error { return c.remove(ctx, container, key) }), nil
}
