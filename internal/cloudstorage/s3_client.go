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
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/songlake/internal/awsclient"
)

// s3Client implements Client for S3 and S3-compatible stores.
type s3Client struct {
	awsS3Client *awsclient.S3Client
}

// s3ErrorIs404 matches both the typed NoSuchKey error and the bare
// NotFound code some S3-compatible stores send instead.
func s3ErrorIs404(err error) bool {
	var noKeyErr *types.NoSuchKey
	if errors.As(err, &noKeyErr) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func (c *s3Client) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	ctx, span := c.awsS3Client.Tracer.Start(ctx, "cloudstorage.s3ListObjects",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("prefix", prefix),
		),
	)
	defer span.End()

	var out []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(c.awsS3Client.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			out = append(out, ObjectInfo{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)})
		}
	}
	span.SetAttributes(attribute.Int("object_count", len(out)))
	// ListObjectsV2 returns keys in UTF-8 binary order already.
	return out, nil
}

// DownloadObject streams an object into a staging file using the
// multipart downloader.
func (c *s3Client) DownloadObject(ctx context.Context, tmpdir, bucket, key string) (string, int64, bool, error) {
	ctx, span := startObjectSpan(ctx, c.awsS3Client.Tracer, "s3DownloadObject", bucket, key)
	defer span.End()

	f, err := createStagingFile(tmpdir, key)
	if err != nil {
		return "", 0, false, err
	}
	size, err := manager.NewDownloader(c.awsS3Client.Client).Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		discardStagingFile(f)
		if s3ErrorIs404(err) {
			recordDownloadFailure(ctx, bucket, reasonNotFound)
			return "", 0, true, nil
		}
		recordDownloadFailure(ctx, bucket, reasonUnknown)
		span.RecordError(err)
		return "", 0, false, fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", 0, false, fmt.Errorf("close %s: %w", f.Name(), err)
	}
	recordDownload(ctx, bucket, size)
	return f.Name(), size, false, nil
}

func (c *s3Client) UploadObject(ctx context.Context, bucket, key, sourceFilename string) error {
	ctx, span := startObjectSpan(ctx, c.awsS3Client.Tracer, "s3UploadObject", bucket, key)
	defer span.End()

	src, size, err := openUploadSource(sourceFilename)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	_, err = manager.NewUploader(c.awsS3Client.Client).Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        src,
		ContentType: aws.String(contentTypeFor(key)),
		Metadata:    map[string]string{"writer": writerMetadata},
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", bucket, key, err)
	}
	recordUpload(ctx, bucket, size)
	return nil
}

// DeleteObject deletes an object from S3.
func (c *s3Client) DeleteObject(ctx context.Context, bucket, key string) error {
	ctx, span := startObjectSpan(ctx, c.awsS3Client.Tracer, "s3DeleteObject", bucket, key)
	defer span.End()

	_, err := c.awsS3Client.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// DeleteObjects deletes multiple objects from S3 in batches.
func (c *s3Client) DeleteObjects(ctx context.Context, bucket string, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	ctx, span := c.awsS3Client.Tracer.Start(ctx, "cloudstorage.s3DeleteObjects",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.Int("object_count", len(keys)),
		),
	)
	defer span.End()

	// S3 batch delete supports up to 1000 objects per request
	const maxBatchSize = 1000
	var allFailed []string

	for i := 0; i < len(keys); i += maxBatchSize {
		batch := keys[i:min(i+maxBatchSize, len(keys))]

		objects := make([]types.ObjectIdentifier, len(batch))
		for j, key := range batch {
			objects[j] = types.ObjectIdentifier{Key: aws.String(key)}
		}

		result, err := c.awsS3Client.Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			span.RecordError(err)
			allFailed = append(allFailed, batch...)
			continue
		}

		for _, failed := range result.Errors {
			if failed.Key != nil {
				allFailed = append(allFailed, *failed.Key)
			}
		}
	}

	if len(allFailed) > 0 {
		span.SetAttributes(attribute.Int("failed_object_count", len(allFailed)))
	}
	return allFailed, nil
}
