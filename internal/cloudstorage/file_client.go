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
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// FileClientProvider creates clients that operate on the local filesystem.
// Bucket names become directories under base.
type FileClientProvider struct {
	base string
}

// NewFileClientProvider returns a new provider rooted at base. An empty base
// resolves bucket paths as given, which is how file:// locations are served.
func NewFileClientProvider(base string) *FileClientProvider {
	return &FileClientProvider{base: base}
}

// NewClient returns a client that reads and writes files under the base path.
func (p *FileClientProvider) NewClient(_ context.Context, _ Location) (Client, error) {
	return &fileClient{base: p.base}, nil
}

type fileClient struct {
	base string
}

func (c *fileClient) root(bucket string) string {
	return filepath.Join(c.base, bucket)
}

func (c *fileClient) path(bucket, key string) string {
	return filepath.Join(c.root(bucket), filepath.FromSlash(key))
}

// ListObjects walks the directory containing prefix and returns regular files
// whose bucket-relative key starts with prefix.
func (c *fileClient) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	root := c.root(bucket)
	start := c.path(bucket, prefix)
	if !strings.HasSuffix(prefix, "/") && prefix != "" {
		start = filepath.Dir(start)
	}

	var out []ObjectInfo
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, ObjectInfo{Key: key, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b ObjectInfo) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

// DownloadObject copies the requested file into tmpdir.
func (c *fileClient) DownloadObject(ctx context.Context, tmpdir, bucket, key string) (string, int64, bool, error) {
	src, err := os.Open(c.path(bucket, key))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", 0, true, nil
	case err != nil:
		return "", 0, false, err
	}
	defer func() { _ = src.Close() }()

	name, size, err := spoolObject(ctx, tmpdir, bucket, key, src)
	if err != nil {
		return "", 0, false, err
	}
	return name, size, false, nil
}

// UploadObject copies a local file into the bucket/key location.
func (c *fileClient) UploadObject(ctx context.Context, bucket, key, sourceFilename string) (err error) {
	dst := c.path(bucket, key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	src, err := os.Open(sourceFilename)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, src)
	return err
}

// DeleteObject removes the file at bucket/key if it exists.
func (c *fileClient) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := os.Remove(c.path(bucket, key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// DeleteObjects removes multiple files at bucket/key locations.
// The file system has no batch delete, so each key is removed individually.
func (c *fileClient) DeleteObjects(ctx context.Context, bucket string, keys []string) ([]string, error) {
	var failed []string
	var errs *multierror.Error
	for _, key := range keys {
		if err := c.DeleteObject(ctx, bucket, key); err != nil {
			failed = append(failed, key)
			errs = multierror.Append(errs, err)
		}
	}
	return failed, errs.ErrorOrNil()
}
