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
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Provider identifies the storage backend a location lives in.
type Provider string

const (
	ProviderS3    Provider = "s3"
	ProviderGCS   Provider = "gcs"
	ProviderAzure Provider = "azure"
	ProviderFile  Provider = "file"
)

// Location is a parsed storage URL. Key never has a leading slash and may
// contain glob characters; it is not URL-decoded.
//
// Local paths are split so that joining Bucket and Key yields the path:
// absolute paths use Bucket "/" and relative paths use Bucket ".".
type Location struct {
	Provider Provider
	Scheme   string // as written, e.g. "s3a"
	Bucket   string // bucket or container
	Account  string // Azure storage account
	Key      string
}

// ParseLocation parses s3a://, s3://, s3n://, gs://, wasbs://, wasb://,
// file:// URLs and bare local paths.
func ParseLocation(raw string) (Location, error) {
	if raw == "" {
		return Location{}, fmt.Errorf("empty storage location")
	}

	scheme, rest, hasScheme := strings.Cut(raw, "://")
	if !hasScheme {
		return fileLocation("", raw), nil
	}
	scheme = strings.ToLower(scheme)

	switch scheme {
	case "file":
		if rest == "" {
			rest = "/"
		}
		return fileLocation(scheme, rest), nil
	case "s3", "s3a", "s3n", "gs", "wasb", "wasbs":
	default:
		return Location{}, fmt.Errorf("unsupported storage scheme %q in %q", scheme, raw)
	}

	host, key, _ := strings.Cut(rest, "/")
	if host == "" {
		return Location{}, fmt.Errorf("missing bucket in %q", raw)
	}
	loc := Location{Scheme: scheme, Bucket: host, Key: cleanKey(key)}

	switch scheme {
	case "gs":
		loc.Provider = ProviderGCS
	case "wasb", "wasbs":
		loc.Provider = ProviderAzure
		container, accountHost, ok := strings.Cut(host, "@")
		if !ok || container == "" || accountHost == "" {
			return Location{}, fmt.Errorf("azure location %q must look like wasbs://container@account.blob.core.windows.net/path", raw)
		}
		loc.Bucket = container
		loc.Account, _, _ = strings.Cut(accountHost, ".")
	default:
		loc.Provider = ProviderS3
	}
	return loc, nil
}

func fileLocation(scheme, p string) Location {
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))
	loc := Location{Provider: ProviderFile, Scheme: scheme}
	switch {
	case strings.HasPrefix(clean, "/"):
		loc.Bucket = "/"
		loc.Key = strings.TrimPrefix(clean, "/")
	case clean == ".":
		loc.Bucket = "."
	default:
		loc.Bucket = "."
		loc.Key = clean
	}
	return loc
}

func cleanKey(key string) string {
	key = strings.Trim(key, "/")
	if key == "" {
		return ""
	}
	return path.Clean(key)
}

// Join returns the location with elem appended to the key.
func (l Location) Join(elem ...string) Location {
	parts := append([]string{l.Key}, elem...)
	l.Key = cleanKey(path.Join(parts...))
	return l
}

// Prefix returns the key as a listing prefix: empty or ending in "/".
func (l Location) Prefix() string {
	if l.Key == "" {
		return ""
	}
	return l.Key + "/"
}

// WithKey returns a copy of l pointing at key.
func (l Location) WithKey(key string) Location {
	l.Key = cleanKey(key)
	return l
}

func (l Location) String() string {
	switch l.Provider {
	case ProviderFile:
		p := path.Join(l.Bucket, l.Key)
		if l.Scheme != "" {
			return l.Scheme + "://" + p
		}
		return p
	case ProviderAzure:
		host := l.Bucket + "@" + l.Account + ".blob.core.windows.net"
		return l.Scheme + "://" + host + "/" + l.Key
	default:
		return l.Scheme + "://" + l.Bucket + "/" + l.Key
	}
}
