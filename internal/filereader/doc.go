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

// Package filereader loads source records and written datasets from object
// storage into row-sets.
//
// # Source records
//
// Reader expands a storage pattern such as
//
//	s3a://udacity-dend/song_data/*/*/*/*.json
//
// by listing everything under the longest glob-free prefix and matching keys
// with doublestar semantics. Matching objects are downloaded with bounded
// concurrency and parsed as JSON lines; gzip-compressed objects are detected
// by their magic bytes. The column set is the union of all record keys, and
// each column's type is the promotion of every non-null value seen for it.
//
// # Datasets
//
// ReadParquetDataset reads a Hive-partitioned Parquet table back, restoring
// partition columns from col=value path segments.
package filereader
