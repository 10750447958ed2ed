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

const (
	// NoRecordLimitPerFile disables file splitting: each partition is one file.
	NoRecordLimitPerFile = -1

	// DefaultRecordsPerFile bounds the rows in a single part file.
	DefaultRecordsPerFile = 1_000_000

	// DefaultConcurrency is how many part files are encoded and uploaded at once.
	DefaultConcurrency = 4
)

// WriterConfig contains all configuration options for a PartitionedWriter.
type WriterConfig struct {
	// TmpDir is where part files are encoded before upload.
	TmpDir string

	// RunID is embedded in every part file name. Generated when empty.
	RunID string

	// RecordsPerFile splits large partitions into several part files.
	// Zero uses DefaultRecordsPerFile; NoRecordLimitPerFile disables splitting.
	RecordsPerFile int64

	// Concurrency limits parallel part file writes. Zero uses DefaultConcurrency.
	Concurrency int
}

// Validate checks that the configuration is valid and returns an error if not.
func (c *WriterConfig) Validate() error {
	if c.TmpDir == "" {
		return &ConfigError{Field: "TmpDir", Message: "cannot be empty"}
	}
	if c.RecordsPerFile < NoRecordLimitPerFile {
		return &ConfigError{Field: "RecordsPerFile", Message: "must be positive, zero, or NoRecordLimitPerFile"}
	}
	if c.Concurrency < 0 {
		return &ConfigError{Field: "Concurrency", Message: "cannot be negative"}
	}
	return nil
}

// GetRecordsPerFile returns the effective split size; zero or less means unlimited.
func (c *WriterConfig) GetRecordsPerFile() int64 {
	switch {
	case c.RecordsPerFile == 0:
		return DefaultRecordsPerFile
	case c.RecordsPerFile < 0:
		return 0
	default:
		return c.RecordsPerFile
	}
}

// GetConcurrency returns the effective concurrency.
func (c *WriterConfig) GetConcurrency() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return DefaultConcurrency
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "parquetwriter config: " + e.Field + " " + e.Message
}
