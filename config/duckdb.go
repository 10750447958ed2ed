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

package config

// DuckDBConfig holds DuckDB-specific configuration, used when etl.engine is
// duckdb.
type DuckDBConfig struct {
	MemoryLimit int64 `mapstructure:"memory_limit"` // Memory limit in MB (0 = unlimited)
	PoolSize    int   `mapstructure:"pool_size"`    // Connection pool size
	Threads     int   `mapstructure:"threads"`      // Total threads
}

// DefaultDuckDBConfig returns default DuckDB configuration
func DefaultDuckDBConfig() DuckDBConfig {
	return DuckDBConfig{
		MemoryLimit: 0, // No limit by default
		PoolSize:    0, // 0 means use default calculation in duckdbx
		Threads:     0, // 0 means GOMAXPROCS
	}
}
