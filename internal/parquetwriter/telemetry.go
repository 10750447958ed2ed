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

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	rowsWritten  metric.Int64Counter
	filesWritten metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/songlake/internal/parquetwriter")

	var err error
	rowsWritten, err = meter.Int64Counter(
		"songlake.writer.rows",
		metric.WithDescription("Number of rows written to table files"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create writer.rows counter: %w", err))
	}

	filesWritten, err = meter.Int64Counter(
		"songlake.writer.files",
		metric.WithDescription("Number of table part files written"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create writer.files counter: %w", err))
	}
}
