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

package filereader

import (
	"fmt"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	rowsInCounter    otelmetric.Int64Counter
	objectsInCounter otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/songlake/internal/filereader")

	var err error
	rowsInCounter, err = meter.Int64Counter(
		"songlake.reader.rows.in",
		otelmetric.WithDescription("Number of rows read from source objects"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rows.in counter: %w", err))
	}

	objectsInCounter, err = meter.Int64Counter(
		"songlake.reader.objects.in",
		otelmetric.WithDescription("Number of source objects read"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create objects.in counter: %w", err))
	}
}
