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
	"strings"

	"github.com/cardinalhq/songlake/internal/constants"
	"github.com/cardinalhq/songlake/internal/rowset"
)

// escapePartitionValue percent-encodes the characters that cannot appear in
// a Hive partition directory name.
func escapePartitionValue(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if needsEscape(c) {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func needsEscape(c byte) bool {
	if c < 0x20 || c == 0x7f {
		return true
	}
	switch c {
	case '"', '#', '%', '\'', '*', '/', ':', '=', '?', '\\', '{', '[', ']', '^':
		return true
	}
	return false
}

// partitionSegment renders one col=value directory name. Null and empty
// values use the Hive default partition name.
func partitionSegment(name string, value any) string {
	if value == nil {
		return name + "=" + constants.HiveDefaultPartition
	}
	s, _ := rowset.ConvertValue(value, rowset.DataTypeString)
	str, _ := s.(string)
	if str == "" {
		return name + "=" + constants.HiveDefaultPartition
	}
	return name + "=" + escapePartitionValue(str)
}

// partitionPath renders the directory of a row's partition, such as
// "year=2018/month=11". It is empty when there are no partition columns.
func partitionPath(names []string, values []any) string {
	segments := make([]string, len(names))
	for i, name := range names {
		segments[i] = partitionSegment(name, values[i])
	}
	return strings.Join(segments, "/")
}
