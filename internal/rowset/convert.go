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

package rowset

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/cardinalhq/songlake/pipeline"
	"github.com/cardinalhq/songlake/pipeline/wkk"
)

// ConvertValue converts a value to the target data type. nil stays nil.
func ConvertValue(value any, targetType DataType) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch targetType {
	case DataTypeString:
		return convertToString(value), nil

	case DataTypeInt64:
		return convertToInt64(value)

	case DataTypeFloat64:
		return convertToFloat64(value)

	case DataTypeBool:
		return convertToBool(value)

	case DataTypeBytes:
		return convertToBytes(value)

	default:
		return value, nil
	}
}

// NormalizeRow converts every schema column of row in place to its schema
// type and drops keys that are not in the schema or hold nil.
func NormalizeRow(row pipeline.Row, schema *Schema) error {
	for key, value := range row {
		col, ok := schema.Lookup(wkk.RowKeyValue(key))
		if !ok || value == nil {
			delete(row, key)
			continue
		}
		converted, err := ConvertValue(value, col.Type)
		if err != nil {
			return fmt.Errorf("column %q: type conversion to %s failed: %w", col.Name, col.Type, err)
		}
		row[key] = converted
	}
	return nil
}

// convertToString converts any value to string.
func convertToString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case []byte:
		return string(v)
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// convertToInt64 converts a value to int64.
func convertToInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("float %v is not integral", v)
		}
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", value)
	}
}

// convertToFloat64 converts a value to float64.
func convertToFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", value)
	}
}

// convertToBool converts a value to bool.
func convertToBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("cannot convert %T to bool", value)
	}
}

// convertToBytes converts a value to []byte.
func convertToBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to bytes", value)
	}
}
