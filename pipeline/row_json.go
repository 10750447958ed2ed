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

package pipeline

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
)

// MarshalJSON renders the row with keys in sorted order.
func (r Row) MarshalJSON() ([]byte, error) {
	m := ToStringMap(r)
	return MarshalOrdered(slices.Sorted(maps.Keys(m)), m)
}

// UnmarshalJSON interns the object's keys; JSON numbers decode as float64.
func (r *Row) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = FromStringMap(m)
	return nil
}

// MarshalOrdered writes values as one JSON object whose members follow
// keys. Keys with no entry in values are written as null. HTML characters
// are left unescaped.
func MarshalOrdered(keys []string, values map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, name := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeInline(enc, &buf, name); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encodeInline(enc, &buf, values[name]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encodeInline encodes v and drops the newline Encoder appends.
func encodeInline(enc *json.Encoder, buf *bytes.Buffer, v any) error {
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}
