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
	"bytes"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"

	"github.com/cardinalhq/songlake/pipeline"
	"github.com/cardinalhq/songlake/pipeline/wkk"
)

var fingerprintEncMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("create CBOR encoder: %v", err))
	}
	return em
}

// encodeValues returns the deterministic CBOR encoding of the values at keys,
// in order. A missing key encodes as CBOR null.
func encodeValues(row pipeline.Row, keys []wkk.RowKey) ([]byte, error) {
	vals := make([]any, len(keys))
	for i, k := range keys {
		vals[i] = row[k]
	}
	return encodeSlice(vals)
}

func encodeSlice(vals []any) ([]byte, error) {
	b, err := fingerprintEncMode.Marshal(vals)
	if err != nil {
		return nil, fmt.Errorf("encode row values: %w", err)
	}
	return b, nil
}

// fingerprintSet groups encoded values by their xxhash so equality checks
// only compare bytes within a bucket.
type fingerprintSet[V any] struct {
	buckets map[uint64][]fingerprintEntry[V]
}

type fingerprintEntry[V any] struct {
	encoded []byte
	value   V
}

func newFingerprintSet[V any]() *fingerprintSet[V] {
	return &fingerprintSet[V]{buckets: make(map[uint64][]fingerprintEntry[V])}
}

// find returns the entry index whose encoding equals encoded, or -1.
func (s *fingerprintSet[V]) find(h uint64, encoded []byte) int {
	for i, e := range s.buckets[h] {
		if bytes.Equal(e.encoded, encoded) {
			return i
		}
	}
	return -1
}

// insert adds encoded if no equal entry exists. It reports whether it was added.
func (s *fingerprintSet[V]) insert(encoded []byte, value V) bool {
	h := xxhash.Sum64(encoded)
	if s.find(h, encoded) >= 0 {
		return false
	}
	s.buckets[h] = append(s.buckets[h], fingerprintEntry[V]{encoded: encoded, value: value})
	return true
}

// get returns a pointer to the value stored for encoded.
func (s *fingerprintSet[V]) get(encoded []byte) (*V, bool) {
	h := xxhash.Sum64(encoded)
	i := s.find(h, encoded)
	if i < 0 {
		return nil, false
	}
	return &s.buckets[h][i].value, true
}
