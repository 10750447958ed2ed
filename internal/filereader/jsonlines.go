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
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/cardinalhq/songlake/internal/constants"
	"github.com/cardinalhq/songlake/pipeline"
	"github.com/cardinalhq/songlake/pipeline/wkk"
)

// JSONLinesReader reads rows from a JSON lines stream.
type JSONLinesReader struct {
	scanner   *bufio.Scanner
	lineNum   int
	closed    bool
	totalRows int64
	closer    io.Closer
	batchSize int
}

// NewJSONLinesReader creates a new JSONLinesReader for the given io.ReadCloser.
// The reader takes ownership of the closer and will close it when Close is called.
func NewJSONLinesReader(reader io.ReadCloser, batchSize int) (*JSONLinesReader, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), constants.MaxLineSizeBytes)

	if batchSize <= 0 {
		batchSize = constants.DefaultBatchSize
	}

	return &JSONLinesReader{
		scanner:   scanner,
		closer:    reader,
		batchSize: batchSize,
	}, nil
}

// Next returns up to batchSize rows, or io.EOF once the stream is exhausted.
// Numbers that fit in an int64 are returned as int64, all others as float64.
func (r *JSONLinesReader) Next(ctx context.Context) ([]pipeline.Row, error) {
	if r.closed {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([]pipeline.Row, 0, r.batchSize)
	for len(rows) < r.batchSize {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, fmt.Errorf("scanner error reading at line %d: %w", r.lineNum+1, err)
			}
			break
		}
		r.lineNum++

		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		row, err := decodeJSONRow(line)
		if err != nil {
			return nil, fmt.Errorf("JSON parse error at line %d: %w", r.lineNum, err)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		r.closed = true
		return nil, io.EOF
	}

	r.totalRows += int64(len(rows))
	return rows, nil
}

// Close closes the reader and the underlying io.ReadCloser.
func (r *JSONLinesReader) Close() error {
	if r.closer == nil {
		r.closed = true
		return nil
	}
	r.closed = true
	err := r.closer.Close()
	r.closer = nil
	r.scanner = nil
	return err
}

// TotalRowsReturned returns the total number of rows returned via Next().
func (r *JSONLinesReader) TotalRowsReturned() int64 {
	return r.totalRows
}

func decodeJSONRow(line []byte) (pipeline.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("line is not a JSON object")
	}

	row := make(pipeline.Row, len(m))
	for k, v := range m {
		row[wkk.NewRowKeyFromBytes([]byte(k))] = decodeNumbers(v)
	}
	return row, nil
}

func decodeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return i
		}
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return string(x)
		}
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = decodeNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = decodeNumbers(e)
		}
		return x
	default:
		return v
	}
}

type gzipReadCloser struct {
	*gzip.Reader
	underlying io.Closer
}

func (g *gzipReadCloser) Close() error {
	gzErr := g.Reader.Close()
	if err := g.underlying.Close(); err != nil {
		return err
	}
	return gzErr
}

// maybeGunzip wraps rc in a gzip reader when the stream starts with the gzip
// magic bytes, and returns it unchanged otherwise.
func maybeGunzip(rc io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReader(rc)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	wrapped := struct {
		io.Reader
		io.Closer
	}{br, rc}
	if len(magic) < 2 || magic[0] != 0x1f || magic[1] != 0x8b {
		return wrapped, nil
	}
	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	return &gzipReadCloser{Reader: gz, underlying: rc}, nil
}
