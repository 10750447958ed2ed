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
	"errors"
	"fmt"
)

// ErrSinkWrite matches every SinkWriteError.
var ErrSinkWrite = errors.New("sink write error")

// SinkWriteError reports that a table could not be persisted.
type SinkWriteError struct {
	Destination string
	Err         error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Destination, e.Err)
}

func (e *SinkWriteError) Unwrap() error { return e.Err }

func (e *SinkWriteError) Is(target error) bool { return target == ErrSinkWrite }
