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
	"errors"
	"fmt"
)

// ErrSourceRead matches every SourceReadError.
var ErrSourceRead = errors.New("source read error")

// SourceReadError reports that a source pattern could not be read: it matched
// nothing, an object could not be fetched, or a record did not parse.
type SourceReadError struct {
	Pattern string
	Key     string // object that failed, if any
	Err     error
}

func (e *SourceReadError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("read %s (object %s): %v", e.Pattern, e.Key, e.Err)
	}
	return fmt.Sprintf("read %s: %v", e.Pattern, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

func (e *SourceReadError) Is(target error) bool { return target == ErrSourceRead }

// errNoMatches is the cause recorded when a pattern matches no objects.
var errNoMatches = errors.New("pattern matched no objects")
