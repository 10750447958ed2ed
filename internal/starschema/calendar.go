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

package starschema

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Calendar holds the fields derived from an event timestamp.
type Calendar struct {
	Hour    int64
	Day     int64
	Week    int64 // ISO-8601 week of year
	Month   int64
	Year    int64
	Weekday string // "Mon", "Tue", ...
}

// EventTime converts an epoch-milliseconds value to a time in loc. Fractional
// milliseconds are kept to the microsecond.
func EventTime(ts any, loc *time.Location) (time.Time, error) {
	switch v := ts.(type) {
	case int64:
		return time.UnixMilli(v).In(loc), nil
	case int:
		return time.UnixMilli(int64(v)).In(loc), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return time.Time{}, fmt.Errorf("timestamp %v is not finite", v)
		}
		return time.UnixMicro(int64(math.Round(v * 1000))).In(loc), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q is not numeric", v)
		}
		return EventTime(f, loc)
	case nil:
		return time.Time{}, fmt.Errorf("timestamp is null")
	default:
		return time.Time{}, fmt.Errorf("timestamp has unsupported type %T", ts)
	}
}

// CalendarOf derives the calendar fields of t.
func CalendarOf(t time.Time) Calendar {
	_, week := t.ISOWeek()
	return Calendar{
		Hour:    int64(t.Hour()),
		Day:     int64(t.Day()),
		Week:    int64(week),
		Month:   int64(t.Month()),
		Year:    int64(t.Year()),
		Weekday: t.Weekday().String()[:3],
	}
}

// hostZone is the host's zone as seen at startup, before main pins
// time.Local to UTC.
var hostZone = time.Local

// LoadTimeZone resolves a zone name. An empty name means UTC and "Local"
// means the host's zone.
func LoadTimeZone(name string) (*time.Location, error) {
	switch name {
	case "", "UTC":
		return time.UTC, nil
	case "Local":
		return hostZone, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return loc, nil
}
