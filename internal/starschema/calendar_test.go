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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTimeAndCalendar(t *testing.T) {
	for _, ts := range []any{int64(1542241826796), 1542241826796, 1542241826796.0, "1542241826796"} {
		tm, err := EventTime(ts, time.UTC)
		require.NoError(t, err, "%T", ts)
		assert.Equal(t, Calendar{Hour: 0, Day: 15, Week: 46, Month: 11, Year: 2018, Weekday: "Thu"}, CalendarOf(tm))
	}
}

func TestEventTimeFractionalMillis(t *testing.T) {
	tm, err := EventTime(1542241826796.5, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 796500*time.Microsecond, time.Duration(tm.Nanosecond()))
}

func TestEventTimeInZone(t *testing.T) {
	ny, err := LoadTimeZone("America/New_York")
	require.NoError(t, err)

	tm, err := EventTime(int64(1542241826796), ny)
	require.NoError(t, err)
	// 2018-11-15T00:30:26Z is still the 14th in New York.
	assert.Equal(t, Calendar{Hour: 19, Day: 14, Week: 46, Month: 11, Year: 2018, Weekday: "Wed"}, CalendarOf(tm))
}

func TestEventTimeErrors(t *testing.T) {
	for _, ts := range []any{nil, "soon", true, []any{1}} {
		_, err := EventTime(ts, time.UTC)
		assert.Error(t, err, "%v", ts)
	}
}

func TestCalendarISOWeekAtYearBoundary(t *testing.T) {
	// 2018-12-31 is a Monday in ISO week 1 of 2019.
	cal := CalendarOf(time.Date(2018, 12, 31, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, int64(1), cal.Week)
	assert.Equal(t, int64(2018), cal.Year)
	assert.Equal(t, "Mon", cal.Weekday)
}

func TestLoadTimeZone(t *testing.T) {
	loc, err := LoadTimeZone("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = LoadTimeZone("UTC")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = LoadTimeZone("Local")
	require.NoError(t, err)
	assert.Equal(t, hostZone, loc)

	_, err = LoadTimeZone("Not/AZone")
	assert.Error(t, err)
}
