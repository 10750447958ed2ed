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
	"context"
	"fmt"
	"time"

	"github.com/cardinalhq/songlake/internal/rowset"
	"github.com/cardinalhq/songlake/pipeline"
	"github.com/cardinalhq/songlake/pipeline/wkk"
)

// Log record columns.
const (
	ColUserID    = "userId"
	ColFirstName = "firstName"
	ColLastName  = "lastName"
	ColGender    = "gender"
	ColLevel     = "level"
	ColPage      = "page"
	ColTs        = "ts"
	ColArtist    = "artist"
	ColSong      = "song"
	ColSessionID = "sessionId"
	ColLocation  = "location"
	ColUserAgent = "userAgent"

	// PageNextSong marks a log record as a song play.
	PageNextSong = "NextSong"
)

// Derived calendar columns.
const (
	ColHour    = "hour"
	ColDay     = "day"
	ColWeek    = "week"
	ColMonth   = "month"
	ColWeekday = "weekday"
)

// UsersColumns are the columns of the users dimension, in order.
var UsersColumns = []string{"user_id", "first_name", "last_name", ColGender, ColLevel}

// TimeColumns are the columns of the time dimension, in order.
var TimeColumns = []string{ColTs, ColHour, ColDay, ColWeek, ColMonth, ColYear, ColWeekday}

// SongplaysColumns are the columns of the songplays fact table, in order.
var SongplaysColumns = []string{
	"start_time", "user_id", ColLevel, ColSongID, ColArtistID,
	"session_id", ColLocation, "user_agent", ColYear, ColMonth,
}

// FilterSongPlays keeps the log records whose page is NextSong.
func FilterSongPlays(ctx context.Context, logs rowset.RowSet) (rowset.RowSet, error) {
	out, err := logs.Where(ctx, rowset.Eq(ColPage, PageNextSong))
	if err != nil {
		return nil, fmt.Errorf("filter song plays: %w", err)
	}
	return out, nil
}

// BuildUsersTable extracts the user columns of each play and drops identical
// rows. A user who changed level keeps one row per level.
func BuildUsersTable(ctx context.Context, plays rowset.RowSet) (rowset.RowSet, error) {
	projected, err := plays.Select(ctx,
		rowset.Rename(ColUserID, "user_id"),
		rowset.Rename(ColFirstName, "first_name"),
		rowset.Rename(ColLastName, "last_name"),
		rowset.Col(ColGender),
		rowset.Col(ColLevel),
	)
	if err != nil {
		return nil, fmt.Errorf("users table: %w", err)
	}
	out, err := projected.Distinct(ctx)
	if err != nil {
		return nil, fmt.Errorf("users table: %w", err)
	}
	return out, nil
}

var calendarColumns = []rowset.Column{
	{Name: ColHour, Type: rowset.DataTypeInt64},
	{Name: ColDay, Type: rowset.DataTypeInt64},
	{Name: ColWeek, Type: rowset.DataTypeInt64},
	{Name: ColMonth, Type: rowset.DataTypeInt64},
	{Name: ColYear, Type: rowset.DataTypeInt64},
	{Name: ColWeekday, Type: rowset.DataTypeString},
}

var yearMonthColumns = []rowset.Column{
	{Name: ColYear, Type: rowset.DataTypeInt64},
	{Name: ColMonth, Type: rowset.DataTypeInt64},
}

// eventCalendar reads the ts column of row as a calendar in loc.
func eventCalendar(row pipeline.Row, loc *time.Location) (Calendar, error) {
	t, err := EventTime(row[wkk.RowKeyTs], loc)
	if err != nil {
		return Calendar{}, fmt.Errorf("column %q: %w", ColTs, err)
	}
	return CalendarOf(t), nil
}

// BuildTimeTable derives the calendar fields of every distinct play
// timestamp in loc.
func BuildTimeTable(ctx context.Context, plays rowset.RowSet, loc *time.Location) (rowset.RowSet, error) {
	ts, err := plays.Select(ctx, rowset.Col(ColTs))
	if err != nil {
		return nil, fmt.Errorf("time table: %w", err)
	}
	derived, err := ts.Derive(ctx, calendarColumns, func(in, out pipeline.Row) error {
		cal, err := eventCalendar(in, loc)
		if err != nil {
			return err
		}
		out[wkk.RowKeyHour] = cal.Hour
		out[wkk.RowKeyDay] = cal.Day
		out[wkk.RowKeyWeek] = cal.Week
		out[wkk.RowKeyMonth] = cal.Month
		out[wkk.RowKeyYear] = cal.Year
		out[wkk.RowKeyWeekday] = cal.Weekday
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("time table: %w", err)
	}
	out, err := derived.Distinct(ctx)
	if err != nil {
		return nil, fmt.Errorf("time table: %w", err)
	}
	return out, nil
}

// BuildSongplaysTable left-joins every play to the raw song records sharing
// its artist name and title. Plays without a match keep null song_id and
// artist_id; plays matching several songs produce one row per song. year and
// month come from each play's own ts in loc.
func BuildSongplaysTable(ctx context.Context, plays, songs rowset.RowSet, loc *time.Location) (rowset.RowSet, error) {
	if err := songs.Schema().Require("songplays table", ColArtistName, ColTitle, ColSongID, ColArtistID); err != nil {
		return nil, err
	}

	dated, err := plays.Derive(ctx, yearMonthColumns, func(in, out pipeline.Row) error {
		cal, err := eventCalendar(in, loc)
		if err != nil {
			return err
		}
		out[wkk.RowKeyYear] = cal.Year
		out[wkk.RowKeyMonth] = cal.Month
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("songplays table: %w", err)
	}

	joined, err := dated.LeftJoin(ctx, songs,
		[]rowset.JoinKey{
			{Left: ColArtist, Right: ColArtistName},
			{Left: ColSong, Right: ColTitle},
		},
		rowset.Col(ColSongID),
		rowset.Col(ColArtistID),
	)
	if err != nil {
		return nil, fmt.Errorf("songplays table: %w", err)
	}

	out, err := joined.Select(ctx,
		rowset.Rename(ColTs, "start_time"),
		rowset.Rename(ColUserID, "user_id"),
		rowset.Col(ColLevel),
		rowset.Col(ColSongID),
		rowset.Col(ColArtistID),
		rowset.Rename(ColSessionID, "session_id"),
		rowset.Col(ColLocation),
		rowset.Rename(ColUserAgent, "user_agent"),
		rowset.Col(ColYear),
		rowset.Col(ColMonth),
	)
	if err != nil {
		return nil, fmt.Errorf("songplays table: %w", err)
	}
	return out, nil
}
