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

package wkk

import (
	"unique"
	"unsafe"
)

type rowkey string

type RowKey = unique.Handle[rowkey]

func NewRowKey(s string) RowKey {
	return unique.Make(rowkey(s))
}

func RowKeyValue(rk RowKey) string {
	return string(rk.Value())
}

// commonKeys maps the raw record field names to pre-allocated RowKeys
var commonKeys = map[string]RowKey{
	// Song records
	"song_id":          RowKeySongID,
	"title":            RowKeyTitle,
	"artist_id":        RowKeyArtistID,
	"year":             RowKeyYear,
	"duration":         RowKeyDuration,
	"artist_name":      RowKeyArtistName,
	"artist_location":  RowKeyArtistLocation,
	"artist_latitude":  RowKeyArtistLatitude,
	"artist_longitude": RowKeyArtistLongitude,
	"num_songs":        unique.Make(rowkey("num_songs")),

	// Log records
	"artist":        RowKeyArtist,
	"auth":          unique.Make(rowkey("auth")),
	"firstName":     RowKeyFirstName,
	"gender":        RowKeyGender,
	"itemInSession": unique.Make(rowkey("itemInSession")),
	"lastName":      RowKeyLastName,
	"length":        unique.Make(rowkey("length")),
	"level":         RowKeyLevel,
	"location":      RowKeyLocation,
	"method":        unique.Make(rowkey("method")),
	"page":          RowKeyPage,
	"registration":  unique.Make(rowkey("registration")),
	"sessionId":     RowKeySessionID,
	"song":          RowKeySong,
	"status":        unique.Make(rowkey("status")),
	"ts":            RowKeyTs,
	"userAgent":     RowKeyUserAgent,
	"userId":        RowKeyUserID,
}

// NewRowKeyFromBytes creates a RowKey from bytes without string allocation for common keys
func NewRowKeyFromBytes(keyBytes []byte) RowKey {
	keyStr := unsafe.String(unsafe.SliceData(keyBytes), len(keyBytes))
	if key, exists := commonKeys[keyStr]; exists {
		return key
	}
	return unique.Make(rowkey(string(keyBytes)))
}

var (
	// Song record fields.
	RowKeySongID          = NewRowKey("song_id")
	RowKeyTitle           = NewRowKey("title")
	RowKeyArtistID        = NewRowKey("artist_id")
	RowKeyYear            = NewRowKey("year")
	RowKeyDuration        = NewRowKey("duration")
	RowKeyArtistName      = NewRowKey("artist_name")
	RowKeyArtistLocation  = NewRowKey("artist_location")
	RowKeyArtistLatitude  = NewRowKey("artist_latitude")
	RowKeyArtistLongitude = NewRowKey("artist_longitude")

	// Log record fields.
	RowKeyArtist    = NewRowKey("artist")
	RowKeyFirstName = NewRowKey("firstName")
	RowKeyGender    = NewRowKey("gender")
	RowKeyLastName  = NewRowKey("lastName")
	RowKeyLevel     = NewRowKey("level")
	RowKeyLocation  = NewRowKey("location")
	RowKeyPage      = NewRowKey("page")
	RowKeySessionID = NewRowKey("sessionId")
	RowKeySong      = NewRowKey("song")
	RowKeyTs        = NewRowKey("ts")
	RowKeyUserAgent = NewRowKey("userAgent")
	RowKeyUserID    = NewRowKey("userId")

	// Derived calendar fields.
	RowKeyHour    = NewRowKey("hour")
	RowKeyDay     = NewRowKey("day")
	RowKeyWeek    = NewRowKey("week")
	RowKeyMonth   = NewRowKey("month")
	RowKeyWeekday = NewRowKey("weekday")
)
