package store

import (
	"database/sql"
	"time"
)

// Timestamps are stored as INTEGER Unix nanoseconds in UTC so that ORDER BY
// on a time column is a plain integer comparison.

func encodeTime(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func decodeTime(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func decodeNullTime(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return decodeTime(n.Int64)
}
