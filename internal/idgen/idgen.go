// Package idgen produces and formats voicemail row identifiers.
//
// The id is a local-time timestamp, widened to millisecond resolution to
// avoid same-instant collisions between two calls answered on the same
// host. Its leading 14 digits remain the YYYYMMDDhhmmss prefix that
// FormatDate parses, so existing tooling built against the narrower id
// keeps working.
package idgen

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

const (
	secondLayout  = "20060102150405"
	displayLayout = "2006-01-02 15:04:05"
)

// New returns a new row id for the current local time: a 14-digit
// YYYYMMDDhhmmss prefix followed by a 3-digit millisecond suffix.
func New() int64 {
	return NewAt(time.Now())
}

// NewAt returns the row id for a specific instant, in the caller's
// local time zone. Exposed separately so tests can pin the clock.
func NewAt(t time.Time) int64 {
	t = t.Local()
	prefix := t.Format(secondLayout)
	millis := t.Nanosecond() / int(time.Millisecond)
	id, err := strconv.ParseInt(fmt.Sprintf("%s%03d", prefix, millis), 10, 64)
	if err != nil {
		// secondLayout always yields 14 ASCII digits; this cannot fail.
		panic(fmt.Sprintf("idgen: formatting local time: %v", err))
	}
	return id
}

// FormatDate renders a row id's 14-digit prefix as "YYYY-MM-DD hh:mm:ss",
// the text stored in the voicemail table's event_time column.
func FormatDate(id int64) (string, error) {
	s := strconv.FormatInt(id, 10)
	if len(s) < len(secondLayout) {
		return "", fmt.Errorf("idgen: id %d is shorter than the %d-digit second prefix", id, len(secondLayout))
	}
	t, err := time.ParseInLocation(secondLayout, s[:len(secondLayout)], time.Local)
	if err != nil {
		return "", fmt.Errorf("idgen: parsing id %d: %w", id, err)
	}
	return t.Format(displayLayout), nil
}

// MD5Hex returns the hex-encoded MD5 digest of s.
func MD5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
