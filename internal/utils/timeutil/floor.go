package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FloorByPeriod returns the start of the period bucket containing t, in t's
// location. The leading non-zero field of p decides the alignment: years
// align on the first day of the year, months on the first of the month,
// weeks on ISO Mondays, days on local midnight, and so on. Multiples align on
// field values divisible by the multiple (P3M buckets start in January,
// April, July and October). Lower fields of a mixed period are ignored for
// alignment: PT1H30M floors to the hour and P1DT12H to midnight, so
// consecutive buckets are not a fixed stride apart.
func FloorByPeriod(t time.Time, p Period) (time.Time, error) {
	loc := t.Location()
	y, mo, d := t.Date()
	h, mi, s := t.Clock()

	switch {
	case p.Years != 0:
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return start.AddDate(-(y % p.Years), 0, 0), nil
	case p.Months != 0:
		start := time.Date(y, mo, 1, 0, 0, 0, 0, loc)
		return start.AddDate(0, -((int(mo) - 1) % p.Months), 0), nil
	case p.Weeks != 0:
		offset := (int(t.Weekday()) + 6) % 7
		monday := time.Date(y, mo, d-offset, 0, 0, 0, 0, loc)
		_, week := monday.ISOWeek()
		return monday.AddDate(0, 0, -7*((week-1)%p.Weeks)), nil
	case p.Days != 0:
		return time.Date(y, mo, d-(d-1)%p.Days, 0, 0, 0, 0, loc), nil
	case p.Hours != 0:
		return time.Date(y, mo, d, h-h%p.Hours, 0, 0, 0, loc), nil
	case p.Minutes != 0:
		return time.Date(y, mo, d, h, mi-mi%p.Minutes, 0, 0, loc), nil
	case p.Seconds != 0:
		return time.Date(y, mo, d, h, mi, s-s%p.Seconds, 0, loc), nil
	case p.Millis != 0:
		ms := t.Nanosecond() / int(time.Millisecond)
		return time.Date(y, mo, d, h, mi, s, (ms-ms%p.Millis)*int(time.Millisecond), loc), nil
	}
	return time.Time{}, fmt.Errorf("cannot floor by zero period")
}

// ResolveLocation loads the named IANA zone, or returns fallback when name is
// empty.
func ResolveLocation(name string, fallback *time.Location) (*time.Location, error) {
	if name == "" {
		if fallback == nil {
			return time.UTC, nil
		}
		return fallback, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// FromEpochMillis converts epoch milliseconds to a time in loc.
func FromEpochMillis(ms int64, loc *time.Location) time.Time {
	return time.UnixMilli(ms).In(loc)
}

// ParseInstant accepts epoch milliseconds or an RFC 3339 timestamp and
// returns epoch milliseconds.
func ParseInstant(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("value is required")
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return 0, fmt.Errorf("expected epoch millis or RFC 3339: %w", err)
	}
	return t.UnixMilli(), nil
}
