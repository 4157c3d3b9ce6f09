// Package timeutil implements ISO-8601 periods and the calendar-aware bucket
// arithmetic used to align chart windows on alert granularities.
package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Period is an ISO-8601 period split into calendar fields. Unlike a
// time.Duration it keeps months and years, whose length depends on the date
// they are applied to.
type Period struct {
	Years   int
	Months  int
	Weeks   int
	Days    int
	Hours   int
	Minutes int
	Seconds int
	Millis  int
}

func Years(n int) Period   { return Period{Years: n} }
func Months(n int) Period  { return Period{Months: n} }
func Weeks(n int) Period   { return Period{Weeks: n} }
func Days(n int) Period    { return Period{Days: n} }
func Hours(n int) Period   { return Period{Hours: n} }
func Minutes(n int) Period { return Period{Minutes: n} }
func Seconds(n int) Period { return Period{Seconds: n} }
func Millis(n int) Period  { return Period{Millis: n} }

var periodPattern = regexp.MustCompile(
	`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)(?:\.(\d{1,3}))?S)?)?$`)

// ParsePeriod parses an ISO-8601 period such as "P1D", "PT15M", "P1M" or
// "PT0.1S". Fractions are only accepted on seconds, down to milliseconds.
func ParsePeriod(s string) (Period, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	m := periodPattern.FindStringSubmatch(raw)
	if m == nil || strings.HasSuffix(raw, "T") {
		return Period{}, fmt.Errorf("invalid ISO-8601 period %q", s)
	}

	fields := make([]int, 8)
	for i := 1; i <= 7; i++ {
		if m[i] == "" {
			continue
		}
		v, err := strconv.Atoi(m[i])
		if err != nil {
			return Period{}, fmt.Errorf("invalid ISO-8601 period %q: %w", s, err)
		}
		fields[i-1] = v
	}
	if frac := m[8]; frac != "" {
		frac += strings.Repeat("0", 3-len(frac))
		v, _ := strconv.Atoi(frac)
		fields[7] = v
	}

	p := Period{
		Years: fields[0], Months: fields[1], Weeks: fields[2], Days: fields[3],
		Hours: fields[4], Minutes: fields[5], Seconds: fields[6], Millis: fields[7],
	}
	if p.IsZero() {
		return Period{}, fmt.Errorf("period %q must not be zero", s)
	}
	return p, nil
}

// MustParsePeriod is ParsePeriod for constants; it panics on bad input.
func MustParsePeriod(s string) Period {
	p, err := ParsePeriod(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Period) IsZero() bool {
	return p == Period{}
}

// IsCalendar reports whether the period has a month or year component and so
// has no fixed length.
func (p Period) IsCalendar() bool {
	return p.Years != 0 || p.Months != 0
}

// StandardDuration converts the period assuming 7-day weeks and 24-hour
// days. Calendar periods cannot be converted.
func (p Period) StandardDuration() (time.Duration, error) {
	if p.IsCalendar() {
		return 0, fmt.Errorf("period %s contains months or years and has no standard duration", p)
	}
	d := time.Duration(p.Weeks)*7*24*time.Hour +
		time.Duration(p.Days)*24*time.Hour +
		time.Duration(p.Hours)*time.Hour +
		time.Duration(p.Minutes)*time.Minute +
		time.Duration(p.Seconds)*time.Second +
		time.Duration(p.Millis)*time.Millisecond
	return d, nil
}

// AddTo adds the period scalar times to t. Years and months move the calendar
// and clamp the day to the end of the target month, weeks and days move the
// local calendar date, and the remaining fields are absolute durations.
func (p Period) AddTo(t time.Time, scalar int) time.Time {
	if months := p.Years*12 + p.Months; months != 0 {
		t = addMonths(t, months*scalar)
	}
	if days := p.Weeks*7 + p.Days; days != 0 {
		t = t.AddDate(0, 0, days*scalar)
	}
	d := time.Duration(p.Hours)*time.Hour +
		time.Duration(p.Minutes)*time.Minute +
		time.Duration(p.Seconds)*time.Second +
		time.Duration(p.Millis)*time.Millisecond
	return t.Add(time.Duration(scalar) * d)
}

// Plus returns t advanced by one period.
func (p Period) Plus(t time.Time) time.Time { return p.AddTo(t, 1) }

// Minus returns t moved back by one period.
func (p Period) Minus(t time.Time) time.Time { return p.AddTo(t, -1) }

func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	first := time.Date(y, m+time.Month(months), 1, hh, mm, ss, t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// String renders the period in ISO-8601 form.
func (p Period) String() string {
	if p.IsZero() {
		return "PT0S"
	}
	var b strings.Builder
	b.WriteString("P")
	writeField(&b, p.Years, "Y")
	writeField(&b, p.Months, "M")
	writeField(&b, p.Weeks, "W")
	writeField(&b, p.Days, "D")
	if p.Hours != 0 || p.Minutes != 0 || p.Seconds != 0 || p.Millis != 0 {
		b.WriteString("T")
		writeField(&b, p.Hours, "H")
		writeField(&b, p.Minutes, "M")
		if p.Millis != 0 {
			frac := strings.TrimRight(fmt.Sprintf("%03d", p.Millis), "0")
			fmt.Fprintf(&b, "%d.%sS", p.Seconds, frac)
		} else {
			writeField(&b, p.Seconds, "S")
		}
	}
	return b.String()
}

func writeField(b *strings.Builder, v int, unit string) {
	if v != 0 {
		fmt.Fprintf(b, "%d%s", v, unit)
	}
}

// MarshalText lets periods travel as ISO strings in JSON and YAML.
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Period) UnmarshalText(text []byte) error {
	parsed, err := ParsePeriod(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
