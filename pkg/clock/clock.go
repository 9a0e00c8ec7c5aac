// Package clock parses upstream timestamps into a fixed zone and computes
// signed deltas against "now".
package clock

import (
	"strings"
	"time"
	_ "time/tzdata"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct {
	loc *time.Location
}

// System returns wall clock time in loc.
func System(loc *time.Location) Clock {
	return systemClock{loc: loc}
}

func (c systemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

type fixedClock struct {
	t time.Time
}

// Fixed always returns t.
func Fixed(t time.Time) Clock {
	return fixedClock{t: t}
}

func (c fixedClock) Now() time.Time {
	return c.t
}

func LoadLocation(name string) (*time.Location, error) {
	return time.LoadLocation(name)
}

var offsetLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	time.RFC1123Z,
	time.RFC822Z,
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC1123,
}

// ParseTime accepts ISO-8601 like strings with or without an offset.
// Strings without an offset are read as wall time in loc. The result is
// always expressed in loc.
func ParseTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// Delta is a signed hours/minutes/seconds split of a duration.
type Delta struct {
	Hours   int
	Minutes int
	Seconds int
}

func (d Delta) TotalMinutes() int {
	return d.Hours*60 + d.Minutes
}

// DeltaFromNow splits t-now; every component keeps the sign of the
// difference and is truncated toward zero.
func DeltaFromNow(t, now time.Time) Delta {
	d := t.Sub(now)
	return Delta{
		Hours:   int(d / time.Hour),
		Minutes: int((d % time.Hour) / time.Minute),
		Seconds: int((d % time.Minute) / time.Second),
	}
}

// StartOfNextDay returns local midnight after t.
func StartOfNextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
