// Package schedule resolves user timezones and computes local-time fire
// instants.
//
// The DST policy is explicit and deliberate:
//
//   - If the target wall-clock time does not exist on a given local date
//     (spring-forward gap), that day is skipped; no compensating double fire.
//   - If it exists twice (fall-back fold), the first occurrence is used and
//     the second is ignored.
//
// Naive recurring-timer code inherits whatever its timer library does on
// transition days, which is the usual source of silently duplicated or
// missed reminders; here the behavior is pinned down and tested.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimezone is returned when a user-supplied zone name is not a
// recognized IANA identifier.
var ErrInvalidTimezone = errors.New("invalid timezone")

// Validate resolves an IANA zone name. State is never changed on failure;
// the caller reports the bad name back to the user.
func Validate(name string) (*time.Location, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidTimezone)
	}
	loc, err := time.LoadLocation(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}

// NextFire returns the smallest instant strictly after `after` whose local
// representation in loc is at.Hour:at.Minute:00, applying the package DST
// policy. The zero time is returned only if no occurrence exists within a
// year, which no real zone produces.
func NextFire(loc *time.Location, at LocalTime, after time.Time) time.Time {
	local := after.In(loc)
	y, m, d := local.Date()

	for i := 0; i < 370; i++ {
		cand := time.Date(y, m, d+i, at.Hour, at.Minute, 0, 0, loc)
		cl := cand.In(loc)
		if cl.Hour() != at.Hour || cl.Minute() != at.Minute {
			// The wall-clock time fell into a spring-forward gap on this
			// date; skip to the next day.
			continue
		}
		cand = firstOccurrence(cand, loc, at)
		if cand.After(after) {
			return cand
		}
	}
	return time.Time{}
}

// firstOccurrence normalizes an ambiguous fall-back instant to the earlier of
// the two instants sharing the same local date and wall-clock time. time.Date
// does not document which side of a fold it picks, so probe backwards in
// 30-minute steps (transitions of 30m exist, e.g. Lord Howe Island).
func firstOccurrence(cand time.Time, loc *time.Location, at LocalTime) time.Time {
	_, _, candDay := cand.In(loc).Date()
	for delta := 30 * time.Minute; delta <= 2*time.Hour; delta += 30 * time.Minute {
		earlier := cand.Add(-delta)
		el := earlier.In(loc)
		_, _, day := el.Date()
		if day == candDay && el.Hour() == at.Hour && el.Minute() == at.Minute {
			return earlier
		}
	}
	return cand
}
