package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// LocalTime is a wall-clock time of day, independent of any zone.
type LocalTime struct {
	Hour   int
	Minute int
}

func (t LocalTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseLocalTime parses "HH:MM" (24-hour).
func ParseLocalTime(raw string) (LocalTime, error) {
	s := strings.TrimSpace(raw)
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return LocalTime{}, fmt.Errorf("invalid time %q: want HH:MM", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return LocalTime{}, fmt.Errorf("invalid hour in %q", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return LocalTime{}, fmt.Errorf("invalid minute in %q", raw)
	}
	return LocalTime{Hour: h, Minute: m}, nil
}
