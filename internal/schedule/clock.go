package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Match patterns like "22:15", "06:30"
var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// Clock is a time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(expr string) (Clock, error) {
	expr = strings.TrimSpace(expr)

	matches := clockPattern.FindStringSubmatch(expr)
	if matches == nil {
		return Clock{}, fmt.Errorf("invalid time of day: %q", expr)
	}

	hour, _ := strconv.Atoi(matches[1])
	minute, _ := strconv.Atoi(matches[2])
	if hour > 23 {
		return Clock{}, fmt.Errorf("invalid hour: %d", hour)
	}
	if minute > 59 {
		return Clock{}, fmt.Errorf("invalid minute: %d", minute)
	}

	return Clock{Hour: hour, Minute: minute}, nil
}

// On returns the clock time on the given date in tz.
func (c Clock) On(date time.Time, tz *time.Location) time.Time {
	date = date.In(tz)
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour, c.Minute, 0, 0, tz)
}

// Next finds the first occurrence strictly after the given time.
// The date is walked a few days ahead so DST gaps can't skip a day.
func (c Clock) Next(after time.Time, tz *time.Location) time.Time {
	for i := 0; i < 3; i++ {
		if t := c.On(after.AddDate(0, 0, i), tz); t.After(after) {
			return t
		}
	}
	return c.On(after.AddDate(0, 0, 3), tz)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}
