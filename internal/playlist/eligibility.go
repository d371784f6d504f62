package playlist

import (
	"strconv"
	"strings"
	"time"
)

const (
	minutesPerHour = 60
	hoursPerDay    = 24
)

// weekdayKeys maps time.Weekday to the scheduleDays keys.
var weekdayKeys = [...]string{
	time.Sunday:    "sun",
	time.Monday:    "mon",
	time.Tuesday:   "tue",
	time.Wednesday: "wed",
	time.Thursday:  "thu",
	time.Friday:    "fri",
	time.Saturday:  "sat",
}

// WeekdayKey returns the scheduleDays key for a weekday.
func WeekdayKey(d time.Weekday) string {
	return weekdayKeys[d]
}

// Eligible reports whether item may be shown at now. Weekday and time of
// day are read in now's location, so callers pass a time already in the
// screen's timezone.
//
// It has no side effects and does not allocate.
func Eligible(item Item, now time.Time) bool {
	if !item.IsActive() {
		return false
	}

	if len(item.ScheduleDays) > 0 && !item.ScheduleDays[weekdayKeys[now.Weekday()]] {
		return false
	}

	start, hasStart := ParseClock(item.ScheduleStart)
	end, hasEnd := ParseClock(item.ScheduleEnd)
	if !hasStart && !hasEnd {
		return true
	}
	if hasStart && hasEnd && start > end {
		return false
	}

	minute := now.Hour()*minutesPerHour + now.Minute()
	if hasStart && minute < start {
		return false
	}
	if hasEnd && minute > end {
		return false
	}
	return true
}

// ParseClock parses a wall-clock "HH:MM" (or "H:MM") into minutes since
// midnight. "24:00" is accepted as the end of the day. ok is false for an
// empty or malformed value.
func ParseClock(s string) (minutes int, ok bool) {
	s = strings.TrimSpace(s)
	colon := strings.IndexByte(s, ':')
	if colon < 1 || colon > 2 || len(s)-colon-1 != 2 {
		return 0, false
	}

	h, err := strconv.Atoi(s[:colon])
	if err != nil || h < 0 {
		return 0, false
	}
	m, err := strconv.Atoi(s[colon+1:])
	if err != nil || m < 0 || m >= minutesPerHour {
		return 0, false
	}

	switch {
	case h < hoursPerDay:
		return h*minutesPerHour + m, true
	case h == hoursPerDay && m == 0:
		return hoursPerDay * minutesPerHour, true
	default:
		return 0, false
	}
}
