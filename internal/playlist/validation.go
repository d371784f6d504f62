package playlist

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks a playlist the way an admin tool should before
// publishing it. It reports every problem found, joined into one error.
// The player never calls it; playback tolerates all of these.
func Validate(p Playlist) error {
	var errs []error
	seen := make(map[string]int, len(p.Content))

	for i, item := range p.Content {
		pos := i + 1

		if item.ID == "" {
			errs = append(errs, fmt.Errorf("%w: item %d", ErrMissingItemID, pos))
		} else if first, dup := seen[item.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: %q at items %d and %d", ErrDuplicateItemID, item.ID, first, pos))
		} else {
			seen[item.ID] = pos
		}

		if item.Duration.Set && !item.Duration.Valid() {
			errs = append(errs, fmt.Errorf("%w: item %d has %v seconds", ErrInvalidDuration, pos, item.Duration.Seconds))
		}

		if err := validateSchedule(item); err != nil {
			errs = append(errs, fmt.Errorf("item %d: %w", pos, err))
		}
	}

	return errors.Join(errs...)
}

func validateSchedule(item Item) error {
	for day := range item.ScheduleDays {
		if !isWeekdayKey(day) {
			return fmt.Errorf("%w: unknown day %q", ErrInvalidSchedule, day)
		}
	}

	start, hasStart := ParseClock(item.ScheduleStart)
	if !hasStart && strings.TrimSpace(item.ScheduleStart) != "" {
		return fmt.Errorf("%w: scheduleStart %q is not HH:MM", ErrInvalidSchedule, item.ScheduleStart)
	}
	end, hasEnd := ParseClock(item.ScheduleEnd)
	if !hasEnd && strings.TrimSpace(item.ScheduleEnd) != "" {
		return fmt.Errorf("%w: scheduleEnd %q is not HH:MM", ErrInvalidSchedule, item.ScheduleEnd)
	}
	if hasStart && hasEnd && start > end {
		return fmt.Errorf("%w: window %s-%s wraps past midnight", ErrInvalidSchedule, item.ScheduleStart, item.ScheduleEnd)
	}
	return nil
}

func isWeekdayKey(s string) bool {
	for _, k := range weekdayKeys {
		if k == s {
			return true
		}
	}
	return false
}
