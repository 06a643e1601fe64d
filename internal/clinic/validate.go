package clinic

import (
	"fmt"
	"time"
)

// ValidateSlot decides whether a proposed booking time falls inside the
// doctor's recurring availability for the weekday of the requested date.
//
// The weekday is taken straight from the civil date; there is no timezone
// conversion, the facility runs on a single local clock.
func ValidateSlot(avail WeeklyAvailability, date time.Time, timeOfDay string) error {
	t, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return err
	}

	w := avail.WindowFor(date.Weekday())
	if w == nil {
		return fmt.Errorf("%w: no window on %s", ErrDoctorUnavailable, weekdayKeys[date.Weekday()])
	}

	start, err := ParseTimeOfDay(w.Start)
	if err != nil {
		return err
	}
	end, err := ParseTimeOfDay(w.End)
	if err != nil {
		return err
	}
	if start > end {
		// Overnight windows are malformed, not wrap-around.
		return fmt.Errorf("%w: window %s-%s wraps midnight", ErrInvalidTimeFormat, w.Start, w.End)
	}

	if t < start || t > end {
		return &WindowError{Start: w.Start, End: w.End}
	}

	return nil
}
