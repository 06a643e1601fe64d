package clinic

import (
	"encoding/json"
	"fmt"
	"time"
)

// Window is one recurring availability interval for a single weekday.
// Both bounds are inclusive: a booking at exactly Start or End is accepted.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Validate checks both bounds parse and the window does not wrap midnight.
// Overnight windows (start > end) are not supported and are treated as
// malformed rather than given wrap-around semantics.
func (w Window) Validate() error {
	start, err := ParseTimeOfDay(w.Start)
	if err != nil {
		return err
	}
	end, err := ParseTimeOfDay(w.End)
	if err != nil {
		return err
	}
	if start > end {
		return fmt.Errorf("%w: window %s-%s wraps midnight", ErrInvalidTimeFormat, w.Start, w.End)
	}
	return nil
}

// WeeklyAvailability holds at most one window per weekday, indexed by
// time.Weekday (Sunday = 0). A nil entry means the doctor is unavailable
// that day.
type WeeklyAvailability [7]*Window

var weekdayKeys = [7]string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

// WindowFor returns the window configured for the given weekday, or nil.
func (a WeeklyAvailability) WindowFor(day time.Weekday) *Window {
	return a[day]
}

// Set replaces the window for a weekday. A nil window clears the day.
func (a *WeeklyAvailability) Set(day time.Weekday, w *Window) {
	a[day] = w
}

// Validate checks every configured window.
func (a WeeklyAvailability) Validate() error {
	for day, w := range a {
		if w == nil {
			continue
		}
		if err := w.Validate(); err != nil {
			return fmt.Errorf("%s: %w", weekdayKeys[day], err)
		}
	}
	return nil
}

// MarshalJSON writes the sparse weekday map form, e.g.
// {"monday":{"start":"09:00","end":"17:00"}}. Days without a window are
// omitted entirely.
func (a WeeklyAvailability) MarshalJSON() ([]byte, error) {
	m := make(map[string]*Window, 7)
	for day, w := range a {
		if w != nil {
			m[weekdayKeys[day]] = w
		}
	}
	return json.Marshal(m)
}

func (a *WeeklyAvailability) UnmarshalJSON(data []byte) error {
	var m map[string]*Window
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	var parsed WeeklyAvailability
	for key, w := range m {
		day, ok := weekdayIndex(key)
		if !ok {
			return fmt.Errorf("unknown weekday %q in availability", key)
		}
		parsed[day] = w
	}

	*a = parsed
	return nil
}

func weekdayIndex(key string) (time.Weekday, bool) {
	for i, name := range weekdayKeys {
		if name == key {
			return time.Weekday(i), true
		}
	}
	return 0, false
}
