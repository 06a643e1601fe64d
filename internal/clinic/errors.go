package clinic

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTimeFormat    = errors.New("time must be a canonical HH:MM value")
	ErrDoctorUnavailable    = errors.New("doctor is not available on this day")
	ErrOutsideAvailability  = errors.New("time is outside the doctor's availability window")
	ErrSlotConflict         = errors.New("doctor already has an appointment at this time")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrPartialCompletion    = errors.New("completion partially applied, reconciliation required")
)

// WindowError reports a rejected booking time together with the doctor's
// actual window so callers can correct the request.
type WindowError struct {
	Start string
	End   string
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("doctor is only available from %s to %s", e.Start, e.End)
}

func (e *WindowError) Unwrap() error { return ErrOutsideAvailability }

// TransitionError reports a lifecycle operation attempted from a status that
// does not permit it.
type TransitionError struct {
	From      Status
	Attempted string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s an appointment in status %q", e.Attempted, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
