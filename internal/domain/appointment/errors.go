package appointment

import "errors"

var (
	// ErrValidation marks malformed input. The wrapped message is safe to
	// show to the caller.
	ErrValidation = errors.New("validation failed")

	// ErrScheduleConflict means the candidate slot is already occupied by
	// an active appointment.
	ErrScheduleConflict = errors.New("slot already booked")

	// ErrNotFound means the appointment id does not exist.
	ErrNotFound = errors.New("appointment not found")
)
