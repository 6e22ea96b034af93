package booking

import "errors"

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}

func validationError(msg string) error {
	return NewValidationError(msg)
}

// Rejection reasons carried by SlotUnavailableError, so callers can offer
// alternatives instead of a generic failure.
const (
	ReasonBlock    = "block"
	ReasonOverlap  = "overlap"
	ReasonHours    = "hours"
	ReasonExternal = "external"
)

type SlotUnavailableError struct {
	Reason string
}

func (e *SlotUnavailableError) Error() string {
	return "slot unavailable: " + e.Reason
}

// ErrExternalAvailabilityUnknown means the external calendar could not confirm
// the slot is free. Booking fails closed: committing blind would silently
// double-book staff who keep outside commitments in their external calendar.
// The caller may retry.
var ErrExternalAvailabilityUnknown = errors.New("external availability unknown")
