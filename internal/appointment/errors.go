package appointment

import (
	"errors"
)

// Kind classifies business-rule failures so callers can map them to responses.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindInactive   Kind = "inactive"
)

// Error is a business-rule failure. Anything that is not an *Error is an
// infrastructure fault.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) match any error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" {
		return false
	}
	return e.Kind == t.Kind
}

// Kind-only targets for errors.Is.
var (
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrValidation = &Error{Kind: KindValidation}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrInactive   = &Error{Kind: KindInactive}
)

var (
	ErrBookingNotFound      = &Error{Kind: KindNotFound, Message: "booking not found"}
	ErrPractitionerNotFound = &Error{Kind: KindNotFound, Message: "practitioner not found"}
	ErrClientNotFound       = &Error{Kind: KindNotFound, Message: "client not found"}

	ErrInvalidRange = &Error{Kind: KindValidation, Message: "end must be after start"}

	ErrBookingOverlap          = &Error{Kind: KindConflict, Message: "selected time overlaps with another booking"}
	ErrScheduleBusy            = &Error{Kind: KindConflict, Message: "practitioner schedule is being modified, please retry"}
	ErrDuplicateIdentityNumber = &Error{Kind: KindConflict, Message: "identity number already registered"}
	ErrBookingCancelled        = &Error{Kind: KindConflict, Message: "booking is cancelled"}
	ErrBookingCompleted        = &Error{Kind: KindConflict, Message: "completed booking cannot be reopened"}
	ErrFutureBookingsExist     = &Error{Kind: KindConflict, Message: "party still has future bookings"}
	ErrPartyHasHistory         = &Error{Kind: KindConflict, Message: "party has booking history and cannot be hard-deleted"}

	ErrPractitionerInactive = &Error{Kind: KindInactive, Message: "practitioner is inactive"}
	ErrClientInactive       = &Error{Kind: KindInactive, Message: "client is inactive"}
)

func validationError(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

// KindOf returns the business kind of err, or "" for infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
