package registry

import "errors"

// Error kinds.  Every failure returned by a Registry operation unwraps to
// exactly one of these, so callers can branch with errors.Is while the
// Error() text stays the message clients expect.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrPaymentMismatch = errors.New("payment mismatch")
	ErrInvalidState    = errors.New("invalid state")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
)

// Error is a precondition failure.  Kind is one of the sentinel values above.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

var (
	errNoMetrics       = &Error{Kind: ErrInvalidInput, Message: "There must be at least one metric"}
	errPotOverflow     = &Error{Kind: ErrInvalidInput, Message: "Amount overflows pot"}
	errBalanceOverflow = &Error{Kind: ErrInvalidInput, Message: "Amount overflows balance"}
	errFeeMismatch     = &Error{Kind: ErrPaymentMismatch, Message: "Amount not equal to pay fee"}
	errFinished        = &Error{Kind: ErrInvalidState, Message: "Hackathon is finished"}
	errAlreadyJoined   = &Error{Kind: ErrInvalidState, Message: "Participant has already joined"}
	errNotHost         = &Error{Kind: ErrUnauthorized, Message: "You are not the hackathon host"}
	errNoCaller        = &Error{Kind: ErrUnauthorized, Message: "Caller identity is required"}
	errNotFound        = &Error{Kind: ErrNotFound, Message: "Hackathon does not exist"}
)
