package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrBedUnavailable    = errors.New("bed unavailable")
	ErrQuotaExceeded     = errors.New("room quota exceeded")
	ErrNoRoomContext     = errors.New("occupant has no room")
	ErrInvalidDateRange  = errors.New("invalid date range")
	ErrDuplicateCharge   = errors.New("charge already exists for period")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrRecordNotFound    = errors.New("record not found")
	ErrForbidden         = errors.New("actor is not permitted")
	ErrStaleState        = errors.New("state changed concurrently")
	ErrInvalidDefinition = errors.New("invalid payment type definition")
	ErrInvalidTrigger    = errors.New("invalid trigger event")
	ErrInvalidInput      = errors.New("invalid input")
)

// NotFound wraps ErrRecordNotFound with the kind and key of the missing record.
func NotFound(kind string, id any) error {
	return fmt.Errorf("%s %v: %w", kind, id, ErrRecordNotFound)
}

// TransitionError reports a state-machine move that the current state does not permit.
type TransitionError struct {
	Machine string
	From    string
	To      string
}

func NewTransitionError(machine, from, to string) *TransitionError {
	return &TransitionError{Machine: machine, From: from, To: to}
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot move from %q to %q", e.Machine, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// IsTransitionError returns the TransitionError in err's chain, or nil.
func IsTransitionError(err error) *TransitionError {
	if err == nil {
		return nil
	}

	var transitionErr *TransitionError
	if errors.As(err, &transitionErr) {
		return transitionErr
	}

	return nil
}
