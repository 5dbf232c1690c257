package state

import (
	"errors"
	"fmt"
)

// InvalidEpochTransitionError is returned when a reconfiguration does not move the authority
// state to the epoch directly following the current one.
type InvalidEpochTransitionError struct {
	error
}

func NewInvalidEpochTransitionErrorf(msg string, args ...interface{}) error {
	return InvalidEpochTransitionError{
		error: fmt.Errorf(msg, args...),
	}
}

func (e InvalidEpochTransitionError) Unwrap() error {
	return e.error
}

// IsInvalidEpochTransitionError returns whether the given error is an InvalidEpochTransitionError error
func IsInvalidEpochTransitionError(err error) bool {
	return errors.As(err, &InvalidEpochTransitionError{})
}
