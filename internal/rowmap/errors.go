package rowmap

import (
	"errors"
	"fmt"
)

// ErrMalformedRow is matched by every MalformedRowError.
var ErrMalformedRow = errors.New("malformed row")

// MalformedRowError reports a row whose shape does not match the entity being built.
type MalformedRowError struct {
	Entity string
	Column string
	Reason string
	Err    error
}

func (e *MalformedRowError) Error() string {
	msg := fmt.Sprintf("malformed %s row", e.Entity)
	if e.Column != "" {
		msg += fmt.Sprintf(" (column %s)", e.Column)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedRowError) Unwrap() error {
	return e.Err
}

func (e *MalformedRowError) Is(target error) bool {
	return target == ErrMalformedRow
}

func malformed(entity, column, reason string) error {
	return &MalformedRowError{Entity: entity, Column: column, Reason: reason}
}
