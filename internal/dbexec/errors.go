package dbexec

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolExhausted is returned when no session frees up within the acquire timeout.
	ErrPoolExhausted = errors.New("connection pool exhausted")
	// ErrLeaseReleased is returned when a released lease is used again.
	ErrLeaseReleased = errors.New("lease already released")
)

// QueryError carries the database's own error detail for a failed statement.
type QueryError struct {
	Reason string
	// ConnectionLevel is true when the session itself is unusable.
	ConnectionLevel bool
	Err             error
}

func (e *QueryError) Error() string {
	if e.ConnectionLevel {
		return fmt.Sprintf("connection failed: %s", e.Reason)
	}
	return fmt.Sprintf("query failed: %s", e.Reason)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func newQueryError(err error) *QueryError {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe
	}
	return &QueryError{
		Reason:          reasonFor(err),
		ConnectionLevel: IsConnectionError(err),
		Err:             err,
	}
}
