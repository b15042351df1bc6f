package resolver

import (
	"context"
	"errors"
	"fmt"

	"eventgraph/internal/dbexec"
)

// Kind is the stable error classification reported in GraphQL error extensions.
type Kind string

const (
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	KindQueryFailed         Kind = "QUERY_FAILED"
	KindMalformedRow        Kind = "MALFORMED_ROW"
	KindInternal            Kind = "INTERNAL"
)

// Error is returned by the list resolvers. It implements
// gqlerrors.ExtendedError so the kind reaches the response envelope.
type Error struct {
	Kind      Kind
	Field     string
	Reason    string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUpstreamUnavailable:
		return fmt.Sprintf("%s: database unavailable: %s", e.Field, e.Reason)
	case KindQueryFailed:
		return fmt.Sprintf("%s: query failed: %s", e.Field, e.Reason)
	case KindMalformedRow:
		return fmt.Sprintf("%s: internal error: %s", e.Field, e.Reason)
	default:
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Extensions() map[string]interface{} {
	extensions := map[string]interface{}{
		"code":      string(e.Kind),
		"retryable": e.Retryable,
	}
	if e.Kind == KindQueryFailed {
		extensions["reason"] = e.Reason
	}
	return extensions
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == kind
}

func upstreamUnavailable(field string, err error) error {
	reason := err.Error()
	switch {
	case errors.Is(err, dbexec.ErrPoolExhausted):
		reason = "no database connection available"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		reason = "request ended while waiting for a database connection"
	}
	return &Error{Kind: KindUpstreamUnavailable, Field: field, Reason: reason, Retryable: true, Err: err}
}

func queryFailed(field string, err error) error {
	e := &Error{Kind: KindQueryFailed, Field: field, Reason: err.Error(), Err: err}
	var qe *dbexec.QueryError
	if errors.As(err, &qe) {
		e.Reason = qe.Reason
		e.Retryable = qe.ConnectionLevel
	}
	return e
}

func malformedRow(field string, err error) error {
	return &Error{Kind: KindMalformedRow, Field: field, Reason: err.Error(), Err: err}
}
