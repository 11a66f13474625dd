package standings

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Failure kinds reported by a Source. Match them with errors.Is.
var (
	// ErrConnection means the store is unreachable or rejected the credentials.
	ErrConnection = errors.New("connection error")
	// ErrQuery means a statement failed to execute or its rows could not be read.
	ErrQuery = errors.New("query error")
	// ErrTimeout means the store did not answer within the query timeout.
	ErrTimeout = errors.New("timeout error")

	ErrUnknownSeason = errors.New("unknown season")
	ErrNoSeason      = errors.New("no season selected")
	ErrSessionClosed = errors.New("session closed")
)

// Error carries the failure kind together with the operation that failed.
type Error struct {
	Kind error
	Op   string
	Err  error
}

// NewError wraps err as a failure of kind for the operation op.
func NewError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// KindOf returns ErrConnection, ErrTimeout or ErrQuery for err. Errors not
// produced by a Source are reported as ErrQuery, deadlines as ErrTimeout.
func KindOf(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConnection):
		return ErrConnection
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return ErrQuery
	}
}

// classify makes sure every error leaving a request carries a kind.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return NewError(KindOf(err), op, err)
}
