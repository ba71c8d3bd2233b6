// Package errs provides the user-facing error type shared by the CLI and
// the HTTP facade.
package errs

import "fmt"

// Error pairs an underlying error with a short, actionable reason.
//
// Reason is what gets shown to a person; Err carries the technical detail
// and remains available through Unwrap. When Err is nil, Error() falls back
// to Reason.
type Error struct {
	Err    error
	Reason string
}

// Wrap creates an Error with the given underlying error and reason.
func Wrap(err error, reason string) Error {
	return Error{Err: err, Reason: reason}
}

// Wrapf creates an Error with the given underlying error and a formatted
// reason.
func Wrapf(err error, format string, a ...any) Error {
	return Error{Err: err, Reason: fmt.Sprintf(format, a...)}
}

func (e Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Reason
}

func (e Error) Unwrap() error {
	return e.Err
}

// ReasonText returns the user-facing reason for the error.
func (e Error) ReasonText() string {
	return e.Reason
}
