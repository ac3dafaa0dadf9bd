package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteUnavailable is matched by errors that never produced an HTTP
	// response (connection refused, DNS failure, timeout).
	ErrRemoteUnavailable = errors.New("deck service unavailable")

	// ErrRemoteRejected is matched by non-2xx responses.
	ErrRemoteRejected = errors.New("deck service rejected request")
)

// UnavailableError wraps a transport failure.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrRemoteUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrRemoteUnavailable
}

// RejectedError is returned for non-2xx responses. Message holds the
// backend's detail/message field when present.
type RejectedError struct {
	Op      string
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return e.Message
}

// Is reports whether target is ErrRemoteRejected.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRemoteRejected
}

// IsNotFound reports whether err is a 404 rejection.
func IsNotFound(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected) && rejected.Status == 404
}
