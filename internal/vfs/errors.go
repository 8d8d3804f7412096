package vfs

import (
	"errors"
	"fmt"
)

var (
	ErrAuthentication = errors.New("vfs login failed")
	ErrMissingToken   = errors.New("vfs login response has no token")
	ErrUpstream       = errors.New("vfs request failed")
)

// StatusError is returned when the booking service answers with a non-2xx status.
type StatusError struct {
	Kind       error // ErrAuthentication or ErrUpstream
	StatusCode int
	Hint       string
}

func (e *StatusError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%v (HTTP %d): %s", e.Kind, e.StatusCode, e.Hint)
	}
	return fmt.Sprintf("%v (HTTP %d)", e.Kind, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return e.Kind }
