package server

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrBindFailure matches every error returned when the listening socket
// cannot be bound.
var ErrBindFailure = errors.New("bind failure")

var errInvalidStaticPath = errors.New("invalid static asset path")

// BindError reports that Addr could not be bound. It unwraps to the
// underlying OS error, so errors.Is(err, unix.EADDRINUSE) also works.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %s: %v", e.Addr, e.Reason(), e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

func (e *BindError) Is(target error) bool { return target == ErrBindFailure }

// Reason is a short operator-facing explanation.
func (e *BindError) Reason() string {
	switch {
	case errors.Is(e.Err, unix.EADDRINUSE):
		return "port already in use"
	case errors.Is(e.Err, unix.EACCES):
		return "permission denied"
	case errors.Is(e.Err, unix.EADDRNOTAVAIL):
		return "address not available on this host"
	default:
		return "rejected by the operating system"
	}
}
