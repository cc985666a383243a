package executor

import (
	"errors"
	"fmt"
)

var (
	// ErrCommandTimeout is returned by Session.Run when the command timeout
	// expires. Output written before the deadline stays in the writers.
	ErrCommandTimeout = errors.New("command timeout")
	// ErrNetwork marks connection, DNS and authentication failures.
	ErrNetwork = errors.New("network error")
)

// NetworkError wraps a failure to reach or authenticate against a host.
type NetworkError struct {
	Addr string
	Op   string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

func IsNetworkError(err error) bool {
	return errors.Is(err, ErrNetwork)
}
