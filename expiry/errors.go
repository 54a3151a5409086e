package expiry

import (
	"errors"
	"fmt"
)

// Sentinel errors for expirer construction and ticks.
var (
	ErrInvalidRetention = errors.New("retention period must be positive")
	ErrNilCache         = errors.New("cache table is nil")
	ErrNilStore         = errors.New("store table is nil")
	ErrNilContext       = errors.New("app context is nil")
	ErrPanic            = errors.New("tick panicked")
)

// Kind classifies a tick failure.
type Kind int

const (
	// KindUnexpected is any failure other than lost store connectivity.
	KindUnexpected Kind = iota
	// KindConnectivity means the store could not be reached during a probe
	// or reload.
	KindConnectivity
)

func (k Kind) String() string {
	if k == KindConnectivity {
		return "connectivity"
	}
	return "unexpected"
}

// RuntimeError is the fatal error a failed tick returns. It names the owning
// application and query so the application can decide whether the failure is
// fatal to the whole runtime. The expirer never retries; the next scheduled
// tick is the retry.
type RuntimeError struct {
	App   string
	Query string
	Kind  Kind
	Err   error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.App, e.Query, e.Err)
}

// Unwrap enables error unwrapping for errors.Is and errors.As.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}
