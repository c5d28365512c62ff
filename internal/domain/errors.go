package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error taxonomy surfaced by the core. Raw provider failures are wrapped so
// that errors.Is matches exactly one of these kinds.
var (
	ErrNotFound        = errors.New("not found")
	ErrProviderTimeout = errors.New("provider timeout")
	ErrProviderError   = errors.New("provider error")
	ErrNoRouteFound    = errors.New("no route found")
	ErrInvalidInput    = errors.New("invalid input")
)

// ProviderError records which external call failed and how.
type ProviderError struct {
	Provider string
	Op       string
	Kind     error
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Provider, e.Op, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewProviderError classifies err. Deadline and network timeouts become
// ErrProviderTimeout; errors already carrying a taxonomy kind keep it.
func NewProviderError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Op: op, Kind: Classify(err), Err: err}
}

// Classify returns the taxonomy kind for err, defaulting to ErrProviderError.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrNoRouteFound):
		return ErrNoRouteFound
	case errors.Is(err, ErrInvalidInput):
		return ErrInvalidInput
	case errors.Is(err, ErrProviderTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrProviderTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrProviderTimeout
	}
	return ErrProviderError
}
