package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProductNotFound is returned when a store search yields no plausible candidate
	ErrProductNotFound = errors.New("product not found in store")

	// ErrUnknownAdapter is returned when a store's module id has no registered adapter
	ErrUnknownAdapter = errors.New("unknown store adapter")

	// ErrTransport is returned when a storefront or backend request fails at the network level
	ErrTransport = errors.New("transport failure")

	// ErrStreamFailure is returned when the check stream breaks mid-session
	ErrStreamFailure = errors.New("check stream failed")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrNoSession is returned when an operation needs an active check session
	ErrNoSession = errors.New("no active check session")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")
)

// BackendError carries a non-2xx response from the PriceWatch backend.
// Detail is the backend's {"detail": "..."} message when one was sent.
type BackendError struct {
	Status int
	Detail string
}

func (e *BackendError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}
