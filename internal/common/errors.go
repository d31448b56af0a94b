// Package common defines shared constants and sentinel errors used across
// the file host. Callers should use errors.Is to match these values; the
// HTTP layer is the only place where they are turned into status codes.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorBadRequest   = errors.New("bad request")

	// Allocation gave up after the configured number of reservation attempts.
	ErrorAllocationExhausted = errors.New("filename allocation attempts exhausted")
)
