package models

import "errors"

// Sentinel errors for generation backend failures. They live next to the
// Generator interface so providers and callers share one error contract.
var (
	ErrBackendUnavailable = errors.New("generation backend unavailable")
	ErrBackendTimeout     = errors.New("generation backend timeout")
	ErrInvalidResponse    = errors.New("generation backend returned invalid response")
)
