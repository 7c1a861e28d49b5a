package integration

import "github.com/pkg/errors"

// Outcome classes of the facade. Use errors.Is to classify; the wrapped
// message is safe to show to the caller.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("too many requests")
)
