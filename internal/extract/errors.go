package extract

import (
	"errors"
	"fmt"
)

// Upstream failures carry one of three shapes. Transient errors are worth
// retrying inside the same execution; auth and config errors are fatal for the
// data type that hit them and count toward the job's aggregate outcome.

// TransientSourceError wraps a retryable upstream failure (network errors,
// 5xx responses, throttling).
type TransientSourceError struct {
	Source string
	Err    error
}

func (e *TransientSourceError) Error() string {
	return fmt.Sprintf("transient %s source error: %v", e.Source, e.Err)
}

func (e *TransientSourceError) Unwrap() error { return e.Err }

// SourceAuthError wraps an upstream rejection of the tenant's credentials.
type SourceAuthError struct {
	Source string
	Err    error
}

func (e *SourceAuthError) Error() string {
	return fmt.Sprintf("%s source auth error: %v", e.Source, e.Err)
}

func (e *SourceAuthError) Unwrap() error { return e.Err }

// SourceConfigError wraps a structurally bad request: unknown data type,
// missing bucket, malformed base URL and the like.
type SourceConfigError struct {
	Source string
	Err    error
}

func (e *SourceConfigError) Error() string {
	return fmt.Sprintf("%s source config error: %v", e.Source, e.Err)
}

func (e *SourceConfigError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientSourceError.
func IsTransient(err error) bool {
	var t *TransientSourceError
	return errors.As(err, &t)
}
