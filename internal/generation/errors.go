package generation

import (
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"
)

// Kind classifies a failed call to the completion service.
type Kind string

const (
	KindRateLimited   Kind = "rate_limited"
	KindQuotaExceeded Kind = "quota_exceeded"
	KindUnclassified  Kind = "unclassified"
)

// Sentinels matched by GatewayError.Is.
var (
	ErrRateLimited   = errors.New("completion service rate limited")
	ErrQuotaExceeded = errors.New("completion service quota exceeded")
	ErrUnclassified  = errors.New("completion service failure")
)

var (
	// ErrMalformedOutput means the service answered but not in the requested shape.
	ErrMalformedOutput = errors.New("malformed model output")
	// ErrNotConfigured means a required provider credential is absent.
	ErrNotConfigured = errors.New("completion service not configured")
)

// GatewayError is a hard failure reported by (or on the way to) the service.
// Message may contain upstream text and is meant for server-side logs only.
type GatewayError struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion service %s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("completion service %s: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *GatewayError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrQuotaExceeded:
		return e.Kind == KindQuotaExceeded
	case ErrUnclassified:
		return e.Kind == KindUnclassified
	}
	return false
}

// KindForStatus maps a non-2xx HTTP status to a Kind.
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusPaymentRequired:
		return KindQuotaExceeded
	default:
		return KindUnclassified
	}
}

func statusError(status int, body string) *GatewayError {
	return &GatewayError{
		Kind:       KindForStatus(status),
		StatusCode: status,
		Message:    truncate(body, maxErrorBody),
	}
}

const maxErrorBody = 500

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
