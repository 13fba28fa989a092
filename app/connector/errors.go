package connector

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type ErrorKind string

const (
	// KindAuth means credentials are invalid or expired. Terminal, requires
	// re-authentication. Never retried by the queue.
	KindAuth ErrorKind = "auth"
	// KindValidation means the content violates a platform constraint.
	// Terminal and user-actionable.
	KindValidation ErrorKind = "validation"
	// KindRateLimit means the platform asked us to back off. The job is
	// deferred until ResetAt.
	KindRateLimit ErrorKind = "rate_limit"
	// KindTransient covers network errors and 5xx responses. Retried with
	// exponential backoff.
	KindTransient ErrorKind = "transient"
	// KindPermanent covers non-retryable platform failures, e.g. a feature
	// the platform removed.
	KindPermanent ErrorKind = "permanent"
	// KindUnsupported is returned when an operation is invoked on a platform
	// whose capabilities do not include it. Callers should check
	// Capabilities first.
	KindUnsupported ErrorKind = "unsupported"
)

// Error is the typed error every connector operation returns. The queue
// worker dispatches retry vs. terminal on Kind alone.
type Error struct {
	Kind     ErrorKind
	Platform string
	Message  string
	ResetAt  time.Time
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Platform, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Platform, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, platform, message string) *Error {
	return &Error{Kind: kind, Platform: platform, Message: message}
}

func WrapError(kind ErrorKind, platform, message string, err error) *Error {
	return &Error{Kind: kind, Platform: platform, Message: message, Err: err}
}

func RateLimitError(platform string, resetAt time.Time) *Error {
	return &Error{
		Kind:     KindRateLimit,
		Platform: platform,
		Message:  fmt.Sprintf("rate limited until %s", resetAt.UTC().Format(time.RFC3339)),
		ResetAt:  resetAt,
	}
}

func Unsupported(platform, operation string) *Error {
	return &Error{
		Kind:     KindUnsupported,
		Platform: platform,
		Message:  fmt.Sprintf("operation %q is not supported", operation),
	}
}

// KindOf extracts the error kind, defaulting to transient for untyped
// errors (unknown failures are assumed retryable).
func KindOf(err error) ErrorKind {
	var connErr *Error
	if errors.As(err, &connErr) {
		return connErr.Kind
	}
	return KindTransient
}

// IsRetryable reports whether the queue may retry the operation.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindRateLimit:
		return true
	default:
		return false
	}
}

// ResetTime returns the deferral time carried by a rate-limit error, or the
// zero time when the error carries none.
func ResetTime(err error) time.Time {
	var connErr *Error
	if errors.As(err, &connErr) {
		return connErr.ResetAt
	}
	return time.Time{}
}

// classifyStatus maps an HTTP response status to the error taxonomy.
// 401/403 are auth failures, 429 is a rate limit, remaining 4xx are content
// validation failures, and 5xx are transient.
func classifyStatus(platform string, status int, message string, resetAt time.Time) *Error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(KindAuth, platform, message)
	case status == http.StatusTooManyRequests:
		if resetAt.IsZero() {
			resetAt = time.Now().UTC().Add(time.Minute)
		}
		e := RateLimitError(platform, resetAt)
		e.Err = errors.New(message)
		return e
	case status == http.StatusGone || status == http.StatusNotImplemented:
		return NewError(KindPermanent, platform, message)
	case status >= 400 && status < 500:
		return NewError(KindValidation, platform, message)
	default:
		return NewError(KindTransient, platform, message)
	}
}
