package httputil

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies request failures so callers can branch without
// inspecting status codes or error strings.
type ErrorKind int

const (
	// KindTransient covers timeouts, rate limiting and 5xx responses.
	// Transient failures are retried with backoff.
	KindTransient ErrorKind = iota
	// KindNotFound covers unknown resources (404). Never retried.
	KindNotFound
	// KindFatal covers non-retryable client errors such as bad credentials.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindNotFound:
		return "not_found"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a classified request failure.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	URL        string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure should be retried.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient
}

// KindOf extracts the error kind from err, defaulting to KindTransient for
// plain transport errors (connection resets, timeouts).
func KindOf(err error) ErrorKind {
	var he *Error
	if errors.As(err, &he) {
		return he.Kind
	}
	return KindTransient
}

// IsNotFound reports whether err represents an unknown resource.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindTransient
	case status >= 500:
		return KindTransient
	default:
		// 400/401/403 and the rest of the 4xx range: the request itself is
		// wrong, retrying will not help.
		return KindFatal
	}
}
