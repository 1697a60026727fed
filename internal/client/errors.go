package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ErrorKind is a stable label callers can branch on.
type ErrorKind string

const (
	KindMissingCredential ErrorKind = "missing_credential"
	KindInvalidCredential ErrorKind = "invalid_credential"
	KindRateLimited       ErrorKind = "rate_limited"
	KindTransport         ErrorKind = "transport"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindUnknownModel      ErrorKind = "unknown_model"
	KindUpstream          ErrorKind = "upstream"
	KindParse             ErrorKind = "parse"
)

// BackendError is the only error type returned by TextBackend implementations.
type BackendError struct {
	Backend    string
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *BackendError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Backend, e.Message)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same request may succeed later.
func (e *BackendError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindTransport, KindUpstream:
		return true
	}
	return false
}

// KindOf returns the ErrorKind of err, or "" when err is not a BackendError.
func KindOf(err error) ErrorKind {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// classifyStatus maps a non-2xx provider response onto the error taxonomy.
func classifyStatus(backend string, status int, body string) *BackendError {
	e := &BackendError{Backend: backend, StatusCode: status}
	lower := strings.ToLower(body)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindInvalidCredential
		e.Message = "credential rejected, check the API key"
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.Message = "rate limit exceeded, retry later"
	case status == http.StatusNotFound && strings.Contains(lower, "model"),
		status == http.StatusBadRequest && strings.Contains(lower, "model") &&
			(strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist") || strings.Contains(lower, "decommissioned")):
		e.Kind = KindUnknownModel
		e.Message = "unknown or unsupported model"
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e.Kind = KindTransport
		e.Message = "provider timed out, please retry"
	case status >= 500:
		e.Kind = KindUpstream
		e.Message = "provider unavailable, please retry"
	default:
		e.Kind = KindUpstream
		e.Message = "provider rejected the request"
	}

	if body = strings.TrimSpace(body); body != "" {
		e.Err = errors.New(truncate(body, 300))
	}
	return e
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
