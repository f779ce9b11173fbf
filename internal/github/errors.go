package github

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// APIError is a non-2xx response from the GitHub API.
type APIError struct {
	Method     string
	StatusCode int
	Path       string
	Body       string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: %s %s failed with %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// AuthError is a failed app-JWT or installation-token exchange. Callers must
// surface it instead of retrying silently.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return "github: upstream auth failure: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ErrEmptySource is returned by Mirror when the source repository has no
// branch refs at all. Not retryable.
var ErrEmptySource = errors.New("source repository empty or branch not found")

// IsNotFound reports whether err is a GitHub 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsServerError reports whether err is a GitHub 5xx, i.e. a transient
// upstream failure worth retrying for idempotent reads.
func IsServerError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 500
}

// RetryClassify is the retry.Policy classifier shared by the broker-backed
// reads: 5xx and 429 are retryable (honoring Retry-After); everything else,
// including 404s handled by fallback heuristics, is not.
func RetryClassify(err error) (time.Duration, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		// Network-level errors (timeouts, resets) are retryable.
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return 0, false
		}
		return 0, true
	}
	if apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests {
		return apiErr.RetryAfter, true
	}
	return 0, false
}

func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
