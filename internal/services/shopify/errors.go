package shopify

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// APIError is a non-2xx answer from the Admin API, or a GraphQL userErrors
// payload mapped onto 422.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
	// Wait is the parsed Retry-After header.
	Wait time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed: %s %s: %d - %s", e.Method, e.Path, e.StatusCode, truncate(e.Body, 300))
}

// Transient reports whether repeating the request may succeed.
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// RetryAfter lets the retry policy honor the server's throttle window.
func (e *APIError) RetryAfter() time.Duration {
	return e.Wait
}

func (e *APIError) Permission() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func (e *APIError) Validation() bool {
	return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity
}

// IsImageError reports whether a create failed because of its images.
func IsImageError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.Validation() {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.Body), "image")
}

// IsNotFound reports a 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
