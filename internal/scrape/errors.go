package scrape

import (
	"errors"
	"fmt"
)

// HTTPError represents an HTTP-level error (non-2xx/3xx response).
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
}

// IsNotFound reports whether err is an HTTP 404.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == 404
}

// IsForbidden reports whether err is an HTTP 401 or 403.
func IsForbidden(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && (httpErr.StatusCode == 401 || httpErr.StatusCode == 403)
}
