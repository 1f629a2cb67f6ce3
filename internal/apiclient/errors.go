package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response decoded from the standard error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// UserMessage returns the server-provided message, or a generic one for 5xx.
func (e *APIError) UserMessage() string {
	if e.StatusCode >= http.StatusInternalServerError {
		return "The server could not complete the request. Please try again later."
	}
	return e.Message
}

// IsUnauthorized reports whether err is a 401 from the API. Callers route these
// to their login flow; nothing in this package reacts to them.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
