package umbraco

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingCredentials is returned when a token is requested but the client
// was constructed without a client id/secret pair.
var ErrMissingCredentials = errors.New("umbraco: client id and client secret are required")

// AuthError indicates the client-credentials token exchange failed.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("umbraco: token exchange failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// APIError is returned when the transport succeeded but the management API
// answered with a non-2xx status. Detail carries the problem-details title and
// detail when the server provided them, otherwise the raw response body.
type APIError struct {
	Status int
	Detail string
	Body   string
}

func (e *APIError) Error() string {
	switch e.Status {
	case http.StatusUnauthorized:
		return fmt.Sprintf("umbraco: authentication failed (status 401): %s", e.Detail)
	case http.StatusForbidden:
		return fmt.Sprintf("umbraco: access forbidden (status 403): %s", e.Detail)
	case http.StatusNotFound:
		return fmt.Sprintf("umbraco: resource not found (status 404): %s", e.Detail)
	case http.StatusBadRequest:
		return fmt.Sprintf("umbraco: request rejected (status 400): %s", e.Detail)
	default:
		return fmt.Sprintf("umbraco: API returned status %d: %s", e.Status, e.Detail)
	}
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized reports whether err is an APIError with status 401.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsForbidden reports whether err is an APIError with status 403.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

// IsValidation reports whether err is an APIError with status 400.
func IsValidation(err error) bool {
	return hasStatus(err, http.StatusBadRequest)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// ParseError indicates a successful response carried a body that was not valid
// JSON at a call site that required structured data.
type ParseError struct {
	Body string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("umbraco: invalid JSON in response body: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// problemDetails is the RFC 7807 error shape the management API uses for
// validation failures.
type problemDetails struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}
