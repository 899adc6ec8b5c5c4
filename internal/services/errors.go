package services

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is returned when the API rejects, or was not given, a credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNetwork is returned when the API could not be reached.
	ErrNetwork = errors.New("network error")
	// ErrMalformedResponse is returned when the API answered with a payload of an unexpected shape.
	ErrMalformedResponse = errors.New("malformed response")
)

// APIError is a non-2xx answer of the API. Detail holds the server's message and is meant to be shown
// to the user verbatim.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api error (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("api error (HTTP %d): %s", e.StatusCode, e.Detail)
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match rejected credentials.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

// Detail returns the server message carried by err, or "" when there is none.
func Detail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}
