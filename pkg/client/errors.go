package client

import (
	"errors"
	"fmt"
)

// ErrUnexpectedStatus is wrapped by APIError when the API answers with anything but 200.
var ErrUnexpectedStatus = errors.New("unexpected http status")

// ErrorClass represents a classification of page fetch failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport errors and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a 200 response whose body is not the expected JSON.
	ErrorClassDecode ErrorClass = "decode"

	// ErrorClassUnexpected represents any other non-200 status (1xx, 3xx).
	ErrorClassUnexpected ErrorClass = "unexpected"
)

// APIError describes why a single page could not be fetched.
type APIError struct {
	Page       int
	StatusCode int
	ErrorClass ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 && e.ErrorClass != ErrorClassDecode {
		return fmt.Sprintf("page %d: %s error (status %d): %v", e.Page, e.ErrorClass, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("page %d: %s error: %v", e.Page, e.ErrorClass, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

func classifyStatus(code int) ErrorClass {
	switch {
	case code >= 400 && code < 500:
		return ErrorClassClient
	case code >= 500:
		return ErrorClassServer
	default:
		return ErrorClassUnexpected
	}
}
