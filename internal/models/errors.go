package models

import (
	"errors"
	"fmt"
)

var ErrInvalidConfiguration = errors.New("invalid mailing list provider configuration")

// ValidationError reports input that was rejected before any network call.
type ValidationError struct {
	Message string
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ProviderError reports a rejection by the remote service. Message is always
// safe to show to the person who submitted the form.
type ProviderError struct {
	Message    string
	StatusCode int
}

func NewProviderError(message string, statusCode int) *ProviderError {
	return &ProviderError{Message: message, StatusCode: statusCode}
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// NetworkError reports a call that could not be completed at all.
type NetworkError struct {
	Message string
	Err     error
}

func NewNetworkError(message string, err error) *NetworkError {
	return &NetworkError{Message: message, Err: err}
}

func (e *NetworkError) Error() string {
	return e.Message
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// UserMessage returns the sentence to show for err. Errors outside the
// taxonomy collapse to a generic message.
func UserMessage(err error) string {
	var validationErr *ValidationError
	var providerErr *ProviderError
	var networkErr *NetworkError

	switch {
	case errors.As(err, &validationErr):
		return validationErr.Message
	case errors.As(err, &providerErr):
		return providerErr.Message
	case errors.As(err, &networkErr):
		return networkErr.Message
	default:
		return "An unexpected error occurred"
	}
}
