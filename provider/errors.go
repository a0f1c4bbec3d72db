package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorCode is a stable machine-readable error identifier
type ErrorCode string

const (
	CodeValidation    ErrorCode = "VALIDATION_ERROR"
	CodeProvider      ErrorCode = "PROVIDER_ERROR"
	CodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	CodeNetwork       ErrorCode = "NETWORK_ERROR"
	CodeTimeout       ErrorCode = "TIMEOUT_ERROR"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation    = &Error{Code: CodeValidation}
	ErrProvider      = &Error{Code: CodeProvider}
	ErrConfiguration = &Error{Code: CodeConfiguration}
	ErrNetwork       = &Error{Code: CodeNetwork}
	ErrTimeout       = &Error{Code: CodeTimeout}
)

// Error is the single error type surfaced by the gateway. Every error carries
// a code and an HTTP-style status so embedding applications can map failures
// without a server being involved.
type Error struct {
	Code       ErrorCode      `json:"code"`
	StatusCode int            `json:"statusCode"`
	Message    string         `json:"message"`
	Provider   Name           `json:"provider,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil && !strings.Contains(e.Message, e.Err.Error()) {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on the error code so callers can use the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Retryable reports whether the failure is worth repeating. Validation and
// configuration problems never are.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeNetwork, CodeTimeout, CodeProvider:
		return true
	default:
		return false
	}
}

// NewValidationError reports bad caller input
func NewValidationError(message string, details map[string]any) *Error {
	return &Error{
		Code:       CodeValidation,
		StatusCode: http.StatusBadRequest,
		Message:    message,
		Details:    details,
	}
}

// NewMissingFieldsError reports every missing credential or request field at once
func NewMissingFieldsError(name Name, fields []string) *Error {
	return &Error{
		Code:       CodeValidation,
		StatusCode: http.StatusBadRequest,
		Message:    fmt.Sprintf("%s: missing required fields: %s", name, strings.Join(fields, ", ")),
		Provider:   name,
		Details:    map[string]any{"missingFields": fields},
	}
}

// NewProviderError reports a vendor rejection or a failed vendor call
func NewProviderError(name Name, message string, cause error) *Error {
	return &Error{
		Code:       CodeProvider,
		StatusCode: http.StatusBadGateway,
		Message:    fmt.Sprintf("%s: %s", name, message),
		Provider:   name,
		Details:    map[string]any{"provider": string(name)},
		Err:        cause,
	}
}

// NewConfigurationError reports malformed credentials or options
func NewConfigurationError(message string, details map[string]any) *Error {
	return &Error{
		Code:       CodeConfiguration,
		StatusCode: http.StatusInternalServerError,
		Message:    message,
		Details:    details,
	}
}

// NewNetworkError reports a transport failure where no answer was received
func NewNetworkError(name Name, cause error) *Error {
	return &Error{
		Code:       CodeNetwork,
		StatusCode: http.StatusServiceUnavailable,
		Message:    fmt.Sprintf("%s: network error", name),
		Provider:   name,
		Err:        cause,
	}
}

// NewTimeoutError reports a transport deadline or cancellation
func NewTimeoutError(name Name, cause error) *Error {
	return &Error{
		Code:       CodeTimeout,
		StatusCode: http.StatusGatewayTimeout,
		Message:    fmt.Sprintf("%s: request timed out", name),
		Provider:   name,
		Err:        cause,
	}
}

// WrapTransportError classifies an error returned by a Transport. Errors that
// are already classified pass through with the provider name filled in.
func WrapTransportError(name Name, err error) error {
	if err == nil {
		return nil
	}

	var gwErr *Error
	if errors.As(err, &gwErr) {
		if gwErr.Provider != "" {
			return gwErr
		}
		cp := *gwErr
		cp.Provider = name
		return &cp
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewTimeoutError(name, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeoutError(name, err)
	}

	return NewNetworkError(name, err)
}

// AsError extracts the gateway error from an error chain
func AsError(err error) (*Error, bool) {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}
