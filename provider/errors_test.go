package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name       string
		err        *Error
		code       ErrorCode
		statusCode int
		sentinel   error
		retryable  bool
	}{
		{"validation", NewValidationError("bad", nil), CodeValidation, http.StatusBadRequest, ErrValidation, false},
		{"provider", NewProviderError(Razorpay, "rejected", nil), CodeProvider, http.StatusBadGateway, ErrProvider, true},
		{"configuration", NewConfigurationError("bad env", nil), CodeConfiguration, http.StatusInternalServerError, ErrConfiguration, false},
		{"network", NewNetworkError(Paytm, errors.New("refused")), CodeNetwork, http.StatusServiceUnavailable, ErrNetwork, true},
		{"timeout", NewTimeoutError(PayU, context.DeadlineExceeded), CodeTimeout, http.StatusGatewayTimeout, ErrTimeout, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.statusCode, tt.err.StatusCode)
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.retryable, tt.err.Retryable())

			wrapped := fmt.Errorf("outer: %w", tt.err)
			got, ok := AsError(wrapped)
			require.True(t, ok)
			assert.Equal(t, tt.code, got.Code)
		})
	}

	assert.NotErrorIs(t, NewValidationError("bad", nil), ErrProvider)
}

func TestNewMissingFieldsError(t *testing.T) {
	err := NewMissingFieldsError(Razorpay, []string{"keyId", "keySecret"})

	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "keyId")
	assert.Contains(t, err.Error(), "keySecret")
	assert.Equal(t, []string{"keyId", "keySecret"}, err.Details["missingFields"])
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestWrapTransportError(t *testing.T) {
	assert.NoError(t, WrapTransportError(Cashfree, nil))
	assert.ErrorIs(t, WrapTransportError(Cashfree, context.DeadlineExceeded), ErrTimeout)
	assert.ErrorIs(t, WrapTransportError(Cashfree, fmt.Errorf("dial: %w", context.Canceled)), ErrTimeout)
	assert.ErrorIs(t, WrapTransportError(Cashfree, timeoutErr{}), ErrTimeout)
	assert.ErrorIs(t, WrapTransportError(Cashfree, errors.New("connection refused")), ErrNetwork)

	owned := NewProviderError(PayU, "rejected", nil)
	assert.Same(t, owned, WrapTransportError(Cashfree, owned))
	assert.Equal(t, PayU, owned.Provider)
}

func TestWrapTransportError_DoesNotMutateSharedError(t *testing.T) {
	shared := NewProviderError("", "rejected", nil)

	got := WrapTransportError(Cashfree, fmt.Errorf("call: %w", shared))
	gwErr, ok := AsError(got)
	require.True(t, ok)
	assert.Equal(t, Cashfree, gwErr.Provider)
	assert.ErrorIs(t, got, ErrProvider)
	assert.Empty(t, shared.Provider)

	other, _ := AsError(WrapTransportError(Paytm, shared))
	assert.Equal(t, Paytm, other.Provider)
	assert.Empty(t, shared.Provider)
	assert.Empty(t, ErrValidation.Provider)
}

func TestError_Message(t *testing.T) {
	cause := errors.New("boom")
	err := NewProviderError(PhonePe, "status query failed", cause)

	assert.Equal(t, "phonepe: status query failed: boom", err.Error())
	assert.ErrorIs(t, err, cause)
}
