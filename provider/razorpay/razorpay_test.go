package razorpay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mstgnz/upipay/infra/checksum"
	"github.com/mstgnz/upipay/provider"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKeyID     = "rzp_test_key"
	testKeySecret = "secret"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *RazorpayProvider {
	t.Helper()
	opts := provider.Options{Environment: provider.EnvironmentSandbox}
	if handler != nil {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		opts.BaseURL = srv.URL
	}

	p, err := NewProvider(provider.Credentials{"keyId": testKeyID, "keySecret": testKeySecret}, opts)
	require.NoError(t, err)
	return p.(*RazorpayProvider)
}

func TestNewProvider_RequiresCredentials(t *testing.T) {
	_, err := NewProvider(provider.Credentials{"keyId": testKeyID}, provider.Options{})
	require.ErrorIs(t, err, provider.ErrValidation)
	assert.Contains(t, err.Error(), "keySecret")

	_, err = NewProvider(provider.Credentials{}, provider.Options{})
	require.ErrorIs(t, err, provider.ErrValidation)
	assert.Contains(t, err.Error(), "keyId")
}

func TestNewProvider_StrategyChosenOnce(t *testing.T) {
	rest := newTestProvider(t, nil)
	assert.IsType(t, &restAPI{}, rest.api)

	p, err := NewProvider(provider.Credentials{"keyId": testKeyID, "keySecret": testKeySecret}, provider.Options{VendorSDK: true})
	require.NoError(t, err)
	assert.IsType(t, &sdkAPI{}, p.(*RazorpayProvider).api)
}

func TestCreateOrder(t *testing.T) {
	var (
		gotBody map[string]any
		gotAuth string
	)
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		_, _ = w.Write([]byte(`{"id":"order_ABC","amount":10050,"currency":"INR","receipt":"r1","status":"created","created_at":1700000000}`))
	})

	result, err := p.CreateOrder(context.Background(), provider.OrderRequest{
		Amount:  decimal.RequireFromString("100.50"),
		Receipt: "r1",
		Notes:   map[string]string{"sku": "42"},
	})

	require.NoError(t, err)
	assert.Equal(t, "order_ABC", result.OrderID)
	assert.Equal(t, provider.OrderStatusCreated, result.Status)
	assert.Equal(t, provider.Razorpay, result.Provider)
	assert.True(t, decimal.RequireFromString("100.50").Equal(result.Amount))
	assert.Equal(t, int64(1700000000), result.CreatedAt.Unix())
	assert.Equal(t, "created", result.Raw["status"])

	assert.Equal(t, float64(10050), gotBody["amount"])
	assert.Equal(t, "INR", gotBody["currency"])
	assert.Equal(t, "r1", gotBody["receipt"])
	expectedAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte(testKeyID+":"+testKeySecret))
	assert.Equal(t, expectedAuth, gotAuth)
}

func TestCreateOrder_GeneratesReceipt(t *testing.T) {
	var gotBody map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		_, _ = w.Write([]byte(`{"id":"order_X","amount":100,"currency":"INR","status":"created"}`))
	})

	_, err := p.CreateOrder(context.Background(), provider.OrderRequest{Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.Regexp(t, `^ORDER_\d+_[0-9A-F]{8}$`, gotBody["receipt"])
}

func TestCreateOrder_VendorRejection(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The amount must be atleast INR 1.00"}}`))
	})

	_, err := p.CreateOrder(context.Background(), provider.OrderRequest{Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, provider.ErrProvider)
	assert.Contains(t, err.Error(), "The amount must be atleast INR 1.00")
}

func TestCreateOrder_InvalidRequestNeverHitsNetwork(t *testing.T) {
	called := false
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := p.CreateOrder(context.Background(), provider.OrderRequest{Amount: decimal.Zero})
	require.ErrorIs(t, err, provider.ErrValidation)
	assert.False(t, called)
}

func TestVerifyPayment(t *testing.T) {
	p := newTestProvider(t, nil)
	p.keySecret = "secret"
	sig := checksum.New().HMACSHA256Hex("ORDER1|PAY1", "secret")

	assert.True(t, p.VerifyPayment(context.Background(), provider.VerificationEvidence{OrderID: "ORDER1", PaymentID: "PAY1", Signature: sig}))

	flipped := []byte(sig)
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}
	assert.False(t, p.VerifyPayment(context.Background(), provider.VerificationEvidence{OrderID: "ORDER1", PaymentID: "PAY1", Signature: string(flipped)}))
	assert.False(t, p.VerifyPayment(context.Background(), provider.VerificationEvidence{OrderID: "ORDER2", PaymentID: "PAY1", Signature: sig}))
	assert.False(t, p.VerifyPayment(context.Background(), provider.VerificationEvidence{OrderID: "ORDER1", PaymentID: "PAY1"}))
	assert.False(t, p.VerifyPayment(context.Background(), provider.VerificationEvidence{}))
}

func TestGetTransactionStatus(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/order_1/payments", r.URL.Path)
		_, _ = w.Write([]byte(`{"count":2,"items":[
			{"id":"pay_old","status":"failed","amount":5000,"method":"upi","created_at":100,"error_code":"BAD_REQUEST_ERROR","error_description":"declined"},
			{"id":"pay_new","status":"captured","amount":5000,"method":"upi","created_at":200}
		]}`))
	})

	status, err := p.GetTransactionStatus(context.Background(), "order_1")

	require.NoError(t, err)
	assert.Equal(t, provider.StatusSuccess, status.Status)
	assert.Equal(t, "pay_new", status.PaymentID)
	assert.Equal(t, "upi", status.Method)
	assert.True(t, decimal.NewFromInt(50).Equal(status.Amount))
}

func TestGetTransactionStatus_FallsBackToOrder(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders/order_1/payments":
			_, _ = w.Write([]byte(`{"count":0,"items":[]}`))
		case "/orders/order_1":
			_, _ = w.Write([]byte(`{"id":"order_1","amount":5000,"status":"attempted"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	status, err := p.GetTransactionStatus(context.Background(), "order_1")

	require.NoError(t, err)
	assert.Equal(t, provider.StatusPending, status.Status)
	assert.Empty(t, status.PaymentID)
}

func TestGetTransactionStatus_UnknownStatusIsPending(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":1,"items":[{"id":"pay_1","status":"on_hold_by_bank","amount":100}]}`))
	})

	status, err := p.GetTransactionStatus(context.Background(), "order_1")
	require.NoError(t, err)
	assert.Equal(t, provider.StatusPending, status.Status)
}

func TestStatusMap(t *testing.T) {
	tests := map[string]provider.Status{
		"captured":   provider.StatusSuccess,
		"paid":       provider.StatusSuccess,
		"refunded":   provider.StatusSuccess,
		"authorized": provider.StatusProcessing,
		"created":    provider.StatusPending,
		"attempted":  provider.StatusPending,
		"failed":     provider.StatusFailed,
		"mystery":    provider.StatusPending,
	}
	for token, expected := range tests {
		assert.Equal(t, expected, statusMap.Normalize(token), token)
	}
}

func TestRefundPayment(t *testing.T) {
	var gotBody map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_1/refund", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		_, _ = w.Write([]byte(`{"id":"rfnd_1","payment_id":"pay_1","amount":2500,"status":"processed","created_at":1700000000}`))
	})

	receipt, err := p.RefundPayment(context.Background(), provider.RefundRequest{PaymentID: "pay_1", Amount: decimal.NewFromInt(25)})

	require.NoError(t, err)
	assert.Equal(t, "rfnd_1", receipt.RefundID)
	assert.Equal(t, provider.StatusSuccess, receipt.Status)
	assert.True(t, decimal.NewFromInt(25).Equal(receipt.Amount))
	assert.Equal(t, float64(2500), gotBody["amount"])
}

func TestRefundPayment_FullRefundOmitsAmount(t *testing.T) {
	var gotBody map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		_, _ = w.Write([]byte(`{"id":"rfnd_2","payment_id":"pay_1","amount":10000,"status":"pending"}`))
	})

	receipt, err := p.RefundPayment(context.Background(), provider.RefundRequest{PaymentID: "pay_1"})

	require.NoError(t, err)
	assert.Equal(t, provider.StatusPending, receipt.Status)
	assert.NotContains(t, gotBody, "amount")
}

func TestRefundPayment_RejectsFractionOfPaisa(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	})

	_, err := p.RefundPayment(context.Background(), provider.RefundRequest{PaymentID: "pay_1", Amount: decimal.RequireFromString("0.004")})
	require.ErrorIs(t, err, provider.ErrValidation)
	assert.Contains(t, err.Error(), "decimal places")
}

func TestRefundPayment_RequiresPaymentID(t *testing.T) {
	p := newTestProvider(t, nil)
	_, err := p.RefundPayment(context.Background(), provider.RefundRequest{})
	assert.ErrorIs(t, err, provider.ErrValidation)
}

func TestVerifyWebhookSignature(t *testing.T) {
	p := newTestProvider(t, nil)
	p.webhookSecret = "whsec"
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1"}}}}`)
	sig := checksum.New().HMACSHA256Hex(string(body), "whsec")

	assert.True(t, p.VerifyWebhookSignature(context.Background(), provider.WebhookEvent{RawPayload: body, Signature: sig}))

	tampered := append([]byte{}, body...)
	tampered[10] = 'X'
	assert.False(t, p.VerifyWebhookSignature(context.Background(), provider.WebhookEvent{RawPayload: tampered, Signature: sig}))
	assert.False(t, p.VerifyWebhookSignature(context.Background(), provider.WebhookEvent{RawPayload: body}))
	assert.False(t, p.VerifyWebhookSignature(context.Background(), provider.WebhookEvent{Signature: sig}))
}
