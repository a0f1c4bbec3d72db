package googlepay

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mstgnz/upipay/provider"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	uri  string
	opts provider.QROptions
	err  error
}

func (f *fakeRenderer) Render(ctx context.Context, uri string, opts provider.QROptions) ([]byte, error) {
	f.uri = uri
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return []byte("png:" + uri), nil
}

var testCreds = provider.Credentials{"merchantUPI": "demostore@okaxis", "merchantName": "Demo Store"}

func newTestProvider(t *testing.T, r provider.Renderer) *GooglePayProvider {
	t.Helper()
	p, err := NewProvider(testCreds, provider.Options{Renderer: r})
	require.NoError(t, err)
	return p.(*GooglePayProvider)
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(provider.Credentials{"merchantName": "Demo"}, provider.Options{})
	require.ErrorIs(t, err, provider.ErrValidation)
	gwErr, _ := provider.AsError(err)
	assert.Equal(t, []string{"merchantUPI"}, gwErr.Details["missingFields"])

	_, err = NewProvider(provider.Credentials{"merchantUPI": "not-a-vpa", "merchantName": "Demo"}, provider.Options{})
	require.ErrorIs(t, err, provider.ErrValidation)

	p := newTestProvider(t, nil)
	assert.Equal(t, defaultMerchantCode, p.merchantCode)
	assert.Equal(t, provider.GooglePay, p.Name())
}

func TestCreateOrder(t *testing.T) {
	p := newTestProvider(t, nil)

	result, err := p.CreateOrder(context.Background(), provider.OrderRequest{Amount: decimal.NewFromInt(100), Currency: "INR"})

	require.NoError(t, err)
	assert.Equal(t, provider.OrderStatusCreated, result.Status)
	assert.True(t, strings.HasPrefix(result.UPIURI, "upi://pay?pa="))
	assert.Contains(t, result.UPIURI, "am=100")
	assert.Contains(t, result.UPIURI, "pn=Demo%20Store")
	assert.Contains(t, result.UPIURI, "tn=Payment")
	assert.Contains(t, result.UPIURI, "mc=5411")
	assert.Contains(t, result.UPIURI, "tr="+result.OrderID)
	assert.True(t, strings.HasPrefix(result.OrderID, "GPAY_"))
	assert.Nil(t, result.QRImage)
}

func TestCreateOrder_WithRenderer(t *testing.T) {
	r := &fakeRenderer{}
	p := newTestProvider(t, r)

	result, err := p.CreateOrder(context.Background(), provider.OrderRequest{
		Amount:      decimal.RequireFromString("49.50"),
		Receipt:     "INV-7",
		Description: "Order INV-7",
	})

	require.NoError(t, err)
	assert.Equal(t, "upi://pay?pa=demostore%40okaxis&pn=Demo%20Store&am=49.5&cu=INR&tn=Order%20INV-7&tr=INV-7&mc=5411", result.UPIURI)
	assert.Equal(t, result.UPIURI, r.uri)
	assert.Equal(t, []byte("png:"+result.UPIURI), result.QRImage)
	assert.Equal(t, provider.DefaultQROptions(), r.opts)
}

func TestCreateOrder_RenderFailure(t *testing.T) {
	p := newTestProvider(t, &fakeRenderer{err: errors.New("boom")})

	_, err := p.CreateOrder(context.Background(), provider.OrderRequest{Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, provider.ErrProvider)
}

func TestCreateOrder_Validation(t *testing.T) {
	p := newTestProvider(t, nil)

	_, err := p.CreateOrder(context.Background(), provider.OrderRequest{Amount: decimal.NewFromInt(1), Currency: "USD"})
	require.ErrorIs(t, err, provider.ErrValidation)
}

func TestVerifyPayment_Placeholder(t *testing.T) {
	p := newTestProvider(t, nil)

	assert.False(t, p.VerifyPayment(context.Background(), provider.VerificationEvidence{OrderID: "GPAY_1", PaymentID: "X", Signature: "anything"}))
	assert.False(t, p.VerifyPayment(context.Background(), provider.VerificationEvidence{}))
	assert.False(t, p.VerifyWebhookSignature(context.Background(), provider.WebhookEvent{RawPayload: []byte(`{}`), Signature: "s"}))
}

func TestGetTransactionStatus(t *testing.T) {
	p := newTestProvider(t, nil)

	status, err := p.GetTransactionStatus(context.Background(), "GPAY_1")
	require.NoError(t, err)
	assert.Equal(t, provider.StatusPending, status.Status)
	assert.Equal(t, "GPAY_1", status.OrderID)
	assert.NotEmpty(t, status.ErrorDescription)

	_, err = p.GetTransactionStatus(context.Background(), "")
	require.ErrorIs(t, err, provider.ErrValidation)
}

func TestRefundPayment_Unsupported(t *testing.T) {
	p := newTestProvider(t, nil)

	_, err := p.RefundPayment(context.Background(), provider.RefundRequest{PaymentID: "X", Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, provider.ErrProvider)
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, provider.StatusSuccess, NormalizeStatus("success"))
	assert.Equal(t, provider.StatusFailed, NormalizeStatus("FAILURE"))
	assert.Equal(t, provider.StatusFailed, NormalizeStatus("Failed"))
	assert.Equal(t, provider.StatusProcessing, NormalizeStatus("SUBMITTED"))
	assert.Equal(t, provider.StatusPending, NormalizeStatus("whatever"))
}
