// Package googlepay is the deep-link-only adapter. Google Pay for Business has
// no server-side order, status or refund API; orders are UPI intent links the
// payer's app opens directly.
package googlepay

import (
	"context"
	"time"

	"github.com/mstgnz/upipay/provider"
	"github.com/mstgnz/upipay/provider/upi"
)

const (
	defaultMerchantCode = "5411"
	defaultNote         = "Payment"
	orderPrefix         = "GPAY"

	// placeholderReason is reported wherever a real vendor check would go
	placeholderReason = "googlepay: no server-side verification is available; confirm the credit through your bank statement or settlement report"
)

var statusMap = provider.NewStatusMap(map[string]provider.Status{
	"SUCCESS":   provider.StatusSuccess,
	"FAILURE":   provider.StatusFailed,
	"FAILED":    provider.StatusFailed,
	"SUBMITTED": provider.StatusProcessing,
})

// GooglePayProvider implements provider.Provider with UPI deep links
type GooglePayProvider struct {
	merchantUPI  string
	merchantName string
	merchantCode string
	callbackURL  string
	renderer     provider.Renderer
	hasher       provider.Hasher
	logger       provider.Logger
}

// NewProvider creates a Google Pay adapter
func NewProvider(credentials provider.Credentials, opts provider.Options) (provider.Provider, error) {
	if err := provider.ValidateConfigFields(provider.GooglePay, credentials, provider.RequiredConfig(provider.GooglePay)); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()

	code := credentials.Get("merchantCode")
	if code == "" {
		code = defaultMerchantCode
	}

	return &GooglePayProvider{
		merchantUPI:  credentials.Get("merchantUPI"),
		merchantName: credentials.Get("merchantName"),
		merchantCode: code,
		callbackURL:  opts.WebhookURL,
		renderer:     opts.Renderer,
		hasher:       opts.Hasher,
		logger:       opts.Logger,
	}, nil
}

// Name returns the provider identifier
func (p *GooglePayProvider) Name() provider.Name {
	return provider.GooglePay
}

// CreateOrder builds the intent link, plus a QR code when a renderer is set.
// Nothing is sent over the network.
func (p *GooglePayProvider) CreateOrder(ctx context.Context, request provider.OrderRequest) (*provider.OrderResult, error) {
	if err := provider.ValidateOrderRequest(provider.GooglePay, request); err != nil {
		return nil, err
	}

	orderID := request.Receipt
	if orderID == "" {
		orderID = p.hasher.TransactionID(orderPrefix)
	}

	params := upi.LinkParams{
		PayeeAddress: p.merchantUPI,
		PayeeName:    p.merchantName,
		Amount:       request.Amount,
		Currency:     request.CurrencyOrDefault(),
		Note:         note(request),
		Reference:    orderID,
		MerchantCode: p.merchantCode,
	}

	link, err := upi.Build(params)
	if err != nil {
		return nil, err
	}

	result := &provider.OrderResult{
		OrderID:   orderID,
		Amount:    request.Amount,
		Currency:  params.Currency,
		Status:    provider.OrderStatusCreated,
		Provider:  provider.GooglePay,
		CreatedAt: time.Now().UTC(),
		UPIURI:    link,
		Raw: map[string]any{
			"pa": params.PayeeAddress,
			"pn": params.PayeeName,
			"am": params.Amount.String(),
			"cu": params.Currency,
			"tn": params.Note,
			"tr": params.Reference,
			"mc": params.MerchantCode,
		},
	}

	if p.renderer != nil {
		img, _, err := upi.QR(ctx, p.renderer, params, provider.DefaultQROptions())
		if err != nil {
			return nil, provider.NewProviderError(provider.GooglePay, "failed to render QR code", err)
		}
		result.QRImage = img
	}

	p.logger.Info("googlepay intent link created", provider.LogFields(provider.GooglePay, map[string]any{
		"orderId": orderID,
	}))

	return result, nil
}

func note(request provider.OrderRequest) string {
	if request.Description != "" {
		return request.Description
	}
	if d := request.Notes["description"]; d != "" {
		return d
	}
	return defaultNote
}

// VerifyPayment is a placeholder. There is no signature to check, so it
// always reports false and logs why.
func (p *GooglePayProvider) VerifyPayment(ctx context.Context, evidence provider.VerificationEvidence) bool {
	p.logger.Warn(placeholderReason, provider.LogFields(provider.GooglePay, map[string]any{
		"orderId": evidence.OrderID,
	}))
	return false
}

// GetTransactionStatus reports pending with an explanation, since the vendor
// offers no status query. A status echoed by the payer's app is not trusted.
func (p *GooglePayProvider) GetTransactionStatus(ctx context.Context, orderID string) (*provider.TransactionStatus, error) {
	if orderID == "" {
		return nil, provider.NewValidationError("googlepay: orderId is required", map[string]any{"orderId": "is required"})
	}

	return &provider.TransactionStatus{
		Status:           provider.StatusPending,
		OrderID:          orderID,
		ErrorDescription: placeholderReason,
	}, nil
}

// RefundPayment always fails; UPI intent payments are refunded from the
// merchant's bank or UPI app.
func (p *GooglePayProvider) RefundPayment(ctx context.Context, request provider.RefundRequest) (*provider.RefundReceipt, error) {
	return nil, provider.NewProviderError(provider.GooglePay, "refunds are not supported for UPI intent payments", nil)
}

// VerifyWebhookSignature is a placeholder; the vendor sends no signed webhooks
func (p *GooglePayProvider) VerifyWebhookSignature(ctx context.Context, event provider.WebhookEvent) bool {
	p.logger.Warn(placeholderReason, provider.LogFields(provider.GooglePay, map[string]any{
		"event": event.EventName,
	}))
	return false
}

// NormalizeStatus maps a UPI app response status (e.g. the Status value of
// an intent callback) onto the canonical set
func NormalizeStatus(token string) provider.Status {
	return statusMap.Normalize(token)
}
