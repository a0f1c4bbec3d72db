package bharatpe

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/mstgnz/upipay/provider"
	"github.com/shopspring/decimal"
)

const (
	apiProductionURL = "https://api.bharatpe.com"
	apiSandboxURL    = "https://api-uat.bharatpe.com"

	endpointCreateOrder = "/v1/merchant/upi/create-order"
	endpointOrderStatus = "/v1/merchant/upi/order-status/"
	endpointRefund      = "/v1/merchant/upi/refund"

	orderPrefix  = "BP"
	refundPrefix = "BPR"
)

var statusMap = provider.NewStatusMap(map[string]provider.Status{
	"SUCCESS":   provider.StatusSuccess,
	"FAILED":    provider.StatusFailed,
	"PENDING":   provider.StatusPending,
	"INITIATED": provider.StatusProcessing,
})

// BharatPeProvider implements provider.Provider for BharatPe UPI
type BharatPeProvider struct {
	apiKey        string
	webhookSecret string
	baseURL       string
	webhookURL    string
	transport     provider.Transport
	hasher        provider.Hasher
	logger        provider.Logger
}

// NewProvider creates a BharatPe adapter
func NewProvider(credentials provider.Credentials, opts provider.Options) (provider.Provider, error) {
	if err := provider.ValidateConfigFields(provider.BharatPe, credentials, provider.RequiredConfig(provider.BharatPe)); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()

	apiKey := credentials.Get("apiKey")
	webhookSecret := credentials.Get("webhookSecret")
	if webhookSecret == "" {
		webhookSecret = apiKey
	}

	return &BharatPeProvider{
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		baseURL:       opts.Endpoint(apiProductionURL, apiSandboxURL),
		webhookURL:    opts.WebhookURL,
		transport:     opts.Transport,
		hasher:        opts.Hasher,
		logger:        opts.Logger,
	}, nil
}

// Name returns the provider identifier
func (p *BharatPeProvider) Name() provider.Name {
	return provider.BharatPe
}

type orderRequest struct {
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	OrderID       string  `json:"orderId"`
	CustomerPhone string  `json:"customerPhone,omitempty"`
	CustomerEmail string  `json:"customerEmail,omitempty"`
	Description   string  `json:"description,omitempty"`
	CallbackURL   string  `json:"callbackUrl,omitempty"`
}

type refundRequest struct {
	OrderID   string  `json:"orderId,omitempty"`
	PaymentID string  `json:"paymentId"`
	RefundID  string  `json:"refundId"`
	Amount    float64 `json:"amount,omitempty"`
}

type apiResponse struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
	OrderID       string          `json:"orderId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	UPILink       string          `json:"upiLink"`
	QRCode        string          `json:"qrCode"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transactionId"`
	PaymentMode   string          `json:"paymentMode"`
	ErrorCode     string          `json:"errorCode"`
	RefundID      string          `json:"refundId"`
}

func (p *BharatPeProvider) call(ctx context.Context, method, endpoint string, body any) (*apiResponse, map[string]any, error) {
	resp, err := provider.Call(ctx, p.transport, provider.BharatPe, &provider.HTTPRequest{
		Method:  method,
		URL:     provider.JoinURL(p.baseURL, endpoint),
		Headers: map[string]string{"Authorization": "Bearer " + p.apiKey},
		Body:    body,
	})
	if err != nil {
		return nil, nil, err
	}

	var out apiResponse
	raw, err := provider.DecodeRaw(provider.BharatPe, resp.Body, &out)
	if err != nil {
		return nil, nil, err
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = "request rejected"
		}
		return nil, raw, provider.NewProviderError(provider.BharatPe, msg, nil)
	}
	return &out, raw, nil
}

// CreateOrder registers the order and returns BharatPe's UPI link and QR
func (p *BharatPeProvider) CreateOrder(ctx context.Context, request provider.OrderRequest) (*provider.OrderResult, error) {
	if err := provider.ValidateOrderRequest(provider.BharatPe, request); err != nil {
		return nil, err
	}

	orderID := request.Receipt
	if orderID == "" {
		orderID = p.hasher.TransactionID(orderPrefix)
	}
	description := request.Description
	if description == "" {
		description = request.Notes["description"]
	}

	currency := request.CurrencyOrDefault()
	result, raw, err := p.call(ctx, http.MethodPost, endpointCreateOrder, orderRequest{
		Amount:        request.Amount.InexactFloat64(),
		Currency:      currency,
		OrderID:       orderID,
		CustomerPhone: provider.SanitizePhone(request.Customer.Contact),
		CustomerEmail: request.Customer.Email,
		Description:   description,
		CallbackURL:   p.webhookURL,
	})
	if err != nil {
		return nil, err
	}

	if result.OrderID != "" {
		orderID = result.OrderID
	}
	amount := result.Amount
	if amount.IsZero() {
		amount = request.Amount
	}
	if result.Currency != "" {
		currency = result.Currency
	}

	p.logger.Info("bharatpe order created", provider.LogFields(provider.BharatPe, map[string]any{
		"orderId": orderID,
	}))

	order := &provider.OrderResult{
		OrderID:   orderID,
		Amount:    amount,
		Currency:  currency,
		Status:    provider.OrderStatusCreated,
		Provider:  provider.BharatPe,
		CreatedAt: time.Now().UTC(),
		UPIURI:    result.UPILink,
		Raw:       raw,
	}
	if result.QRCode != "" {
		order.QRImage = []byte(result.QRCode)
	}
	return order, nil
}

// VerifyPayment checks hex HMAC-SHA256(orderId|paymentId, apiKey)
func (p *BharatPeProvider) VerifyPayment(ctx context.Context, evidence provider.VerificationEvidence) bool {
	if evidence.OrderID == "" || evidence.PaymentID == "" || evidence.Signature == "" {
		p.logger.Warn("bharatpe payment verification missing evidence", provider.LogFields(provider.BharatPe, nil))
		return false
	}

	expected := p.hasher.HMACSHA256Hex(evidence.OrderID+"|"+evidence.PaymentID, p.apiKey)
	ok := p.hasher.Equal(expected, evidence.Signature)
	if !ok {
		p.logger.Warn("bharatpe payment signature mismatch", provider.LogFields(provider.BharatPe, map[string]any{
			"orderId": evidence.OrderID,
		}))
	}
	return ok
}

// GetTransactionStatus queries the order status endpoint
func (p *BharatPeProvider) GetTransactionStatus(ctx context.Context, orderID string) (*provider.TransactionStatus, error) {
	if orderID == "" {
		return nil, provider.NewValidationError("bharatpe: orderId is required", map[string]any{"orderId": "is required"})
	}

	result, raw, err := p.call(ctx, http.MethodGet, endpointOrderStatus+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, err
	}

	status := &provider.TransactionStatus{
		Status:    statusMap.Normalize(result.Status),
		OrderID:   orderID,
		PaymentID: result.TransactionID,
		Amount:    result.Amount,
		Method:    result.PaymentMode,
		Raw:       raw,
	}
	if status.Status == provider.StatusFailed {
		status.ErrorCode = result.ErrorCode
		status.ErrorDescription = result.Message
	}
	return status, nil
}

// RefundPayment refunds a settled payment; a zero amount refunds in full
func (p *BharatPeProvider) RefundPayment(ctx context.Context, request provider.RefundRequest) (*provider.RefundReceipt, error) {
	if request.PaymentID == "" {
		return nil, provider.NewValidationError("bharatpe: paymentId is required", map[string]any{"paymentId": "is required"})
	}
	if err := provider.ValidateRefundAmount(provider.BharatPe, request.Amount); err != nil {
		return nil, err
	}

	refundID := request.Receipt
	if refundID == "" {
		refundID = p.hasher.TransactionID(refundPrefix)
	}

	result, raw, err := p.call(ctx, http.MethodPost, endpointRefund, refundRequest{
		OrderID:   request.OrderID,
		PaymentID: request.PaymentID,
		RefundID:  refundID,
		Amount:    request.Amount.InexactFloat64(),
	})
	if err != nil {
		return nil, err
	}

	amount := result.Amount
	if amount.IsZero() {
		amount = request.Amount
	}
	if result.RefundID != "" {
		refundID = result.RefundID
	}

	return &provider.RefundReceipt{
		RefundID:  refundID,
		PaymentID: request.PaymentID,
		Amount:    amount,
		Status:    statusMap.Normalize(result.Status),
		Provider:  provider.BharatPe,
		CreatedAt: time.Now().UTC(),
		Raw:       raw,
	}, nil
}

// VerifyWebhookSignature checks hex HMAC-SHA256 over the raw body
func (p *BharatPeProvider) VerifyWebhookSignature(ctx context.Context, event provider.WebhookEvent) bool {
	if len(event.RawPayload) == 0 || event.Signature == "" {
		p.logger.Warn("bharatpe webhook missing payload or signature", provider.LogFields(provider.BharatPe, nil))
		return false
	}

	expected := p.hasher.HMACSHA256Hex(string(event.RawPayload), p.webhookSecret)
	ok := p.hasher.Equal(expected, event.Signature)
	if !ok {
		p.logger.Warn("bharatpe webhook signature mismatch", provider.LogFields(provider.BharatPe, map[string]any{
			"event": event.EventName,
		}))
	}
	return ok
}
