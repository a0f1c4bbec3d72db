package razorpay

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/mstgnz/upipay/provider"
)

const (
	// Razorpay serves test and live keys from the same host
	apiURL = "https://api.razorpay.com/v1"

	endpointOrders        = "/orders"
	endpointOrder         = "/orders/%s"          // %s order id
	endpointOrderPayments = "/orders/%s/payments" // %s order id
	endpointPayment       = "/payments/%s"        // %s payment id
	endpointRefund        = "/payments/%s/refund" // %s payment id

	receiptPrefix = "order"
)

var statusMap = provider.NewStatusMap(map[string]provider.Status{
	"captured":   provider.StatusSuccess,
	"paid":       provider.StatusSuccess,
	"refunded":   provider.StatusSuccess,
	"authorized": provider.StatusProcessing,
	"created":    provider.StatusPending,
	"attempted":  provider.StatusPending,
	"failed":     provider.StatusFailed,
})

var refundStatusMap = provider.NewStatusMap(map[string]provider.Status{
	"processed": provider.StatusSuccess,
	"pending":   provider.StatusPending,
	"failed":    provider.StatusFailed,
})

// RazorpayProvider implements provider.Provider for Razorpay
type RazorpayProvider struct {
	keyID         string
	keySecret     string
	webhookSecret string
	api           orderAPI
	hasher        provider.Hasher
	logger        provider.Logger
}

// NewProvider creates a Razorpay adapter. The SDK or REST strategy is chosen
// here and never revisited.
func NewProvider(credentials provider.Credentials, opts provider.Options) (provider.Provider, error) {
	if err := provider.ValidateConfigFields(provider.Razorpay, credentials, provider.RequiredConfig(provider.Razorpay)); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()

	p := &RazorpayProvider{
		keyID:         credentials.Get("keyId"),
		keySecret:     credentials.Get("keySecret"),
		webhookSecret: credentials.Get("webhookSecret"),
		hasher:        opts.Hasher,
		logger:        opts.Logger,
	}
	if p.webhookSecret == "" {
		p.webhookSecret = p.keySecret
	}

	if opts.VendorSDK {
		p.api = newSDKAPI(p.keyID, p.keySecret)
	} else {
		p.api = &restAPI{
			baseURL:   opts.Endpoint(apiURL, apiURL),
			transport: opts.Transport,
			auth:      "Basic " + base64.StdEncoding.EncodeToString([]byte(p.keyID+":"+p.keySecret)),
		}
	}

	return p, nil
}

// Name returns the provider identifier
func (p *RazorpayProvider) Name() provider.Name {
	return provider.Razorpay
}

type orderResponse struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

type paymentResponse struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	AmountRefunded   int64  `json:"amount_refunded"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	CreatedAt        int64  `json:"created_at"`
}

type paymentList struct {
	Count int               `json:"count"`
	Items []paymentResponse `json:"items"`
}

type refundResponse struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

// CreateOrder opens a Razorpay order. Amounts travel in paise.
func (p *RazorpayProvider) CreateOrder(ctx context.Context, request provider.OrderRequest) (*provider.OrderResult, error) {
	if err := provider.ValidateOrderRequest(provider.Razorpay, request); err != nil {
		return nil, err
	}

	receipt := request.Receipt
	if receipt == "" {
		receipt = p.hasher.TransactionID(receiptPrefix)
	}

	body := map[string]any{
		"amount":          provider.ToPaise(request.Amount),
		"currency":        request.CurrencyOrDefault(),
		"receipt":         receipt,
		"payment_capture": 1,
		"partial_payment": false,
	}
	if len(request.Notes) > 0 {
		body["notes"] = request.Notes
	}

	data, err := p.api.createOrder(ctx, body)
	if err != nil {
		return nil, err
	}

	var order orderResponse
	raw, err := provider.DecodeRaw(provider.Razorpay, data, &order)
	if err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, provider.NewProviderError(provider.Razorpay, "order id missing in response", nil)
	}

	p.logger.Info("razorpay order created", provider.LogFields(provider.Razorpay, map[string]any{
		"orderId": order.ID,
		"receipt": receipt,
	}))

	return &provider.OrderResult{
		OrderID:   order.ID,
		Amount:    provider.FromPaise(order.Amount),
		Currency:  order.Currency,
		Status:    provider.OrderStatusCreated,
		Provider:  provider.Razorpay,
		CreatedAt: unixOrNow(order.CreatedAt),
		Raw:       raw,
	}, nil
}

// VerifyPayment checks razorpay_signature = hex HMAC-SHA256(order_id|payment_id, keySecret)
func (p *RazorpayProvider) VerifyPayment(ctx context.Context, evidence provider.VerificationEvidence) bool {
	if evidence.OrderID == "" || evidence.PaymentID == "" || evidence.Signature == "" {
		p.logger.Warn("razorpay payment verification missing evidence", provider.LogFields(provider.Razorpay, nil))
		return false
	}

	expected := p.hasher.HMACSHA256Hex(evidence.OrderID+"|"+evidence.PaymentID, p.keySecret)
	ok := p.hasher.Equal(expected, evidence.Signature)
	if !ok {
		p.logger.Warn("razorpay payment signature mismatch", provider.LogFields(provider.Razorpay, map[string]any{
			"orderId": evidence.OrderID,
		}))
	}
	return ok
}

// GetTransactionStatus reports the latest payment attempt on the order, or
// the order itself when no attempt exists yet
func (p *RazorpayProvider) GetTransactionStatus(ctx context.Context, orderID string) (*provider.TransactionStatus, error) {
	if orderID == "" {
		return nil, provider.NewValidationError("razorpay: orderId is required", map[string]any{"orderId": "is required"})
	}

	data, err := p.api.fetchOrderPayments(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var payments paymentList
	raw, err := provider.DecodeRaw(provider.Razorpay, data, &payments)
	if err != nil {
		return nil, err
	}

	if len(payments.Items) > 0 {
		latest := payments.Items[0]
		for _, item := range payments.Items[1:] {
			if item.CreatedAt > latest.CreatedAt {
				latest = item
			}
		}
		return &provider.TransactionStatus{
			Status:           statusMap.Normalize(latest.Status),
			OrderID:          orderID,
			PaymentID:        latest.ID,
			Amount:           provider.FromPaise(latest.Amount),
			Method:           latest.Method,
			ErrorCode:        latest.ErrorCode,
			ErrorDescription: latest.ErrorDescription,
			Raw:              raw,
		}, nil
	}

	data, err = p.api.fetchOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	var order orderResponse
	raw, err = provider.DecodeRaw(provider.Razorpay, data, &order)
	if err != nil {
		return nil, err
	}

	return &provider.TransactionStatus{
		Status:  statusMap.Normalize(order.Status),
		OrderID: orderID,
		Amount:  provider.FromPaise(order.Amount),
		Raw:     raw,
	}, nil
}

// RefundPayment refunds a captured payment; a zero amount refunds what is left
func (p *RazorpayProvider) RefundPayment(ctx context.Context, request provider.RefundRequest) (*provider.RefundReceipt, error) {
	if request.PaymentID == "" {
		return nil, provider.NewValidationError("razorpay: paymentId is required", map[string]any{"paymentId": "is required"})
	}
	if err := provider.ValidateRefundAmount(provider.Razorpay, request.Amount); err != nil {
		return nil, err
	}

	body := map[string]any{}
	if request.Receipt != "" {
		body["receipt"] = request.Receipt
	}
	if len(request.Notes) > 0 {
		body["notes"] = request.Notes
	}

	data, err := p.api.refund(ctx, request.PaymentID, provider.ToPaise(request.Amount), body)
	if err != nil {
		return nil, err
	}

	var refund refundResponse
	raw, err := provider.DecodeRaw(provider.Razorpay, data, &refund)
	if err != nil {
		return nil, err
	}

	return &provider.RefundReceipt{
		RefundID:  refund.ID,
		PaymentID: refund.PaymentID,
		Amount:    provider.FromPaise(refund.Amount),
		Status:    refundStatusMap.Normalize(refund.Status),
		Provider:  provider.Razorpay,
		CreatedAt: unixOrNow(refund.CreatedAt),
		Raw:       raw,
	}, nil
}

// VerifyWebhookSignature checks X-Razorpay-Signature = hex HMAC-SHA256(raw body, webhookSecret)
func (p *RazorpayProvider) VerifyWebhookSignature(ctx context.Context, event provider.WebhookEvent) bool {
	if len(event.RawPayload) == 0 || event.Signature == "" {
		p.logger.Warn("razorpay webhook missing payload or signature", provider.LogFields(provider.Razorpay, nil))
		return false
	}

	expected := p.hasher.HMACSHA256Hex(string(event.RawPayload), p.webhookSecret)
	ok := p.hasher.Equal(expected, event.Signature)
	if !ok {
		p.logger.Warn("razorpay webhook signature mismatch", provider.LogFields(provider.Razorpay, map[string]any{
			"event": event.EventName,
		}))
	}
	return ok
}

func unixOrNow(sec int64) time.Time {
	if sec <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(sec, 0).UTC()
}

// orderAPI is the strategy the adapter talks to Razorpay through. Every
// method returns the raw JSON answer.
type orderAPI interface {
	createOrder(ctx context.Context, body map[string]any) ([]byte, error)
	fetchOrder(ctx context.Context, orderID string) ([]byte, error)
	fetchOrderPayments(ctx context.Context, orderID string) ([]byte, error)
	refund(ctx context.Context, paymentID string, paise int64, body map[string]any) ([]byte, error)
}

type restAPI struct {
	baseURL   string
	transport provider.Transport
	auth      string
}

func (a *restAPI) do(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	resp, err := provider.Call(ctx, a.transport, provider.Razorpay, &provider.HTTPRequest{
		Method:  method,
		URL:     provider.JoinURL(a.baseURL, endpoint),
		Headers: map[string]string{"Authorization": a.auth},
		Body:    body,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (a *restAPI) createOrder(ctx context.Context, body map[string]any) ([]byte, error) {
	return a.do(ctx, http.MethodPost, endpointOrders, body)
}

func (a *restAPI) fetchOrder(ctx context.Context, orderID string) ([]byte, error) {
	return a.do(ctx, http.MethodGet, fmt.Sprintf(endpointOrder, orderID), nil)
}

func (a *restAPI) fetchOrderPayments(ctx context.Context, orderID string) ([]byte, error) {
	return a.do(ctx, http.MethodGet, fmt.Sprintf(endpointOrderPayments, orderID), nil)
}

func (a *restAPI) refund(ctx context.Context, paymentID string, paise int64, body map[string]any) ([]byte, error) {
	if paise > 0 {
		body["amount"] = paise
	}
	return a.do(ctx, http.MethodPost, fmt.Sprintf(endpointRefund, paymentID), body)
}
