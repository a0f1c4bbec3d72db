package cashfree

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mstgnz/upipay/provider"
	"github.com/shopspring/decimal"
)

const (
	apiSandboxURL    = "https://sandbox.cashfree.com"
	apiProductionURL = "https://api.cashfree.com"

	endpointOrders        = "/pg/orders"
	endpointOrder         = "/pg/orders/%s"          // %s order id
	endpointOrderPayments = "/pg/orders/%s/payments" // %s order id
	endpointRefunds       = "/pg/orders/%s/refunds"  // %s order id

	apiVersion    = "2023-08-01"
	orderPrefix   = "order"
	refundPrefix  = "refund"
	guestCustomer = "guest"
)

var statusMap = provider.NewStatusMap(map[string]provider.Status{
	"PAID":                  provider.StatusSuccess,
	"SUCCESS":               provider.StatusSuccess,
	"FAILED":                provider.StatusFailed,
	"USER_DROPPED":          provider.StatusFailed,
	"VOID":                  provider.StatusFailed,
	"CANCELLED":             provider.StatusFailed,
	"EXPIRED":               provider.StatusFailed,
	"TERMINATED":            provider.StatusFailed,
	"PENDING":               provider.StatusPending,
	"ACTIVE":                provider.StatusPending,
	"NOT_ATTEMPTED":         provider.StatusPending,
	"FLAGGED":               provider.StatusProcessing,
	"TERMINATION_REQUESTED": provider.StatusProcessing,
})

var refundStatusMap = provider.NewStatusMap(map[string]provider.Status{
	"SUCCESS":   provider.StatusSuccess,
	"PENDING":   provider.StatusPending,
	"ONHOLD":    provider.StatusProcessing,
	"CANCELLED": provider.StatusFailed,
})

// CashfreeProvider implements provider.Provider for Cashfree Payments
type CashfreeProvider struct {
	appID      string
	secretKey  string
	baseURL    string
	webhookURL string
	transport  provider.Transport
	hasher     provider.Hasher
	logger     provider.Logger
}

// NewProvider creates a Cashfree adapter
func NewProvider(credentials provider.Credentials, opts provider.Options) (provider.Provider, error) {
	if err := provider.ValidateConfigFields(provider.Cashfree, credentials, provider.RequiredConfig(provider.Cashfree)); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()

	return &CashfreeProvider{
		appID:      credentials.Get("appId"),
		secretKey:  credentials.Get("secretKey"),
		baseURL:    opts.Endpoint(apiProductionURL, apiSandboxURL),
		webhookURL: opts.WebhookURL,
		transport:  opts.Transport,
		hasher:     opts.Hasher,
		logger:     opts.Logger,
	}, nil
}

// Name returns the provider identifier
func (p *CashfreeProvider) Name() provider.Name {
	return provider.Cashfree
}

type customerDetails struct {
	CustomerID    string `json:"customer_id"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone"`
	CustomerName  string `json:"customer_name,omitempty"`
}

type orderMeta struct {
	ReturnURL      string `json:"return_url,omitempty"`
	NotifyURL      string `json:"notify_url,omitempty"`
	PaymentMethods string `json:"payment_methods"`
}

type orderRequest struct {
	OrderID         string            `json:"order_id"`
	OrderAmount     float64           `json:"order_amount"`
	OrderCurrency   string            `json:"order_currency"`
	CustomerDetails customerDetails   `json:"customer_details"`
	OrderMeta       orderMeta         `json:"order_meta"`
	OrderNote       string            `json:"order_note,omitempty"`
	OrderTags       map[string]string `json:"order_tags,omitempty"`
}

type orderResponse struct {
	CFOrderID        string          `json:"cf_order_id"`
	OrderID          string          `json:"order_id"`
	OrderAmount      decimal.Decimal `json:"order_amount"`
	OrderCurrency    string          `json:"order_currency"`
	OrderStatus      string          `json:"order_status"`
	PaymentSessionID string          `json:"payment_session_id"`
	CreatedAt        string          `json:"created_at"`
}

type errorDetails struct {
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

type paymentResponse struct {
	CFPaymentID   flexID          `json:"cf_payment_id"`
	OrderID       string          `json:"order_id"`
	PaymentStatus string          `json:"payment_status"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	PaymentGroup  string          `json:"payment_group"`
	PaymentTime   string          `json:"payment_time"`
	ErrorDetails  *errorDetails   `json:"error_details"`
}

type refundRequest struct {
	RefundAmount float64 `json:"refund_amount"`
	RefundID     string  `json:"refund_id"`
	RefundNote   string  `json:"refund_note,omitempty"`
}

type refundResponse struct {
	CFPaymentID  flexID          `json:"cf_payment_id"`
	CFRefundID   string          `json:"cf_refund_id"`
	RefundID     string          `json:"refund_id"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	RefundStatus string          `json:"refund_status"`
	CreatedAt    string          `json:"created_at"`
}

func (p *CashfreeProvider) headers() map[string]string {
	return map[string]string{
		"x-client-id":     p.appID,
		"x-client-secret": p.secretKey,
		"x-api-version":   apiVersion,
	}
}

func (p *CashfreeProvider) call(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	resp, err := provider.Call(ctx, p.transport, provider.Cashfree, &provider.HTTPRequest{
		Method:  method,
		URL:     provider.JoinURL(p.baseURL, endpoint),
		Headers: p.headers(),
		Body:    body,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// CreateOrder opens a UPI-only Cashfree order. Amounts travel in rupees.
func (p *CashfreeProvider) CreateOrder(ctx context.Context, request provider.OrderRequest) (*provider.OrderResult, error) {
	if err := provider.ValidateOrderRequest(provider.Cashfree, request); err != nil {
		return nil, err
	}

	orderID := request.Receipt
	if orderID == "" {
		orderID = p.hasher.TransactionID(orderPrefix)
	}

	phone := provider.SanitizePhone(request.Customer.Contact)
	customerID := phone
	if customerID == "" {
		customerID = guestCustomer
	}

	body := orderRequest{
		OrderID:       orderID,
		OrderAmount:   request.Amount.InexactFloat64(),
		OrderCurrency: request.CurrencyOrDefault(),
		CustomerDetails: customerDetails{
			CustomerID:    customerID,
			CustomerEmail: request.Customer.Email,
			CustomerPhone: phone,
			CustomerName:  request.Customer.Name,
		},
		OrderMeta: orderMeta{
			ReturnURL:      request.ReturnURL,
			NotifyURL:      p.webhookURL,
			PaymentMethods: "upi",
		},
		OrderNote: request.Description,
		OrderTags: request.Notes,
	}

	data, err := p.call(ctx, http.MethodPost, endpointOrders, body)
	if err != nil {
		return nil, err
	}

	var order orderResponse
	raw, err := provider.DecodeRaw(provider.Cashfree, data, &order)
	if err != nil {
		return nil, err
	}

	p.logger.Info("cashfree order created", provider.LogFields(provider.Cashfree, map[string]any{
		"orderId": order.OrderID,
	}))

	return &provider.OrderResult{
		OrderID:      order.OrderID,
		Amount:       order.OrderAmount,
		Currency:     order.OrderCurrency,
		Status:       provider.OrderStatusCreated,
		Provider:     provider.Cashfree,
		CreatedAt:    timeOrNow(order.CreatedAt),
		SessionToken: order.PaymentSessionID,
		Raw:          raw,
	}, nil
}

// VerifyPayment checks base64 HMAC-SHA256(orderId|paymentId, secretKey)
func (p *CashfreeProvider) VerifyPayment(ctx context.Context, evidence provider.VerificationEvidence) bool {
	if evidence.OrderID == "" || evidence.PaymentID == "" || evidence.Signature == "" {
		p.logger.Warn("cashfree payment verification missing evidence", provider.LogFields(provider.Cashfree, nil))
		return false
	}

	expected := p.hasher.HMACSHA256Base64(evidence.OrderID+"|"+evidence.PaymentID, p.secretKey)
	ok := p.hasher.Equal(expected, evidence.Signature)
	if !ok {
		p.logger.Warn("cashfree payment signature mismatch", provider.LogFields(provider.Cashfree, map[string]any{
			"orderId": evidence.OrderID,
		}))
	}
	return ok
}

// GetTransactionStatus reports the most recent payment attempt, falling back
// to the order status when nothing was attempted
func (p *CashfreeProvider) GetTransactionStatus(ctx context.Context, orderID string) (*provider.TransactionStatus, error) {
	if orderID == "" {
		return nil, provider.NewValidationError("cashfree: orderId is required", map[string]any{"orderId": "is required"})
	}

	data, err := p.call(ctx, http.MethodGet, fmt.Sprintf(endpointOrderPayments, orderID), nil)
	if err != nil {
		return nil, err
	}

	var payments []paymentResponse
	if err := decodeList(data, &payments); err != nil {
		return nil, err
	}

	if len(payments) > 0 {
		latest := payments[0]
		for _, payment := range payments[1:] {
			if parseTime(payment.PaymentTime).After(parseTime(latest.PaymentTime)) {
				latest = payment
			}
		}

		status := &provider.TransactionStatus{
			Status:    statusMap.Normalize(latest.PaymentStatus),
			OrderID:   orderID,
			PaymentID: string(latest.CFPaymentID),
			Amount:    latest.PaymentAmount,
			Method:    latest.PaymentGroup,
			Raw:       map[string]any{"payments": rawList(data)},
		}
		if latest.ErrorDetails != nil {
			status.ErrorCode = latest.ErrorDetails.ErrorCode
			status.ErrorDescription = latest.ErrorDetails.ErrorDescription
		}
		return status, nil
	}

	data, err = p.call(ctx, http.MethodGet, fmt.Sprintf(endpointOrder, orderID), nil)
	if err != nil {
		return nil, err
	}

	var order orderResponse
	raw, err := provider.DecodeRaw(provider.Cashfree, data, &order)
	if err != nil {
		return nil, err
	}

	return &provider.TransactionStatus{
		Status:  statusMap.Normalize(order.OrderStatus),
		OrderID: orderID,
		Amount:  order.OrderAmount,
		Raw:     raw,
	}, nil
}

// RefundPayment refunds against an order. Cashfree refunds by order, so
// OrderID is required; a zero amount refunds the full order amount.
func (p *CashfreeProvider) RefundPayment(ctx context.Context, request provider.RefundRequest) (*provider.RefundReceipt, error) {
	if request.OrderID == "" {
		return nil, provider.NewValidationError("cashfree: orderId is required for refunds", map[string]any{"orderId": "is required"})
	}
	if err := provider.ValidateRefundAmount(provider.Cashfree, request.Amount); err != nil {
		return nil, err
	}

	amount := request.Amount
	if amount.IsZero() {
		data, err := p.call(ctx, http.MethodGet, fmt.Sprintf(endpointOrder, request.OrderID), nil)
		if err != nil {
			return nil, err
		}
		var order orderResponse
		if _, err := provider.DecodeRaw(provider.Cashfree, data, &order); err != nil {
			return nil, err
		}
		amount = order.OrderAmount
	}

	refundID := request.Receipt
	if refundID == "" {
		refundID = p.hasher.TransactionID(refundPrefix)
	}

	data, err := p.call(ctx, http.MethodPost, fmt.Sprintf(endpointRefunds, request.OrderID), refundRequest{
		RefundAmount: amount.InexactFloat64(),
		RefundID:     refundID,
		RefundNote:   request.Notes["note"],
	})
	if err != nil {
		return nil, err
	}

	var refund refundResponse
	raw, err := provider.DecodeRaw(provider.Cashfree, data, &refund)
	if err != nil {
		return nil, err
	}

	paymentID := request.PaymentID
	if paymentID == "" {
		paymentID = string(refund.CFPaymentID)
	}

	return &provider.RefundReceipt{
		RefundID:  refund.RefundID,
		PaymentID: paymentID,
		Amount:    refund.RefundAmount,
		Status:    refundStatusMap.Normalize(refund.RefundStatus),
		Provider:  provider.Cashfree,
		CreatedAt: timeOrNow(refund.CreatedAt),
		Raw:       raw,
	}, nil
}

// VerifyWebhookSignature checks x-webhook-signature = base64 HMAC-SHA256(x-webhook-timestamp + raw body, secretKey)
func (p *CashfreeProvider) VerifyWebhookSignature(ctx context.Context, event provider.WebhookEvent) bool {
	if len(event.RawPayload) == 0 || event.Signature == "" || event.Timestamp == "" {
		p.logger.Warn("cashfree webhook missing payload, signature or timestamp", provider.LogFields(provider.Cashfree, nil))
		return false
	}

	expected := p.hasher.HMACSHA256Base64(event.Timestamp+string(event.RawPayload), p.secretKey)
	ok := p.hasher.Equal(expected, event.Signature)
	if !ok {
		p.logger.Warn("cashfree webhook signature mismatch", provider.LogFields(provider.Cashfree, map[string]any{
			"event": event.EventName,
		}))
	}
	return ok
}

// parseTime returns the zero time for missing or malformed timestamps
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func timeOrNow(s string) time.Time {
	if t := parseTime(s); !t.IsZero() {
		return t
	}
	return time.Now().UTC()
}
