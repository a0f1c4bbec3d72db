package paytm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/mstgnz/upipay/provider"
	"github.com/shopspring/decimal"
)

const (
	apiSandboxURL    = "https://securegw-stage.paytm.in"
	apiProductionURL = "https://securegw.paytm.in"

	endpointInitiate    = "/theia/api/v1/initiateTransaction"
	endpointPaymentPage = "/theia/api/v1/showPaymentPage"
	endpointStatus      = "/v3/order/status"
	endpointRefund      = "/refund/apply"

	defaultWebsite = "WEBSTAGING"
	defaultCustID  = "CUST_001"
	orderPrefix    = "order"
	refundPrefix   = "refund"

	resultSuccess = "S"
	txnSuccess    = "TXN_SUCCESS"
)

var statusMap = provider.NewStatusMap(map[string]provider.Status{
	"TXN_SUCCESS": provider.StatusSuccess,
	"TXN_FAILURE": provider.StatusFailed,
	"PENDING":     provider.StatusPending,
	"OPEN":        provider.StatusProcessing,
})

// PaytmProvider implements provider.Provider for Paytm PG
type PaytmProvider struct {
	mid         string
	merchantKey string
	website     string
	baseURL     string
	webhookURL  string
	transport   provider.Transport
	hasher      provider.Hasher
	logger      provider.Logger
}

// NewProvider creates a Paytm adapter
func NewProvider(credentials provider.Credentials, opts provider.Options) (provider.Provider, error) {
	if err := provider.ValidateConfigFields(provider.Paytm, credentials, provider.RequiredConfig(provider.Paytm)); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()

	website := credentials.Get("website")
	if website == "" {
		website = defaultWebsite
	}

	return &PaytmProvider{
		mid:         credentials.Get("mid"),
		merchantKey: credentials.Get("merchantKey"),
		website:     website,
		baseURL:     opts.Endpoint(apiProductionURL, apiSandboxURL),
		webhookURL:  opts.WebhookURL,
		transport:   opts.Transport,
		hasher:      opts.Hasher,
		logger:      opts.Logger,
	}, nil
}

// Name returns the provider identifier
func (p *PaytmProvider) Name() provider.Name {
	return provider.Paytm
}

type money struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type userInfo struct {
	CustID string `json:"custId"`
	Email  string `json:"email,omitempty"`
	Mobile string `json:"mobile,omitempty"`
	Name   string `json:"firstName,omitempty"`
}

type paymentMode struct {
	Mode     string   `json:"mode"`
	Channels []string `json:"channels,omitempty"`
}

// Field order below is the signing order; do not reorder.
type initiateBody struct {
	RequestType       string        `json:"requestType"`
	MID               string        `json:"mid"`
	WebsiteName       string        `json:"websiteName"`
	OrderID           string        `json:"orderId"`
	CallbackURL       string        `json:"callbackUrl,omitempty"`
	TxnAmount         money         `json:"txnAmount"`
	UserInfo          userInfo      `json:"userInfo"`
	EnablePaymentMode []paymentMode `json:"enablePaymentMode"`
}

type statusBody struct {
	MID     string `json:"mid"`
	OrderID string `json:"orderId"`
}

type refundBody struct {
	MID          string `json:"mid"`
	TxnType      string `json:"txnType"`
	OrderID      string `json:"orderId"`
	TxnID        string `json:"txnId"`
	RefID        string `json:"refId"`
	RefundAmount string `json:"refundAmount"`
}

type head struct {
	Signature string `json:"signature"`
}

type signedRequest struct {
	Body json.RawMessage `json:"body"`
	Head head            `json:"head"`
}

type resultInfo struct {
	ResultStatus string `json:"resultStatus"`
	ResultCode   string `json:"resultCode"`
	ResultMsg    string `json:"resultMsg"`
}

type responseBody struct {
	ResultInfo   resultInfo `json:"resultInfo"`
	TxnToken     string     `json:"txnToken"`
	TxnID        string     `json:"txnId"`
	OrderID      string     `json:"orderId"`
	TxnAmount    string     `json:"txnAmount"`
	PaymentMode  string     `json:"paymentMode"`
	RefundID     string     `json:"refundId"`
	RefID        string     `json:"refId"`
	RefundAmount string     `json:"refundAmount"`
}

type apiResponse struct {
	Body responseBody `json:"body"`
}

// sign returns SHA-256(data + "|" + merchantKey)
func (p *PaytmProvider) sign(data []byte) string {
	return p.hasher.SHA256Hex(string(data) + "|" + p.merchantKey)
}

// post signs body and sends {"body":...,"head":{"signature":...}}. The body
// bytes that are signed are the bytes that go on the wire.
func (p *PaytmProvider) post(ctx context.Context, endpoint string, query map[string]string, body any) (*apiResponse, map[string]any, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, nil, provider.NewProviderError(provider.Paytm, "failed to encode request", err)
	}

	payload, err := json.Marshal(signedRequest{Body: data, Head: head{Signature: p.sign(data)}})
	if err != nil {
		return nil, nil, provider.NewProviderError(provider.Paytm, "failed to encode request", err)
	}

	resp, err := provider.Call(ctx, p.transport, provider.Paytm, &provider.HTTPRequest{
		Method:      http.MethodPost,
		URL:         provider.JoinURL(p.baseURL, endpoint),
		QueryParams: query,
		Body:        json.RawMessage(payload),
	})
	if err != nil {
		return nil, nil, err
	}

	var out apiResponse
	raw, err := provider.DecodeRaw(provider.Paytm, resp.Body, &out)
	if err != nil {
		return nil, nil, err
	}
	return &out, raw, nil
}

// CreateOrder initiates a UPI transaction and returns its txnToken
func (p *PaytmProvider) CreateOrder(ctx context.Context, request provider.OrderRequest) (*provider.OrderResult, error) {
	if err := provider.ValidateOrderRequest(provider.Paytm, request); err != nil {
		return nil, err
	}

	orderID := request.Receipt
	if orderID == "" {
		orderID = p.hasher.TransactionID(orderPrefix)
	}

	phone := provider.SanitizePhone(request.Customer.Contact)
	custID := phone
	if custID == "" {
		custID = defaultCustID
	}

	currency := request.CurrencyOrDefault()
	result, raw, err := p.post(ctx, endpointInitiate, map[string]string{"mid": p.mid, "orderId": orderID}, initiateBody{
		RequestType: "Payment",
		MID:         p.mid,
		WebsiteName: p.website,
		OrderID:     orderID,
		CallbackURL: p.webhookURL,
		TxnAmount:   money{Value: request.Amount.StringFixed(2), Currency: currency},
		UserInfo: userInfo{
			CustID: custID,
			Email:  request.Customer.Email,
			Mobile: phone,
			Name:   request.Customer.Name,
		},
		EnablePaymentMode: []paymentMode{{Mode: "UPI", Channels: []string{"UPIPUSH", "UPIPUSHEXPRESS"}}},
	})
	if err != nil {
		return nil, err
	}
	if result.Body.ResultInfo.ResultStatus != resultSuccess {
		return nil, provider.NewProviderError(provider.Paytm, messageOr(result.Body.ResultInfo, "transaction initiation failed"), nil)
	}

	p.logger.Info("paytm transaction initiated", provider.LogFields(provider.Paytm, map[string]any{
		"orderId": orderID,
	}))

	return &provider.OrderResult{
		OrderID:      orderID,
		Amount:       request.Amount,
		Currency:     currency,
		Status:       provider.OrderStatusCreated,
		Provider:     provider.Paytm,
		CreatedAt:    time.Now().UTC(),
		PaymentURL:   provider.JoinURL(p.baseURL, endpointPaymentPage) + "?" + url.Values{"mid": {p.mid}, "orderId": {orderID}}.Encode(),
		SessionToken: result.Body.TxnToken,
		Raw:          raw,
	}, nil
}

// VerifyPayment checks the signature over the raw JSON Paytm returned and,
// when the payload carries a transaction status, requires TXN_SUCCESS
func (p *PaytmProvider) VerifyPayment(ctx context.Context, evidence provider.VerificationEvidence) bool {
	if evidence.Payload == "" || evidence.Signature == "" {
		p.logger.Warn("paytm payment verification missing evidence", provider.LogFields(provider.Paytm, nil))
		return false
	}

	if !p.hasher.Equal(p.sign([]byte(evidence.Payload)), evidence.Signature) {
		p.logger.Warn("paytm payment checksum mismatch", provider.LogFields(provider.Paytm, map[string]any{
			"orderId": evidence.OrderID,
		}))
		return false
	}

	if status, ok := reportedStatus(evidence.Payload, evidence.Status); ok && status != txnSuccess {
		p.logger.Info("paytm payment authentic but not successful", provider.LogFields(provider.Paytm, map[string]any{
			"orderId": evidence.OrderID,
			"status":  status,
		}))
		return false
	}
	return true
}

// reportedStatus finds a transaction status in the evidence: the explicit
// field first, then STATUS (callback form) or body.resultInfo.resultStatus
func reportedStatus(payload, explicit string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}

	var probe struct {
		Status string `json:"STATUS"`
		Body   *struct {
			ResultInfo *resultInfo `json:"resultInfo"`
		} `json:"body"`
	}
	if err := json.Unmarshal([]byte(payload), &probe); err != nil {
		return "", false
	}
	if probe.Status != "" {
		return probe.Status, true
	}
	if probe.Body != nil && probe.Body.ResultInfo != nil && probe.Body.ResultInfo.ResultStatus != "" {
		return probe.Body.ResultInfo.ResultStatus, true
	}
	return "", false
}

// GetTransactionStatus queries /v3/order/status
func (p *PaytmProvider) GetTransactionStatus(ctx context.Context, orderID string) (*provider.TransactionStatus, error) {
	if orderID == "" {
		return nil, provider.NewValidationError("paytm: orderId is required", map[string]any{"orderId": "is required"})
	}

	result, raw, err := p.post(ctx, endpointStatus, nil, statusBody{MID: p.mid, OrderID: orderID})
	if err != nil {
		return nil, err
	}

	info := result.Body.ResultInfo
	status := &provider.TransactionStatus{
		Status:    statusMap.Normalize(info.ResultStatus),
		OrderID:   orderID,
		PaymentID: result.Body.TxnID,
		Amount:    parseAmount(result.Body.TxnAmount),
		Method:    result.Body.PaymentMode,
		Raw:       raw,
	}
	if status.Status == provider.StatusFailed {
		status.ErrorCode = info.ResultCode
		status.ErrorDescription = info.ResultMsg
	}
	return status, nil
}

// RefundPayment applies a refund. Paytm needs the order, its transaction id
// and an explicit amount.
func (p *PaytmProvider) RefundPayment(ctx context.Context, request provider.RefundRequest) (*provider.RefundReceipt, error) {
	missing := map[string]any{}
	if request.OrderID == "" {
		missing["orderId"] = "is required"
	}
	if request.PaymentID == "" {
		missing["paymentId"] = "is required"
	}
	if !request.Amount.IsPositive() {
		missing["amount"] = "must be positive"
	} else if provider.ValidateRefundAmount(provider.Paytm, request.Amount) != nil {
		missing["amount"] = "must not have more than 2 decimal places"
	}
	if len(missing) > 0 {
		return nil, provider.NewValidationError("paytm: invalid refund request", missing)
	}

	refID := request.Receipt
	if refID == "" {
		refID = p.hasher.TransactionID(refundPrefix)
	}

	result, raw, err := p.post(ctx, endpointRefund, nil, refundBody{
		MID:          p.mid,
		TxnType:      "REFUND",
		OrderID:      request.OrderID,
		TxnID:        request.PaymentID,
		RefID:        refID,
		RefundAmount: request.Amount.StringFixed(2),
	})
	if err != nil {
		return nil, err
	}

	info := result.Body.ResultInfo
	status := statusMap.Normalize(info.ResultStatus)
	if status == provider.StatusFailed {
		return nil, provider.NewProviderError(provider.Paytm, messageOr(info, "refund failed"), nil)
	}

	amount := parseAmount(result.Body.RefundAmount)
	if amount.IsZero() {
		amount = request.Amount
	}

	return &provider.RefundReceipt{
		RefundID:  firstNonEmpty(result.Body.RefundID, refID),
		PaymentID: request.PaymentID,
		Amount:    amount,
		Status:    status,
		Provider:  provider.Paytm,
		CreatedAt: time.Now().UTC(),
		Raw:       raw,
	}, nil
}

// VerifyWebhookSignature checks SHA-256(raw body + "|" + merchantKey)
func (p *PaytmProvider) VerifyWebhookSignature(ctx context.Context, event provider.WebhookEvent) bool {
	if len(event.RawPayload) == 0 || event.Signature == "" {
		p.logger.Warn("paytm webhook missing payload or signature", provider.LogFields(provider.Paytm, nil))
		return false
	}

	ok := p.hasher.Equal(p.sign(event.RawPayload), event.Signature)
	if !ok {
		p.logger.Warn("paytm webhook checksum mismatch", provider.LogFields(provider.Paytm, map[string]any{
			"event": event.EventName,
		}))
	}
	return ok
}

func messageOr(info resultInfo, fallback string) string {
	if info.ResultMsg != "" {
		return info.ResultMsg
	}
	return fallback
}

func parseAmount(s string) decimal.Decimal {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
