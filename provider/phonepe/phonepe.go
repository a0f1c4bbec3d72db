package phonepe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mstgnz/upipay/provider"
)

const (
	apiSandboxURL    = "https://api-preprod.phonepe.com/apis/hermes"
	apiProductionURL = "https://api.phonepe.com/apis/hermes"

	endpointPay    = "/pg/v1/pay"
	endpointStatus = "/pg/v1/status/%s/%s" // merchant id, merchant transaction id
	endpointRefund = "/pg/v1/refund"

	checksumSeparator = "###"
	txnPrefix         = "txn"
	refundPrefix      = "rfnd"
	guestUser         = "guest"

	codePaymentSuccess = "PAYMENT_SUCCESS"
)

var statusMap = provider.NewStatusMap(map[string]provider.Status{
	"PAYMENT_SUCCESS":   provider.StatusSuccess,
	"COMPLETED":         provider.StatusSuccess,
	"PAYMENT_ERROR":     provider.StatusFailed,
	"PAYMENT_DECLINED":  provider.StatusFailed,
	"TIMED_OUT":         provider.StatusFailed,
	"FAILED":            provider.StatusFailed,
	"PAYMENT_PENDING":   provider.StatusPending,
	"PENDING":           provider.StatusPending,
	"PAYMENT_INITIATED": provider.StatusPending,
})

// PhonePeProvider implements provider.Provider for the PhonePe PG
type PhonePeProvider struct {
	merchantID string
	saltKey    string
	saltIndex  string
	baseURL    string
	webhookURL string
	transport  provider.Transport
	hasher     provider.Hasher
	logger     provider.Logger
}

// NewProvider creates a PhonePe adapter
func NewProvider(credentials provider.Credentials, opts provider.Options) (provider.Provider, error) {
	if err := provider.ValidateConfigFields(provider.PhonePe, credentials, provider.RequiredConfig(provider.PhonePe)); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()

	return &PhonePeProvider{
		merchantID: credentials.Get("merchantId"),
		saltKey:    credentials.Get("saltKey"),
		saltIndex:  credentials.Get("saltIndex"),
		baseURL:    opts.Endpoint(apiProductionURL, apiSandboxURL),
		webhookURL: opts.WebhookURL,
		transport:  opts.Transport,
		hasher:     opts.Hasher,
		logger:     opts.Logger,
	}, nil
}

// Name returns the provider identifier
func (p *PhonePeProvider) Name() provider.Name {
	return provider.PhonePe
}

type paymentInstrument struct {
	Type      string `json:"type"`
	TargetApp string `json:"targetApp,omitempty"`
	VPA       string `json:"vpa,omitempty"`
}

type payPayload struct {
	MerchantID            string            `json:"merchantId"`
	MerchantTransactionID string            `json:"merchantTransactionId"`
	MerchantUserID        string            `json:"merchantUserId"`
	Amount                int64             `json:"amount"`
	RedirectURL           string            `json:"redirectUrl,omitempty"`
	RedirectMode          string            `json:"redirectMode"`
	CallbackURL           string            `json:"callbackUrl,omitempty"`
	MobileNumber          string            `json:"mobileNumber,omitempty"`
	PaymentInstrument     paymentInstrument `json:"paymentInstrument"`
}

type refundPayload struct {
	MerchantID            string `json:"merchantId"`
	MerchantUserID        string `json:"merchantUserId"`
	OriginalTransactionID string `json:"originalTransactionId"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	Amount                int64  `json:"amount"`
	CallbackURL           string `json:"callbackUrl,omitempty"`
}

type envelope struct {
	Request string `json:"request"`
}

type redirectInfo struct {
	URL    string `json:"url"`
	Method string `json:"method"`
}

type instrumentResponse struct {
	Type         string        `json:"type"`
	IntentURL    string        `json:"intentUrl"`
	RedirectInfo *redirectInfo `json:"redirectInfo"`
}

type responseData struct {
	MerchantID            string              `json:"merchantId"`
	MerchantTransactionID string              `json:"merchantTransactionId"`
	TransactionID         string              `json:"transactionId"`
	Amount                int64               `json:"amount"`
	State                 string              `json:"state"`
	ResponseCode          string              `json:"responseCode"`
	PaymentInstrument     *paymentInstrument  `json:"paymentInstrument"`
	InstrumentResponse    *instrumentResponse `json:"instrumentResponse"`
}

type apiResponse struct {
	Success bool         `json:"success"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Data    responseData `json:"data"`
}

// xVerify is SHA-256(base64Payload + path + saltKey) + "###" + saltIndex
func (p *PhonePeProvider) xVerify(payload, path string) string {
	return p.hasher.SHA256Hex(payload+path+p.saltKey) + checksumSeparator + p.saltIndex
}

// post sends a base64-wrapped payload signed for path
func (p *PhonePeProvider) post(ctx context.Context, path string, payload any) (*apiResponse, map[string]any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, provider.NewProviderError(provider.PhonePe, "failed to encode request", err)
	}
	encoded := p.hasher.Base64Encode(string(data))

	resp, err := provider.Call(ctx, p.transport, provider.PhonePe, &provider.HTTPRequest{
		Method:  http.MethodPost,
		URL:     provider.JoinURL(p.baseURL, path),
		Headers: map[string]string{"X-VERIFY": p.xVerify(encoded, path)},
		Body:    envelope{Request: encoded},
	})
	if err != nil {
		return nil, nil, err
	}
	return decode(resp.Body)
}

func decode(body []byte) (*apiResponse, map[string]any, error) {
	var out apiResponse
	raw, err := provider.DecodeRaw(provider.PhonePe, body, &out)
	if err != nil {
		return nil, nil, err
	}
	return &out, raw, nil
}

// CreateOrder starts a PhonePe pay page (or UPI collect when the customer
// has a VPA). Amounts travel in paise.
func (p *PhonePeProvider) CreateOrder(ctx context.Context, request provider.OrderRequest) (*provider.OrderResult, error) {
	if err := provider.ValidateOrderRequest(provider.PhonePe, request); err != nil {
		return nil, err
	}

	txnID := request.Receipt
	if txnID == "" {
		txnID = p.hasher.TransactionID(txnPrefix)
	}

	phone := provider.SanitizePhone(request.Customer.Contact)
	userID := phone
	if userID == "" {
		userID = guestUser
	}

	instrument := paymentInstrument{Type: "PAY_PAGE"}
	if request.Customer.UPIID != "" {
		instrument = paymentInstrument{Type: "UPI_COLLECT", VPA: request.Customer.UPIID}
	}

	result, raw, err := p.post(ctx, endpointPay, payPayload{
		MerchantID:            p.merchantID,
		MerchantTransactionID: txnID,
		MerchantUserID:        userID,
		Amount:                provider.ToPaise(request.Amount),
		RedirectURL:           request.ReturnURL,
		RedirectMode:          "POST",
		CallbackURL:           p.webhookURL,
		MobileNumber:          phone,
		PaymentInstrument:     instrument,
	})
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, provider.NewProviderError(provider.PhonePe, vendorMessage(result, "order creation failed"), nil)
	}

	order := &provider.OrderResult{
		OrderID:   txnID,
		Amount:    request.Amount,
		Currency:  request.CurrencyOrDefault(),
		Status:    provider.OrderStatusCreated,
		Provider:  provider.PhonePe,
		CreatedAt: time.Now().UTC(),
		Raw:       raw,
	}
	if ir := result.Data.InstrumentResponse; ir != nil {
		if ir.RedirectInfo != nil {
			order.PaymentURL = ir.RedirectInfo.URL
		}
		order.UPIURI = ir.IntentURL
	}

	p.logger.Info("phonepe order created", provider.LogFields(provider.PhonePe, map[string]any{
		"orderId": txnID,
	}))

	return order, nil
}

// VerifyPayment checks the X-VERIFY value PhonePe attaches to a status
// payload: SHA-256(payload + /pg/v1/status/{mid}/{orderId} + saltKey) ### saltIndex.
// When the decoded payload reports a code it must be PAYMENT_SUCCESS.
func (p *PhonePeProvider) VerifyPayment(ctx context.Context, evidence provider.VerificationEvidence) bool {
	if evidence.OrderID == "" || evidence.Payload == "" || evidence.Signature == "" {
		p.logger.Warn("phonepe payment verification missing evidence", provider.LogFields(provider.PhonePe, nil))
		return false
	}

	path := fmt.Sprintf(endpointStatus, p.merchantID, evidence.OrderID)
	if !p.checkSalted(evidence.Payload+path, evidence.Signature) {
		p.logger.Warn("phonepe payment checksum mismatch", provider.LogFields(provider.PhonePe, map[string]any{
			"orderId": evidence.OrderID,
		}))
		return false
	}

	if code, ok := p.payloadCode(evidence.Payload); ok && code != codePaymentSuccess {
		p.logger.Info("phonepe payment authentic but not successful", provider.LogFields(provider.PhonePe, map[string]any{
			"orderId": evidence.OrderID,
			"code":    code,
		}))
		return false
	}
	return true
}

// checkSalted splits digest###index and requires both halves to match
func (p *PhonePeProvider) checkSalted(data, supplied string) bool {
	digest, index, found := strings.Cut(supplied, checksumSeparator)
	if !found || digest == "" {
		return false
	}
	expected := p.hasher.SHA256Hex(data + p.saltKey)
	digestOK := p.hasher.Equal(expected, digest)
	indexOK := p.hasher.Equal(p.saltIndex, index)
	return digestOK && indexOK
}

// payloadCode reads the "code" field out of a base64 JSON payload
func (p *PhonePeProvider) payloadCode(payload string) (string, bool) {
	decoded, err := p.hasher.Base64Decode(payload)
	if err != nil {
		return "", false
	}
	var body struct {
		Code *string `json:"code"`
	}
	if err := json.Unmarshal([]byte(decoded), &body); err != nil || body.Code == nil {
		return "", false
	}
	return *body.Code, true
}

// GetTransactionStatus queries /pg/v1/status signed over the path alone
func (p *PhonePeProvider) GetTransactionStatus(ctx context.Context, orderID string) (*provider.TransactionStatus, error) {
	if orderID == "" {
		return nil, provider.NewValidationError("phonepe: orderId is required", map[string]any{"orderId": "is required"})
	}

	path := fmt.Sprintf(endpointStatus, p.merchantID, orderID)
	resp, err := provider.Call(ctx, p.transport, provider.PhonePe, &provider.HTTPRequest{
		Method: http.MethodGet,
		URL:    provider.JoinURL(p.baseURL, path),
		Headers: map[string]string{
			"X-VERIFY":      p.xVerify("", path),
			"X-MERCHANT-ID": p.merchantID,
		},
	})
	if err != nil {
		return nil, err
	}

	result, raw, err := decode(resp.Body)
	if err != nil {
		return nil, err
	}

	token := result.Data.State
	if token == "" {
		token = result.Code
	}

	status := &provider.TransactionStatus{
		Status:    statusMap.Normalize(token),
		OrderID:   orderID,
		PaymentID: result.Data.TransactionID,
		Amount:    provider.FromPaise(result.Data.Amount),
		Raw:       raw,
	}
	if result.Data.PaymentInstrument != nil {
		status.Method = result.Data.PaymentInstrument.Type
	}
	if status.Status == provider.StatusFailed {
		status.ErrorCode = result.Data.ResponseCode
		if status.ErrorCode == "" {
			status.ErrorCode = result.Code
		}
		status.ErrorDescription = result.Message
	}
	return status, nil
}

// RefundPayment refunds the merchant transaction named by OrderID (PaymentID
// is accepted as a fallback). PhonePe needs an explicit amount.
func (p *PhonePeProvider) RefundPayment(ctx context.Context, request provider.RefundRequest) (*provider.RefundReceipt, error) {
	original := request.OrderID
	if original == "" {
		original = request.PaymentID
	}
	if original == "" {
		return nil, provider.NewValidationError("phonepe: orderId is required for refunds", map[string]any{"orderId": "is required"})
	}
	if !request.Amount.IsPositive() {
		return nil, provider.NewValidationError("phonepe: refund amount must be positive", map[string]any{"amount": request.Amount.String()})
	}
	if err := provider.ValidateRefundAmount(provider.PhonePe, request.Amount); err != nil {
		return nil, err
	}

	refundID := request.Receipt
	if refundID == "" {
		refundID = p.hasher.TransactionID(refundPrefix)
	}

	result, raw, err := p.post(ctx, endpointRefund, refundPayload{
		MerchantID:            p.merchantID,
		MerchantUserID:        guestUser,
		OriginalTransactionID: original,
		MerchantTransactionID: refundID,
		Amount:                provider.ToPaise(request.Amount),
		CallbackURL:           p.webhookURL,
	})
	if err != nil {
		return nil, err
	}
	if !result.Success && statusMap.Normalize(result.Code) != provider.StatusPending {
		return nil, provider.NewProviderError(provider.PhonePe, vendorMessage(result, "refund failed"), nil)
	}

	token := result.Data.State
	if token == "" {
		token = result.Code
	}

	return &provider.RefundReceipt{
		RefundID:  refundID,
		PaymentID: result.Data.TransactionID,
		Amount:    provider.FromPaise(result.Data.Amount),
		Status:    statusMap.Normalize(token),
		Provider:  provider.PhonePe,
		CreatedAt: time.Now().UTC(),
		Raw:       raw,
	}, nil
}

// VerifyWebhookSignature checks the X-VERIFY header of a server callback:
// SHA-256(response + saltKey) ### saltIndex, where response is the base64
// field of the received body taken verbatim
func (p *PhonePeProvider) VerifyWebhookSignature(ctx context.Context, event provider.WebhookEvent) bool {
	if len(event.RawPayload) == 0 || event.Signature == "" {
		p.logger.Warn("phonepe webhook missing payload or signature", provider.LogFields(provider.PhonePe, nil))
		return false
	}

	var body struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(event.RawPayload, &body); err != nil || body.Response == "" {
		p.logger.Warn("phonepe webhook body has no response field", provider.LogFields(provider.PhonePe, nil))
		return false
	}

	ok := p.checkSalted(body.Response, event.Signature)
	if !ok {
		p.logger.Warn("phonepe webhook checksum mismatch", provider.LogFields(provider.PhonePe, map[string]any{
			"event": event.EventName,
		}))
	}
	return ok
}

func vendorMessage(result *apiResponse, fallback string) string {
	switch {
	case result.Message != "":
		return result.Message
	case result.Code != "":
		return result.Code
	default:
		return fallback
	}
}
