package payu

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mstgnz/upipay/provider"
	"github.com/shopspring/decimal"
)

const (
	// Hosted checkout
	checkoutSandboxURL    = "https://test.payu.in"
	checkoutProductionURL = "https://secure.payu.in"

	// Merchant web service
	infoSandboxURL    = "https://test.payu.in"
	infoProductionURL = "https://info.payu.in"

	endpointPayment     = "/_payment"
	endpointPostService = "/merchant/postservice.php"

	commandVerifyPayment = "verify_payment"
	commandRefund        = "cancel_refund_transaction"

	defaultProductInfo = "Product"
	defaultFirstName   = "Customer"
	orderPrefix        = "PAYU"
	refundPrefix       = "PAYUR"

	statusSuccess = "success"
)

var errEmptyBody = errors.New("empty webhook body")

var statusMap = provider.NewStatusMap(map[string]provider.Status{
	"success":       provider.StatusSuccess,
	"failure":       provider.StatusFailed,
	"failed":        provider.StatusFailed,
	"usercancelled": provider.StatusFailed,
	"bounced":       provider.StatusFailed,
	"dropped":       provider.StatusFailed,
	"pending":       provider.StatusPending,
	"in progress":   provider.StatusProcessing,
})

// PayUProvider implements provider.Provider for PayU India
type PayUProvider struct {
	merchantKey  string
	merchantSalt string
	checkoutURL  string
	infoURL      string
	webhookURL   string
	transport    provider.Transport
	hasher       provider.Hasher
	logger       provider.Logger
}

// NewProvider creates a PayU adapter
func NewProvider(credentials provider.Credentials, opts provider.Options) (provider.Provider, error) {
	if err := provider.ValidateConfigFields(provider.PayU, credentials, provider.RequiredConfig(provider.PayU)); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()

	return &PayUProvider{
		merchantKey:  credentials.Get("merchantKey"),
		merchantSalt: credentials.Get("merchantSalt"),
		checkoutURL:  opts.Endpoint(checkoutProductionURL, checkoutSandboxURL),
		infoURL:      opts.Endpoint(infoProductionURL, infoSandboxURL),
		webhookURL:   opts.WebhookURL,
		transport:    opts.Transport,
		hasher:       opts.Hasher,
		logger:       opts.Logger,
	}, nil
}

// Name returns the provider identifier
func (p *PayUProvider) Name() provider.Name {
	return provider.PayU
}

// hashFields are the values PayU folds into its request and response hashes
type hashFields struct {
	TxnID       string
	Amount      string
	ProductInfo string
	FirstName   string
	Email       string
	UDF         [5]string
}

// requestHash signs a checkout form:
// sha512(key|txnid|amount|productinfo|firstname|email|udf1|udf2|udf3|udf4|udf5||||||salt)
func (p *PayUProvider) requestHash(f hashFields) string {
	parts := []string{p.merchantKey, f.TxnID, f.Amount, f.ProductInfo, f.FirstName, f.Email}
	parts = append(parts, f.UDF[:]...)
	parts = append(parts, "", "", "", "", "", p.merchantSalt)
	return p.hasher.SHA512Hex(strings.Join(parts, "|"))
}

// responseHash is the reverse hash PayU returns:
// sha512([additionalCharges|]salt|status||||||udf5|udf4|udf3|udf2|udf1|email|firstname|productinfo|amount|txnid|key)
func (p *PayUProvider) responseHash(status string, f hashFields, additionalCharges string) string {
	parts := []string{p.merchantSalt, status, "", "", "", "", ""}
	for i := len(f.UDF) - 1; i >= 0; i-- {
		parts = append(parts, f.UDF[i])
	}
	parts = append(parts, f.Email, f.FirstName, f.ProductInfo, f.Amount, f.TxnID, p.merchantKey)
	if additionalCharges != "" {
		parts = append([]string{additionalCharges}, parts...)
	}
	return p.hasher.SHA512Hex(strings.Join(parts, "|"))
}

// apiHash signs merchant web service calls: sha512(key|command|var1|salt)
func (p *PayUProvider) apiHash(command, var1 string) string {
	return p.hasher.SHA512Hex(strings.Join([]string{p.merchantKey, command, var1, p.merchantSalt}, "|"))
}

// CreateOrder prepares a signed hosted-checkout form. PayU has no server-side
// order API; the payer's browser posts the form (Raw["form"]) to PaymentURL.
func (p *PayUProvider) CreateOrder(ctx context.Context, request provider.OrderRequest) (*provider.OrderResult, error) {
	if err := provider.ValidateOrderRequest(provider.PayU, request); err != nil {
		return nil, err
	}

	txnID := request.Receipt
	if txnID == "" {
		txnID = p.hasher.TransactionID(orderPrefix)
	}

	f := hashFields{
		TxnID:       txnID,
		Amount:      request.Amount.StringFixed(2),
		ProductInfo: firstNonEmpty(request.Notes["productInfo"], request.Description, defaultProductInfo),
		FirstName:   firstNonEmpty(request.Customer.Name, defaultFirstName),
		Email:       request.Customer.Email,
	}
	for i := range f.UDF {
		f.UDF[i] = request.Notes["udf"+strconv.Itoa(i+1)]
	}

	returnURL := firstNonEmpty(request.ReturnURL, p.webhookURL)
	form := map[string]any{
		"key":         p.merchantKey,
		"txnid":       f.TxnID,
		"amount":      f.Amount,
		"productinfo": f.ProductInfo,
		"firstname":   f.FirstName,
		"email":       f.Email,
		"phone":       provider.SanitizePhone(request.Customer.Contact),
		"surl":        returnURL,
		"furl":        returnURL,
		"hash":        p.requestHash(f),
		"pg":          "UPI",
	}
	for i, v := range f.UDF {
		form["udf"+strconv.Itoa(i+1)] = v
	}
	if request.Customer.UPIID != "" {
		form["bankcode"] = "UPI"
		form["vpa"] = request.Customer.UPIID
	}

	p.logger.Info("payu checkout form prepared", provider.LogFields(provider.PayU, map[string]any{
		"txnid": txnID,
	}))

	return &provider.OrderResult{
		OrderID:    txnID,
		Amount:     request.Amount,
		Currency:   request.CurrencyOrDefault(),
		Status:     provider.OrderStatusCreated,
		Provider:   provider.PayU,
		CreatedAt:  time.Now().UTC(),
		PaymentURL: provider.JoinURL(p.checkoutURL, endpointPayment),
		Raw:        map[string]any{"form": form},
	}, nil
}

// VerifyPayment rebuilds the reverse hash from the fields PayU posted back
// to surl/furl. An authentic response with a non-success status is false.
func (p *PayUProvider) VerifyPayment(ctx context.Context, evidence provider.VerificationEvidence) bool {
	txnID := firstNonEmpty(evidence.TxnID, evidence.OrderID)
	if txnID == "" || evidence.Status == "" || evidence.Signature == "" {
		p.logger.Warn("payu payment verification missing evidence", provider.LogFields(provider.PayU, nil))
		return false
	}

	f := hashFields{
		TxnID:       txnID,
		Amount:      evidence.Amount,
		ProductInfo: evidence.ProductInfo,
		FirstName:   evidence.FirstName,
		Email:       evidence.Email,
		UDF:         evidence.UDF,
	}
	if !p.hasher.Equal(p.responseHash(evidence.Status, f, evidence.AdditionalCharges), strings.ToLower(evidence.Signature)) {
		p.logger.Warn("payu response hash mismatch", provider.LogFields(provider.PayU, map[string]any{
			"txnid": txnID,
		}))
		return false
	}

	if !strings.EqualFold(evidence.Status, statusSuccess) {
		p.logger.Info("payu payment authentic but not successful", provider.LogFields(provider.PayU, map[string]any{
			"txnid":  txnID,
			"status": evidence.Status,
		}))
		return false
	}
	return true
}

type postServiceResponse struct {
	Status             json.Number                `json:"status"`
	Msg                string                     `json:"msg"`
	TransactionDetails map[string]transactionInfo `json:"transaction_details"`
	RequestID          string                     `json:"request_id"`
	MihpayID           json.RawMessage            `json:"mihpayid"`
}

type transactionInfo struct {
	MihpayID     string `json:"mihpayid"`
	Status       string `json:"status"`
	Amount       string `json:"amt"`
	Mode         string `json:"mode"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_Message"`
}

func (p *PayUProvider) postService(ctx context.Context, command string, vars ...string) (*postServiceResponse, map[string]any, error) {
	form := url.Values{}
	form.Set("key", p.merchantKey)
	form.Set("command", command)
	for i, v := range vars {
		form.Set("var"+strconv.Itoa(i+1), v)
	}
	form.Set("hash", p.apiHash(command, vars[0]))

	resp, err := provider.Call(ctx, p.transport, provider.PayU, &provider.HTTPRequest{
		Method:      http.MethodPost,
		URL:         provider.JoinURL(p.infoURL, endpointPostService),
		QueryParams: map[string]string{"form": "2"},
		FormData:    form,
	})
	if err != nil {
		return nil, nil, err
	}

	var out postServiceResponse
	raw, err := provider.DecodeRaw(provider.PayU, resp.Body, &out)
	if err != nil {
		return nil, nil, err
	}
	if out.Status.String() != "1" {
		msg := out.Msg
		if msg == "" {
			msg = command + " failed"
		}
		return nil, raw, provider.NewProviderError(provider.PayU, msg, nil)
	}
	return &out, raw, nil
}

// GetTransactionStatus runs the verify_payment command for a txnid
func (p *PayUProvider) GetTransactionStatus(ctx context.Context, orderID string) (*provider.TransactionStatus, error) {
	if orderID == "" {
		return nil, provider.NewValidationError("payu: orderId is required", map[string]any{"orderId": "is required"})
	}

	result, raw, err := p.postService(ctx, commandVerifyPayment, orderID)
	if err != nil {
		return nil, err
	}

	info, ok := result.TransactionDetails[orderID]
	if !ok {
		return &provider.TransactionStatus{
			Status:           provider.StatusPending,
			OrderID:          orderID,
			ErrorDescription: result.Msg,
			Raw:              raw,
		}, nil
	}

	status := &provider.TransactionStatus{
		Status:    statusMap.Normalize(info.Status),
		OrderID:   orderID,
		PaymentID: info.MihpayID,
		Amount:    parseAmount(info.Amount),
		Method:    info.Mode,
		Raw:       raw,
	}
	if status.Status == provider.StatusFailed {
		status.ErrorCode = info.ErrorCode
		status.ErrorDescription = info.ErrorMessage
	}
	return status, nil
}

// RefundPayment queues a refund with cancel_refund_transaction. PayU needs an
// explicit amount; PaymentID is the mihpayid.
func (p *PayUProvider) RefundPayment(ctx context.Context, request provider.RefundRequest) (*provider.RefundReceipt, error) {
	missing := map[string]any{}
	if request.PaymentID == "" {
		missing["paymentId"] = "is required"
	}
	if !request.Amount.IsPositive() {
		missing["amount"] = "must be positive"
	} else if provider.ValidateRefundAmount(provider.PayU, request.Amount) != nil {
		missing["amount"] = "must not have more than 2 decimal places"
	}
	if len(missing) > 0 {
		return nil, provider.NewValidationError("payu: invalid refund request", missing)
	}

	token := request.Receipt
	if token == "" {
		token = p.hasher.TransactionID(refundPrefix)
	}

	result, raw, err := p.postService(ctx, commandRefund, request.PaymentID, token, request.Amount.StringFixed(2))
	if err != nil {
		return nil, err
	}

	return &provider.RefundReceipt{
		RefundID:  firstNonEmpty(result.RequestID, token),
		PaymentID: request.PaymentID,
		Amount:    request.Amount,
		Status:    provider.StatusPending,
		Provider:  provider.PayU,
		CreatedAt: time.Now().UTC(),
		Raw:       raw,
	}, nil
}

// VerifyWebhookSignature recomputes the reverse hash from the fields of the
// raw notification body, form encoded or JSON. The signature is taken from
// the event, or from the body's hash field when the event carries none.
func (p *PayUProvider) VerifyWebhookSignature(ctx context.Context, event provider.WebhookEvent) bool {
	fields, err := parseWebhookBody(event.RawPayload)
	if err != nil {
		p.logger.Warn("payu webhook body unreadable", provider.LogFields(provider.PayU, map[string]any{
			"error": err.Error(),
		}))
		return false
	}

	signature := firstNonEmpty(event.Signature, fields["hash"])
	status := fields["status"]
	if signature == "" || status == "" || fields["txnid"] == "" {
		p.logger.Warn("payu webhook missing hash fields", provider.LogFields(provider.PayU, nil))
		return false
	}

	f := hashFields{
		TxnID:       fields["txnid"],
		Amount:      fields["amount"],
		ProductInfo: fields["productinfo"],
		FirstName:   fields["firstname"],
		Email:       fields["email"],
	}
	for i := range f.UDF {
		f.UDF[i] = fields["udf"+strconv.Itoa(i+1)]
	}

	ok := p.hasher.Equal(p.responseHash(status, f, fields["additionalCharges"]), strings.ToLower(signature))
	if !ok {
		p.logger.Warn("payu webhook hash mismatch", provider.LogFields(provider.PayU, map[string]any{
			"txnid": f.TxnID,
		}))
	}
	return ok
}

func parseWebhookBody(raw []byte) (map[string]string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, errEmptyBody
	}

	fields := map[string]string{}
	if strings.HasPrefix(trimmed, "{") {
		// numbers stay as sent so "10.00" keeps its scale for the hash
		var decoded map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
			return nil, err
		}
		for k, v := range decoded {
			var s string
			switch {
			case json.Unmarshal(v, &s) == nil:
				fields[k] = s
			case string(v) == "null":
			default:
				fields[k] = string(v)
			}
		}
		return fields, nil
	}

	values, err := url.ParseQuery(trimmed)
	if err != nil {
		return nil, err
	}
	for k := range values {
		fields[k] = values.Get(k)
	}
	return fields, nil
}

func parseAmount(s string) decimal.Decimal {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
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
