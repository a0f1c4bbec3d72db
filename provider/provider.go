package provider

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Name identifies a supported payment provider
type Name string

const (
	Razorpay  Name = "razorpay"
	Cashfree  Name = "cashfree"
	PhonePe   Name = "phonepe"
	Paytm     Name = "paytm"
	GooglePay Name = "googlepay"
	BharatPe  Name = "bharatpe"
	PayU      Name = "payu"
)

// Names returns every supported provider in a stable order
func Names() []Name {
	return []Name{Razorpay, Cashfree, PhonePe, Paytm, GooglePay, BharatPe, PayU}
}

// Environment selects the vendor endpoint set
type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentSandbox    Environment = "sandbox"
)

// IsProduction reports whether production endpoints should be used
func (e Environment) IsProduction() bool {
	return e == EnvironmentProduction
}

// DefaultCurrency is the only currency accepted by the gateway
const DefaultCurrency = "INR"

// Credentials is a sparse bag of vendor credentials. Each provider reads only
// its own keys; unrelated keys are ignored.
type Credentials map[string]string

// Get returns the trimmed value for key
func (c Credentials) Get(key string) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c[key])
}

// Customer represents the payer
type Customer struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Contact string `json:"contact,omitempty"`
	UPIID   string `json:"upiId,omitempty" validate:"omitempty,vpa"`
}

// OrderRequest contains everything needed to open an order with a provider.
// Amount is in rupees; each adapter converts to its own unit.
type OrderRequest struct {
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency,omitempty"`
	Receipt     string            `json:"receipt,omitempty" validate:"omitempty,max=40"`
	Customer    Customer          `json:"customer"`
	ReturnURL   string            `json:"returnUrl,omitempty" validate:"omitempty,url"`
	Description string            `json:"description,omitempty"`
	Notes       map[string]string `json:"notes,omitempty"`
}

// OrderStatusCreated is the only status a freshly created order carries
const OrderStatusCreated = "created"

// OrderResult is returned by CreateOrder. OrderID is the correlation key for
// all later verify, status and refund calls.
type OrderResult struct {
	OrderID      string          `json:"orderId"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Status       string          `json:"status"`
	Provider     Name            `json:"provider"`
	CreatedAt    time.Time       `json:"createdAt"`
	PaymentURL   string          `json:"paymentUrl,omitempty"`
	UPIURI       string          `json:"upiUri,omitempty"`
	QRImage      []byte          `json:"qrImage,omitempty"`
	SessionToken string          `json:"sessionToken,omitempty"`
	Raw          map[string]any  `json:"raw,omitempty"`
}

// VerificationEvidence is what the payer's client echoes back after checkout.
// The echo fields are only read by adapters that rebuild a hash from them.
type VerificationEvidence struct {
	OrderID     string    `json:"orderId"`
	PaymentID   string    `json:"paymentId"`
	Signature   string    `json:"signature"`
	Payload     string    `json:"payload,omitempty"`
	Status      string    `json:"status,omitempty"`
	Email       string    `json:"email,omitempty"`
	FirstName   string    `json:"firstName,omitempty"`
	ProductInfo string    `json:"productInfo,omitempty"`
	Amount      string    `json:"amount,omitempty"`
	TxnID       string    `json:"txnId,omitempty"`
	UDF         [5]string `json:"udf,omitempty"`

	AdditionalCharges string `json:"additionalCharges,omitempty"`
}

// TransactionStatus is the normalized result of a status query
type TransactionStatus struct {
	Status           Status          `json:"status"`
	OrderID          string          `json:"orderId"`
	PaymentID        string          `json:"paymentId,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Method           string          `json:"method,omitempty"`
	ErrorCode        string          `json:"errorCode,omitempty"`
	ErrorDescription string          `json:"errorDescription,omitempty"`
	Raw              map[string]any  `json:"raw,omitempty"`
}

// RefundRequest asks the provider to return money. A zero Amount means a full refund.
type RefundRequest struct {
	PaymentID string            `json:"paymentId"`
	OrderID   string            `json:"orderId,omitempty"`
	Amount    decimal.Decimal   `json:"amount"`
	Receipt   string            `json:"receipt,omitempty"`
	Notes     map[string]string `json:"notes,omitempty"`
}

// RefundReceipt is the provider's acknowledgement of a refund
type RefundReceipt struct {
	RefundID  string          `json:"refundId"`
	PaymentID string          `json:"paymentId"`
	Amount    decimal.Decimal `json:"amount"`
	Status    Status          `json:"status"`
	Provider  Name            `json:"provider"`
	CreatedAt time.Time       `json:"createdAt"`
	Raw       map[string]any  `json:"raw,omitempty"`
}

// WebhookEvent is an inbound notification as received from the wire.
// RawPayload must be the exact bytes received; it is hashed as-is.
type WebhookEvent struct {
	EventName  string `json:"event"`
	RawPayload []byte `json:"-"`
	Signature  string `json:"signature"`
	Timestamp  string `json:"timestamp,omitempty"`
}

// Provider is the contract every vendor adapter satisfies
type Provider interface {
	// Name returns the provider identifier
	Name() Name

	// CreateOrder opens an order with the vendor
	CreateOrder(ctx context.Context, request OrderRequest) (*OrderResult, error)

	// VerifyPayment checks the authenticity of client-side evidence. It never
	// returns an error; any internal failure yields false and is logged.
	VerifyPayment(ctx context.Context, evidence VerificationEvidence) bool

	// GetTransactionStatus queries the vendor for the order's current state
	GetTransactionStatus(ctx context.Context, orderID string) (*TransactionStatus, error)

	// RefundPayment issues a refund for a captured payment
	RefundPayment(ctx context.Context, request RefundRequest) (*RefundReceipt, error)

	// VerifyWebhookSignature authenticates an inbound notification. It never
	// returns an error; any internal failure yields false and is logged.
	VerifyWebhookSignature(ctx context.Context, event WebhookEvent) bool
}

// Options carries the collaborators and settings shared by all adapters
type Options struct {
	Environment Environment
	// WebhookURL is handed to vendors as the server-to-server callback
	WebhookURL string
	// BaseURL replaces the vendor endpoint, e.g. for a proxy or a local stub
	BaseURL string
	// VendorSDK selects the vendor's official client where one exists
	VendorSDK bool
	Transport Transport
	Logger    Logger
	Renderer  Renderer
	Hasher    Hasher
}

// Hasher is the digest toolkit adapters sign and verify with. It also mints
// merchant-side transaction ids.
type Hasher interface {
	SHA256Hex(data string) string
	SHA512Hex(data string) string
	HMACSHA256Hex(data, secret string) string
	HMACSHA256Base64(data, secret string) string
	HMACSHA512Hex(data, secret string) string
	Base64Encode(s string) string
	Base64Decode(s string) (string, error)
	Equal(expected, supplied string) bool
	TransactionID(prefix string) string
}

// QROptions controls QR rendering
type QROptions struct {
	Size       int    `json:"size"`
	Margin     int    `json:"margin"`
	DarkColor  string `json:"darkColor"`
	LightColor string `json:"lightColor"`
}

// DefaultQROptions returns a 256px black-on-white code with a one module margin
func DefaultQROptions() QROptions {
	return QROptions{Size: 256, Margin: 1, DarkColor: "#000000", LightColor: "#FFFFFF"}
}

// Renderer turns a URI into an image payload. The payload is never inspected.
type Renderer interface {
	Render(ctx context.Context, uri string, opts QROptions) ([]byte, error)
}

// Endpoint picks the vendor base URL for the configured environment unless
// BaseURL overrides it
func (o Options) Endpoint(production, sandbox string) string {
	if o.BaseURL != "" {
		return strings.TrimRight(o.BaseURL, "/")
	}
	if o.Environment.IsProduction() {
		return production
	}
	return sandbox
}
