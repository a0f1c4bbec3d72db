// Package upipay is a unified payment layer over Indian UPI gateways. It
// hides seven vendor contracts behind one API: Razorpay, Cashfree, PhonePe,
// Paytm, Google Pay, BharatPe and PayU.
//
// # Overview
//
// Every gateway signs requests, reports status and authenticates webhooks
// its own way. upipay keeps those differences inside one adapter per vendor
// and gives applications a single Gateway to talk to.
//
//	┌─────────────────┐    ┌─────────────────┐    ┌─────────────────┐
//	│                 │    │                 │    │                 │
//	│   Your App      │◄──►│  gateway.New    │◄──►│   Provider      │
//	│                 │    │   (one vendor)  │    │   REST API      │
//	│                 │    │                 │    │                 │
//	└─────────────────┘    └─────────────────┘    └─────────────────┘
//
// # Supported Providers
//
//   - Razorpay: orders API, HMAC-SHA256 payment and webhook signatures
//   - Cashfree: PG v2023-08-01, base64 HMAC signatures with timestamp
//   - PhonePe: PG v1, salted SHA-256 X-VERIFY checksums with a salt index
//   - Paytm: initiateTransaction, SHA-256 body checksums
//   - Google Pay: UPI intent links and QR codes only
//   - BharatPe: UPI orders with bearer auth
//   - PayU: hosted checkout forms, SHA-512 forward and reverse hashes
//
// # Quick Start
//
//	g, err := gateway.New(gateway.Config{
//	    Provider:    provider.Razorpay,
//	    Environment: provider.EnvironmentSandbox,
//	    Credentials: provider.Credentials{
//	        "keyId":     "rzp_test_xxx",
//	        "keySecret": "secret",
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	order, err := g.CreateOrder(ctx, provider.OrderRequest{
//	    Amount:   decimal.NewFromInt(499),
//	    Customer: provider.Customer{Email: "asha@example.com"},
//	})
//
//	// later, with what the checkout returned to the browser
//	ok := g.VerifyPayment(ctx, provider.VerificationEvidence{
//	    OrderID:   order.OrderID,
//	    PaymentID: "pay_xxx",
//	    Signature: "…",
//	})
//
// # Errors
//
// Failures are *provider.Error values with a stable code and an HTTP-style
// status. Match them by kind:
//
//	if errors.Is(err, provider.ErrValidation) {
//	    // bad input, do not retry
//	}
//
// VerifyPayment and VerifyWebhookSignature never return errors; anything
// unexpected is logged and reported as false.
//
// # Retries
//
// The core never retries. Wrap calls with infra/retry when needed; it skips
// validation and configuration errors:
//
//	status, err := retry.Do(ctx, func(ctx context.Context) (*provider.TransactionStatus, error) {
//	    return g.GetTransactionStatus(ctx, orderID)
//	}, retry.DefaultOptions())
//
// # Configuration
//
// The upipay CLI (cmd/upipay) reads UPIPAY_PROVIDER, UPIPAY_ENVIRONMENT and
// credentials named UPIPAY_<PROVIDER>_<FIELD>, e.g. UPIPAY_RAZORPAY_KEY_SECRET.
// A .env file is loaded when present.
package upipay
