// Package gateway is the single entry point of upipay. A Gateway is bound to
// one provider for its lifetime and forwards every call to that adapter.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/mstgnz/upipay/provider"
	"github.com/mstgnz/upipay/provider/bharatpe"
	"github.com/mstgnz/upipay/provider/cashfree"
	"github.com/mstgnz/upipay/provider/googlepay"
	"github.com/mstgnz/upipay/provider/paytm"
	"github.com/mstgnz/upipay/provider/payu"
	"github.com/mstgnz/upipay/provider/phonepe"
	"github.com/mstgnz/upipay/provider/razorpay"
	"github.com/mstgnz/upipay/provider/upi"
)

// Config selects and configures the provider
type Config struct {
	Provider    provider.Name
	Credentials provider.Credentials
	// Environment defaults to production
	Environment provider.Environment
	Options     provider.Options
}

// Gateway delegates to exactly one provider adapter. It holds no per-call
// state and is safe for concurrent use.
type Gateway struct {
	name     provider.Name
	adapter  provider.Provider
	renderer provider.Renderer
	logger   provider.Logger
}

// New validates cfg and builds the adapter for cfg.Provider. Missing
// credentials fail here, before any network call.
func New(cfg Config) (*Gateway, error) {
	name := provider.Name(strings.ToLower(strings.TrimSpace(string(cfg.Provider))))
	if !provider.IsSupported(name) {
		return nil, provider.NewValidationError(
			fmt.Sprintf("unsupported provider %q", cfg.Provider),
			map[string]any{"provider": string(cfg.Provider), "supported": provider.Names()},
		)
	}

	env := cfg.Environment
	if env == "" {
		env = cfg.Options.Environment
	}
	switch env {
	case "":
		env = provider.EnvironmentProduction
	case provider.EnvironmentProduction, provider.EnvironmentSandbox:
	default:
		return nil, provider.NewConfigurationError(
			fmt.Sprintf("invalid environment %q", env),
			map[string]any{"environment": string(env)},
		)
	}

	if err := provider.ValidateConfigFields(name, cfg.Credentials, provider.RequiredConfig(name)); err != nil {
		return nil, err
	}

	opts := cfg.Options
	opts.Environment = env
	if opts.Renderer == nil {
		opts.Renderer = upi.NewQRCodeRenderer()
	}
	opts = opts.WithDefaults()

	adapter, err := newAdapter(name, cfg.Credentials, opts)
	if err != nil {
		return nil, err
	}

	opts.Logger.Debug("gateway ready", provider.LogFields(name, map[string]any{
		"environment": string(env),
	}))

	return &Gateway{
		name:     name,
		adapter:  adapter,
		renderer: opts.Renderer,
		logger:   opts.Logger,
	}, nil
}

// newAdapter is the only place that branches on the provider name
func newAdapter(name provider.Name, creds provider.Credentials, opts provider.Options) (provider.Provider, error) {
	switch name {
	case provider.Razorpay:
		return razorpay.NewProvider(creds, opts)
	case provider.Cashfree:
		return cashfree.NewProvider(creds, opts)
	case provider.PhonePe:
		return phonepe.NewProvider(creds, opts)
	case provider.Paytm:
		return paytm.NewProvider(creds, opts)
	case provider.GooglePay:
		return googlepay.NewProvider(creds, opts)
	case provider.BharatPe:
		return bharatpe.NewProvider(creds, opts)
	case provider.PayU:
		return payu.NewProvider(creds, opts)
	default:
		return nil, provider.NewValidationError(fmt.Sprintf("unsupported provider %q", name), nil)
	}
}

// Provider returns the name of the bound provider
func (g *Gateway) Provider() provider.Name {
	return g.name
}

// CreateOrder opens an order with the provider
func (g *Gateway) CreateOrder(ctx context.Context, request provider.OrderRequest) (*provider.OrderResult, error) {
	return g.adapter.CreateOrder(ctx, request)
}

// VerifyPayment checks client-side payment evidence. It never errors.
func (g *Gateway) VerifyPayment(ctx context.Context, evidence provider.VerificationEvidence) bool {
	return g.adapter.VerifyPayment(ctx, evidence)
}

// GetTransactionStatus queries the provider for an order's state
func (g *Gateway) GetTransactionStatus(ctx context.Context, orderID string) (*provider.TransactionStatus, error) {
	return g.adapter.GetTransactionStatus(ctx, orderID)
}

// RefundPayment refunds a captured payment
func (g *Gateway) RefundPayment(ctx context.Context, request provider.RefundRequest) (*provider.RefundReceipt, error) {
	return g.adapter.RefundPayment(ctx, request)
}

// VerifyWebhookSignature authenticates an inbound notification. It never errors.
func (g *Gateway) VerifyWebhookSignature(ctx context.Context, event provider.WebhookEvent) bool {
	return g.adapter.VerifyWebhookSignature(ctx, event)
}

// GenerateUPILink builds a upi://pay deep link
func (g *Gateway) GenerateUPILink(params upi.LinkParams) (string, error) {
	return upi.Build(params)
}

// GenerateQRCode renders the deep link for params as an image. Zero-valued
// options fall back to provider.DefaultQROptions.
func (g *Gateway) GenerateQRCode(ctx context.Context, params upi.LinkParams, opts ...provider.QROptions) ([]byte, error) {
	o := provider.DefaultQROptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	img, _, err := upi.QR(ctx, g.renderer, params, o)
	return img, err
}

// Capabilities returns the bound provider's capability tags
func (g *Gateway) Capabilities() []string {
	return provider.Capabilities(g.name)
}

// IsValidVPA reports whether vpa is a well-formed UPI address
func IsValidVPA(vpa string) bool {
	return upi.IsValidVPA(vpa)
}
