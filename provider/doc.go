// Package provider defines the contract every UPI gateway adapter satisfies,
// plus what the adapters share: the error taxonomy, status normalization,
// credential validation, request validation and the HTTP transport.
//
// # Provider Contract
//
//   - CreateOrder: open an order; the result's OrderID keys every later call
//   - VerifyPayment: check client-side evidence; never errors
//   - GetTransactionStatus: normalized status of an order
//   - RefundPayment: full (zero amount) or partial refund
//   - VerifyWebhookSignature: authenticate a raw notification body; never errors
//
// Adapters live in subpackages and are constructed through gateway.New,
// which is the only place that switches on the provider name.
//
// # Status Normalization
//
// Each adapter owns a StatusMap from its vendor vocabulary onto success,
// failed, pending and processing. Unknown tokens become pending, never failed.
//
// # Transport
//
// Adapters talk HTTP through the Transport interface. The default
// ProviderHTTPClient can be guarded by a circuit breaker; tests substitute
// an httptest server through Options.BaseURL or a fake Transport.
//
// # Webhooks
//
// WebhookEvent.RawPayload must be the exact bytes received. Adapters hash
// those bytes and never re-serialize a parsed body.
package provider
