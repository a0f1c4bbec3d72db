package razorpay

import (
	"context"
	"encoding/json"

	"github.com/mstgnz/upipay/provider"
	razorpaysdk "github.com/razorpay/razorpay-go"
)

// sdkAPI talks to Razorpay through the official client. The client is built
// once with the adapter and only read afterwards. It takes no context, so
// cancellation is checked before each call.
type sdkAPI struct {
	client *razorpaysdk.Client
}

func newSDKAPI(keyID, keySecret string) *sdkAPI {
	return &sdkAPI{client: razorpaysdk.NewClient(keyID, keySecret)}
}

func (a *sdkAPI) result(ctx context.Context, data map[string]any, err error) ([]byte, error) {
	if err != nil {
		if ctx.Err() != nil {
			return nil, provider.NewTimeoutError(provider.Razorpay, ctx.Err())
		}
		return nil, provider.NewProviderError(provider.Razorpay, err.Error(), err)
	}
	out, err := json.Marshal(data)
	if err != nil {
		return nil, provider.NewProviderError(provider.Razorpay, "unreadable response", err)
	}
	return out, nil
}

func (a *sdkAPI) createOrder(ctx context.Context, body map[string]any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, provider.NewTimeoutError(provider.Razorpay, err)
	}
	data, err := a.client.Order.Create(body, nil)
	return a.result(ctx, data, err)
}

func (a *sdkAPI) fetchOrder(ctx context.Context, orderID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, provider.NewTimeoutError(provider.Razorpay, err)
	}
	data, err := a.client.Order.Fetch(orderID, nil, nil)
	return a.result(ctx, data, err)
}

func (a *sdkAPI) fetchOrderPayments(ctx context.Context, orderID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, provider.NewTimeoutError(provider.Razorpay, err)
	}
	data, err := a.client.Order.Payments(orderID, nil, nil)
	return a.result(ctx, data, err)
}

// refund needs an explicit amount with the SDK, so a full refund first looks
// up what is still refundable
func (a *sdkAPI) refund(ctx context.Context, paymentID string, paise int64, body map[string]any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, provider.NewTimeoutError(provider.Razorpay, err)
	}

	if paise <= 0 {
		payment, err := a.client.Payment.Fetch(paymentID, nil, nil)
		if err != nil {
			return a.result(ctx, nil, err)
		}
		paise = remaining(payment)
	}

	data, err := a.client.Payment.Refund(paymentID, int(paise), body, nil)
	return a.result(ctx, data, err)
}

func remaining(payment map[string]any) int64 {
	amount, _ := payment["amount"].(float64)
	refunded, _ := payment["amount_refunded"].(float64)
	return int64(amount - refunded)
}
