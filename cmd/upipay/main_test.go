package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mstgnz/upipay/infra/checksum"
	"github.com/mstgnz/upipay/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestLinkCommand(t *testing.T) {
	out, err := run(t, "", "link", "--pa", "shop@okaxis", "--pn", "Corner Shop", "--amount", "₹1,250.50", "--ref", "INV1")

	require.NoError(t, err)
	assert.Equal(t, "upi://pay?pa=shop%40okaxis&pn=Corner%20Shop&am=1250.5&cu=INR&tr=INV1\n", out)
}

func TestLinkCommand_InvalidVPA(t *testing.T) {
	_, err := run(t, "", "link", "--pa", "shop", "--pn", "Shop", "--amount", "1")
	require.ErrorIs(t, err, provider.ErrValidation)
}

func TestQRCommand(t *testing.T) {
	out, err := run(t, "", "qr", "--pa", "shop@okaxis", "--pn", "Shop", "--amount", "10", "--size", "128")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "data:image/png;base64,"))

	file := filepath.Join(t.TempDir(), "qr.png")
	_, err = run(t, "", "qr", "--pa", "shop@okaxis", "--pn", "Shop", "--amount", "10", "-o", file)
	require.NoError(t, err)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestCapabilitiesCommand(t *testing.T) {
	t.Setenv("UPIPAY_PROVIDER", "")

	out, err := run(t, "", "capabilities", "googlepay")
	require.NoError(t, err)
	var caps map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &caps))
	assert.Equal(t, map[string][]string{"googlepay": {"upi"}}, caps)

	out, err = run(t, "", "capabilities")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &caps))
	assert.Len(t, caps, len(provider.Names()))

	_, err = run(t, "", "capabilities", "stripe")
	require.ErrorIs(t, err, provider.ErrValidation)
}

func TestOrderCommand_NoProvider(t *testing.T) {
	t.Setenv("UPIPAY_PROVIDER", "")

	_, err := run(t, "", "order", "--amount", "10")
	require.ErrorIs(t, err, provider.ErrConfiguration)
}

func TestOrderCommand_MissingCredentials(t *testing.T) {
	t.Setenv("UPIPAY_RAZORPAY_KEY_ID", "rzp_test_1")
	t.Setenv("UPIPAY_RAZORPAY_KEY_SECRET", "")

	_, err := run(t, "", "--provider", "razorpay", "order", "--amount", "10")
	require.ErrorIs(t, err, provider.ErrValidation)
	assert.Contains(t, err.Error(), "keySecret")
}

func TestOrderCommand_DeepLink(t *testing.T) {
	t.Setenv("UPIPAY_GOOGLEPAY_MERCHANT_UPI", "shop@okaxis")
	t.Setenv("UPIPAY_GOOGLEPAY_MERCHANT_NAME", "Shop")

	out, err := run(t, "", "--provider", "googlepay", "order", "--amount", "100", "--receipt", "R1")
	require.NoError(t, err)

	var result provider.OrderResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "R1", result.OrderID)
	assert.Contains(t, result.UPIURI, "am=100")
}

func TestVerifyCommand(t *testing.T) {
	t.Setenv("UPIPAY_RAZORPAY_KEY_ID", "rzp_test_1")
	t.Setenv("UPIPAY_RAZORPAY_KEY_SECRET", "secret")
	sig := checksum.New().HMACSHA256Hex("ORDER1|PAY1", "secret")

	out, err := run(t, "", "-p", "razorpay", "verify", "--order", "ORDER1", "--payment", "PAY1", "--signature", sig)
	require.NoError(t, err)
	assert.JSONEq(t, `{"provider":"razorpay","verified":true}`, out)

	out, err = run(t, "", "-p", "razorpay", "verify", "--order", "ORDER1", "--payment", "PAY2", "--signature", sig)
	require.NoError(t, err)
	assert.JSONEq(t, `{"provider":"razorpay","verified":false}`, out)
}

func TestVerifyCommand_PayUAdditionalCharges(t *testing.T) {
	t.Setenv("UPIPAY_PAYU_MERCHANT_KEY", "gtKFFx")
	t.Setenv("UPIPAY_PAYU_MERCHANT_SALT", "eCwWELxi")
	hash := checksum.New().SHA512Hex("2.50|eCwWELxi|success|||||||||||asha@example.com|Asha|Tea|10.00|TXN1|gtKFFx")
	args := []string{"-p", "payu", "verify", "--txnid", "TXN1", "--status", "success", "--amount", "10.00",
		"--productinfo", "Tea", "--firstname", "Asha", "--email", "asha@example.com", "--signature", hash}

	out, err := run(t, "", append(args, "--additional-charges", "2.50")...)
	require.NoError(t, err)
	assert.JSONEq(t, `{"provider":"payu","verified":true}`, out)

	out, err = run(t, "", args...)
	require.NoError(t, err)
	assert.JSONEq(t, `{"provider":"payu","verified":false}`, out)
}

func TestWebhookVerifyCommand(t *testing.T) {
	t.Setenv("UPIPAY_BHARATPE_API_KEY", "bp")
	body := `{"event":"payment.success","orderId":"BP1"}`
	sig := checksum.New().HMACSHA256Hex(body, "bp")

	out, err := run(t, body, "-p", "bharatpe", "webhook-verify", "--signature", sig)
	require.NoError(t, err)
	assert.JSONEq(t, `{"provider":"bharatpe","verified":true}`, out)

	file := filepath.Join(t.TempDir(), "body.json")
	require.NoError(t, os.WriteFile(file, []byte(body+"\n"), 0o600))
	out, err = run(t, "", "-p", "bharatpe", "webhook-verify", "-f", file, "--signature", sig)
	require.NoError(t, err)
	assert.JSONEq(t, `{"provider":"bharatpe","verified":false}`, out)
}

func TestStatusCommand_Wait(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/merchant/upi/order-status/BP1", r.URL.Path)
		status := "PENDING"
		if hits.Add(1) >= 2 {
			status = "SUCCESS"
		}
		_, _ = w.Write([]byte(`{"success":true,"orderId":"BP1","amount":"25.00","status":"` + status + `","transactionId":"TX9"}`))
	}))
	defer srv.Close()

	t.Setenv("UPIPAY_BHARATPE_API_KEY", "bp")
	t.Setenv("UPIPAY_BASE_URL", srv.URL)

	out, err := run(t, "", "-p", "bharatpe", "status", "BP1", "--wait", "5", "--interval", "1ms")
	require.NoError(t, err)

	var status provider.TransactionStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, provider.StatusSuccess, status.Status)
	assert.Equal(t, "TX9", status.PaymentID)
	assert.Equal(t, int32(2), hits.Load())
}

func TestStatusCommand_WaitExhausted(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"success":true,"orderId":"BP1","status":"PENDING"}`))
	}))
	defer srv.Close()

	t.Setenv("UPIPAY_BHARATPE_API_KEY", "bp")
	t.Setenv("UPIPAY_BASE_URL", srv.URL)

	out, err := run(t, "", "-p", "bharatpe", "status", "BP1", "--wait", "2", "--interval", "1ms")
	require.NoError(t, err)

	var status provider.TransactionStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, provider.StatusPending, status.Status)
	assert.Equal(t, int32(2), hits.Load())
}

func TestStatusCommand_ZeroRetriesCallsOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"success":false,"message":"down"}`))
	}))
	defer srv.Close()

	t.Setenv("UPIPAY_BHARATPE_API_KEY", "bp")
	t.Setenv("UPIPAY_BASE_URL", srv.URL)

	_, err := run(t, "", "-p", "bharatpe", "--retries", "0", "status", "BP1")
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}
