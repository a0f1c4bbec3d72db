package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderHTTPClient_SendsJSON(t *testing.T) {
	var (
		gotBody        []byte
		gotContentType string
		gotAuth        string
		gotQuery       url.Values
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"id":"order_1"}`))
	}))
	defer srv.Close()

	client := NewProviderHTTPClient(&HTTPClientConfig{Timeout: time.Second})
	raw := json.RawMessage(`{"b":2,"a":1}`)

	resp, err := client.Do(context.Background(), &HTTPRequest{
		Method:      http.MethodPost,
		URL:         srv.URL + "/orders",
		Headers:     map[string]string{"Authorization": "Bearer t"},
		Body:        raw,
		QueryParams: map[string]string{"mid": "M1"},
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":"order_1"}`, string(resp.Body))
	assert.Equal(t, `{"b":2,"a":1}`, string(gotBody))
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "Bearer t", gotAuth)
	assert.Equal(t, "M1", gotQuery.Get("mid"))
}

func TestProviderHTTPClient_SendsForm(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form = r.PostForm
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewProviderHTTPClient(nil)
	_, err := client.Do(context.Background(), &HTTPRequest{
		Method:   http.MethodPost,
		URL:      srv.URL,
		FormData: url.Values{"key": {"K"}, "command": {"verify_payment"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "verify_payment", form.Get("command"))
}

func TestCall_ClassifiesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
	}))
	defer srv.Close()

	client := NewProviderHTTPClient(nil)

	_, err := Call(context.Background(), client, Razorpay, &HTTPRequest{Method: http.MethodPost, URL: srv.URL})
	require.ErrorIs(t, err, ErrProvider)
	gwErr, _ := AsError(err)
	assert.Contains(t, gwErr.Message, "amount too small")
	assert.Equal(t, http.StatusBadRequest, gwErr.Details["statusCode"])
	assert.Equal(t, Razorpay, gwErr.Provider)

	_, err = Call(context.Background(), client, Razorpay, &HTTPRequest{URL: "http://127.0.0.1:1/unreachable"})
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestCall_PropagatesDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Call(ctx, NewProviderHTTPClient(nil), Paytm, &HTTPRequest{URL: srv.URL})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDecodeRaw_UnreadableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	resp, err := Call(context.Background(), NewProviderHTTPClient(nil), Cashfree, &HTTPRequest{URL: srv.URL})
	require.NoError(t, err)

	var out map[string]any
	_, err = DecodeRaw(Cashfree, resp.Body, &out)
	assert.ErrorIs(t, err, ErrProvider)
}

func TestProviderHTTPClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewProviderHTTPClient(&HTTPClientConfig{EnableBreaker: true, BreakerTimeout: time.Minute})
	for i := 0; i < 5; i++ {
		_, err := client.Do(context.Background(), &HTTPRequest{URL: srv.URL})
		require.Error(t, err)
	}

	_, err := client.Do(context.Background(), &HTTPRequest{URL: srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker")
	assert.Equal(t, int32(5), hits.Load())
}

func TestProviderHTTPClient_BreakerIgnoresClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewProviderHTTPClient(&HTTPClientConfig{EnableBreaker: true})
	for i := 0; i < 8; i++ {
		_, _ = client.Do(context.Background(), &HTTPRequest{URL: srv.URL})
	}
	assert.Equal(t, int32(8), hits.Load())
}

func TestVendorMessage(t *testing.T) {
	assert.Equal(t, "bad", VendorMessage([]byte(`{"message":"bad"}`), "x"))
	assert.Equal(t, "desc", VendorMessage([]byte(`{"error":{"description":"desc"}}`), "x"))
	assert.Equal(t, "Invalid checksum", VendorMessage([]byte(`{"body":{"resultInfo":{"resultMsg":"Invalid checksum"}}}`), "x"))
	assert.Equal(t, "plain text", VendorMessage([]byte(`plain text`), "x"))
	assert.Equal(t, "x", VendorMessage(nil, "x"))
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://a/b", JoinURL("https://a/", "/b"))
	assert.Equal(t, "https://a/b", JoinURL("https://a", "b"))
	assert.Equal(t, "https://a/b", JoinURL("https://a", "/b"))
}
