package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// HTTPClientConfig represents configuration for HTTP client
type HTTPClientConfig struct {
	Timeout        time.Duration
	DefaultHeaders map[string]string
	// EnableBreaker trips after consecutive network failures or 5xx answers
	EnableBreaker  bool
	BreakerTimeout time.Duration
	BreakerName    string
}

// HTTPRequest represents a standardized HTTP request. Body is marshalled to
// JSON unless it is already []byte or json.RawMessage, in which case the bytes
// go out untouched. FormData switches the request to form encoding.
type HTTPRequest struct {
	Method      string
	URL         string
	Headers     map[string]string
	Body        any
	FormData    url.Values
	QueryParams map[string]string
}

// HTTPResponse represents a standardized HTTP response
type HTTPResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Transport sends a request and returns the vendor answer. Non-2xx answers
// come back as a *StatusError alongside the response.
type Transport interface {
	Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}

// StatusError is returned for non-2xx vendor answers
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, string(e.Body))
}

// ProviderHTTPClient provides standardized HTTP operations for payment providers
type ProviderHTTPClient struct {
	config  *HTTPClientConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewProviderHTTPClient creates a new provider HTTP client
func NewProviderHTTPClient(config *HTTPClientConfig) *ProviderHTTPClient {
	if config == nil {
		config = &HTTPClientConfig{}
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	c := &ProviderHTTPClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}

	if config.EnableBreaker {
		timeout := config.BreakerTimeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		name := config.BreakerName
		if name == "" {
			name = "upipay-transport"
		}
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// vendor rejections (4xx) say nothing about vendor health
			IsSuccessful: func(err error) bool {
				var statusErr *StatusError
				if errors.As(err, &statusErr) {
					return statusErr.StatusCode < 500
				}
				return err == nil
			},
		})
	}

	return c
}

// Do sends the request, going through the circuit breaker when enabled
func (c *ProviderHTTPClient) Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	if c.breaker == nil {
		return c.send(ctx, req)
	}

	var resp *HTTPResponse
	_, err := c.breaker.Execute(func() (any, error) {
		var sendErr error
		resp, sendErr = c.send(ctx, req)
		return nil, sendErr
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("circuit breaker %s: %w", c.breaker.Name(), err)
	}
	return resp, err
}

func (c *ProviderHTTPClient) send(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	fullURL, err := buildURL(req.URL, req.QueryParams)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	response := &HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return response, &StatusError{StatusCode: resp.StatusCode, Body: respBody}
	}

	return response, nil
}

func encodeBody(req *HTTPRequest) (io.Reader, string, error) {
	if len(req.FormData) > 0 {
		return strings.NewReader(req.FormData.Encode()), contentTypeForm, nil
	}

	switch b := req.Body.(type) {
	case nil:
		return nil, "", nil
	case json.RawMessage:
		return bytes.NewReader(b), contentTypeJSON, nil
	case []byte:
		return bytes.NewReader(b), contentTypeJSON, nil
	case string:
		return strings.NewReader(b), contentTypeJSON, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal JSON body: %w", err)
		}
		return bytes.NewReader(data), contentTypeJSON, nil
	}
}

func buildURL(rawURL string, queryParams map[string]string) (string, error) {
	if len(queryParams) == 0 {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid request URL: %w", err)
	}
	q := u.Query()
	for key, value := range queryParams {
		q.Set(key, value)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// JoinURL joins a base URL and a path without doubling slashes
func JoinURL(base, endpoint string) string {
	if strings.HasSuffix(base, "/") && strings.HasPrefix(endpoint, "/") {
		return base + endpoint[1:]
	}
	if !strings.HasSuffix(base, "/") && !strings.HasPrefix(endpoint, "/") {
		return base + "/" + endpoint
	}
	return base + endpoint
}

// Call sends req through t and classifies every failure into the gateway
// error taxonomy: vendor rejections become ProviderError, everything else
// NetworkError or TimeoutError.
func Call(ctx context.Context, t Transport, name Name, req *HTTPRequest) (*HTTPResponse, error) {
	resp, err := t.Do(ctx, req)
	if err == nil {
		return resp, nil
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		gwErr := NewProviderError(name, VendorMessage(statusErr.Body, http.StatusText(statusErr.StatusCode)), err)
		gwErr.Details["statusCode"] = statusErr.StatusCode
		return resp, gwErr
	}

	return nil, WrapTransportError(name, err)
}

// DecodeRaw decodes body into target and also returns it as an untyped map
// for OrderResult.Raw and friends
func DecodeRaw(name Name, body []byte, target any) (map[string]any, error) {
	if target != nil {
		if err := json.Unmarshal(body, target); err != nil {
			return nil, NewProviderError(name, "unreadable response", err)
		}
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, NewProviderError(name, "unreadable response", err)
	}
	return raw, nil
}

// VendorMessage digs the human-readable message out of a vendor error body.
// Vendors disagree on the field, so the common shapes are tried in turn.
func VendorMessage(body []byte, fallback string) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		if s := strings.TrimSpace(string(body)); s != "" && len(s) < 200 {
			return s
		}
		return fallback
	}

	if errObj, ok := payload["error"].(map[string]any); ok {
		if msg, ok := errObj["description"].(string); ok && msg != "" {
			return msg
		}
		if msg, ok := errObj["message"].(string); ok && msg != "" {
			return msg
		}
	}
	for _, key := range []string{"message", "error_description", "msg", "error", "errorMessage"} {
		if msg, ok := payload[key].(string); ok && msg != "" {
			return msg
		}
	}
	if inner, ok := payload["body"].(map[string]any); ok {
		if info, ok := inner["resultInfo"].(map[string]any); ok {
			if msg, ok := info["resultMsg"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return fallback
}

// NewHTTPTransport returns the default transport for the given settings
func NewHTTPTransport(timeout time.Duration, enableBreaker bool, breakerTimeout time.Duration) Transport {
	return NewProviderHTTPClient(&HTTPClientConfig{
		Timeout:        timeout,
		EnableBreaker:  enableBreaker,
		BreakerTimeout: breakerTimeout,
		DefaultHeaders: map[string]string{
			"Accept":     contentTypeJSON,
			"User-Agent": "upipay/1.0",
		},
	})
}
