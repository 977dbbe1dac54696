package gateway

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

	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
)

const (
	defaultBaseURL        = "https://api.mercadopago.com"
	defaultTimeout        = 10 * time.Second
	responseBodyReadLimit = 1024

	OpCreatePreference = "create_preference"
	OpCreatePayment    = "create_payment"
	OpGetPayment       = "get_payment"
	OpSearchPayments   = "search_payments"
)

var errAccessTokenRequired = errors.New("gateway access token is required")

// Observer is told about every finished call. status is 0 when no response arrived.
type Observer func(operation string, status int, took time.Duration)

// Client talks to the payment gateway. Credentials are per tenant and passed on every call.
type Client struct {
	httpClient *http.Client
	baseURL    string
	observe    Observer
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the gateway base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout bounds every call made with the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithObserver installs a latency hook.
func WithObserver(observe Observer) Option {
	return func(c *Client) {
		c.observe = observe
	}
}

// NewClient builds the gateway client.
func NewClient(opts ...Option) (*Client, error) {
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	return client, nil
}

// CreatePreference registers a hosted checkout. It is never retried: a timeout
// may still have created the preference on the gateway side.
func (c *Client) CreatePreference(ctx context.Context, accessToken, idempotencyKey string, req PreferenceRequest) (*Preference, error) {
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "preference requires at least one item")
	}
	var pref Preference
	if err := c.do(ctx, OpCreatePreference, http.MethodPost, "checkout/preferences", accessToken, idempotencyKey, req, &pref); err != nil {
		return nil, err
	}
	if pref.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "preference response missing id")
	}
	return &pref, nil
}

// CreatePayment creates an in-band charge such as PIX.
func (c *Client) CreatePayment(ctx context.Context, accessToken, idempotencyKey string, req PaymentRequest) (*Payment, error) {
	var payment Payment
	if err := c.do(ctx, OpCreatePayment, http.MethodPost, "v1/payments", accessToken, idempotencyKey, req, &payment); err != nil {
		return nil, err
	}
	if payment.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "payment response missing id")
	}
	return &payment, nil
}

// GetPayment fetches the authoritative state of a charge. An unknown id yields CodeNotFound.
func (c *Client) GetPayment(ctx context.Context, accessToken, paymentID string) (*Payment, error) {
	trimmed := strings.TrimSpace(paymentID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	var payment Payment
	if err := c.do(ctx, OpGetPayment, http.MethodGet, "v1/payments/"+url.PathEscape(trimmed), accessToken, "", nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// SearchPayments lists the charges carrying externalReference, newest first.
// Hosted checkouts only learn their payment id this way when the webhook is lost.
func (c *Client) SearchPayments(ctx context.Context, accessToken, externalReference string) ([]Payment, error) {
	ref := strings.TrimSpace(externalReference)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external reference is required")
	}
	query := url.Values{}
	query.Set("external_reference", ref)
	query.Set("sort", "date_created")
	query.Set("criteria", "desc")

	var page PaymentSearch
	if err := c.do(ctx, OpSearchPayments, http.MethodGet, "v1/payments/search?"+query.Encode(), accessToken, "", nil, &page); err != nil {
		return nil, err
	}
	return page.Results, nil
}

func (c *Client) do(ctx context.Context, op, method, path, accessToken, idempotencyKey string, body any, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeGateway, "payment gateway client not configured")
	}
	if strings.TrimSpace(accessToken) == "" {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, errAccessTokenRequired, op)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal "+op+" request")
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build "+op+" request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+strings.TrimSpace(accessToken))
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.record(op, 0, started)
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "execute "+op+" request")
	}
	defer func() { _ = resp.Body.Close() }()
	c.record(op, resp.StatusCode, started)

	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found at gateway")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeGateway, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), op+" request failed")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decode "+op+" response")
	}
	return nil
}

func (c *Client) record(op string, status int, started time.Time) {
	if c.observe != nil {
		c.observe(op, status, time.Since(started))
	}
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), strings.TrimLeft(path, "/"))
}
