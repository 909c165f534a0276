package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/lucifergaming/savagetech/internal/version"
)

const (
	// DefaultCurrency is used when neither the call nor the config names one.
	DefaultCurrency = "usd"

	DefaultTimeout        = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second

	// maxBodySize caps how much of a vendor response is read.
	maxBodySize = 4 << 20
)

// Vendor API endpoints.
const (
	EndpointAccessTokens = "/accesstokens"
	EndpointDepositMade  = "/depositmade"
	EndpointBetPlaced    = "/betplaced"
	EndpointCurrencies   = "/currencies"
)

// Config holds vendor API connection settings.
type Config struct {
	BaseURL         string
	VendorID        string
	VendorSecret    string
	DefaultCurrency string

	// Timeout bounds a whole request; ConnectTimeout bounds the TCP dial.
	Timeout        time.Duration
	ConnectTimeout time.Duration
}

// Currency describes a vendor currency definition.
type Currency struct {
	Symbol          string  `json:"symbol" yaml:"symbol"`
	FullName        string  `json:"fullName" yaml:"fullName"`
	ShortName       string  `json:"shortName" yaml:"shortName"`
	ConversionToUSD float64 `json:"conversionToUSD" yaml:"conversionToUSD"`
	RoundedTo       int     `json:"roundedTo" yaml:"roundedTo"`
}

// Response wraps a successful vendor response.
type Response struct {
	Data       json.RawMessage
	StatusCode int
}

// UnmarshalData unmarshals the response data into the given value.
func (r *Response) UnmarshalData(v any) error {
	return json.Unmarshal(r.Data, v)
}

// Client is an HTTP client for the SavageTech vendor API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	hooks      Hooks
	gate       Gate
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The configured
// timeouts are not applied to a caller-supplied client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithHooks installs request observability hooks.
func WithHooks(h Hooks) Option {
	return func(c *Client) {
		if h != nil {
			c.hooks = h
		}
	}
}

// WithGate installs a request gate such as a circuit breaker.
func WithGate(g Gate) Option {
	return func(c *Client) {
		c.gate = g
	}
}

// NewClient creates a new vendor API client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = DefaultCurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	c := &Client{
		cfg:   cfg,
		hooks: NoopHooks{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
		c.httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         dialer.DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return c
}

// VendorID returns the configured vendor ID.
func (c *Client) VendorID() string {
	return c.cfg.VendorID
}

// DefaultCurrency returns the currency used when a call does not name one.
func (c *Client) DefaultCurrency() string {
	return c.cfg.DefaultCurrency
}

// AccessToken requests a widget access token for a user.
func (c *Client) AccessToken(ctx context.Context, userID, currency string) (Token, error) {
	if userID == "" {
		return Token{}, ErrMissingUserID
	}
	resp, err := c.post(ctx, "AccessToken", EndpointAccessTokens, map[string]any{
		"userId":   userID,
		"currency": c.currency(currency),
	})
	if err != nil {
		return Token{}, err
	}

	var tok Token
	if err := resp.UnmarshalData(&tok); err != nil {
		return Token{}, &UpstreamError{
			Operation:  "AccessToken",
			StatusCode: resp.StatusCode,
			Body:       resp.Data,
			Message:    "unexpected token response shape",
			Cause:      err,
		}
	}
	return tok, nil
}

// DepositMade records a completed player deposit.
func (c *Client) DepositMade(ctx context.Context, userID string, amount float64, currency string) (*Response, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	return c.post(ctx, "DepositMade", EndpointDepositMade, map[string]any{
		"userId":   userID,
		"amount":   amount,
		"currency": c.currency(currency),
	})
}

// BetPlaced records a placed player bet.
func (c *Client) BetPlaced(ctx context.Context, userID string, amount, odds float64, currency string) (*Response, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	return c.post(ctx, "BetPlaced", EndpointBetPlaced, map[string]any{
		"userId":   userID,
		"amount":   amount,
		"odds":     odds,
		"currency": c.currency(currency),
	})
}

// SetCurrencies creates or updates the vendor's currency table.
func (c *Client) SetCurrencies(ctx context.Context, currencies map[string]Currency) (*Response, error) {
	return c.post(ctx, "SetCurrencies", EndpointCurrencies, map[string]any{
		"currencies": currencies,
	})
}

func (c *Client) currency(currency string) string {
	if currency == "" {
		return c.cfg.DefaultCurrency
	}
	return currency
}

func (c *Client) buildURL(endpoint string) string {
	return c.cfg.BaseURL + "/" + strings.TrimPrefix(endpoint, "/")
}

func (c *Client) post(ctx context.Context, op, endpoint string, body any) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s body: %w", op, err)
	}

	info := RequestInfo{Operation: op, Method: http.MethodPost, URL: c.buildURL(endpoint)}
	if c.gate != nil {
		if err := c.gate.Admit(ctx, info); err != nil {
			return nil, err
		}
	}
	ctx = c.hooks.OnRequestStart(ctx, info)
	start := time.Now()

	resp, err := c.do(ctx, info, payload)

	result := RequestResult{Duration: time.Since(start), Err: err}
	if resp != nil {
		result.StatusCode = resp.StatusCode
	} else if ue, ok := err.(*UpstreamError); ok {
		result.StatusCode = ue.StatusCode
		result.RetryAfter = ue.RetryAfter
	}
	c.hooks.OnRequestEnd(ctx, info, result)
	if c.gate != nil {
		c.gate.Done(ctx, info, result)
	}

	return resp, err
}

func (c *Client) do(ctx context.Context, info RequestInfo, payload []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, info.Method, info.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Vendor-Id", c.cfg.VendorID)
	req.Header.Set("Vendor-Secret", c.cfg.VendorSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Operation: info.Operation, Message: "network error", Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &UpstreamError{
			Operation:  info.Operation,
			StatusCode: resp.StatusCode,
			Message:    "failed to read response",
			Cause:      err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := newStatusError(info.Operation, resp.StatusCode, respBody)
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		return nil, e
	}

	if !json.Valid(respBody) {
		return nil, &UpstreamError{
			Operation:  info.Operation,
			StatusCode: resp.StatusCode,
			Message:    "response is not valid JSON",
		}
	}

	return &Response{Data: respBody, StatusCode: resp.StatusCode}, nil
}
