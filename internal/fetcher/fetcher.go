// Package fetcher issues JSON requests to the remote services and reports
// failures as typed errors that callers can classify.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "mailcheck/1.0"

// Request describes one outbound JSON call.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	// Body is encoded as JSON when non-nil.
	Body any
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. hc itself is never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the overall request timeout. Zero disables it. The
// timeout applies to a copy of the HTTP client, whatever the option order.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = &d
	}
}

// WithRateLimiter makes every request wait on lim before it is sent.
func WithRateLimiter(lim *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = lim
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// Client performs JSON requests on behalf of a single named service. It never
// retries: every call maps to exactly one HTTP request.
type Client struct {
	service   string
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	timeout   *time.Duration
}

// New creates a Client for the named service.
func New(service string, opts ...Option) *Client {
	c := &Client{
		service:   service,
		userAgent: defaultUserAgent,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout != nil {
		hc := *c.http
		hc.Timeout = *c.timeout
		c.http = &hc
	}
	return c
}

// Service returns the service name used in errors and logs.
func (c *Client) Service() string {
	return c.service
}

// Do sends req and decodes a success body into out (which may be nil).
//
// A failure without a response is a *TransportError, a non-2xx response is a
// *StatusError, and an undecodable success body is a *DecodeError.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	httpReq, err := c.build(ctx, req)
	if err != nil {
		return err
	}

	log := zap.L().With(
		zap.String("component", "fetcher"),
		zap.String("service", c.service),
		zap.String("method", httpReq.Method),
		zap.String("path", httpReq.URL.Path),
	)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransportError{Service: c.service, Err: eris.Wrap(err, "rate limiter wait")}
		}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		log.Debug("fetcher: request failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return &TransportError{Service: c.service, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Service: c.service, Err: eris.Wrap(err, "read response body")}
	}

	log.Debug("fetcher: response received",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if !IsSuccessStatus(resp.StatusCode) {
		return &StatusError{
			Service:    c.service,
			StatusCode: resp.StatusCode,
			Message:    ErrorMessage(body),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{Service: c.service, Err: err}
	}
	return nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: parse url", c.service)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: marshal request", c.service)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: create request", c.service)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

// ErrorMessage extracts a human-readable reason from an error body. It looks
// at the "error" field first, then "message". Non-JSON bodies yield "".
func ErrorMessage(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"error", "message"} {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
