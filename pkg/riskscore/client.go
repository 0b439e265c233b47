// Package riskscore provides a client for the remote email risk-scoring API.
package riskscore

import (
	"context"
	"net/http"
	"time"

	"github.com/sells-group/mailcheck/internal/fetcher"
)

// ServiceName identifies the analysis service in errors and logs.
const ServiceName = "analysis"

// Client submits email text for scoring.
type Client interface {
	// Analyze posts text to the analysis endpoint. Failures are
	// *fetcher.TransportError, *fetcher.StatusError or *fetcher.DecodeError.
	Analyze(ctx context.Context, req AnalyzeRequest) (*Result, error)
}

// AnalyzeRequest is one scoring call.
type AnalyzeRequest struct {
	// RequestID is sent as X-Request-ID when set.
	RequestID string
	EmailText string
}

// Result is the scoring verdict. The service owns its contents; they are
// passed through unmodified.
type Result struct {
	RiskScore float64 `json:"riskScore" yaml:"riskScore"`
	Verdict   string  `json:"verdict" yaml:"verdict"`
	Analysis  string  `json:"analysis" yaml:"analysis"`
}

type analyzeBody struct {
	EmailText string `json:"emailText"`
}

// Option configures the client.
type Option func(*options)

type options struct {
	fetch []fetcher.Option
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.fetch = append(o.fetch, fetcher.WithHTTPClient(hc))
	}
}

// WithTimeout sets the request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.fetch = append(o.fetch, fetcher.WithTimeout(d))
	}
}

type httpClient struct {
	endpoint string
	fetch    *fetcher.Client
}

// NewClient creates a client posting to endpoint.
func NewClient(endpoint string, opts ...Option) Client {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return &httpClient{
		endpoint: endpoint,
		fetch:    fetcher.New(ServiceName, o.fetch...),
	}
}

func (c *httpClient) Analyze(ctx context.Context, req AnalyzeRequest) (*Result, error) {
	header := http.Header{}
	if req.RequestID != "" {
		header.Set("X-Request-ID", req.RequestID)
	}

	var result Result
	err := c.fetch.Do(ctx, fetcher.Request{
		Method: http.MethodPost,
		URL:    c.endpoint,
		Header: header,
		Body:   analyzeBody{EmailText: req.EmailText},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
