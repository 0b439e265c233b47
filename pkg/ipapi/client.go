// Package ipapi provides a client for ip-api.com style IP geolocation lookups.
package ipapi

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/mailcheck/internal/fetcher"
)

// ServiceName identifies the geolocation service in errors and logs.
const ServiceName = "geolocation"

// Client resolves the caller's network-visible location.
type Client interface {
	// Lookup takes no input: the service geolocates the requesting address.
	Lookup(ctx context.Context) (*Location, error)
}

// Location is the subset of the ip-api payload we display. Country, City
// and Query (the caller's address) are the fields the dashboard relies on.
type Location struct {
	Status      string  `json:"status,omitempty"`
	Message     string  `json:"message,omitempty"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode,omitempty"`
	RegionName  string  `json:"regionName,omitempty"`
	City        string  `json:"city"`
	Zip         string  `json:"zip,omitempty"`
	Lat         float64 `json:"lat,omitempty"`
	Lon         float64 `json:"lon,omitempty"`
	Timezone    string  `json:"timezone,omitempty"`
	ISP         string  `json:"isp,omitempty"`
	Query       string  `json:"query"`
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

// WithRatePerMinute caps outbound lookups. The free ip-api tier allows 45
// requests per minute per address.
func WithRatePerMinute(n int) Option {
	return func(o *options) {
		if n <= 0 {
			return
		}
		o.fetch = append(o.fetch, fetcher.WithRateLimiter(rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)))
	}
}

type httpClient struct {
	endpoint string
	fetch    *fetcher.Client
}

// NewClient creates a geolocation client for endpoint.
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

func (c *httpClient) Lookup(ctx context.Context) (*Location, error) {
	var loc Location
	if err := c.fetch.Do(ctx, fetcher.Request{URL: c.endpoint}, &loc); err != nil {
		return nil, err
	}

	// ip-api answers 200 with status "fail" for reserved ranges and bad queries.
	if loc.Status == "fail" {
		msg := loc.Message
		if msg == "" {
			msg = "lookup failed"
		}
		return nil, &fetcher.StatusError{
			Service:    ServiceName,
			StatusCode: http.StatusOK,
			Message:    msg,
		}
	}
	return &loc, nil
}
