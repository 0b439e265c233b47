// Package openweather provides a client for the OpenWeatherMap current
// weather API.
package openweather

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mailcheck/internal/fetcher"
)

// ServiceName identifies the weather service in errors and logs.
const ServiceName = "weather"

const (
	// Units is the unit system requested from the service. Renderers label
	// temperatures in °C and wind in m/s.
	Units       = "metric"
	iconBaseURL  = "https://openweathermap.org/img/wn"
)

// Client fetches current conditions by city name.
type Client interface {
	Current(ctx context.Context, city string) (*Current, error)
}

// Current is the current-weather payload.
type Current struct {
	Name       string      `json:"name"`
	Conditions []Condition `json:"weather"`
	Main       Main        `json:"main"`
	Wind       Wind        `json:"wind"`
	Visibility int         `json:"visibility,omitempty"`
	Sys        Sys         `json:"sys"`
}

// Condition is one entry of the "weather" array.
type Condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Main holds temperature and humidity readings.
type Main struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	Pressure  int     `json:"pressure"`
	Humidity  int     `json:"humidity"`
}

// Wind holds wind readings; Speed is m/s in metric units.
type Wind struct {
	Speed float64 `json:"speed"`
	Deg   int     `json:"deg"`
}

// Sys holds location metadata.
type Sys struct {
	Country string `json:"country"`
}

// Condition returns the first reported condition, if any.
func (c *Current) Condition() (Condition, bool) {
	if len(c.Conditions) == 0 {
		return Condition{}, false
	}
	return c.Conditions[0], true
}

// RoundedTemp returns the temperature rounded to the nearest degree.
func (c *Current) RoundedTemp() int {
	return int(math.Round(c.Main.Temp))
}

// IconURL returns the 2x icon image address for the first condition, or ""
// when no condition was reported.
func (c *Current) IconURL() string {
	cond, ok := c.Condition()
	if !ok || cond.Icon == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s@2x.png", iconBaseURL, url.PathEscape(cond.Icon))
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.fetchOpts = append(c.fetchOpts, fetcher.WithHTTPClient(hc))
	}
}

// WithTimeout sets the request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.fetchOpts = append(c.fetchOpts, fetcher.WithTimeout(d))
	}
}

type httpClient struct {
	endpoint  string
	apiKey    string
	fetchOpts []fetcher.Option
	fetch     *fetcher.Client
}

// NewClient creates a weather client for endpoint authenticated with apiKey.
func NewClient(endpoint, apiKey string, opts ...Option) Client {
	c := &httpClient{
		endpoint: endpoint,
		apiKey:   apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.fetch = fetcher.New(ServiceName, c.fetchOpts...)
	return c
}

func (c *httpClient) Current(ctx context.Context, city string) (*Current, error) {
	if city == "" {
		return nil, eris.New("weather: city is required")
	}

	q := url.Values{}
	q.Set("q", city)
	q.Set("units", Units)
	if c.apiKey != "" {
		q.Set("appid", c.apiKey)
	}

	var cur Current
	if err := c.fetch.Do(ctx, fetcher.Request{URL: c.endpoint, Query: q}, &cur); err != nil {
		return nil, err
	}
	return &cur, nil
}
