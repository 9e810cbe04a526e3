package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/signalsfoundry/impact-simulator/model"
)

const (
	defaultBaseURL = "https://api.nasa.gov/neo/rest/v1"
	defaultAPIKey  = "DEMO_KEY"

	// Feed dates are plain calendar days.
	dateLayout = "2006-01-02"

	// Connection pool settings. Enrichment opens up to one connection per
	// in-flight lookup.
	maxIdleConns        = 64
	maxConnsPerHost     = 64
	idleConnTimeout     = 90 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
	defaultTimeout      = 15 * time.Second

	// Retry settings for the feed request.
	baseBackoff   = 500 * time.Millisecond
	maxBackoff    = 10 * time.Second
	backoffFactor = 2.0
)

var (
	// ErrUpstream reports a transport failure or non-success response from
	// the catalog service.
	ErrUpstream = errors.New("catalog: upstream unavailable")
	// ErrNoOrbitalData reports a detail response without orbital elements.
	ErrNoOrbitalData = errors.New("catalog: no orbital data")
)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL sets the catalog endpoint, e.g. an httptest server.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithAPIKey sets the opaque access credential.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		if key != "" {
			c.apiKey = key
		}
	}
}

// WithTimeout bounds each HTTP request made by the client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRetries makes FetchFeed retry failed requests up to n extra times
// with exponential backoff starting at base.
func WithRetries(n int, base time.Duration) ClientOption {
	return func(c *Client) {
		if n < 0 {
			n = 0
		}
		if base <= 0 {
			base = baseBackoff
		}
		c.retries = n
		c.backoff = base
	}
}

// Client talks to a NeoWs-shaped near-Earth object service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
}

// NewClient creates a catalog client with connection pooling.
func NewClient(opts ...ClientOption) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConns,
		MaxConnsPerHost:     maxConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
	}

	c := &Client{
		baseURL: defaultBaseURL,
		apiKey:  defaultAPIKey,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: transport,
		},
		backoff: baseBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchFeed returns the objects approaching between start and end
// (inclusive calendar dates), ordered by date and then by feed order.
func (c *Client) FetchFeed(ctx context.Context, start, end time.Time) ([]Record, error) {
	q := url.Values{
		"start_date": {start.UTC().Format(dateLayout)},
		"end_date":   {end.UTC().Format(dateLayout)},
		"api_key":    {c.apiKey},
	}
	endpoint := c.baseURL + "/feed?" + q.Encode()

	var lastErr error
	backoff := c.backoff
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff = time.Duration(float64(backoff) * backoffFactor)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		var feed feedResponse
		err := c.getJSON(ctx, endpoint, &feed)
		if err == nil {
			return flattenFeed(feed), nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if c.retries > 0 {
		return nil, fmt.Errorf("after %d retries: %w", c.retries, lastErr)
	}
	return nil, lastErr
}

// FetchOrbit returns the classical orbital elements for one object.
func (c *Client) FetchOrbit(ctx context.Context, id string) (*model.OrbitalElements, error) {
	q := url.Values{"api_key": {c.apiKey}}
	endpoint := c.baseURL + "/neo/" + url.PathEscape(id) + "?" + q.Encode()

	var detail lookupResponse
	if err := c.getJSON(ctx, endpoint, &detail); err != nil {
		return nil, err
	}
	if detail.OrbitalData == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoOrbitalData, id)
	}
	return detail.OrbitalData, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: unexpected status %d", ErrUpstream, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: parsing response: %w", ErrUpstream, err)
	}
	return nil
}

func flattenFeed(feed feedResponse) []Record {
	dates := make([]string, 0, len(feed.NearEarthObjects))
	for d := range feed.NearEarthObjects {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	records := make([]Record, 0, max(feed.ElementCount, 0))
	for _, d := range dates {
		records = append(records, feed.NearEarthObjects[d]...)
	}
	return records
}
