// Package osm provides utilities for working with OpenStreetMap data.
package osm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/poimap/pkg/osm/queries"
	"github.com/NERVsystems/poimap/pkg/tracing"
)

const (
	// OverpassBaseURL is the public Overpass interpreter endpoint
	OverpassBaseURL = "https://overpass-api.de/api/interpreter"

	// DefaultUserAgent is the default User-Agent string
	DefaultUserAgent = "poimap/0.1.0"

	// DefaultTimeout bounds one whole Fetch call
	DefaultTimeout = 30 * time.Second

	// maxErrorBody is how much of a failed response body is kept
	maxErrorBody = 500

	operationFetch = "fetch"
)

// Client retrieves snapshots from an Overpass endpoint. It issues exactly one
// request per Fetch and never retries.
type Client struct {
	baseURL      string
	userAgent    string
	tagKey       string
	tagValue     string
	queryTimeout int
	httpClient   *http.Client
	limiter      *rate.Limiter
	hooks        *MonitoringHooks
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another Overpass interpreter.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithUserAgent sets the User-Agent header sent upstream.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithTag sets the tag every fetched element must carry.
func WithTag(key, value string) Option {
	return func(c *Client) {
		c.tagKey = key
		c.tagValue = value
	}
}

// WithQueryTimeout sets the server-side [timeout:N] in seconds.
func WithQueryTimeout(seconds int) Option {
	return func(c *Client) { c.queryTimeout = seconds }
}

// WithRateLimit sets the token bucket guarding the endpoint.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithMonitoringHooks installs request/response/error callbacks.
func WithMonitoringHooks(h *MonitoringHooks) Option {
	return func(c *Client) { c.hooks = h }
}

// WithLogger sets the logger for the client
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates an Overpass client selecting amenity=toilets by default.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:      OverpassBaseURL,
		userAgent:    DefaultUserAgent,
		tagKey:       "amenity",
		tagValue:     "toilets",
		queryTimeout: queries.DefaultTimeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		// Default to 1 request per second with burst of 1
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildQuery returns the Overpass QL the client sends for target.
func (c *Client) BuildQuery(target queries.Target) string {
	return queries.NewOverpassBuilder().
		WithTimeout(c.queryTimeout).
		WithTag(c.tagKey, c.tagValue).
		In(target).
		Build()
}

// Fetch runs one query for target and parses the response into a Snapshot.
// A zero target means the default Oslo window. The whole call, rate-limit
// wait included, is bounded by timeout (DefaultTimeout when <= 0).
//
// An invalid target is rejected before any request is sent. Every other
// failure is a *FetchError. The snapshot is not written anywhere.
func (c *Client) Fetch(ctx context.Context, target queries.Target, timeout time.Duration) (*Snapshot, error) {
	target = target.OrDefault()
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query target: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	query := c.BuildQuery(target)
	logger := c.logger.With("service", tracing.ServiceOverpass, "target", target.String())

	ctx, span := tracing.StartSpan(ctx, "overpass.fetch",
		trace.WithAttributes(
			attribute.String(tracing.AttrServiceName, tracing.ServiceOverpass),
			attribute.String(tracing.AttrServiceURL, c.baseURL),
			attribute.String(tracing.AttrQueryTarget, target.String()),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Info("fetching overpass data", "timeout", timeout)
	logger.Debug("generated Overpass query", "query", query)

	c.onRequest()
	capturedAt := c.now().UTC()

	body, err := c.do(ctx, query)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.Query = query
			c.onError(fe.Kind.String())
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		logger.Error("overpass fetch failed", "error", err)
		return nil, err
	}

	snap, err := ParseContext(ctx, body, Metadata{
		Query:      query,
		Target:     target,
		CapturedAt: capturedAt,
	})
	if err != nil {
		c.onError(FetchDecode.String())
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		logger.Error("failed to decode response", "error", err)
		return nil, &FetchError{Kind: FetchDecode, Query: query, Err: err}
	}

	points, areas := snap.CountByKind()
	span.SetAttributes(
		attribute.Int(tracing.AttrElementCount, snap.Len()),
		attribute.Int(tracing.AttrMalformedCount, len(snap.skipped)),
	)
	span.SetStatus(codes.Ok, "")
	logger.Info("overpass fetch complete",
		"elements", snap.Len(),
		"points", points,
		"areas", areas,
		"skipped", len(snap.skipped),
		"bytes", len(body))

	return snap, nil
}

// do sends the query and returns the successful response body.
func (c *Client) do(ctx context.Context, query string) ([]byte, error) {
	if err := c.waitForRateLimit(ctx); err != nil {
		return nil, &FetchError{Kind: FetchNetwork, Err: fmt.Errorf("waiting for rate limit: %w", err)}
	}

	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &FetchError{Kind: FetchNetwork, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.onResponse(time.Since(start), false)
		return nil, &FetchError{Kind: FetchNetwork, Err: err}
	}
	defer resp.Body.Close()

	tracing.SetAttributes(ctx, attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.onResponse(time.Since(start), false)
		var excerpt string
		if b, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1)); readErr == nil {
			excerpt = strings.TrimSpace(string(b))
			if len(excerpt) > maxErrorBody {
				excerpt = excerpt[:maxErrorBody] + "..."
			}
		}
		return nil, &FetchError{Kind: FetchBadStatus, StatusCode: resp.StatusCode, Body: excerpt}
	}

	body, err := io.ReadAll(resp.Body)
	c.onResponse(time.Since(start), err == nil)
	if err != nil {
		return nil, &FetchError{Kind: FetchNetwork, Err: fmt.Errorf("reading response body: %w", err)}
	}
	return body, nil
}

// waitForRateLimit blocks until the limiter admits one request.
func (c *Client) waitForRateLimit(ctx context.Context) error {
	if c.limiter == nil || c.limiter.Allow() {
		return nil
	}

	startWait := time.Now()
	tracing.AddEvent(ctx, "rate_limit_wait",
		trace.WithAttributes(
			attribute.String(tracing.AttrRateLimitService, tracing.ServiceOverpass),
		),
	)

	err := c.limiter.Wait(ctx)

	waitDuration := time.Since(startWait)
	tracing.SetAttributes(ctx,
		attribute.Int64(tracing.AttrRateLimitWaitMs, waitDuration.Milliseconds()),
	)
	c.onRateLimit(waitDuration)
	return err
}

// CheckHealth verifies that the endpoint answers at all. It is used by the
// fetch command in debug mode before sending a large query.
func (c *Client) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create overpass health check request: %w", err)
	}
	req.URL.RawQuery = "data=" + url.QueryEscape("[out:json];out meta;")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("overpass health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("overpass health check returned status %d", resp.StatusCode)
	}
	return nil
}
