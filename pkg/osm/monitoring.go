package osm

import (
	"time"

	"github.com/NERVsystems/poimap/pkg/tracing"
)

// MonitoringHooks defines hooks for monitoring Overpass requests
type MonitoringHooks struct {
	// OnRequest is called before making an HTTP request
	OnRequest func(service, operation string)

	// OnResponse is called after receiving an HTTP response
	OnResponse func(service, operation string, duration time.Duration, success bool)

	// OnRateLimit is called when the limiter made the request wait
	OnRateLimit func(service string, waitTime time.Duration)

	// OnError is called when an error occurs
	OnError func(service, errorType string)
}

func (c *Client) onRequest() {
	if c.hooks != nil && c.hooks.OnRequest != nil {
		c.hooks.OnRequest(tracing.ServiceOverpass, operationFetch)
	}
}

func (c *Client) onResponse(d time.Duration, success bool) {
	if c.hooks != nil && c.hooks.OnResponse != nil {
		c.hooks.OnResponse(tracing.ServiceOverpass, operationFetch, d, success)
	}
}

func (c *Client) onRateLimit(wait time.Duration) {
	// Only track significant waits
	if wait <= 100*time.Millisecond {
		return
	}
	if c.hooks != nil && c.hooks.OnRateLimit != nil {
		c.hooks.OnRateLimit(tracing.ServiceOverpass, wait)
	}
}

func (c *Client) onError(errorType string) {
	if c.hooks != nil && c.hooks.OnError != nil {
		c.hooks.OnError(tracing.ServiceOverpass, errorType)
	}
}
