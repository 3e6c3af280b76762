package osm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/NERVsystems/poimap/pkg/osm/queries"
)

func TestFetchCallsMonitoringHooks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"elements":[]}`))
	}))
	defer server.Close()

	var requestCalled, responseCalled bool
	var capturedService, capturedOperation string
	var capturedSuccess bool

	hooks := &MonitoringHooks{
		OnRequest: func(service, operation string) {
			requestCalled = true
			capturedService = service
			capturedOperation = operation
		},
		OnResponse: func(service, operation string, duration time.Duration, success bool) {
			responseCalled = true
			capturedSuccess = success
		},
	}

	c := NewClient(WithBaseURL(server.URL), WithMonitoringHooks(hooks))
	if _, err := c.Fetch(context.Background(), queries.Target{}, time.Second); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if !requestCalled {
		t.Error("OnRequest should have been called")
	}
	if !responseCalled {
		t.Error("OnResponse should have been called")
	}
	if capturedService != "overpass" {
		t.Errorf("Expected service 'overpass', got %s", capturedService)
	}
	if capturedOperation != "fetch" {
		t.Errorf("Expected operation 'fetch', got %s", capturedOperation)
	}
	if !capturedSuccess {
		t.Error("Request should have been successful")
	}
}

func TestFetchErrorHookOnBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	var capturedSuccess = true
	var capturedErrorType string

	hooks := &MonitoringHooks{
		OnResponse: func(service, operation string, duration time.Duration, success bool) {
			capturedSuccess = success
		},
		OnError: func(service, errorType string) {
			capturedErrorType = errorType
		},
	}

	c := NewClient(WithBaseURL(server.URL), WithMonitoringHooks(hooks))
	if _, err := c.Fetch(context.Background(), queries.Target{}, time.Second); err == nil {
		t.Fatal("expected error")
	}

	if capturedSuccess {
		t.Error("Request should not have been successful")
	}
	if capturedErrorType != "bad_status" {
		t.Errorf("Expected error type 'bad_status', got %s", capturedErrorType)
	}
}

func TestFetchRateLimitHook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"elements":[]}`))
	}))
	defer server.Close()

	var rateLimitCalled bool
	var capturedWaitTime time.Duration

	hooks := &MonitoringHooks{
		OnRateLimit: func(service string, waitTime time.Duration) {
			rateLimitCalled = true
			capturedWaitTime = waitTime
		},
	}

	// 5 requests per second: the second call waits about 200ms
	c := NewClient(WithBaseURL(server.URL), WithMonitoringHooks(hooks))
	c.limiter = rate.NewLimiter(rate.Limit(5), 1)

	for i := 0; i < 2; i++ {
		if _, err := c.Fetch(context.Background(), queries.Target{}, 5*time.Second); err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
	}

	if !rateLimitCalled {
		t.Error("OnRateLimit should have been called")
	}
	if capturedWaitTime <= 100*time.Millisecond {
		t.Errorf("Wait time should be significant for rate limiting, got %v", capturedWaitTime)
	}
}

func TestFetchWithoutHooks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"elements":[]}`))
	}))
	defer server.Close()

	// Should not panic
	c := NewClient(WithBaseURL(server.URL))
	if _, err := c.Fetch(context.Background(), queries.Target{}, time.Second); err != nil {
		t.Errorf("Fetch failed: %v", err)
	}
}
