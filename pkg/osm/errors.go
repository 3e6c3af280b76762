package osm

import (
	"fmt"
	"net/http"
)

// Common error guidance messages
const (
	GuidanceOverpassTimeout   = "Consider reducing the search area or raising overpass.timeout."
	GuidanceOverpassRateLimit = "The Overpass API is currently experiencing high load. Please try again in a minute."
	GuidanceOverpassSyntax    = "There's an issue with the query format. Check the bounding box or area expression."
	GuidanceOverpassMemory    = "The query requires too much memory. Try reducing the search area."
	GuidanceNetworkError      = "Check your internet connection and try again."
	GuidanceDataError         = "The data received was incomplete or malformed."
	GuidanceGeneral           = "Please try again later or modify your request parameters."
)

// FetchErrorKind classifies retrieval failures.
type FetchErrorKind int

const (
	FetchNetwork   FetchErrorKind = iota + 1 // transport failure or timeout
	FetchBadStatus                           // non-2xx response
	FetchDecode                              // body is not the expected schema
)

// String returns the kind name
func (k FetchErrorKind) String() string {
	switch k {
	case FetchNetwork:
		return "network"
	case FetchBadStatus:
		return "bad_status"
	case FetchDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// FetchError is returned by Client.Fetch. It is never retried.
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int    // set for FetchBadStatus
	Body       string // response excerpt for FetchBadStatus
	Query      string
	Err        error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	var msg string
	switch e.Kind {
	case FetchBadStatus:
		msg = fmt.Sprintf("overpass returned status %d", e.StatusCode)
		if e.Body != "" {
			msg += ": " + e.Body
		}
	case FetchDecode:
		msg = fmt.Sprintf("failed to decode overpass response: %v", e.Err)
	default:
		msg = fmt.Sprintf("overpass request failed: %v", e.Err)
	}
	if g := e.Guidance(); g != "" {
		return msg + ". " + g
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Guidance returns a hint on how to recover from the failure.
func (e *FetchError) Guidance() string {
	switch e.Kind {
	case FetchNetwork:
		return GuidanceNetworkError
	case FetchDecode:
		return GuidanceDataError
	case FetchBadStatus:
		switch e.StatusCode {
		case http.StatusTooManyRequests:
			return GuidanceOverpassRateLimit
		case http.StatusBadRequest:
			return GuidanceOverpassSyntax
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return GuidanceOverpassTimeout
		case http.StatusInsufficientStorage:
			return GuidanceOverpassMemory
		}
		return GuidanceGeneral
	}
	return ""
}

// SchemaError means the document is not a snapshot at all: it is not a JSON
// object, or a required top-level key is missing.
type SchemaError struct {
	Key string // missing or mistyped key, empty when the document is not JSON
	Err error
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("invalid JSON document: %v", e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("invalid %q key: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("%q key not found", e.Key)
}

// Unwrap returns the underlying cause.
func (e *SchemaError) Unwrap() error {
	return e.Err
}

// MalformedElementError describes one element that Parse skipped.
type MalformedElementError struct {
	Index  int    // position in the elements array
	ID     *int64 // nil when the id itself is missing
	Type   string
	Reason string
}

// Error implements the error interface
func (e *MalformedElementError) Error() string {
	if e.ID != nil {
		return fmt.Sprintf("element %d (%s %d): %s", e.Index, e.Type, *e.ID, e.Reason)
	}
	return fmt.Sprintf("element %d: %s", e.Index, e.Reason)
}
