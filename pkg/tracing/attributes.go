package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for poimap operations
const (
	// Command attributes
	AttrCommandName   = "poimap.command.name"
	AttrCommandStatus = "poimap.command.status"

	// External service attributes
	AttrServiceName = "poimap.service.name"
	AttrServiceURL  = "poimap.service.url"

	// Query and snapshot attributes
	AttrQueryTarget    = "poimap.query.target"
	AttrElementCount   = "poimap.snapshot.elements"
	AttrMalformedCount = "poimap.snapshot.malformed"
	AttrSnapshotPath   = "poimap.snapshot.path"
	AttrCacheHit       = "poimap.snapshot.cache_hit"

	// Analysis attributes
	AttrAttributeCount = "poimap.analysis.attributes"
	AttrIncomplete     = "poimap.analysis.incomplete"
	AttrMarkerCount    = "poimap.render.markers"

	// Rate limiting attributes
	AttrRateLimitService = "poimap.ratelimit.service"
	AttrRateLimitWaitMs  = "poimap.ratelimit.wait_ms"

	// HTTP transport attributes
	AttrHTTPStatusCode = "http.status_code"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Service names
const (
	ServiceOverpass = "overpass"
)

// CommandAttributes returns attributes for a CLI command run
func CommandAttributes(name, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCommandName, name),
		attribute.String(AttrCommandStatus, status),
	}
}

// SnapshotAttributes returns attributes describing a loaded snapshot
func SnapshotAttributes(path string, elements, malformed int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSnapshotPath, path),
		attribute.Int(AttrElementCount, elements),
		attribute.Int(AttrMalformedCount, malformed),
	}
}

// ErrorAttributes returns attributes for errors
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, "error"),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
