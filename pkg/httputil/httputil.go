// Package httputil builds the outbound HTTP clients used by the service.
package httputil

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// DefaultRecognizerTimeout bounds one call to a hosted NLU service.
	DefaultRecognizerTimeout = 10 * time.Second
)

// NewHTTPClient returns a client with the given timeout whose transport
// records a client span per request and propagates trace headers.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
