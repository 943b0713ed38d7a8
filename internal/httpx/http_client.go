package httpx

import (
	"net/http"
	"time"
)

const DefaultExternalHTTPTimeout = 90 * time.Second

// NewExternalClient returns the client used for outbound tracker and model
// calls. Non-positive timeouts fall back to DefaultExternalHTTPTimeout.
func NewExternalClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultExternalHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}
