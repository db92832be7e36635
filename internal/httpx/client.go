// Package httpx builds the HTTP client shared by the oracle providers.
package httpx

import (
	"net/http"
	"time"
)

const DefaultTimeout = 90 * time.Second

// Timeout converts a configured number of seconds, falling back to DefaultTimeout when unset.
func Timeout(timeoutSeconds int) time.Duration {
	if timeoutSeconds > 0 {
		return time.Duration(timeoutSeconds) * time.Second
	}
	return DefaultTimeout
}

// NewClient returns a client whose requests are bounded by the configured timeout, so a hung
// provider surfaces as a transport error instead of stalling the run.
func NewClient(timeoutSeconds int) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = Timeout(timeoutSeconds)
	return &http.Client{
		Timeout:   Timeout(timeoutSeconds),
		Transport: transport,
	}
}
