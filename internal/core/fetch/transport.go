package fetch

import (
	"io"
	"net"
	"net/http"
	"time"
)

const (
	maxIdleConns        = 100
	maxIdleConnsPerHost = 10
	maxConnsPerHost     = 50

	maxRetries       = 3
	retryBackoffBase = 300 * time.Millisecond
)

// Transport is the pooled connection manager shared by every download in a
// process. It retries idempotent GET requests on transient 5xx responses and
// is explicitly closable for deterministic teardown.
type Transport struct {
	base *http.Transport
	rt   http.RoundTripper
}

// NewTransport creates a Transport with the fixed pool and retry policy.
func NewTransport() *Transport {
	base := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &Transport{
		base: base,
		rt:   &retryRoundTripper{next: base},
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.rt.RoundTrip(req)
}

// Close releases pooled connections.
func (t *Transport) Close() {
	t.base.CloseIdleConnections()
}

// retryRoundTripper retries GET requests on 500/502/503/504 with exponential
// backoff. Non-GET requests and network errors pass through untouched.
type retryRoundTripper struct {
	next http.RoundTripper
}

func (r *retryRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return r.next.RoundTrip(req)
	}

	for attempt := 0; ; attempt++ {
		resp, err := r.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if !retryableStatus(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		// Drain so the connection returns to the pool.
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		delay := retryBackoffBase << attempt
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(delay):
		}
	}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
