// Package httputil provides shared HTTP plumbing: pooled clients for
// outbound calls and bounded-concurrency primitives for batch work.
package httputil

import (
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// MaxResponseSize caps response body reads so a misbehaving receiver cannot
// balloon memory.
const MaxResponseSize = 1 * 1024 * 1024 // 1MB

// Shared transport with connection pooling. Safe for concurrent use; reusing
// TCP connections matters when every escalation fires a webhook.
var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          50,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// TimeoutTier defines standard timeout categories for outbound calls.
type TimeoutTier int

const (
	// TierFast for health checks and pings (5s)
	TierFast TimeoutTier = iota
	// TierStandard for webhook deliveries and API calls (15s)
	TierStandard
)

var timeoutDurations = map[TimeoutTier]time.Duration{
	TierFast:     5 * time.Second,
	TierStandard: 15 * time.Second,
}

// Singleton clients per tier - initialized once, reused everywhere.
var (
	clientFast     *http.Client
	clientStandard *http.Client
	clientOnce     sync.Once
)

func initClients() {
	clientFast = &http.Client{
		Timeout:   timeoutDurations[TierFast],
		Transport: sharedTransport,
	}
	clientStandard = &http.Client{
		Timeout:   timeoutDurations[TierStandard],
		Transport: sharedTransport,
	}
}

// Client returns the shared HTTP client for the given timeout tier. Use this
// instead of constructing http.Client per request so the connection pool is
// actually shared.
func Client(tier TimeoutTier) *http.Client {
	clientOnce.Do(initClients)
	if tier == TierFast {
		return clientFast
	}
	return clientStandard
}

// ReadResponseBody reads a response body under a size limit.
func ReadResponseBody(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = MaxResponseSize
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// DrainAndClose drains and closes a response body so the underlying
// connection returns to the pool.
func DrainAndClose(body io.ReadCloser) {
	if body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, MaxResponseSize))
		_ = body.Close()
	}
}
