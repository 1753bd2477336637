package httputil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientSingleton(t *testing.T) {
	// Verify that Client() returns the same instance for repeated calls
	c1 := Client(TierStandard)
	c2 := Client(TierStandard)

	if c1 != c2 {
		t.Error("Client() should return the same instance for same tier")
	}

	// Different tiers should have different clients
	if Client(TierFast) == Client(TierStandard) {
		t.Error("Different tiers should return different clients")
	}
}

func TestClientTimeouts(t *testing.T) {
	tests := []struct {
		tier TimeoutTier
		want time.Duration
	}{
		{TierFast, 5 * time.Second},
		{TierStandard, 15 * time.Second},
	}

	for _, tt := range tests {
		if c := Client(tt.tier); c.Timeout != tt.want {
			t.Errorf("Tier %d: got timeout %v, want %v", tt.tier, c.Timeout, tt.want)
		}
	}
}

func TestClientConnectionReuse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := Client(TierStandard)
	for i := range 10 {
		resp, err := client.Get(server.URL)
		if err != nil {
			t.Fatalf("Request %d failed: %v", i, err)
		}
		DrainAndClose(resp.Body)
	}
}

func TestReadResponseBody(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		maxSize int64
		wantLen int
	}{
		{
			name:    "normal read",
			input:   "hello world",
			maxSize: 1024,
			wantLen: 11,
		},
		{
			name:    "truncated read",
			input:   strings.Repeat("x", 1000),
			maxSize: 100,
			wantLen: 100, // Should be truncated
		},
		{
			name:    "default max size",
			input:   "test",
			maxSize: 0, // Should use default
			wantLen: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := strings.NewReader(tt.input)
			got, err := ReadResponseBody(r, tt.maxSize)
			if err != nil {
				t.Fatalf("ReadResponseBody() error = %v", err)
			}
			if len(got) != tt.wantLen {
				t.Errorf("ReadResponseBody() len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestDrainAndClose(t *testing.T) {
	// Create a reader that tracks if it was fully read
	data := []byte("test data")
	r := &trackingReader{Reader: bytes.NewReader(data)}

	closer := io.NopCloser(r)
	DrainAndClose(closer)

	if !r.fullyRead {
		t.Error("DrainAndClose should fully drain the body")
	}
}

type trackingReader struct {
	io.Reader
	fullyRead bool
}

func (r *trackingReader) Read(p []byte) (n int, err error) {
	n, err = r.Reader.Read(p)
	if err == io.EOF {
		r.fullyRead = true
	}
	return
}

func TestDrainAndCloseNil(t *testing.T) {
	// Should not panic on nil
	DrainAndClose(nil)
}
