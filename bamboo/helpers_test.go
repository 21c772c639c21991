package bamboo

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const (
	testUser = "builder"
	testPass = "s3cret"
)

// newTestClient starts a fake Bamboo server and returns an authenticated
// client pointing at it. Retries wait milliseconds instead of seconds.
func newTestClient(t *testing.T, h http.Handler, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	rc := newTransport(zerolog.Nop())
	rc.RetryWaitMin = time.Millisecond
	rc.RetryWaitMax = 5 * time.Millisecond

	base := []Option{
		WithServerURL(srv.URL),
		WithCredentials(testUser, testPass),
		WithLogger(zerolog.Nop()),
		WithHTTPClient(rc),
	}
	return NewClient(append(base, opts...)...), srv
}

// countingHandler counts the requests that reach h.
type countingHandler struct {
	h     http.Handler
	calls int32
}

func (c *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&c.calls, 1)
	c.h.ServeHTTP(w, r)
}

func (c *countingHandler) Calls() int {
	return int(atomic.LoadInt32(&c.calls))
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}
