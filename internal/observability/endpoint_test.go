package observability

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerServesRoutingSeries(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics("session-1", "null")
	require.NoError(t, err)
	m.Routing.IncTopologyChange()

	mux := http.NewServeMux()
	m.RegisterHandlers(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `audioroute_topology_changes_total{session="session-1"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestNewMetricsUsesSeparateRegistries(t *testing.T) {
	t.Parallel()

	a, err := NewMetrics("a", "null")
	require.NoError(t, err)
	b, err := NewMetrics("b", "null")
	require.NoError(t, err)
	assert.NotSame(t, a.Registry(), b.Registry())
}

func TestEndpointServesUntilCancelled(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics("s", "null")
	require.NoError(t, err)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	e := NewEndpoint(ln.Addr().String(), m, true)
	ctx, cancel := context.WithCancel(t.Context())

	var wg sync.WaitGroup
	var serveErr error
	wg.Go(func() { serveErr = e.Serve(ctx, ln) })

	client := &http.Client{Timeout: 5 * time.Second}
	for _, path := range []string{"/metrics", "/debug/pprof/"} {
		resp, err := client.Get("http://" + ln.Addr().String() + path)
		require.NoError(t, err)
		_, _ = io.Copy(io.Discard, resp.Body)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	cancel()
	wg.Wait()
	require.NoError(t, serveErr)
	client.CloseIdleConnections()
}
