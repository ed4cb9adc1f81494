package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/tphakala/audioroute/internal/logger"
)

// ShutdownTimeout bounds the graceful shutdown of the endpoint.
const ShutdownTimeout = 5 * time.Second

const debugPath = "/debug/pprof/"

// Endpoint serves /metrics and, optionally, the pprof handlers.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
	log           logger.Logger
}

// NewEndpoint creates an endpoint listening on listenAddress.
func NewEndpoint(listenAddress string, metrics *Metrics, debug bool) *Endpoint {
	mux := http.NewServeMux()
	metrics.RegisterHandlers(mux)
	if debug {
		RegisterDebugHandlers(mux)
	}
	return &Endpoint{
		server: &http.Server{
			Addr:              listenAddress,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listenAddress: listenAddress,
		metrics:       metrics,
		log:           logger.Global().Module("telemetry"),
	}
}

// Run serves until ctx is done and then shuts the server down.
func (e *Endpoint) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return err
	}
	return e.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (e *Endpoint) Serve(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() {
		e.log.Info("telemetry endpoint starting", logger.String("address", ln.Addr().String()))
		errc <- e.server.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	e.log.Info("stopping telemetry endpoint")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(shutdownCtx); err != nil {
		e.log.Error("telemetry endpoint shutdown error", logger.Error(err))
		return err
	}
	<-errc
	return nil
}

// Metrics returns the Metrics instance served by this endpoint.
func (e *Endpoint) Metrics() *Metrics {
	return e.metrics
}

// RegisterDebugHandlers adds pprof debugging routes to the provided mux.
func RegisterDebugHandlers(mux *http.ServeMux) {
	mux.HandleFunc(debugPath, pprof.Index)
	mux.HandleFunc(debugPath+"cmdline", pprof.Cmdline)
	mux.HandleFunc(debugPath+"profile", pprof.Profile)
	mux.HandleFunc(debugPath+"symbol", pprof.Symbol)
	mux.HandleFunc(debugPath+"trace", pprof.Trace)
	mux.Handle(debugPath+"goroutine", pprof.Handler("goroutine"))
	mux.Handle(debugPath+"heap", pprof.Handler("heap"))
}
