package prometheus

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// defaultReadHeaderTimeout is the timeout for reading request headers.
	defaultReadHeaderTimeout = 10 * time.Second

	// healthCheckTimeout bounds a single /health probe.
	healthCheckTimeout = 2 * time.Second
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Exporter serves Prometheus metrics and a health probe over HTTP.
type Exporter struct {
	addr     string
	server   *http.Server
	registry *prometheus.Registry
	checks   map[string]HealthCheck
	mu       sync.Mutex
	started  bool
	closed   bool
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithRegistry uses registry instead of a fresh one with the runtime metrics.
func WithRegistry(registry *prometheus.Registry) ExporterOption {
	return func(e *Exporter) { e.registry = registry }
}

// WithHealthCheck adds a named dependency check to /health.
func WithHealthCheck(name string, check HealthCheck) ExporterOption {
	return func(e *Exporter) { e.checks[name] = check }
}

// NewExporter creates an exporter that serves at addr. Without WithRegistry
// the registry holds the dialog runtime metrics plus Go and process collectors.
func NewExporter(addr string, opts ...ExporterOption) *Exporter {
	e := &Exporter{addr: addr, checks: map[string]HealthCheck{}}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = prometheus.NewRegistry()
		for _, collector := range allMetrics {
			e.registry.MustRegister(collector)
		}
		e.registry.MustRegister(collectors.NewGoCollector())
		e.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return e
}

// Registry returns the underlying Prometheus registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Addr returns the listen address.
func (e *Exporter) Addr() string {
	return e.addr
}

// Handler returns the mux serving /metrics and /health.
func (e *Exporter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", e.serveHealth)
	return mux
}

func (e *Exporter) serveHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	for name, check := range e.checks {
		if err := check(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(name + ": " + err.Error()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (e *Exporter) Start() error {
	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return err
	}
	return e.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (e *Exporter) Serve(ln net.Listener) error {
	e.mu.Lock()
	if e.started || e.closed {
		e.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	e.server = &http.Server{
		Handler:           e.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	e.started = true
	srv := e.server
	e.mu.Unlock()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the exporter. A later Start or Serve returns
// immediately.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	if e.server != nil && e.started {
		e.started = false
		return e.server.Shutdown(ctx)
	}
	return nil
}

// MustRegister registers additional collectors with the exporter's registry.
func (e *Exporter) MustRegister(cs ...prometheus.Collector) {
	e.registry.MustRegister(cs...)
}
