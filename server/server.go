// Package server exposes the bot over HTTP. Turns arrive as JSON on
// POST /api/messages or as websocket frames on GET /api/stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	pkgerrors "github.com/jagmitg/botservice/pkg/errors"
	"github.com/jagmitg/botservice/runtime/logger"
	"github.com/jagmitg/botservice/runtime/types"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = ":3978"

	// defaultReadHeaderTimeout prevents Slowloris attacks.
	defaultReadHeaderTimeout = 10 * time.Second

	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 15 * time.Second
	defaultIdleTimeout  = 120 * time.Second

	// defaultMaxBodySize bounds a single turn (64 KiB).
	defaultMaxBodySize int64 = 64 << 10

	// defaultLimiterTTL is how long an idle conversation keeps its rate limiter.
	defaultLimiterTTL = 10 * time.Minute

	evictionInterval = time.Minute

	requestIDHeader = "X-Request-ID"
)

// TurnHandler runs one inbound turn and returns the activities to send back.
type TurnHandler interface {
	OnTurn(ctx context.Context, turn types.Turn) ([]types.Activity, error)
}

// MessageResponse is the body returned by POST /api/messages.
type MessageResponse struct {
	ConversationID string           `json:"conversationId"`
	Activities     []types.Activity `json:"activities"`
}

// ErrorResponse is the body written for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Option configures a [Server].
type Option func(*Server)

// WithAddr sets the listen address for ListenAndServe.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithReadTimeout sets the maximum duration for reading the entire request.
// Default: 15s.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) { s.readTimeout = d }
}

// WithWriteTimeout sets the maximum duration before timing out writes of
// the response. Default: 15s.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) { s.writeTimeout = d }
}

// WithIdleTimeout sets the keep-alive idle timeout. Default: 120s.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) { s.idleTimeout = d }
}

// WithMaxBodySize sets the maximum size of a turn in bytes. It bounds both
// request bodies and websocket frames. Default: 64 KiB.
func WithMaxBodySize(n int64) Option {
	return func(s *Server) { s.maxBodySize = n }
}

// WithRateLimit limits each conversation to rps turns per second with the
// given burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiters = nil
			return
		}
		s.limiters = newLimiterSet(rps, burst)
	}
}

// WithLimiterTTL sets how long an idle conversation keeps its limiter.
// Default: 10 minutes.
func WithLimiterTTL(d time.Duration) Option {
	return func(s *Server) { s.limiterTTL = d }
}

// Server serves a TurnHandler over HTTP and websockets.
type Server struct {
	handler   TurnHandler
	addr      string
	httpSrv   *http.Server
	httpSrvMu sync.Mutex
	shutdown  bool

	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration
	maxBodySize  int64

	limiters   *limiterSet
	limiterTTL time.Duration
	stopOnce   sync.Once
	stopCh     chan struct{}

	streams     *streamSet
	checkOrigin func(r *http.Request) bool
}

// New creates a server for handler.
func New(handler TurnHandler, opts ...Option) (*Server, error) {
	if handler == nil {
		return nil, pkgerrors.MissingDependency("server", "New", "handler")
	}
	s := &Server{
		handler:      handler,
		addr:         DefaultAddr,
		readTimeout:  defaultReadTimeout,
		writeTimeout: defaultWriteTimeout,
		idleTimeout:  defaultIdleTimeout,
		maxBodySize:  defaultMaxBodySize,
		limiterTTL:   defaultLimiterTTL,
		stopCh:       make(chan struct{}),
		streams:      newStreamSet(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiters != nil && s.limiterTTL > 0 {
		go s.evictionLoop()
	}
	return s, nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.addr }

// Handler returns the instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/messages", s.handleMessage)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return otelhttp.NewHandler(withRequestID(mux), "botservice")
}

// ListenAndServe starts the HTTP server on the configured address. It
// returns http.ErrServerClosed once Shutdown has been called.
func (s *Server) ListenAndServe() error {
	srv, err := s.newHTTPServer()
	if err != nil {
		return err
	}
	srv.Addr = s.addr
	return srv.ListenAndServe()
}

// Serve starts the HTTP server on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	srv, err := s.newHTTPServer()
	if err != nil {
		_ = ln.Close()
		return err
	}
	return srv.Serve(ln)
}

func (s *Server) newHTTPServer() (*http.Server, error) {
	s.httpSrvMu.Lock()
	defer s.httpSrvMu.Unlock()
	if s.shutdown {
		return nil, http.ErrServerClosed
	}
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		ReadTimeout:       s.readTimeout,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       s.idleTimeout,
	}
	return s.httpSrv, nil
}

// Shutdown stops the eviction loop, drains HTTP requests and closes open
// websocket connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.httpSrvMu.Lock()
	s.shutdown = true
	srv := s.httpSrv
	s.httpSrvMu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.streams.closeAll()
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodySize)

	var turn types.Turn
	if err := json.NewDecoder(r.Body).Decode(&turn); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "turn exceeds %d bytes", tooLarge.Limit)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid turn: %v", err)
		return
	}

	activities, err := s.runTurn(r.Context(), turn)
	if err != nil {
		s.writeTurnError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{ConversationID: turn.ConversationID, Activities: activities})
}

// runTurn applies the conversation's rate limit before handing the turn to the bot.
func (s *Server) runTurn(ctx context.Context, turn types.Turn) ([]types.Activity, error) {
	if s.limiters != nil && turn.ConversationID != "" {
		if ok, retry := s.limiters.allow(turn.ConversationID); !ok {
			return nil, &rateLimitedError{retryAfter: retry}
		}
	}
	activities, err := s.handler.OnTurn(ctx, turn)
	if err != nil {
		return nil, err
	}
	if activities == nil {
		activities = []types.Activity{}
	}
	return activities, nil
}

func (s *Server) writeTurnError(ctx context.Context, w http.ResponseWriter, err error) {
	var limited *rateLimitedError
	if errors.As(err, &limited) {
		w.Header().Set("Retry-After", strconv.Itoa(limited.retryAfterSeconds()))
		writeError(w, http.StatusTooManyRequests, "%s", err.Error())
		return
	}
	status := turnStatus(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "turn failed", "error", err)
		writeError(w, status, "turn failed")
		return
	}
	writeError(w, status, "%s", err.Error())
}

// turnStatus maps a turn error to an HTTP status.
func turnStatus(err error) int {
	if errors.Is(err, types.ErrInvalidTurn) {
		return http.StatusBadRequest
	}
	return pkgerrors.StatusCode(err, http.StatusInternalServerError)
}

type rateLimitedError struct {
	retryAfter time.Duration
}

func (e *rateLimitedError) Error() string {
	return "too many turns for this conversation"
}

func (e *rateLimitedError) retryAfterSeconds() int {
	secs := int(e.retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, ErrorResponse{Error: fmt.Sprintf(format, args...)})
}

// withRequestID tags the request context with the caller's request id, or a
// fresh one, and echoes it back.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

// evictionLoop drops idle rate limiters until stopCh is closed.
func (s *Server) evictionLoop() {
	ticker := time.NewTicker(evictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.limiters.evictIdle(now.Add(-s.limiterTTL))
		}
	}
}
