// Package devtools serves a store registry over HTTP for inspection and
// manual dispatch, with a websocket stream of snapshots per store.
//
// Routes:
//
//	GET  /stores                                   store names
//	GET  /stores/{store}                           current snapshot
//	GET  /stores/{store}/ws                        snapshot stream
//	POST /stores/{store}/actions/{action}          dispatch, body {"args": [...]}
//	POST /stores/{store}/actions/{action}/reset    reset an async slot
//	POST /stores/{store}/actions/{action}/cancel   cancel the call in flight
//
// Async dispatches return 202 immediately unless ?wait=true is given.
package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vango-dev/vstore/pkg/store"
)

// Server is the devtools HTTP server.
type Server struct {
	reg             *store.Registry
	router          chi.Router
	hub             *hub
	logger          *slog.Logger
	metricsPath     string
	gatherer        prometheus.Gatherer
	shutdownTimeout time.Duration
	httpServer      *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics exposes g at path in the Prometheus text format.
func WithMetrics(path string, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.gatherer = g
	}
}

// WithShutdownTimeout bounds graceful shutdown (default: 10s).
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// New creates a server for reg.
func New(reg *store.Registry, opts ...Option) *Server {
	s := &Server{
		reg:             reg,
		logger:          slog.Default().With("component", "devtools"),
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newHub(s.logger)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/stores", s.handleList)
	r.Route("/stores/{store}", func(r chi.Router) {
		r.Get("/", s.handleSnapshot)
		r.Get("/ws", s.handleWebSocket)
		r.Post("/actions/{action}", s.handleDispatch)
		r.Post("/actions/{action}/reset", s.handleReset)
		r.Post("/actions/{action}/cancel", s.handleCancel)
	})

	if s.gatherer != nil {
		path := s.metricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	return s.hub.count()
}

// Run listens on addr and serves until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("devtools: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is like Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("devtools server starting", "address", ln.Addr().String())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes websocket clients and gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	s.hub.closeAll()
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}
	s.logger.Info("devtools server shutdown complete")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) lookup(r *http.Request) (*store.Store, error) {
	return s.reg.Store(chi.URLParam(r, "store"))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"stores": s.reg.Names()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	st, err := s.lookup(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st.Snapshot())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	st, err := s.lookup(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.serve(w, r, st)
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	st, err := s.lookup(r)
	if err != nil {
		writeError(w, err)
		return
	}
	name := chi.URLParam(r, "action")

	var req DispatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	kind, _ := st.Kind(name)
	switch kind {
	case store.FieldSync:
		action, _ := st.Sync(name)
		out := action.DispatchContext(r.Context(), req.Args...)
		writeJSON(w, http.StatusOK, DispatchResponse{
			Status:   out.Status.String(),
			Snapshot: st.Snapshot(),
		})

	case store.FieldAsync:
		action, _ := st.Async(name)
		// The call outlives the request unless the client waits for it.
		ctx := context.WithoutCancel(r.Context())
		f := action.Dispatch(ctx, req.Args...)
		if r.URL.Query().Get("wait") != "true" {
			writeJSON(w, http.StatusAccepted, DispatchResponse{
				CallID: f.Call().ID,
				Status: StatusStarted,
			})
			return
		}
		out, err := f.Wait(r.Context())
		if err != nil {
			writeError(w, fmt.Errorf("%w: call %s: %v", errWaitAborted, f.Call().ID, err))
			return
		}
		slot := action.Slot()
		writeJSON(w, http.StatusOK, DispatchResponse{
			CallID: f.Call().ID,
			Status: out.Status.String(),
			Slot:   &slot,
		})

	default:
		writeError(w, fmt.Errorf("%w: %q in store %q", store.ErrUnknownAction, name, st.Name()))
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	action, err := s.asyncAction(r)
	if err != nil {
		writeError(w, err)
		return
	}
	action.Reset()
	slot := action.Slot()
	writeJSON(w, http.StatusOK, DispatchResponse{Status: "reset", Slot: &slot})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	action, err := s.asyncAction(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": action.Cancel()})
}

func (s *Server) asyncAction(r *http.Request) (*store.AsyncAction, error) {
	st, err := s.lookup(r)
	if err != nil {
		return nil, err
	}
	return st.Async(chi.URLParam(r, "action"))
}

// decodeBody reads an optional JSON body.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: %v", errBadRequest, err)
}
