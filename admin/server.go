package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/health"
	"github.com/c360/rtkit/manager"
)

// HealthName is the component name reported at the root of /health.
const HealthName = "rtcd"

// Server is the admin HTTP server.
type Server struct {
	addr    string
	rt      *manager.Runtime
	monitor *health.Monitor
	logger  *slog.Logger
	router  *mux.Router

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan error
}

// NewServer creates a server for rt listening on addr. A nil monitor derives
// health from rt alone.
func NewServer(addr string, rt *manager.Runtime, monitor *health.Monitor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if monitor == nil {
		monitor = health.NewMonitor(rt)
	}
	s := &Server{
		addr:    addr,
		rt:      rt,
		monitor: monitor,
		logger:  logger.With("component", "admin"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.NotFoundHandler = http.HandlerFunc(s.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)

	r.HandleFunc("/api/components", s.listComponents).Methods(http.MethodGet)
	r.HandleFunc("/api/components/{name}", s.getComponent).Methods(http.MethodGet)
	r.HandleFunc("/api/components/{name}/{action}", s.componentAction).Methods(http.MethodPost)
	r.HandleFunc("/api/contexts", s.listContexts).Methods(http.MethodGet)
	r.HandleFunc("/api/contexts/{id}/tick", s.tick).Methods(http.MethodPost)
	r.HandleFunc("/api/contexts/{id}/rate", s.setRate).Methods(http.MethodPut)
	r.HandleFunc("/api/connectors", s.listConnectors).Methods(http.MethodGet)
	r.HandleFunc("/api/connectors", s.createConnector).Methods(http.MethodPost)
	r.HandleFunc("/api/connectors/{id}", s.deleteConnector).Methods(http.MethodDelete)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	if reg := s.rt.Metrics(); reg != nil {
		r.Handle("/metrics", reg.Handler()).Methods(http.MethodGet)
	}
	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "AdminServer", "Start",
			"cannot start server that is already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.WrapFatal(err, "AdminServer", "Start", fmt.Sprintf("listen on %s", s.addr))
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	done := make(chan error, 1)
	s.server, s.listener, s.done = srv, listener, done

	go func() {
		err := srv.Serve(listener)
		if err == http.ErrServerClosed {
			err = nil
		}
		if err != nil {
			s.logger.Error("admin server stopped", "error", err)
		}
		done <- err
	}()

	s.logger.Info("admin API listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop shuts the server down gracefully. Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.server, s.done
	s.server, s.listener, s.done = nil, nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "AdminServer", "Stop", "shutdown HTTP server")
	}
	return <-done
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
