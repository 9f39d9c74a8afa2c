package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/specialistvlad/rendergraph/internal/ctxlog"
)

// Server exposes /health and /status for a running watch session.
type Server struct {
	tracker    *Tracker
	router     *mux.Router
	httpServer *http.Server
}

// NewServer creates a status server. It does not listen until Start.
func NewServer(tracker *Tracker) *Server {
	s := &Server{tracker: tracker, router: mux.NewRouter()}
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctxlog.FromContext(r.Context()).Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.tracker.Status())
}

// Start listens on port in the background. It returns once the listener is
// bound so that the caller sees address errors synchronously.
func (s *Server) Start(ctx context.Context, port int) (net.Addr, error) {
	logger := ctxlog.FromContext(ctx)
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("status server: %w", err)
	}
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("Status server starting.", "address", ln.Addr().String())
		// Serve returns ErrServerClosed on graceful shutdown.
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server failed unexpectedly.", "error", err)
		}
	}()
	return ln.Addr(), nil
}

// Shutdown stops the server, waiting up to five seconds for open requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Status server shut down gracefully.")
	return nil
}
