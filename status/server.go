package status

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
)

const shutdownGrace = 5 * time.Second

// Server serves the diagnostics routes until its context is cancelled.
type Server struct {
	addr    string
	tracker *Tracker
	logger  hclog.Logger
}

func NewServer(addr string, tracker *Tracker, logger hclog.Logger) *Server {
	return &Server{addr: addr, tracker: tracker, logger: logger.Named("status")}
}

// Router exposes the routes for tests and embedding.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	return router
}

// Run blocks until ctx is cancelled, then shuts the listener down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:     s.addr,
		Handler:  s.Router(),
		ErrorLog: s.logger.StandardLogger(&hclog.StandardLoggerOptions{}),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("diagnostics listening", "addr", s.addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (s *Server) handleHealthz(rw http.ResponseWriter, r *http.Request) {
	rw.WriteHeader(http.StatusOK)
}

func (s *Server) handleStatus(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(s.tracker.Report()); err != nil {
		s.logger.Error("encoding status report", "error", err)
	}
}
