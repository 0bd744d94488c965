// Package api exposes the rule engine over HTTP: single and bulk rule
// application, rule suggestion and rule management.
package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Veraticus/bankrules/internal/model"
	"github.com/gorilla/mux"
)

// SourceAPI is the bulk run source recorded for runs started over HTTP.
const SourceAPI = "api"

// Engine is the part of the rule engine served over HTTP.
type Engine interface {
	ApplyRulesToTransaction(ctx context.Context, transactionID string) (model.EvaluationResult, error)
	BulkApply(ctx context.Context, filter model.BulkFilter) (model.BulkSummary, error)
	SuggestRule(ctx context.Context, transactionID string) (model.RuleDraft, error)
}

// Store holds rules and bulk run history.
type Store interface {
	CreateBankRule(ctx context.Context, rule *model.BankRule) error
	GetBankRule(ctx context.Context, id int) (*model.BankRule, error)
	ListBankRules(ctx context.Context) ([]model.BankRule, error)
	UpdateBankRule(ctx context.Context, rule *model.BankRule) error
	DeleteBankRule(ctx context.Context, id int) error
	RecordBulkRun(ctx context.Context, run *model.BulkRun) error
	ListBulkRuns(ctx context.Context, limit int) ([]model.BulkRun, error)
}

// Server represents the API server.
type Server struct {
	engine Engine
	store  Store
	router *mux.Router
	logger *slog.Logger
	now    func() time.Time
	tls    *tls.Config
}

// NewServer creates a new API server.
func NewServer(engine Engine, store Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine: engine,
		store:  store,
		router: mux.NewRouter(),
		logger: logger.With("component", "api"),
		now:    time.Now,
	}
	s.RegisterRoutes()
	return s
}

// RegisterRoutes registers all API routes.
func (s *Server) RegisterRoutes() {
	s.router.Use(s.logRequests)

	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/transactions/{id}/apply-rules", s.applyRules).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id}/suggest-rule", s.suggestRule).Methods(http.MethodGet)

	api.HandleFunc("/bank-rules", s.listRules).Methods(http.MethodGet)
	api.HandleFunc("/bank-rules", s.createRule).Methods(http.MethodPost)
	api.HandleFunc("/bank-rules/bulk-apply", s.bulkApply).Methods(http.MethodPost)
	api.HandleFunc("/bank-rules/{id:[0-9]+}", s.getRule).Methods(http.MethodGet)
	api.HandleFunc("/bank-rules/{id:[0-9]+}", s.updateRule).Methods(http.MethodPut)
	api.HandleFunc("/bank-rules/{id:[0-9]+}", s.deleteRule).Methods(http.MethodDelete)

	api.HandleFunc("/bulk-runs", s.listBulkRuns).Methods(http.MethodGet)
}

// UseTLS makes the server speak HTTPS with cfg.
func (s *Server) UseTLS(cfg *tls.Config) {
	s.tls = cfg
}

// Handler returns the HTTP handler for the API server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener, shutdownTimeout)
}

// Serve serves on an existing listener until ctx is canceled.
func (s *Server) Serve(ctx context.Context, listener net.Listener, shutdownTimeout time.Duration) error {
	if s.tls != nil {
		listener = tls.NewListener(listener, s.tls)
	}
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "address", listener.Addr().String())
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	s.logger.Info("api server stopped")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
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

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
