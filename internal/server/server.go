// Package server exposes the backtest over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rxtech-lab/ema-backtest/internal/backtest"
	"github.com/rxtech-lab/ema-backtest/internal/config"
	"github.com/rxtech-lab/ema-backtest/internal/logger"
	"github.com/rxtech-lab/ema-backtest/internal/report"
	"github.com/rxtech-lab/ema-backtest/internal/types"
	"github.com/rxtech-lab/ema-backtest/internal/version"
	"github.com/rxtech-lab/ema-backtest/pkg/errors"
	"go.uber.org/zap"
)

// Server answers backtest requests. Query parameters override the base configuration.
type Server struct {
	base       config.Config
	runner     *backtest.Runner
	log        *logger.Logger
	router     *mux.Router
	httpServer *http.Server
	listener   net.Listener
}

// New creates a server whose runs use runner and default to base.
func New(base config.Config, runner *backtest.Runner, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}

	s := &Server{
		base:   base,
		runner: runner,
		log:    log,
		router: mux.NewRouter(),
	}

	s.router.Use(s.logRequests)
	s.router.HandleFunc("/api/backtest", s.handleBacktest).Methods(http.MethodGet)
	s.router.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)
	s.router.HandleFunc("/schema", s.handleSchema).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on address (":0" when empty) and serves in the background.
func (s *Server) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("HTTP server error", zap.Error(err))
		}
	}()

	s.log.Info("Server listening", zap.String("address", listener.Addr().String()))

	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.run(r)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, outcome.Report.Summary)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.run(r)
	if err != nil {
		s.writeError(w, err)

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := report.NewHTMLRenderer(w).Render(r.Context(), outcome.Report); err != nil {
		s.log.Error("Failed to render report", zap.Error(err))
	}
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	schema, err := s.base.GenerateSchemaJSON()
	if err != nil {
		s.writeError(w, err)

		return
	}

	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(schema))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.GetVersion(),
	})
}

func (s *Server) run(r *http.Request) (*backtest.Outcome, error) {
	cfg, err := s.configFromQuery(r)
	if err != nil {
		return nil, err
	}

	return s.runner.Run(r.Context(), backtest.RequestFromConfig(cfg))
}

// configFromQuery applies ticker, start, end, investment, ema and smoothing
// on top of the base configuration and validates the result.
func (s *Server) configFromQuery(r *http.Request) (*config.Config, error) {
	cfg := s.base
	query := r.URL.Query()

	if v := query.Get("ticker"); v != "" {
		cfg.Ticker = v
	}

	if v := query.Get("start"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "start must be YYYY-MM-DD, got %q", v)
		}

		cfg.StartDate = t
	}

	if v := query.Get("end"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "end must be YYYY-MM-DD, got %q", v)
		}

		cfg.EndDate = t
	}

	if v := query.Get("investment"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "investment must be a number, got %q", v)
		}

		cfg.InitialInvestment = f
	}

	if v := query.Get("ema"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "ema must be an integer, got %q", v)
		}

		cfg.EMAPeriod = n
	}

	if v := query.Get("smoothing"); v != "" {
		cfg.Smoothing = types.Smoothing(v)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Backtest request failed", zap.Int("status", status), zap.Error(err))
	}

	writeJSON(w, status, errorResponse{Error: err.Error(), Code: int(errors.GetCode(err))})
}

// StatusFor maps an error onto the HTTP status the server answers with.
func StatusFor(err error) int {
	switch {
	case errors.IsInsufficientDataError(err):
		return http.StatusUnprocessableEntity
	case errors.IsInvalidParameter(err):
		return http.StatusBadRequest
	case errors.IsUpstreamFetchFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("Handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("query", r.URL.RawQuery),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
