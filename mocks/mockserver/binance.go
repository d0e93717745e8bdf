// Package mockserver provides a mock Binance server for testing.
// It serves the public klines endpoint from fixed daily price series.
package mockserver

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rxtech-lab/ema-backtest/internal/types"
)

const (
	defaultKlineLimit = 500
	maxKlineLimit     = 1000
	day               = 24 * time.Hour
)

// MockBinanceServer answers GET /api/v3/klines with daily klines whose close
// is the series price of that day.
type MockBinanceServer struct {
	mu sync.RWMutex

	httpServer *http.Server
	listener   net.Listener

	series   map[string]types.PriceSeries
	requests int
}

// apiError mirrors the body Binance sends on failure.
type apiError struct {
	Code    int64  `json:"code"`
	Message string `json:"msg"`
}

// NewMockBinanceServer creates a server for the given series, keyed by their symbol.
func NewMockBinanceServer(series ...types.PriceSeries) *MockBinanceServer {
	s := &MockBinanceServer{
		series: make(map[string]types.PriceSeries, len(series)),
	}

	for _, ps := range series {
		s.series[ps.Symbol] = ps
	}

	return s
}

// Start starts the mock server on the given address.
// If address is empty, a random loopback port is used.
func (s *MockBinanceServer) Start(address string) error {
	if address == "" {
		address = "127.0.0.1:0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener

	router := mux.NewRouter()
	router.HandleFunc("/api/v3/klines", s.handleKlines).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		_ = s.httpServer.Serve(listener)
	}()

	return nil
}

// Stop stops the mock server.
func (s *MockBinanceServer) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Close()
}

// URL returns the base URL to hand to the Binance client.
func (s *MockBinanceServer) URL() string {
	return "http://" + s.listener.Addr().String()
}

// Requests returns how many klines requests were served.
func (s *MockBinanceServer) Requests() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.requests
}

// handleKlines handles GET /api/v3/klines
func (s *MockBinanceServer) handleKlines(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests++
	s.mu.Unlock()

	query := r.URL.Query()
	symbol := query.Get("symbol")

	if query.Get("interval") != "1d" {
		writeError(w, http.StatusBadRequest, -1120, "Invalid interval.")

		return
	}

	s.mu.RLock()
	series, ok := s.series[symbol]
	s.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusBadRequest, -1121, "Invalid symbol.")

		return
	}

	startTime := parseMillis(query.Get("startTime"), 0)
	endTime := parseMillis(query.Get("endTime"), time.Now().UnixMilli())

	limit := defaultKlineLimit
	if v, err := strconv.Atoi(query.Get("limit")); err == nil && v > 0 {
		limit = min(v, maxKlineLimit)
	}

	// Convert to Binance kline format: [openTime, open, high, low, close, volume, closeTime, ...]
	klines := make([][]any, 0, limit)

	for _, p := range series.Points {
		openTime := p.Time.UnixMilli()
		if openTime < startTime || openTime > endTime {
			continue
		}

		price := strconv.FormatFloat(p.Price, 'f', 8, 64)
		klines = append(klines, []any{
			openTime,
			price,
			price,
			price,
			price,
			"0",
			p.Time.Add(day).UnixMilli() - 1,
			"0",
			0,
			"0",
			"0",
			"0",
		})

		if len(klines) == limit {
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(klines)
}

func parseMillis(value string, fallback int64) int64 {
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}

	return ms
}

func writeError(w http.ResponseWriter, status int, code int64, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: message})
}
