// Package web exposes the engine's results over a small JSON HTTP API.
package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/coinfolio/internal/domain"
	"github.com/vadiminshakov/coinfolio/internal/services/series"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

type portfolioEngine interface {
	Holdings() domain.Holdings
	CurrentValue(ctx context.Context) (decimal.Decimal, []domain.CurrencyValue, error)
	CostBasis(ctx context.Context) (map[string]domain.CostBasisRecord, error)
	HistoricalSeries(ctx context.Context) (*series.Result, error)
	RecentChanges(ctx context.Context, onlyTrades bool) ([]domain.WindowValue, error)
}

// Server serves portfolio results as JSON. It renders nothing; charting is a
// client concern.
type Server struct {
	Addr   string
	Engine portfolioEngine

	l *zap.Logger
}

// NewServer creates a new portfolio API server.
func NewServer(addr string, engine portfolioEngine, l *zap.Logger) *Server {
	return &Server{Addr: addr, Engine: engine, l: l}
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/portfolio/holdings", s.handleHoldings)
	mux.HandleFunc("/portfolio/value", s.handleValue)
	mux.HandleFunc("/portfolio/basis", s.handleBasis)
	mux.HandleFunc("/portfolio/series", s.handleSeries)
	mux.HandleFunc("/portfolio/changes", s.handleChanges)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.mux(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via
// ACME, plus an HTTP server on port 80 for the HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domain, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if domain == "" {
		return errors.New("no domain provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domain),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.mux(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		_ = httpsSrv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Warn("ACME challenge server stopped", zap.Error(err))
		}
	}()

	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.Engine.Holdings())
}

func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	total, breakdown, err := s.Engine.CurrentValue(r.Context())
	if err != nil {
		s.fail(w, "compute current value", err)
		return
	}
	s.writeJSON(w, struct {
		Total     decimal.Decimal        `json:"total"`
		Breakdown []domain.CurrencyValue `json:"breakdown"`
	}{Total: total, Breakdown: breakdown})
}

func (s *Server) handleBasis(w http.ResponseWriter, r *http.Request) {
	records, err := s.Engine.CostBasis(r.Context())
	if err != nil {
		s.fail(w, "compute cost basis", err)
		return
	}

	type basisEntry struct {
		Currency string          `json:"currency"`
		Total    decimal.Decimal `json:"total"`
		Basis    decimal.Decimal `json:"basis"`
	}
	out := make([]basisEntry, 0, len(records))
	for _, currency := range sortedKeys(records) {
		out = append(out, basisEntry{Currency: currency, Total: records[currency].Total, Basis: records[currency].Basis})
	}
	s.writeJSON(w, out)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	result, err := s.Engine.HistoricalSeries(r.Context())
	if err != nil {
		s.fail(w, "build historical series", err)
		return
	}
	s.writeJSON(w, result)
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	onlyTrades := r.URL.Query().Get("only_trades") == "true"
	changes, err := s.Engine.RecentChanges(r.Context(), onlyTrades)
	if err != nil {
		s.fail(w, "compute recent changes", err)
		return
	}
	s.writeJSON(w, changes)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.l.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	s.l.Warn(msg, zap.Error(err))
	http.Error(w, msg, http.StatusInternalServerError)
}

func sortedKeys(m map[string]domain.CostBasisRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
