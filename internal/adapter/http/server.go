// Package http exposes the geocoding API plus health, readiness, and metrics
// endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parishstaq/geocoding-service/internal/domain"
	"github.com/parishstaq/geocoding-service/internal/geocoding"
)

// Geocoder is the service surface the HTTP API exposes.
type Geocoder interface {
	GeocodeAddress(ctx context.Context, street, city, state, zip string, forceRefresh bool) (*domain.GeocodeResult, error)
	BatchGeocode(ctx context.Context, inputs []domain.AddressInput, onProgress func(completed, total int)) []geocoding.BatchItem
	CacheStats(ctx context.Context) (*geocoding.CacheStats, error)
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the geocoding API over HTTP.
type Server struct {
	httpServer *http.Server
	geocoder   Geocoder
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the geocoding API, /healthz, /readyz,
// and /metrics routes.
func NewServer(addr string, geocoder Geocoder, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		geocoder: geocoder,
		logger:   logger,
	}

	mux.HandleFunc("POST /api/geocode", s.handleGeocode)
	mux.HandleFunc("POST /api/geocode/batch", s.handleBatchGeocode)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type geocodeRequest struct {
	domain.AddressInput
	ForceRefresh bool `json:"force_refresh"`
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	var req geocodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Street == "" || req.City == "" {
		writeError(w, http.StatusBadRequest, "street and city are required")
		return
	}

	result, err := s.geocoder.GeocodeAddress(r.Context(), req.Street, req.City, req.State, req.Zip, req.ForceRefresh)
	if err != nil {
		s.writeGeocodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type batchRequest struct {
	Addresses []domain.AddressInput `json:"addresses"`
}

type batchResponse struct {
	Items []geocoding.BatchItem `json:"items"`
	Total int                   `json:"total"`
}

func (s *Server) handleBatchGeocode(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Addresses) == 0 {
		writeError(w, http.StatusBadRequest, "addresses is required")
		return
	}

	items := s.geocoder.BatchGeocode(r.Context(), req.Addresses, nil)
	writeJSON(w, http.StatusOK, batchResponse{Items: items, Total: len(items)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.geocoder.CacheStats(r.Context())
	if err != nil {
		s.logger.Error("stats query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "stats query failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// writeGeocodeError maps service errors onto HTTP statuses: an address with no
// match is the caller's problem, a provider fault is an upstream one, and
// anything else is ours.
func (s *Server) writeGeocodeError(w http.ResponseWriter, err error) {
	var pErr *domain.ProviderError
	switch {
	case errors.Is(err, domain.ErrNoResults):
		writeError(w, http.StatusNotFound, "no results for address")
	case errors.As(err, &pErr):
		s.logger.Error("provider failure", "kind", pErr.Kind, "error", err)
		writeError(w, http.StatusBadGateway, "geocoding provider unavailable")
	default:
		s.logger.Error("geocode failed", "error", err)
		writeError(w, http.StatusInternalServerError, "geocode failed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
