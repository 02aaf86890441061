// Package http serves health, readiness and metrics endpoints plus a
// read-only JSON view of the most recent pipeline run.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

// ResultProvider returns the last successful run, or nil before the first.
type ResultProvider interface {
	LastResult() *domain.RunResult
}

// Server exposes operational endpoints and the result API.
type Server struct {
	httpServer *http.Server
	results    ResultProvider
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api/v1 routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, results ResultProvider, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		results: results,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/summary", s.withResult(handleSummary))
	mux.HandleFunc("GET /api/v1/monthly", s.withResult(handleMonthly))
	mux.HandleFunc("GET /api/v1/forecast", s.withResult(handleForecast))
	mux.HandleFunc("GET /api/v1/climatology", s.withResult(handleClimatology))

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

type resultHandler func(w http.ResponseWriter, result *domain.RunResult)

// withResult answers 404 until a run has completed.
func (s *Server) withResult(h resultHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		result := s.results.LastResult()
		if result == nil {
			sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "no completed run"})
			return
		}
		h(w, result)
	}
}

func handleSummary(w http.ResponseWriter, result *domain.RunResult) {
	sharedobs.WriteJSON(w, http.StatusOK, result.Summary)
}

type monthlyResponse struct {
	domain.Aggregates
	ActualMonthly []domain.MonthlyAggregate `json:"actual_monthly"`
}

func handleMonthly(w http.ResponseWriter, result *domain.RunResult) {
	actual := result.ActualMonthly
	if actual == nil {
		actual = []domain.MonthlyAggregate{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, monthlyResponse{Aggregates: result.Aggregates, ActualMonthly: actual})
}

type forecastResponse struct {
	Target     string                  `json:"target"`
	Model      string                  `json:"model"`
	TrainStart domain.MonthKey         `json:"train_start"`
	TrainEnd   domain.MonthKey         `json:"train_end"`
	Forecasts  []domain.ForecastResult `json:"forecasts"`
	Accuracy   domain.ForecastAccuracy `json:"accuracy"`
}

func handleForecast(w http.ResponseWriter, result *domain.RunResult) {
	sharedobs.WriteJSON(w, http.StatusOK, forecastResponse{
		Target:     result.Summary.Target,
		Model:      result.Summary.Model,
		TrainStart: result.Summary.TrainStart,
		TrainEnd:   result.Summary.TrainEnd,
		Forecasts:  result.Forecasts,
		Accuracy:   result.Summary.Accuracy,
	})
}

func handleClimatology(w http.ResponseWriter, result *domain.RunResult) {
	sharedobs.WriteJSON(w, http.StatusOK, result.Climatology)
}
