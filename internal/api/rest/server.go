package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fortuna/dubs/internal/runner"
	"github.com/fortuna/dubs/internal/service"
	"github.com/fortuna/dubs/internal/store"
)

// Dependencies are the services the REST API serves from
type Dependencies struct {
	DB       *store.Database
	Days     *service.DaysService
	Analysis *service.AnalysisService
	Runs     *runner.Service
	// BaseSpec seeds every run requested over the API
	BaseSpec runner.Spec
	// RunFeed, when set, is mounted at /ws/runs
	RunFeed http.Handler
}

// Server represents the REST API server
type Server struct {
	port    string
	server  *http.Server
	handler *Handler
	router  *mux.Router
}

// NewServer creates a new REST API server
func NewServer(port string, deps Dependencies) *Server {
	handler := NewHandler(deps)
	runHandler := NewRunHandler(deps.Runs, deps.BaseSpec)

	router := mux.NewRouter()

	// Apply middleware
	router.Use(RecoveryMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(CORSMiddleware)

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Cleaned datasets
	api.HandleFunc("/days", handler.GetDays).Methods("GET")
	api.HandleFunc("/games", handler.GetGames).Methods("GET")
	api.HandleFunc("/articles", handler.GetArticleDays).Methods("GET")
	api.HandleFunc("/sponsors/totals", handler.GetSponsorTotals).Methods("GET")
	api.HandleFunc("/trends/{keyword}", handler.GetTrend).Methods("GET")
	api.HandleFunc("/summaries", handler.GetSummaries).Methods("GET")

	// Analysis
	api.HandleFunc("/correlations", handler.ListCorrelations).Methods("GET")
	api.HandleFunc("/correlations/{name}", handler.GetCorrelation).Methods("GET")
	api.HandleFunc("/regressions", handler.GetRegressions).Methods("GET")

	// Pipeline runs
	api.HandleFunc("/runs", runHandler.HandleRunRequest).Methods("POST")
	api.HandleFunc("/runs/status", runHandler.HandleRunStatus).Methods("GET")

	if deps.RunFeed != nil {
		router.Handle("/ws/runs", deps.RunFeed)
	}

	return &Server{
		port:    port,
		handler: handler,
		router:  router,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the routed handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the REST API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
