package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/fortuna/dubs/internal/analysis"
	"github.com/fortuna/dubs/internal/process"
	"github.com/fortuna/dubs/internal/runner"
	"github.com/fortuna/dubs/internal/service"
	"github.com/fortuna/dubs/internal/store"
)

const dateLayout = "2006-01-02"

// Handler contains dependencies for HTTP handlers
type Handler struct {
	db       *store.Database
	days     *service.DaysService
	analysis *service.AnalysisService
}

// NewHandler creates a new handler
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		db:       deps.DB,
		days:     deps.Days,
		analysis: deps.Analysis,
	}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "dubs",
	})
}

// GetDays returns combined days between optional start and end dates
func (h *Handler) GetDays(w http.ResponseWriter, r *http.Request) {
	start, end, ok := dateRange(w, r)
	if !ok {
		return
	}

	days, err := h.days.Days(r.Context(), start, end)
	if err != nil {
		respondServiceError(w, "Failed to build combined days", err)
		return
	}
	respondJSON(w, http.StatusOK, days)
}

// GetGames returns games, optionally for one season
func (h *Handler) GetGames(w http.ResponseWriter, r *http.Request) {
	season, ok := seasonParam(w, r)
	if !ok {
		return
	}

	games, err := h.days.Games(r.Context(), season)
	if err != nil {
		respondServiceError(w, "Failed to fetch games", err)
		return
	}
	respondJSON(w, http.StatusOK, games)
}

// GetArticleDays returns aggregated article days
func (h *Handler) GetArticleDays(w http.ResponseWriter, r *http.Request) {
	start, end, ok := dateRange(w, r)
	if !ok {
		return
	}

	days, err := h.days.ArticleDays(r.Context(), start, end)
	if err != nil {
		respondServiceError(w, "Failed to fetch article days", err)
		return
	}
	respondJSON(w, http.StatusOK, days)
}

// GetSponsorTotals returns mention totals per sponsor
func (h *Handler) GetSponsorTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.days.SponsorTotals(r.Context())
	if err != nil {
		respondServiceError(w, "Failed to fetch sponsor totals", err)
		return
	}
	respondJSON(w, http.StatusOK, totals)
}

// GetTrend returns one keyword's search-interest series
func (h *Handler) GetTrend(w http.ResponseWriter, r *http.Request) {
	keyword := mux.Vars(r)["keyword"]
	start, end, ok := dateRange(w, r)
	if !ok {
		return
	}

	trend, err := h.days.Trend(r.Context(), keyword, start, end)
	if err != nil {
		respondServiceError(w, "Failed to fetch trend", err)
		return
	}
	respondJSON(w, http.StatusOK, trend)
}

// GetSummaries returns per-season record summaries
func (h *Handler) GetSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.days.Summaries(r.Context())
	if err != nil {
		respondServiceError(w, "Failed to summarise seasons", err)
		return
	}
	respondJSON(w, http.StatusOK, summaries)
}

// ListCorrelations lists the standard correlation matrices
func (h *Handler) ListCorrelations(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.analysis.MatrixNames())
}

// GetCorrelation returns one standard correlation matrix
func (h *Handler) GetCorrelation(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	season, ok := seasonParam(w, r)
	if !ok {
		return
	}

	m, err := h.analysis.Correlation(r.Context(), name, season)
	if err != nil {
		respondServiceError(w, "Failed to compute correlation matrix", err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// GetRegressions fits the formula query parameter on each dataset
func (h *Handler) GetRegressions(w http.ResponseWriter, r *http.Request) {
	formula := r.URL.Query().Get("formula")
	if formula == "" {
		respondError(w, http.StatusBadRequest, "Missing formula parameter", nil)
		return
	}
	season, ok := seasonParam(w, r)
	if !ok {
		return
	}

	results, err := h.analysis.Regressions(r.Context(), formula, season)
	if err != nil {
		respondServiceError(w, "Failed to run regressions", err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// dateRange reads optional start/end query dates, defaulting to the analysed window
func dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	var bounds [2]*time.Time
	for i, key := range []string{"start", "end"} {
		raw := r.URL.Query().Get(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s date format (use YYYY-MM-DD)", key), err)
			return time.Time{}, time.Time{}, false
		}
		bounds[i] = &t
	}

	start, end := service.Window(bounds[0], bounds[1])
	if end.Before(start) {
		respondError(w, http.StatusBadRequest, "end date is before start date", nil)
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// seasonParam reads the optional season year; zero means every season
func seasonParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("season")
	if raw == "" || raw == analysis.AllDatasets {
		return 0, true
	}
	season, err := strconv.Atoi(raw)
	if err != nil || season <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid season", err)
		return 0, false
	}
	return season, true
}

// respondServiceError maps domain errors onto status codes
func respondServiceError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, analysis.ErrBadFormula), errors.Is(err, process.ErrUnknownColumn):
		status = http.StatusBadRequest
	case errors.Is(err, analysis.ErrInsufficientData), errors.Is(err, analysis.ErrSingular):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, runner.ErrRunActive):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log().Error(message, "err", err)
	}
	respondError(w, status, message, err)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log().Warn("failed to encode response", "err", err)
	}
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
