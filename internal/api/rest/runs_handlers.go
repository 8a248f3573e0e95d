package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fortuna/dubs/internal/runner"
	"github.com/fortuna/dubs/internal/store"
)

// RunHandler proxies API calls to the run service.
type RunHandler struct {
	service *runner.Service
	base    runner.Spec
}

// NewRunHandler wires the REST layer to the run service.
func NewRunHandler(service *runner.Service, base runner.Spec) *RunHandler {
	return &RunHandler{service: service, base: base}
}

type apiRunRequest struct {
	Featured    string `json:"featured"`
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
	DryRun      bool   `json:"dry_run"`
	Persist     *bool  `json:"persist"`
	Publish     *bool  `json:"publish"`
}

// HandleRunRequest handles POST /api/v1/runs
func (h *RunHandler) HandleRunRequest(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		respondError(w, http.StatusServiceUnavailable, "Runs are not enabled", nil)
		return
	}

	var req apiRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	spec := h.base
	spec.DryRun = req.DryRun
	if req.Featured != "" {
		spec.Featured = req.Featured
	}
	if req.Persist != nil {
		spec.Persist = *req.Persist
	}
	if req.Publish != nil {
		spec.Publish = *req.Publish
	}

	for _, bound := range []struct {
		raw  string
		name string
		dst  *time.Time
	}{
		{req.WindowStart, "window_start", &spec.WindowStart},
		{req.WindowEnd, "window_end", &spec.WindowEnd},
	} {
		if bound.raw == "" {
			continue
		}
		t, err := time.Parse(dateLayout, bound.raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid "+bound.name+" format (YYYY-MM-DD)", err)
			return
		}
		*bound.dst = t
	}

	run, err := h.service.Submit(r.Context(), spec)
	if err != nil {
		respondServiceError(w, "Failed to start run", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"run": runPayload(run),
	})
}

// HandleRunStatus handles GET /api/v1/runs/status
func (h *RunHandler) HandleRunStatus(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		respondError(w, http.StatusServiceUnavailable, "Runs are not enabled", nil)
		return
	}

	summary, err := h.service.Status(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status", err)
		return
	}

	respondJSON(w, http.StatusOK, buildStatusPayload(summary))
}

func buildStatusPayload(summary *runner.StatusSummary) map[string]interface{} {
	response := map[string]interface{}{
		"status":  "idle",
		"message": "No active runs",
	}

	if summary.ActiveRun != nil {
		response["status"] = summary.ActiveRun.Status
		response["message"] = summary.ActiveRun.Message
		response["active_run"] = runPayload(summary.ActiveRun)
	}

	history := make([]map[string]interface{}, 0, len(summary.History))
	for _, run := range summary.History {
		history = append(history, runPayload(run))
	}

	response["history"] = history
	return response
}

func runPayload(run *store.Run) map[string]interface{} {
	if run == nil {
		return nil
	}

	payload := map[string]interface{}{
		"run_id":        run.RunID,
		"status":        run.Status,
		"games":         run.Games,
		"articles":      run.Articles,
		"article_days":  run.ArticleDays,
		"trend_days":    run.TrendDays,
		"combined_days": run.CombinedDays,
		"created_at":    run.CreatedAt,
	}

	if run.Message != "" {
		payload["message"] = run.Message
	}
	if run.StartedAt.Valid {
		payload["started_at"] = run.StartedAt.Time
	}
	if run.FinishedAt.Valid {
		payload["finished_at"] = run.FinishedAt.Time
	}

	return payload
}
