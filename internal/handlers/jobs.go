package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"reclaim/internal/apperr"
	mw "reclaim/internal/middleware"
	"reclaim/internal/services"
)

type JobsHandler struct {
	runner  *services.JobRunner
	timeout time.Duration
}

// NewJobsHandler bounds every HTTP-triggered run by timeout; zero means the
// request context alone.
func NewJobsHandler(runner *services.JobRunner, timeout time.Duration) *JobsHandler {
	return &JobsHandler{runner: runner, timeout: timeout}
}

// Run executes the job named in the path and answers its summary. Per-user
// failures are part of a 200 summary; only top-level failures answer 500.
func (h *JobsHandler) Run(w http.ResponseWriter, r *http.Request) {
	ctx := services.WithTrigger(r.Context(), mw.Subject(r.Context()))
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	report, err := h.runner.Run(ctx, chi.URLParam(r, "job"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Runs lists the recorded runs of a job, newest first. Accepts ?limit=n.
func (h *JobsHandler) Runs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, apperr.Validation("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	runs, err := h.runner.Runs(r.Context(), chi.URLParam(r, "job"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": ToRunDTOs(runs)})
}

// List names the jobs that can be triggered.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": h.runner.Jobs()})
}
