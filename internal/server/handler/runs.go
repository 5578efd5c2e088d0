package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sevigo/patch-warden/internal/core"
	"github.com/sevigo/patch-warden/internal/storage"
)

// RunsHandler exposes the run ledger for dashboards and debugging.
type RunsHandler struct {
	store  storage.Store
	logger *slog.Logger
}

// NewRunsHandler creates a new RunsHandler.
func NewRunsHandler(store storage.Store, logger *slog.Logger) *RunsHandler {
	return &RunsHandler{store: store, logger: logger}
}

type runResponse struct {
	ID           int64     `json:"id"`
	RepoFullName string    `json:"repo_full_name"`
	PRNumber     int       `json:"pr_number"`
	CommentID    int64     `json:"comment_id"`
	Stage        string    `json:"stage"`
	FailureKind  string    `json:"failure_kind,omitempty"`
	CommitSHA    string    `json:"commit_sha,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// List returns the most recent runs, newest first. The optional "limit"
// query parameter caps the page size at 200.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(parsed, 200)
	}

	runs, err := h.store.ListRecentRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}

	resp := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunResponse(run))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode runs response", "error", err)
	}
}

func toRunResponse(run *core.PatchRun) runResponse {
	return runResponse{
		ID:           run.ID,
		RepoFullName: run.RepoFullName,
		PRNumber:     run.PRNumber,
		CommentID:    run.CommentID,
		Stage:        run.Stage,
		FailureKind:  run.FailureKind,
		CommitSHA:    run.CommitSHA,
		Detail:       run.Detail,
		CreatedAt:    run.CreatedAt,
	}
}
