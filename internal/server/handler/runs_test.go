package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/patch-warden/internal/core"
)

type stubStore struct {
	runs []*core.PatchRun
	err  error
}

func (s *stubStore) SaveRun(_ context.Context, run *core.PatchRun) error {
	s.runs = append(s.runs, run)
	return nil
}

func (s *stubStore) GetRunByCommentID(_ context.Context, _ int64) (*core.PatchRun, error) {
	return nil, nil
}

func (s *stubStore) ListRecentRuns(_ context.Context, _ int) ([]*core.PatchRun, error) {
	return s.runs, s.err
}

func TestRunsList(t *testing.T) {
	store := &stubStore{runs: []*core.PatchRun{
		{
			ID:           1,
			RepoFullName: "llvm/llvm-project",
			PRNumber:     42,
			CommentID:    7,
			Stage:        "reported",
			CommitSHA:    "abc123",
			CreatedAt:    time.Now(),
		},
	}}
	h := NewRunsHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp []runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "llvm/llvm-project", resp[0].RepoFullName)
	assert.Equal(t, "abc123", resp[0].CommitSHA)
}

func TestRunsListInvalidLimit(t *testing.T) {
	h := NewRunsHandler(&stubStore{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=bogus", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunsListStoreError(t *testing.T) {
	h := NewRunsHandler(&stubStore{err: assert.AnError}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
