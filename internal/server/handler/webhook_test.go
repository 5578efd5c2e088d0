package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-github/v73/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/patch-warden/internal/config"
	"github.com/sevigo/patch-warden/internal/core"
)

const testSecret = "webhook-secret"

type captureDispatcher struct {
	events []*core.TriggerEvent
	err    error
}

func (c *captureDispatcher) Dispatch(_ context.Context, event *core.TriggerEvent) error {
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

func (c *captureDispatcher) Stop() {}

func newHandler(d core.JobDispatcher) *WebhookHandler {
	cfg := &config.Config{}
	cfg.GitHub.WebhookSecret = testSecret
	return NewWebhookHandler(cfg, d, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func signedRequest(t *testing.T, eventType string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/github", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", eventType)
	req.Header.Set("X-Hub-Signature-256", sig)
	return req
}

func checkboxEvent() *github.IssueCommentEvent {
	body := core.CommentMarkerPrefix + "clang-format-->\n" + core.CheckboxChecked
	return &github.IssueCommentEvent{
		Action: github.Ptr("edited"),
		Issue: &github.Issue{
			Number:           github.Ptr(42),
			PullRequestLinks: &github.PullRequestLinks{URL: github.Ptr("https://api.github.com/repos/llvm/llvm-project/pulls/42")},
		},
		Comment: &github.IssueComment{
			ID:   github.Ptr(int64(7)),
			Body: github.Ptr(body),
		},
		Repo: &github.Repository{
			Name:     github.Ptr("llvm-project"),
			FullName: github.Ptr("llvm/llvm-project"),
			CloneURL: github.Ptr("https://github.com/llvm/llvm-project.git"),
			Owner:    &github.User{Login: github.Ptr("llvm")},
		},
		Sender:       &github.User{Login: github.Ptr("contributor")},
		Installation: &github.Installation{ID: github.Ptr(int64(123))},
	}
}

func TestHandleRejectsBadSignature(t *testing.T) {
	d := &captureDispatcher{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/github", bytes.NewReader([]byte("{}")))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	newHandler(d).Handle(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, d.events)
}

func TestHandleDispatchesCheckboxTick(t *testing.T) {
	d := &captureDispatcher{}
	rec := httptest.NewRecorder()

	newHandler(d).Handle(rec, signedRequest(t, "issue_comment", checkboxEvent()))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, d.events, 1)
	assert.Equal(t, "contributor", d.events[0].Actor)
	assert.Equal(t, 42, d.events[0].PRNumber)
	assert.Equal(t, int64(7), d.events[0].CommentID)
}

func TestHandleIgnoresUntickedCheckbox(t *testing.T) {
	d := &captureDispatcher{}
	event := checkboxEvent()
	event.Comment.Body = github.Ptr(core.CommentMarkerPrefix + "clang-format-->\n" + core.CheckboxUnchecked)
	rec := httptest.NewRecorder()

	newHandler(d).Handle(rec, signedRequest(t, "issue_comment", event))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, d.events)
}

func TestHandleIgnoresOtherEventTypes(t *testing.T) {
	d := &captureDispatcher{}
	rec := httptest.NewRecorder()

	newHandler(d).Handle(rec, signedRequest(t, "push", &github.PushEvent{}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, d.events)
}

func TestHandleQueueFull(t *testing.T) {
	d := &captureDispatcher{err: assert.AnError}
	rec := httptest.NewRecorder()

	newHandler(d).Handle(rec, signedRequest(t, "issue_comment", checkboxEvent()))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
