package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sevigo/patch-warden/internal/config"
	"github.com/sevigo/patch-warden/internal/core"
	"github.com/sevigo/patch-warden/internal/formatter"
	gh "github.com/sevigo/patch-warden/internal/github"
	"github.com/sevigo/patch-warden/internal/gitutil"
	"github.com/sevigo/patch-warden/internal/trust"
)

type fakeStore struct {
	runs []*core.PatchRun
}

func (f *fakeStore) SaveRun(_ context.Context, run *core.PatchRun) error {
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeStore) GetRunByCommentID(_ context.Context, commentID int64) (*core.PatchRun, error) {
	for i := len(f.runs) - 1; i >= 0; i-- {
		if f.runs[i].CommentID == commentID {
			return f.runs[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListRecentRuns(_ context.Context, _ int) ([]*core.PatchRun, error) {
	return f.runs, nil
}

func newTestJob(store *fakeStore) *ApplyJob {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewApplyJob(&config.Config{}, store, gitutil.NewClient(logger),
		trust.NewGate(logger), formatter.NewRunner(logger), logger).(*ApplyJob)
}

func TestAlreadyApplied(t *testing.T) {
	store := &fakeStore{}
	job := newTestJob(store)
	event := &core.TriggerEvent{CommentID: 7}

	assert.False(t, job.alreadyApplied(context.Background(), event, "head123"),
		"no prior run")

	store.runs = append(store.runs, &core.PatchRun{
		CommentID: 7,
		Stage:     string(core.StageReported),
		Detail:    "head123",
	})
	assert.True(t, job.alreadyApplied(context.Background(), event, "head123"),
		"successful run on the same head is a duplicate")
	assert.False(t, job.alreadyApplied(context.Background(), event, "head456"),
		"a new head revision allows another run")

	store.runs = []*core.PatchRun{{
		CommentID:   7,
		Stage:       string(core.StageValidated),
		FailureKind: string(core.FailureValidation),
		Detail:      "head123",
	}}
	assert.False(t, job.alreadyApplied(context.Background(), event, "head123"),
		"failed runs may be retried")
}

func TestRecordFailureStoresStageAndKind(t *testing.T) {
	store := &fakeStore{}
	job := newTestJob(store)
	event := &core.TriggerEvent{CommentID: 9, RepoFullName: "llvm/llvm-project", PRNumber: 42}

	perr := core.NewPipelineError(core.FailureAuthDenied, core.StageAuthorized, "not the author", nil)
	job.recordFailure(context.Background(), event, nil, perr)

	assert.Len(t, store.runs, 1)
	assert.Equal(t, string(core.StageAuthorized), store.runs[0].Stage)
	assert.Equal(t, string(core.FailureAuthDenied), store.runs[0].FailureKind)
	assert.Equal(t, "not the author", store.runs[0].Detail)
}

func TestValidationReason(t *testing.T) {
	reason := validationReason(&core.ValidationResult{
		Conflicts: []core.FileConflict{
			{Path: "clang/lib/Foo.cpp", Detail: "hunk at line 12 does not match"},
			{Detail: "branch was force-pushed"},
		},
	})
	assert.Contains(t, reason, "clang/lib/Foo.cpp")
	assert.Contains(t, reason, "hunk at line 12 does not match")
	assert.Contains(t, reason, "branch was force-pushed")

	assert.Equal(t, "the diff does not apply to the current branch state",
		validationReason(&core.ValidationResult{}))
}

func TestSuccessStatus(t *testing.T) {
	title, summary := successStatus(&core.CommitOutcome{CommitSHA: "abc123"})
	assert.Equal(t, "Patch applied", title)
	assert.Contains(t, summary, "applied")

	title, summary = successStatus(&core.CommitOutcome{NoOp: true})
	assert.Equal(t, "No changes needed", title)
	assert.Contains(t, summary, "already contains")

	title, _ = successStatus(nil)
	assert.Equal(t, "No changes needed", title)
}

func TestFormatterEnabled(t *testing.T) {
	assert.True(t, formatterEnabled(nil, "clang-format"))
	assert.True(t, formatterEnabled(&core.RepoConfig{}, "clang-format"),
		"empty list enables everything")

	cfg := &core.RepoConfig{Formatters: []string{"darker"}}
	assert.True(t, formatterEnabled(cfg, "darker"))
	assert.False(t, formatterEnabled(cfg, "clang-format"))
}

func TestFormatterFromEvent(t *testing.T) {
	body := gh.SuccessCommentBody("darker", "Python code formatter")
	assert.Equal(t, "darker", formatterFromEvent(&core.TriggerEvent{CommentBody: body}))
	assert.Empty(t, formatterFromEvent(&core.TriggerEvent{CommentBody: "plain comment"}))
}
