package reporter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-github/v73/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sevigo/patch-warden/internal/core"
	"github.com/sevigo/patch-warden/internal/formatter"
	gh "github.com/sevigo/patch-warden/internal/github"
	"github.com/sevigo/patch-warden/internal/gitutil"
	"github.com/sevigo/patch-warden/mocks"
)

func newReporter(client gh.Client) *Reporter {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(client, gitutil.NewClient(logger), formatter.NewRunner(logger), logger)
}

func TestReportSuccessNoOpSkipsPush(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	ref := &core.PullRequestRef{Owner: "llvm", Repo: "llvm-project", Number: 42, HeadRef: "fix"}
	blob := &core.DiffBlob{Formatter: "clang-format"}
	outcome := &core.CommitOutcome{Branch: "fix", NoOp: true}

	existing := &github.IssueComment{
		ID:   github.Ptr(int64(7)),
		Body: github.Ptr(gh.MarkerFor("clang-format") + "\nold body"),
	}
	client.EXPECT().ListIssueComments(gomock.Any(), "llvm", "llvm-project", 42).
		Return([]*github.IssueComment{existing}, nil)
	client.EXPECT().EditComment(gomock.Any(), "llvm", "llvm-project", int64(7), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, _ int64, body string) error {
			assert.Contains(t, body, "passed the C/C++ code formatter")
			return nil
		})

	err := newReporter(client).ReportSuccess(context.Background(), "/tmp/repo", "origin", "head123",
		&core.TriggerEvent{CommentID: 7}, ref, blob, outcome)
	require.NoError(t, err)
}

func TestReportSuccessSwallowsCommentFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	ref := &core.PullRequestRef{Owner: "llvm", Repo: "llvm-project", Number: 42, HeadRef: "fix"}
	client.EXPECT().ListIssueComments(gomock.Any(), "llvm", "llvm-project", 42).
		Return(nil, errors.New("503"))

	err := newReporter(client).ReportSuccess(context.Background(), "/tmp/repo", "origin", "head123",
		&core.TriggerEvent{}, ref, &core.DiffBlob{Formatter: "darker"},
		&core.CommitOutcome{NoOp: true})
	assert.NoError(t, err, "comment failures after a landed run must not fail the pipeline")
}

func TestReportFailureUpsertsFailureBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	ref := &core.PullRequestRef{Owner: "llvm", Repo: "llvm-project", Number: 42}
	client.EXPECT().ListIssueComments(gomock.Any(), "llvm", "llvm-project", 42).
		Return(nil, nil)
	client.EXPECT().CreateComment(gomock.Any(), "llvm", "llvm-project", 42, gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, _ int, body string) (int64, error) {
			assert.Contains(t, body, "validated")
			assert.Contains(t, body, "hunks no longer match")
			return 11, nil
		})

	perr := core.NewPipelineError(core.FailureValidation, core.StageValidated, "hunks no longer match", nil)
	newReporter(client).ReportFailure(context.Background(), ref, "clang-format", perr)
}

func TestPostPendingCreatesComment(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	ref := &core.PullRequestRef{Owner: "llvm", Repo: "llvm-project", Number: 42}
	client.EXPECT().ListIssueComments(gomock.Any(), "llvm", "llvm-project", 42).
		Return(nil, nil)
	client.EXPECT().CreateComment(gomock.Any(), "llvm", "llvm-project", 42, gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, _ int, body string) (int64, error) {
			assert.Contains(t, body, core.CheckboxUnchecked)
			assert.Contains(t, body, gh.RangeMarker("base123", "head456"),
				"the comment must record the revision pair the diff was computed against")
			return 21, nil
		})

	id, err := newReporter(client).PostPending(context.Background(), ref, formatter.Result{
		Formatter:    "clang-format",
		FriendlyName: "C/C++ code formatter",
		Instructions: "git-clang-format --diff a b -- x.cpp",
		Diff:         "-a\n+b\n",
		StartRev:     "base123",
		EndRev:       "head456",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(21), id)
}

func TestPostCleanWithoutExistingComment(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	ref := &core.PullRequestRef{Owner: "llvm", Repo: "llvm-project", Number: 42}
	client.EXPECT().ListIssueComments(gomock.Any(), "llvm", "llvm-project", 42).
		Return(nil, nil)

	err := newReporter(client).PostClean(context.Background(), ref, &formatter.ClangFormat{})
	assert.NoError(t, err)
}
