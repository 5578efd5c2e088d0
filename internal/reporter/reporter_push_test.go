package reporter

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sevigo/patch-warden/internal/core"
	"github.com/sevigo/patch-warden/internal/gitutil"
	"github.com/sevigo/patch-warden/mocks"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=warden-test",
		"GIT_AUTHOR_EMAIL=warden-test@example.com",
		"GIT_COMMITTER_NAME=warden-test",
		"GIT_COMMITTER_EMAIL=warden-test@example.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return strings.TrimSpace(string(out))
}

func initRemote(t *testing.T) string {
	t.Helper()
	remote := filepath.Join(t.TempDir(), "remote.git")
	runGit(t, "", "init", "--bare", remote)
	runGit(t, remote, "symbolic-ref", "HEAD", "refs/heads/main")
	return remote
}

func cloneRepo(t *testing.T, remote, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	runGit(t, "", "clone", remote, dir)
	return dir
}

func commitFile(t *testing.T, dir, name, content, message string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	runGit(t, dir, "add", "-A")
	runGit(t, dir, "commit", "-m", message)
	return runGit(t, dir, "rev-parse", "HEAD")
}

// A blob recorded against an older head that is still an ancestor of the
// branch passes validation; the push must then fast-forward on a lease naming
// the head the run actually validated, not the blob's older revision.
func TestReportSuccessFastForwardsOverOlderBlobHead(t *testing.T) {
	requireGit(t)
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	remote := initRemote(t)
	seed := cloneRepo(t, remote, "seed")
	runGit(t, seed, "symbolic-ref", "HEAD", "refs/heads/main")
	c1 := commitFile(t, seed, "a.txt", "one\n", "first")
	runGit(t, seed, "push", "origin", "main")
	c2 := commitFile(t, seed, "a.txt", "two\n", "second")
	runGit(t, seed, "push", "origin", "main")

	work := cloneRepo(t, remote, "work")
	c3 := commitFile(t, work, "a.txt", "three\n", "formatting")

	client.EXPECT().ListIssueComments(gomock.Any(), "llvm", "llvm-project", 42).Return(nil, nil)
	client.EXPECT().CreateComment(gomock.Any(), "llvm", "llvm-project", 42, gomock.Any()).Return(int64(1), nil)

	ref := &core.PullRequestRef{Owner: "llvm", Repo: "llvm-project", Number: 42, HeadRef: "main"}
	blob := &core.DiffBlob{Formatter: "clang-format", BaseSHA: "base", HeadSHA: c1}
	outcome := &core.CommitOutcome{CommitSHA: c3, Branch: "main"}

	err := newReporter(client).ReportSuccess(context.Background(), work, "origin", c2,
		&core.TriggerEvent{CommentID: 9}, ref, blob, outcome)
	require.NoError(t, err, "a fast-forward over an older recorded head must land")

	gitClient := gitutil.NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)))
	head, err := gitClient.RemoteHeadSHA(context.Background(), remote, "main", "")
	require.NoError(t, err)
	assert.Equal(t, c3, head)
}

func TestReportSuccessLostRaceIsPushConflict(t *testing.T) {
	requireGit(t)
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	remote := initRemote(t)
	seed := cloneRepo(t, remote, "seed")
	runGit(t, seed, "symbolic-ref", "HEAD", "refs/heads/main")
	c1 := commitFile(t, seed, "a.txt", "one\n", "first")
	runGit(t, seed, "push", "origin", "main")

	work := cloneRepo(t, remote, "work")
	c2 := commitFile(t, work, "a.txt", "two\n", "formatting")

	// Someone else pushes while the run is in flight.
	commitFile(t, seed, "b.txt", "other\n", "concurrent")
	runGit(t, seed, "push", "origin", "main")

	ref := &core.PullRequestRef{Owner: "llvm", Repo: "llvm-project", Number: 42, HeadRef: "main"}
	blob := &core.DiffBlob{Formatter: "clang-format", HeadSHA: c1}
	outcome := &core.CommitOutcome{CommitSHA: c2, Branch: "main"}

	err := newReporter(client).ReportSuccess(context.Background(), work, "origin", c1,
		&core.TriggerEvent{CommentID: 9}, ref, blob, outcome)

	pe, ok := core.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, core.FailurePushConflict, pe.Kind)
	assert.Equal(t, 6, core.ExitCodeFor(err))
}
