package patch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sevigo/patch-warden/internal/core"
	"github.com/sevigo/patch-warden/internal/gitutil"
)

// Identity is the git author and committer used for automation commits.
type Identity struct {
	Name  string
	Email string
}

// Applicator lands validated diff blobs as exactly one commit on the
// checkout's current branch.
type Applicator struct {
	git      *gitutil.Client
	identity Identity
	logger   *slog.Logger
}

// NewApplicator returns a new Applicator committing as the given identity.
func NewApplicator(git *gitutil.Client, identity Identity, logger *slog.Logger) *Applicator {
	return &Applicator{git: git, identity: identity, logger: logger}
}

// CommitMessage renders the deterministic commit message for a run. The
// triggering comment id is embedded so the commit can be traced back to the
// opt-in that caused it.
func CommitMessage(formatter string, prNumber int, commentID int64) string {
	return fmt.Sprintf("Apply %s suggestions from PR #%d\n\nRequested via comment %d.", formatter, prNumber, commentID)
}

// Apply lands the blob on the branch checked out at repoPath. The worktree
// is reset to its prior HEAD on any mid-apply error so a failed run leaves
// no partial state behind.
func (a *Applicator) Apply(ctx context.Context, repoPath, branch string, blob *core.DiffBlob, message string) (*core.CommitOutcome, error) {
	if blob.IsEmpty() {
		a.logger.InfoContext(ctx, "empty diff, nothing to apply", "branch", branch)
		return &core.CommitOutcome{Branch: branch, NoOp: true}, nil
	}

	// A blob whose reverse already applies is contained in the branch.
	// Ticking the box twice must not produce a second commit.
	if a.git.ApplyReverseCheck(ctx, repoPath, blob.Content) {
		a.logger.InfoContext(ctx, "diff already contained in branch", "branch", branch, "formatter", blob.Formatter)
		return &core.CommitOutcome{Branch: branch, NoOp: true}, nil
	}

	priorHead, err := a.git.HeadSHA(ctx, repoPath)
	if err != nil {
		return nil, core.NewPipelineError(core.FailureApply, core.StageApplied, "could not record prior HEAD", err)
	}

	if err := a.git.Apply(ctx, repoPath, blob.Content); err != nil {
		a.rollback(ctx, repoPath, priorHead)
		return nil, core.NewPipelineError(core.FailureApply, core.StageApplied, "applying the diff failed", err)
	}

	if err := a.git.AddAll(ctx, repoPath); err != nil {
		a.rollback(ctx, repoPath, priorHead)
		return nil, core.NewPipelineError(core.FailureApply, core.StageApplied, "staging the changes failed", err)
	}

	sha, err := a.git.Commit(repoPath, message, a.identity.Name, a.identity.Email)
	if err != nil {
		a.rollback(ctx, repoPath, priorHead)
		return nil, core.NewPipelineError(core.FailureApply, core.StageApplied, "creating the commit failed", err)
	}

	a.logger.InfoContext(ctx, "created commit",
		"sha", sha,
		"branch", branch,
		"formatter", blob.Formatter,
		"files", len(Paths(string(blob.Content))),
	)
	return &core.CommitOutcome{CommitSHA: sha, Branch: branch}, nil
}

func (a *Applicator) rollback(ctx context.Context, repoPath, head string) {
	if err := a.git.ResetHard(ctx, repoPath, head); err != nil {
		a.logger.ErrorContext(ctx, "rollback failed, worktree may be dirty", "head", head, "error", err)
	}
}
