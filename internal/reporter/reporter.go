// Package reporter publishes pipeline outcomes. It is the only component
// that mutates the remote branch or the pull request conversation.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sevigo/patch-warden/internal/core"
	"github.com/sevigo/patch-warden/internal/formatter"
	gh "github.com/sevigo/patch-warden/internal/github"
	"github.com/sevigo/patch-warden/internal/gitutil"
)

// Reporter pushes commits and keeps the triggering comment in sync with the
// run's outcome.
type Reporter struct {
	client gh.Client
	git    *gitutil.Client
	runner *formatter.Runner
	logger *slog.Logger
}

// New returns a Reporter.
func New(client gh.Client, git *gitutil.Client, runner *formatter.Runner, logger *slog.Logger) *Reporter {
	return &Reporter{client: client, git: git, runner: runner, logger: logger}
}

// ReportSuccess pushes the commit, if any, and edits the triggering comment
// to the success body. The push is compare-and-swap on expectedHead, the
// branch revision the run validated and applied against; a lost race surfaces
// as PushConflict and nothing is retried. Comment editing failures are logged
// and swallowed: the commit already landed and must not be reported as a
// pipeline failure.
func (r *Reporter) ReportSuccess(ctx context.Context, repoPath, remote, expectedHead string, event *core.TriggerEvent, ref *core.PullRequestRef, blob *core.DiffBlob, outcome *core.CommitOutcome) error {
	if !outcome.NoOp {
		err := r.git.PushWithLease(ctx, repoPath, remote, ref.HeadRef, expectedHead)
		if err != nil {
			if errors.Is(err, gitutil.ErrPushRejected) {
				return core.NewPipelineError(core.FailurePushConflict, core.StageReported,
					fmt.Sprintf("branch %s advanced while the run was in flight", ref.HeadRef), err)
			}
			return core.NewPipelineError(core.FailurePushConflict, core.StageReported,
				"pushing the commit failed", err)
		}
		r.logger.InfoContext(ctx, "pushed commit",
			"sha", outcome.CommitSHA,
			"branch", ref.HeadRef,
			"remote", remote,
		)
	}

	body := gh.SuccessCommentBody(blob.Formatter, r.friendlyName(blob.Formatter))
	if _, err := gh.UpsertComment(ctx, r.client, ref.Owner, ref.Repo, ref.Number, blob.Formatter, body); err != nil {
		r.logger.ErrorContext(ctx, "failed to update comment after successful apply",
			"comment_id", event.CommentID,
			"error", err,
		)
	}
	return nil
}

// ReportFailure edits or posts the failure body naming the failed stage and
// reason. Errors here are logged and swallowed; the original failure is what
// callers act on.
func (r *Reporter) ReportFailure(ctx context.Context, ref *core.PullRequestRef, formatterName string, perr *core.PipelineError) {
	if formatterName == "" {
		formatterName = "clang-format"
	}
	body := gh.FailureCommentBody(formatterName, perr.Stage, perr.Reason)
	if _, err := gh.UpsertComment(ctx, r.client, ref.Owner, ref.Repo, ref.Number, formatterName, body); err != nil {
		r.logger.ErrorContext(ctx, "failed to report pipeline failure",
			"pr", ref.Number,
			"stage", perr.Stage,
			"error", err,
		)
	}
}

// PostPending upserts the check-mode comment carrying the diff and the
// opt-in checkbox. Returns the comment id.
func (r *Reporter) PostPending(ctx context.Context, ref *core.PullRequestRef, res formatter.Result) (int64, error) {
	body := gh.PendingCommentBody(res.Formatter, res.FriendlyName, res.Instructions, res.Diff, res.StartRev, res.EndRev)
	id, err := gh.UpsertComment(ctx, r.client, ref.Owner, ref.Repo, ref.Number, res.Formatter, body)
	if err != nil {
		return 0, fmt.Errorf("posting pending comment failed: %w", err)
	}
	return id, nil
}

// PostClean edits the formatter's comment to the success body when a
// re-check finds the branch clean. Missing comment means nothing to do.
func (r *Reporter) PostClean(ctx context.Context, ref *core.PullRequestRef, f formatter.Formatter) error {
	existing, err := gh.FindComment(ctx, r.client, ref.Owner, ref.Repo, ref.Number, f.Name())
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	return r.client.EditComment(ctx, ref.Owner, ref.Repo, existing.GetID(),
		gh.SuccessCommentBody(f.Name(), f.FriendlyName()))
}

func (r *Reporter) friendlyName(formatterName string) string {
	if f := r.runner.Select(formatterName); f != nil {
		return f.FriendlyName()
	}
	return formatterName
}
