package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sevigo/patch-warden/internal/config"
	"github.com/sevigo/patch-warden/internal/core"
	"github.com/sevigo/patch-warden/internal/formatter"
	"github.com/sevigo/patch-warden/internal/github"
	"github.com/sevigo/patch-warden/internal/gitutil"
	"github.com/sevigo/patch-warden/internal/patch"
	"github.com/sevigo/patch-warden/internal/reporter"
	"github.com/sevigo/patch-warden/internal/resolver"
	"github.com/sevigo/patch-warden/internal/storage"
	"github.com/sevigo/patch-warden/internal/trust"
)

const cloneTimeout = 2 * time.Minute

// ApplyJob runs one patch pipeline instance end to end:
// authorize the actor, resolve the diff from the triggering comment,
// validate it against the live branch, land it as a single commit, and
// report the outcome.
type ApplyJob struct {
	cfg    *config.Config
	store  storage.Store
	git    *gitutil.Client
	gate   *trust.Gate
	runner *formatter.Runner
	logger *slog.Logger
}

// NewApplyJob creates a new ApplyJob.
func NewApplyJob(cfg *config.Config, store storage.Store, git *gitutil.Client, gate *trust.Gate, runner *formatter.Runner, logger *slog.Logger) core.Job {
	if cfg == nil {
		panic("config cannot be nil")
	}
	if store == nil {
		panic("store cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &ApplyJob{cfg: cfg, store: store, git: git, gate: gate, runner: runner, logger: logger}
}

// Run executes the pipeline for a trigger event. The returned error, if any,
// is a core.PipelineError naming the failed stage.
func (j *ApplyJob) Run(ctx context.Context, event *core.TriggerEvent) error {
	j.logger.Info("starting patch application run",
		"repo", event.RepoFullName,
		"pr", event.PRNumber,
		"actor", event.Actor,
		"comment_id", event.CommentID,
	)

	ghClient, token, err := github.CreateInstallationClient(ctx, j.cfg, event.InstallationID, j.logger)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	res := resolver.New(ghClient, j.runner, j.logger)
	rep := reporter.New(ghClient, j.git, j.runner, j.logger)

	ref, err := res.RefFromAPI(ctx, event.RepoOwner, event.RepoName, event.PRNumber)
	if err != nil {
		j.recordFailure(ctx, event, nil, err)
		return err
	}

	// A comment whose opt-in already produced a commit on this exact head
	// must not run again. Reverse-apply catches most duplicates later; this
	// guard catches redelivered webhooks before any clone happens.
	if j.alreadyApplied(ctx, event, ref.HeadSHA) {
		j.logger.Info("duplicate trigger, run already completed for this head",
			"comment_id", event.CommentID, "head", ref.HeadSHA)
		return nil
	}

	status := github.NewStatusUpdater(ghClient)
	checkRunID, err := status.InProgress(ctx, event, ref.HeadSHA, "Applying formatting changes", "Patch application in progress...")
	if err != nil {
		// The check run is cosmetic; the pipeline carries on without it.
		j.logger.Warn("failed to create check run", "error", err)
	}

	outcome, perr := j.runPipeline(ctx, event, ref, token, res, rep)
	if perr != nil {
		if fail, ok := core.AsPipelineError(perr); ok {
			rep.ReportFailure(ctx, ref, formatterFromEvent(event), fail)
			j.completeStatus(ctx, status, event, checkRunID, "failure", "Patch application failed", fail.Reason)
			j.recordFailure(ctx, event, ref, perr)
			return perr
		}
		j.completeStatus(ctx, status, event, checkRunID, "failure", "Patch application failed", perr.Error())
		j.recordFailure(ctx, event, ref, perr)
		return perr
	}

	title, summary := successStatus(outcome)
	j.completeStatus(ctx, status, event, checkRunID, "success", title, summary)
	return nil
}

// runPipeline performs the authorized..reported stages inside a temporary
// clone. Splitting it out keeps the reporting and bookkeeping in Run. The
// returned outcome is nil when the run failed before the apply stage.
func (j *ApplyJob) runPipeline(ctx context.Context, event *core.TriggerEvent, ref *core.PullRequestRef, token string, res *resolver.Resolver, rep *reporter.Reporter) (*core.CommitOutcome, error) {
	// Resolve the remote head before paying for a clone. A deleted branch, a
	// closed fork, or a typoed ref fails here in one round trip.
	headURL := ref.HeadCloneURL
	if headURL == "" {
		headURL = event.RepoCloneURL
	}
	remoteHead, err := j.git.RemoteHeadSHA(ctx, headURL, ref.HeadRef, token)
	if err != nil {
		return nil, core.NewPipelineError(core.FailureResolution, core.StageResolved,
			fmt.Sprintf("branch %s is not reachable, it may have been deleted", ref.HeadRef), err)
	}
	if remoteHead != ref.HeadSHA {
		j.logger.Info("branch advanced since the pull request was resolved",
			"branch", ref.HeadRef, "api_head", ref.HeadSHA, "remote_head", remoteHead)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, cloneTimeout)
	defer cancel()

	repoPath, cleanup, err := j.git.CloneTemp(cloneCtx, event.RepoCloneURL, token)
	if err != nil {
		return nil, core.NewPipelineError(core.FailureResolution, core.StageResolved, "could not clone repository", err)
	}
	defer cleanup()

	// Fork-aware: the head branch may live in a different repository than
	// the one the comment was posted on.
	remote := "origin"
	if ref.HeadRepoFullName != "" && ref.HeadRepoFullName != ref.FullName() {
		remote = "head"
		if err := j.git.AddRemote(ctx, repoPath, remote, ref.HeadCloneURL, token); err != nil {
			return nil, core.NewPipelineError(core.FailureResolution, core.StageResolved, "could not register head repository", err)
		}
	}
	if err := j.git.Fetch(ctx, repoPath, remote, ref.HeadRef); err != nil {
		return nil, core.NewPipelineError(core.FailureResolution, core.StageResolved,
			fmt.Sprintf("could not fetch branch %s", ref.HeadRef), err)
	}
	if err := j.git.Checkout(ctx, repoPath, "FETCH_HEAD"); err != nil {
		return nil, core.NewPipelineError(core.FailureResolution, core.StageResolved,
			fmt.Sprintf("could not check out branch %s", ref.HeadRef), err)
	}
	currentHead, err := j.git.HeadSHA(ctx, repoPath)
	if err != nil {
		return nil, core.NewPipelineError(core.FailureResolution, core.StageResolved, "could not read branch head", err)
	}

	repoCfg, err := config.LoadRepoConfig(repoPath)
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return nil, core.NewPipelineError(core.FailureResolution, core.StageResolved, "repository config is invalid", err)
	}

	if decision := j.gate.Authorize(event, ref, repoCfg); !decision.Allowed {
		return nil, core.NewPipelineError(core.FailureAuthDenied, core.StageAuthorized, decision.Reason, nil)
	}

	blob, err := res.FromArtifact(ctx, event, ref)
	if err != nil {
		return nil, err
	}
	if blob.IsEmpty() {
		j.record(ctx, event, ref, core.StageReported, "", "", "empty diff, nothing to apply")
		return &core.CommitOutcome{Branch: ref.HeadRef, NoOp: true}, nil
	}

	validator := patch.NewValidator(j.git, j.logger)
	validation, err := validator.Validate(ctx, repoPath, blob, currentHead)
	if err != nil {
		return nil, core.NewPipelineError(core.FailureValidation, core.StageValidated, "validation could not run", err)
	}
	if validation.StaleHead || !validation.Applicable {
		return nil, core.NewPipelineError(core.FailureValidation, core.StageValidated, validationReason(validation), nil)
	}

	if repoCfg != nil && repoCfg.VerifyArtifact {
		if err := j.verifyAgreement(ctx, repoPath, repoCfg, res, validator, ref, blob); err != nil {
			return nil, err
		}
	}

	applicator := patch.NewApplicator(j.git, patch.Identity{
		Name:  j.cfg.Git.CommitAuthorName,
		Email: j.cfg.Git.CommitAuthorEmail,
	}, j.logger)

	message := patch.CommitMessage(blob.Formatter, ref.Number, event.CommentID)
	outcome, err := applicator.Apply(ctx, repoPath, ref.HeadRef, blob, message)
	if err != nil {
		return nil, err
	}

	// The lease names the head the run validated and committed on top of, so
	// a fast-forward over a blob recorded against an older (ancestor) head
	// still lands; only a branch that moved past currentHead loses the race.
	if err := rep.ReportSuccess(ctx, repoPath, remote, currentHead, event, ref, blob, outcome); err != nil {
		return nil, err
	}

	j.record(ctx, event, ref, core.StageReported, "", outcome.CommitSHA, currentHead)
	j.logger.Info("patch application run completed",
		"repo", event.RepoFullName,
		"pr", event.PRNumber,
		"commit", outcome.CommitSHA,
		"noop", outcome.NoOp,
	)
	return outcome, nil
}

// verifyAgreement re-runs the formatters over the pull request's revision
// range and fails the run when the stored artifact no longer matches what
// the formatter would produce today. Opt-in per repository, since it needs
// the formatter binaries installed next to the server.
func (j *ApplyJob) verifyAgreement(ctx context.Context, repoPath string, repoCfg *core.RepoConfig, res *resolver.Resolver, validator *patch.Validator, ref *core.PullRequestRef, blob *core.DiffBlob) error {
	if !formatterEnabled(repoCfg, blob.Formatter) {
		j.logger.Warn("formatter disabled by repository config, skipping artifact verification",
			"formatter", blob.Formatter)
		return nil
	}

	files, err := res.ChangedFiles(ctx, ref)
	if err != nil {
		return err
	}
	files = formatter.ExcludePaths(files, repoCfg.ExcludeDirs, repoCfg.ExcludeExts)

	blobs, err := res.Recompute(ctx, repoPath, ref, files)
	if err != nil {
		return err
	}

	// A formatter that proposes nothing recomputes to an empty blob; the
	// agreement check then reports the full artifact as divergence.
	recomputed := &core.DiffBlob{
		Source:    core.BlobSourceRecomputed,
		BaseSHA:   ref.BaseSHA,
		HeadSHA:   ref.HeadSHA,
		Formatter: blob.Formatter,
	}
	for _, b := range blobs {
		if b.Formatter == blob.Formatter {
			recomputed = b
			break
		}
	}
	return validator.CheckAgreement(blob, recomputed)
}

// formatterEnabled applies the repository's formatter allow-list. An empty
// list means every registered formatter is enabled.
func formatterEnabled(repoCfg *core.RepoConfig, name string) bool {
	if repoCfg == nil || len(repoCfg.Formatters) == 0 {
		return true
	}
	for _, f := range repoCfg.Formatters {
		if f == name {
			return true
		}
	}
	return false
}

// alreadyApplied reports whether a prior run for the same comment already
// landed on the same head revision.
func (j *ApplyJob) alreadyApplied(ctx context.Context, event *core.TriggerEvent, headSHA string) bool {
	prior, err := j.store.GetRunByCommentID(ctx, event.CommentID)
	if err != nil {
		j.logger.Warn("could not check prior runs, continuing", "error", err)
		return false
	}
	return prior != nil &&
		prior.Stage == string(core.StageReported) &&
		prior.FailureKind == "" &&
		prior.Detail == headSHA
}

func (j *ApplyJob) record(ctx context.Context, event *core.TriggerEvent, ref *core.PullRequestRef, stage core.Stage, failureKind core.FailureKind, commitSHA, detail string) {
	prNumber := event.PRNumber
	if ref != nil {
		prNumber = ref.Number
	}
	run := &core.PatchRun{
		RepoFullName: event.RepoFullName,
		PRNumber:     prNumber,
		CommentID:    event.CommentID,
		Stage:        string(stage),
		FailureKind:  string(failureKind),
		CommitSHA:    commitSHA,
		Detail:       detail,
	}
	if err := j.store.SaveRun(ctx, run); err != nil {
		j.logger.Error("failed to persist run record", "comment_id", event.CommentID, "error", err)
	}
}

func (j *ApplyJob) recordFailure(ctx context.Context, event *core.TriggerEvent, ref *core.PullRequestRef, err error) {
	if fail, ok := core.AsPipelineError(err); ok {
		j.record(ctx, event, ref, fail.Stage, fail.Kind, "", fail.Reason)
		return
	}
	j.record(ctx, event, ref, core.StageReceived, "", "", err.Error())
}

func (j *ApplyJob) completeStatus(ctx context.Context, status github.StatusUpdater, event *core.TriggerEvent, checkRunID int64, conclusion, title, summary string) {
	if checkRunID == 0 {
		return
	}
	if err := status.Completed(ctx, event, checkRunID, conclusion, title, summary); err != nil {
		j.logger.Warn("failed to complete check run", "check_run_id", checkRunID, "error", err)
	}
}

// formatterFromEvent pulls the formatter name out of the triggering comment
// for failure reporting. Best effort; the failure body falls back to a
// default marker when the comment is unreadable.
func formatterFromEvent(event *core.TriggerEvent) string {
	name, err := github.FormatterFromComment(event.CommentBody)
	if err != nil {
		return ""
	}
	return name
}

// successStatus renders the check-run conclusion for a run that finished
// without a pipeline failure. No-ops get their own wording so the check run
// does not claim a commit that was never created.
func successStatus(outcome *core.CommitOutcome) (title, summary string) {
	if outcome == nil || outcome.NoOp {
		return "No changes needed", "The branch already contains the formatting changes."
	}
	return "Patch applied", "Formatting changes were applied to the branch."
}

func validationReason(v *core.ValidationResult) string {
	if len(v.Conflicts) == 0 {
		return "the diff does not apply to the current branch state"
	}
	reason := "the diff no longer applies cleanly:"
	for _, c := range v.Conflicts {
		if c.Path != "" {
			reason += fmt.Sprintf("\n- `%s`: %s", c.Path, c.Detail)
		} else {
			reason += "\n- " + c.Detail
		}
	}
	return reason
}
