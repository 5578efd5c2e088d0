package main

import (
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sevigo/patch-warden/internal/core"
	"github.com/sevigo/patch-warden/internal/formatter"
	gh "github.com/sevigo/patch-warden/internal/github"
	"github.com/sevigo/patch-warden/internal/gitutil"
	"github.com/sevigo/patch-warden/internal/patch"
	"github.com/sevigo/patch-warden/internal/reporter"
	"github.com/sevigo/patch-warden/internal/resolver"
)

var (
	commentID   int64
	authorName  string
	authorEmail string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the diff stored in a bot comment to the PR branch",
	Long: `Extracts the diff from the given bot comment, validates it against
the live branch head, lands it as a single commit and pushes it with a
compare-and-swap condition. The exit code distinguishes the failure classes:
2 denied, 3 resolution, 4 validation, 5 apply, 6 push conflict.`,
	RunE: runApply,
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	applyCmd.Flags().Int64Var(&commentID, "comment-id", 0, "ID of the bot comment carrying the diff")
	applyCmd.Flags().StringVar(&authorName, "author-name", "patch-warden", "Commit author name")
	applyCmd.Flags().StringVar(&authorEmail, "author-email", "patch-warden[bot]@users.noreply.github.com", "Commit author email")

	_ = applyCmd.MarkFlagRequired("comment-id")

	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, _ []string) error {
	owner, repo, prNumber, err := resolveTarget()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := slog.Default()
	token := resolveToken()
	client := gh.NewPATClient(ctx, token, logger)
	git := gitutil.NewClient(logger)
	runner := formatter.NewRunner(logger)
	res := resolver.New(client, runner, logger)
	rep := reporter.New(client, git, runner, logger)

	ref, err := res.RefFromAPI(ctx, owner, repo, prNumber)
	if err != nil {
		return err
	}

	event := &core.TriggerEvent{
		Kind:         core.CheckboxToggled,
		CommentID:    commentID,
		RepoOwner:    owner,
		RepoName:     repo,
		RepoFullName: owner + "/" + repo,
		PRNumber:     prNumber,
	}

	blob, err := res.FromArtifact(ctx, event, ref)
	if err != nil {
		return err
	}
	if blob.IsEmpty() {
		color.Green("Comment %d carries an empty diff, nothing to apply", commentID)
		return nil
	}

	repoPath, cleanup, err := git.CloneTemp(ctx, fmt.Sprintf("https://github.com/%s/%s.git", owner, repo), token)
	if err != nil {
		return core.NewPipelineError(core.FailureResolution, core.StageResolved, "could not clone repository", err)
	}
	defer cleanup()

	remote := "origin"
	if ref.HeadRepoFullName != "" && ref.HeadRepoFullName != ref.FullName() {
		remote = "head"
		if err := git.AddRemote(ctx, repoPath, remote, ref.HeadCloneURL, token); err != nil {
			return core.NewPipelineError(core.FailureResolution, core.StageResolved, "could not register head repository", err)
		}
	}
	if err := git.Fetch(ctx, repoPath, remote, ref.HeadRef); err != nil {
		return core.NewPipelineError(core.FailureResolution, core.StageResolved,
			fmt.Sprintf("could not fetch branch %s", ref.HeadRef), err)
	}
	if err := git.Checkout(ctx, repoPath, "FETCH_HEAD"); err != nil {
		return core.NewPipelineError(core.FailureResolution, core.StageResolved,
			fmt.Sprintf("could not check out branch %s", ref.HeadRef), err)
	}
	currentHead, err := git.HeadSHA(ctx, repoPath)
	if err != nil {
		return core.NewPipelineError(core.FailureResolution, core.StageResolved, "could not read branch head", err)
	}

	validator := patch.NewValidator(git, logger)
	validation, err := validator.Validate(ctx, repoPath, blob, currentHead)
	if err != nil {
		return core.NewPipelineError(core.FailureValidation, core.StageValidated, "validation could not run", err)
	}
	if validation.StaleHead || !validation.Applicable {
		reason := "the diff no longer applies cleanly"
		for _, c := range validation.Conflicts {
			reason += "\n- " + c.Path + ": " + c.Detail
		}
		return core.NewPipelineError(core.FailureValidation, core.StageValidated, reason, nil)
	}

	applicator := patch.NewApplicator(git, patch.Identity{Name: authorName, Email: authorEmail}, logger)
	message := patch.CommitMessage(blob.Formatter, ref.Number, commentID)
	outcome, err := applicator.Apply(ctx, repoPath, ref.HeadRef, blob, message)
	if err != nil {
		return err
	}

	if err := rep.ReportSuccess(ctx, repoPath, remote, currentHead, event, ref, blob, outcome); err != nil {
		return err
	}

	if outcome.NoOp {
		color.Green("Diff already contained in %s, no commit created", ref.HeadRef)
	} else {
		color.Green("Applied %s diff as %s on %s", blob.Formatter, outcome.CommitSHA, ref.HeadRef)
	}
	return nil
}
