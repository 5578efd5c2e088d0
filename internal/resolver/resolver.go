// Package resolver turns a trigger event into the self-contained diff blob
// the rest of the pipeline operates on.
package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sevigo/patch-warden/internal/core"
	"github.com/sevigo/patch-warden/internal/formatter"
	gh "github.com/sevigo/patch-warden/internal/github"
)

// Resolver produces DiffBlobs either from a stored bot comment (artifact
// mode) or by re-running the formatters over a checkout (recompute mode).
type Resolver struct {
	client gh.Client
	runner *formatter.Runner
	logger *slog.Logger
}

// New returns a Resolver.
func New(client gh.Client, runner *formatter.Runner, logger *slog.Logger) *Resolver {
	return &Resolver{client: client, runner: runner, logger: logger}
}

// RefFromAPI resolves the pull request reference the pipeline will operate
// on. The head SHA recorded here is the revision every later stage checks
// staleness against.
func (r *Resolver) RefFromAPI(ctx context.Context, owner, repo string, number int) (*core.PullRequestRef, error) {
	pr, err := r.client.GetPullRequest(ctx, owner, repo, number)
	if err != nil {
		return nil, core.NewPipelineError(core.FailureResolution, core.StageResolved,
			fmt.Sprintf("could not load pull request #%d", number), err)
	}

	ref := &core.PullRequestRef{
		Owner:            owner,
		Repo:             repo,
		Number:           number,
		BaseSHA:          pr.GetBase().GetSHA(),
		HeadSHA:          pr.GetHead().GetSHA(),
		HeadRef:          pr.GetHead().GetRef(),
		HeadRepoFullName: pr.GetHead().GetRepo().GetFullName(),
		HeadCloneURL:     pr.GetHead().GetRepo().GetCloneURL(),
		Author:           pr.GetUser().GetLogin(),
	}
	if ref.BaseSHA == "" || ref.HeadSHA == "" {
		return nil, core.NewPipelineError(core.FailureResolution, core.StageResolved,
			fmt.Sprintf("pull request #%d carries no usable revision range", number), nil)
	}
	return ref, nil
}

// FromArtifact extracts the diff stored in the triggering bot comment. The
// event's comment body is used when the webhook delivered it; otherwise the
// comment is fetched by id.
func (r *Resolver) FromArtifact(ctx context.Context, event *core.TriggerEvent, ref *core.PullRequestRef) (*core.DiffBlob, error) {
	body := event.CommentBody
	if body == "" {
		comment, err := r.client.GetIssueComment(ctx, ref.Owner, ref.Repo, event.CommentID)
		if err != nil {
			return nil, core.NewPipelineError(core.FailureResolution, core.StageResolved,
				fmt.Sprintf("stored comment %d is missing or expired", event.CommentID), err)
		}
		body = comment.GetBody()
	}

	formatterName, err := gh.FormatterFromComment(body)
	if err != nil {
		return nil, core.NewPipelineError(core.FailureResolution, core.StageResolved,
			"comment carries no formatter marker", err)
	}

	diff, err := gh.ExtractDiff(body)
	if err != nil {
		return nil, core.NewPipelineError(core.FailureResolution, core.StageResolved,
			"comment carries no diff artifact", err)
	}

	// The blob carries the revision pair the diff was actually computed
	// against, recorded in the comment at check time. Without it the
	// stale-head check would compare the branch against itself. Older
	// comments lack the marker and fall back to the live ref.
	baseSHA, headSHA := ref.BaseSHA, ref.HeadSHA
	if base, head, ok := gh.RevisionRange(body); ok {
		baseSHA, headSHA = base, head
	}

	r.logger.InfoContext(ctx, "resolved diff from comment artifact",
		"comment_id", event.CommentID,
		"formatter", formatterName,
		"bytes", len(diff),
		"head", headSHA,
	)

	return &core.DiffBlob{
		Content:   []byte(diff),
		Source:    core.BlobSourceArtifact,
		BaseSHA:   baseSHA,
		HeadSHA:   headSHA,
		Formatter: formatterName,
	}, nil
}

// ChangedFiles lists the paths touched by the pull request, resolved via the
// GitHub API so recompute mode does not depend on local history depth.
func (r *Resolver) ChangedFiles(ctx context.Context, ref *core.PullRequestRef) ([]string, error) {
	files, err := r.client.GetChangedFiles(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		return nil, core.NewPipelineError(core.FailureResolution, core.StageResolved,
			"could not list changed files", err)
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Filename)
	}
	return paths, nil
}

// Recompute runs the configured formatters over the pull request's revision
// range inside repoPath and returns one blob per formatter that proposed
// changes. An empty slice means the branch is already clean.
func (r *Resolver) Recompute(ctx context.Context, repoPath string, ref *core.PullRequestRef, files []string) ([]*core.DiffBlob, error) {
	results, err := r.runner.RunAll(ctx, repoPath, ref.BaseSHA, ref.HeadSHA, files)
	if err != nil {
		return nil, core.NewPipelineError(core.FailureResolution, core.StageResolved,
			"running formatters failed", err)
	}

	blobs := make([]*core.DiffBlob, 0, len(results))
	for _, res := range results {
		blobs = append(blobs, &core.DiffBlob{
			Content:   []byte(res.Diff),
			Source:    core.BlobSourceRecomputed,
			BaseSHA:   ref.BaseSHA,
			HeadSHA:   ref.HeadSHA,
			Formatter: res.Formatter,
		})
	}

	r.logger.InfoContext(ctx, "recomputed formatter diffs",
		"pr", ref.Number,
		"changed_files", len(files),
		"dirty_formatters", len(blobs),
	)
	return blobs, nil
}
