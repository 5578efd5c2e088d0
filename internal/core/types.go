// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

import (
	"fmt"
	"time"
)

// PullRequestRef identifies the pull request a pipeline run operates on.
// It is resolved once per run from the GitHub API and treated as read-only
// afterwards.
type PullRequestRef struct {
	Owner  string
	Repo   string
	Number int

	BaseSHA string
	HeadSHA string

	// HeadRef is the name of the branch the commit will be pushed to.
	HeadRef string

	// HeadRepoFullName and HeadCloneURL point at the repository that owns the
	// head branch. For forked pull requests this differs from Owner/Repo.
	HeadRepoFullName string
	HeadCloneURL     string

	Author string
}

// FullName returns the "owner/repo" form of the base repository.
func (r PullRequestRef) FullName() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Repo)
}

// BlobSource records how a DiffBlob was obtained.
type BlobSource string

const (
	// BlobSourceArtifact means the diff was extracted from a previously
	// posted bot comment.
	BlobSourceArtifact BlobSource = "artifact"

	// BlobSourceRecomputed means the diff was freshly produced by running
	// the formatters over the revision range.
	BlobSourceRecomputed BlobSource = "recomputed"
)

// DiffBlob is a self-contained unified diff together with the revision pair
// it was computed against. The content is normalized to LF line endings and
// never mutated after creation.
type DiffBlob struct {
	Content []byte
	Source  BlobSource

	BaseSHA string
	HeadSHA string

	// Formatter names the tool that produced the diff, e.g. "clang-format".
	Formatter string
}

// IsEmpty reports whether the blob carries no changes at all.
func (b *DiffBlob) IsEmpty() bool {
	return b == nil || len(b.Content) == 0
}

// FileConflict describes a single file of a diff that cannot be applied
// cleanly against the current branch state.
type FileConflict struct {
	Path   string
	Detail string
}

// ValidationResult is the advisory outcome of a dry-run application check.
type ValidationResult struct {
	Applicable bool

	// StaleHead is set when the branch advanced past the revision the blob
	// was computed against.
	StaleHead bool

	Conflicts []FileConflict
}

// CommitOutcome is the terminal artifact of a successful pipeline run.
type CommitOutcome struct {
	CommitSHA string
	Branch    string

	// NoOp is set when the diff was empty or already contained in the
	// branch, in which case CommitSHA is empty and nothing was pushed.
	NoOp bool
}

// PatchRun is the persisted record of a single pipeline instance.
type PatchRun struct {
	ID           int64
	RepoFullName string
	PRNumber     int
	CommentID    int64
	Stage        string
	FailureKind  string
	CommitSHA    string
	Detail       string
	CreatedAt    time.Time
}
