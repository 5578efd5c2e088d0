// Package gitutil provides a client for working with Git repositories.
package gitutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// Client handles interacting with Git repositories. Porcelain operations
// (clone, fetch, apply, push) go through the git CLI; object inspection and
// commit creation use go-git.
type Client struct {
	Logger *slog.Logger
}

// NewClient returns a new Client instance.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{Logger: logger}
}

// Open opens a Git repository at a given path.
func (c *Client) Open(path string) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", path, err)
	}
	return repo, nil
}

// Clone clones a repository to a specific path.
func (c *Client) Clone(ctx context.Context, repoURL, path, token string) error {
	authURL, err := c.getAuthenticatedURL(repoURL, token)
	if err != nil {
		return err
	}

	c.Logger.InfoContext(ctx, "cloning repository", "url", repoURL, "path", path)
	cmd := exec.CommandContext(ctx, "git", "-c", "core.longpaths=true", "clone", authURL, path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone failed: %s: %w", string(out), err)
	}
	return nil
}

// CloneTemp clones a repository into a fresh temporary directory and returns
// the path with a cleanup function.
func (c *Client) CloneTemp(ctx context.Context, repoURL, token string) (string, func(), error) {
	repoPath, err := os.MkdirTemp("", "patch-warden-repo-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	cleanup := func() {
		c.Logger.Info("cleaning up temporary repository", "path", repoPath)
		if removeErr := os.RemoveAll(repoPath); removeErr != nil {
			c.Logger.Error("failed to remove temp repo", "path", repoPath, "error", removeErr)
		}
	}

	if err := c.Clone(ctx, repoURL, repoPath, token); err != nil {
		cleanup()
		return "", nil, err
	}
	return repoPath, cleanup, nil
}

// AddRemote registers an additional remote, e.g. the head repository of a
// forked pull request.
func (c *Client) AddRemote(ctx context.Context, path, name, remoteURL, token string) error {
	authURL, err := c.getAuthenticatedURL(remoteURL, token)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, "git", "remote", "add", name, authURL)
	cmd.Dir = path
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git remote add %s failed: %s: %w", name, string(out), err)
	}
	return nil
}

// Fetch fetches refs from the given remote using the git CLI, retrying
// transient failures with exponential backoff.
func (c *Client) Fetch(ctx context.Context, path, remote string, refSpecs ...string) error {
	c.Logger.InfoContext(ctx, "fetching from remote", "remote", remote)

	args := []string{"-c", "core.longpaths=true", "fetch", remote, "--force"}
	args = append(args, refSpecs...)

	const maxRetries = 3
	const baseDelay = 2 * time.Second

	var err error
	for i := 0; i <= maxRetries; i++ {
		cmd := exec.CommandContext(ctx, "git", args...)
		cmd.Dir = path

		if i > 0 {
			delay := baseDelay * time.Duration(1<<(i-1))
			c.Logger.WarnContext(ctx, "git fetch failed, retrying",
				"attempt", i,
				"max_retries", maxRetries,
				"delay", delay,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if out, cmdErr := cmd.CombinedOutput(); cmdErr != nil {
			err = fmt.Errorf("git fetch failed: %s: %w", string(out), cmdErr)
			continue
		}
		return nil
	}

	return err
}

// Checkout switches the repository's worktree to a specific ref or commit.
func (c *Client) Checkout(ctx context.Context, path, ref string) error {
	c.Logger.Info("checking out", "ref", ref)

	cmd := exec.CommandContext(ctx, "git", "-c", "core.longpaths=true", "checkout", "--force", ref)
	cmd.Dir = path

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git checkout failed: %s: %w", string(out), err)
	}
	return nil
}

// HeadSHA returns the current HEAD SHA of the repository at the given path.
func (c *Client) HeadSHA(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = path
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// RemoteHeadSHA fetches the HEAD commit SHA of a specific remote branch
// without cloning.
func (c *Client) RemoteHeadSHA(ctx context.Context, repoURL, branch, token string) (string, error) {
	authURL, err := c.getAuthenticatedURL(repoURL, token)
	if err != nil {
		return "", err
	}

	ref := fmt.Sprintf("refs/heads/%s", branch)
	out, err := exec.CommandContext(ctx, "git", "ls-remote", authURL, ref).Output()
	if err != nil {
		return "", fmt.Errorf("git ls-remote failed: %w. Ensure branch '%s' exists", err, branch)
	}

	output := strings.TrimSpace(string(out))
	if output == "" {
		return "", fmt.Errorf("branch '%s' not found or repository is empty", branch)
	}
	return strings.Fields(output)[0], nil
}

// IsAncestor reports whether ancestor is reachable from descendant.
func (c *Client) IsAncestor(ctx context.Context, path, ancestor, descendant string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "merge-base", "--is-ancestor", ancestor, descendant)
	cmd.Dir = path
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("git merge-base failed: %w", err)
}

// ApplyCheck dry-runs the diff against the working tree. The combined git
// output is returned so callers can extract per-file conflict details.
func (c *Client) ApplyCheck(ctx context.Context, path string, diff []byte) ([]byte, error) {
	out, err := c.runApply(ctx, path, diff, "--check")
	if err != nil {
		return out, fmt.Errorf("%w: %s", ErrPatchNotApplicable, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// ApplyReverseCheck reports whether the diff is already contained in the
// working tree, i.e. applying it in reverse would succeed.
func (c *Client) ApplyReverseCheck(ctx context.Context, path string, diff []byte) bool {
	_, err := c.runApply(ctx, path, diff, "--reverse", "--check")
	return err == nil
}

// Apply applies the diff to the working tree.
func (c *Client) Apply(ctx context.Context, path string, diff []byte) error {
	if out, err := c.runApply(ctx, path, diff); err != nil {
		return fmt.Errorf("git apply failed: %s: %w", string(out), err)
	}
	return nil
}

func (c *Client) runApply(ctx context.Context, path string, diff []byte, extraArgs ...string) ([]byte, error) {
	args := append([]string{"apply", "--whitespace=nowarn"}, extraArgs...)
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = path
	cmd.Stdin = bytes.NewReader(diff)
	return cmd.CombinedOutput()
}

// AddAll stages every change in the working tree.
func (c *Client) AddAll(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, "git", "add", "-A")
	cmd.Dir = path
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git add failed: %s: %w", string(out), err)
	}
	return nil
}

// ResetHard discards every local change and moves HEAD to the given ref.
func (c *Client) ResetHard(ctx context.Context, path, ref string) error {
	cmd := exec.CommandContext(ctx, "git", "reset", "--hard", ref)
	cmd.Dir = path
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git reset failed: %s: %w", string(out), err)
	}
	return nil
}

// Commit creates a single commit from the staged index with the given
// automation identity and returns the new commit SHA.
func (c *Client) Commit(path, message, authorName, authorEmail string) (string, error) {
	repo, err := c.Open(path)
	if err != nil {
		return "", err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}

	sig := &object.Signature{
		Name:  authorName,
		Email: authorEmail,
		When:  time.Now(),
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author:    sig,
		Committer: sig,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create commit: %w", err)
	}
	return hash.String(), nil
}

// PushWithLease pushes branch to the remote with a compare-and-swap
// condition: the push only succeeds if the remote ref still points at
// expectedSHA. A lost race returns ErrPushRejected.
func (c *Client) PushWithLease(ctx context.Context, path, remote, branch, expectedSHA string) error {
	lease := fmt.Sprintf("--force-with-lease=refs/heads/%s:%s", branch, expectedSHA)
	refSpec := fmt.Sprintf("HEAD:refs/heads/%s", branch)

	cmd := exec.CommandContext(ctx, "git", "push", lease, remote, refSpec)
	cmd.Dir = path
	out, err := cmd.CombinedOutput()
	if err != nil {
		if bytes.Contains(out, []byte("[rejected]")) || bytes.Contains(out, []byte("stale info")) {
			return fmt.Errorf("%w: %s", ErrPushRejected, strings.TrimSpace(string(out)))
		}
		return fmt.Errorf("git push failed: %s: %w", string(out), err)
	}
	return nil
}

// ChangedFiles lists the paths that differ between two commits.
func (c *Client) ChangedFiles(path, oldSHA, newSHA string) ([]string, error) {
	repo, err := c.Open(path)
	if err != nil {
		return nil, err
	}

	oldCommit, err := repo.CommitObject(plumbing.NewHash(oldSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get commit object for old SHA %s: %w", oldSHA, err)
	}
	newCommit, err := repo.CommitObject(plumbing.NewHash(newSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get commit object for new SHA %s: %w", newSHA, err)
	}

	oldTree, err := oldCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree for old commit %s: %w", oldSHA, err)
	}
	newTree, err := newCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree for new commit %s: %w", newSHA, err)
	}

	changes, err := object.DiffTree(oldTree, newTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees between %s and %s: %w", oldSHA, newSHA, err)
	}

	var files []string
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			c.Logger.Error("failed to get action for change, skipping", "error", err)
			continue
		}
		switch action {
		case merkletrie.Insert, merkletrie.Modify:
			files = append(files, change.To.Name)
		case merkletrie.Delete:
			files = append(files, change.From.Name)
		}
	}
	return files, nil
}

func (c *Client) getAuthenticatedURL(repoURL, token string) (string, error) {
	// Handle local paths directly. file:// is intentionally unsupported.
	if !strings.Contains(repoURL, "://") {
		return repoURL, nil
	}

	if !strings.HasPrefix(repoURL, "https://") && !strings.HasPrefix(repoURL, "http://") {
		return "", fmt.Errorf("invalid repository URL: %s", repoURL)
	}

	parsedURL, err := url.Parse(repoURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse repository URL '%s': %w", repoURL, err)
	}
	if token != "" {
		parsedURL.User = url.UserPassword("x-access-token", token)
	}
	return parsedURL.String(), nil
}
