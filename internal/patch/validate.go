package patch

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/sevigo/patch-warden/internal/core"
	"github.com/sevigo/patch-warden/internal/gitutil"
)

var (
	patchFailedRegex   = regexp.MustCompile(`^error: patch failed: (.+):(\d+)$`)
	doesNotApplyRegex  = regexp.MustCompile(`^error: (.+): patch does not apply$`)
	fileMissingRegex   = regexp.MustCompile(`^error: (.+): No such file or directory$`)
	alreadyExistsRegex = regexp.MustCompile(`^error: (.+): already exists in working directory$`)
)

// Validator dry-runs diff blobs against a checkout. It never mutates the
// worktree.
type Validator struct {
	git    *gitutil.Client
	logger *slog.Logger
}

// NewValidator returns a new Validator.
func NewValidator(git *gitutil.Client, logger *slog.Logger) *Validator {
	return &Validator{git: git, logger: logger}
}

// Validate checks whether the blob can land on the branch in its current
// state. The result is advisory; the authoritative check happens again under
// the applicator's lock.
func (v *Validator) Validate(ctx context.Context, repoPath string, blob *core.DiffBlob, currentHead string) (*core.ValidationResult, error) {
	result := &core.ValidationResult{}

	if blob.HeadSHA != "" && blob.HeadSHA != currentHead {
		ancestor, err := v.git.IsAncestor(ctx, repoPath, blob.HeadSHA, currentHead)
		if err != nil {
			return nil, fmt.Errorf("ancestry check failed: %w", err)
		}
		if !ancestor {
			result.StaleHead = true
			result.Conflicts = append(result.Conflicts, core.FileConflict{
				Path:   "",
				Detail: fmt.Sprintf("branch no longer contains %s, it was likely rebased or force-pushed", shortSHA(blob.HeadSHA)),
			})
			return result, nil
		}
	}

	out, err := v.git.ApplyCheck(ctx, repoPath, blob.Content)
	if err != nil {
		result.Conflicts = parseConflicts(string(out))
		v.logger.InfoContext(ctx, "dry-run apply found conflicts",
			"formatter", blob.Formatter,
			"conflicts", len(result.Conflicts),
		)
		return result, nil
	}

	result.Applicable = true
	return result, nil
}

// CheckAgreement compares an artifact blob against a freshly recomputed one
// for the same formatter. Divergence means the stored comment no longer
// reflects the branch and the run must not proceed on either version.
func (v *Validator) CheckAgreement(artifact, recomputed *core.DiffBlob) error {
	if artifact == nil || recomputed == nil {
		return nil
	}
	if string(artifact.Content) == string(recomputed.Content) {
		return nil
	}

	delta, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(artifact.Content)),
		B:        difflib.SplitLines(string(recomputed.Content)),
		FromFile: "stored artifact",
		ToFile:   "recomputed",
		Context:  2,
	})
	if err != nil {
		delta = "(could not render divergence)"
	}

	return core.NewPipelineError(core.FailureValidation, core.StageValidated,
		fmt.Sprintf("stored diff for %s no longer matches the branch:\n%s", artifact.Formatter, delta), nil)
}

// parseConflicts extracts per-file details from git apply --check output.
func parseConflicts(output string) []core.FileConflict {
	var conflicts []core.FileConflict
	seen := make(map[string]bool)

	add := func(path, detail string) {
		if seen[path+detail] {
			return
		}
		seen[path+detail] = true
		conflicts = append(conflicts, core.FileConflict{Path: path, Detail: detail})
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if m := patchFailedRegex.FindStringSubmatch(line); m != nil {
			add(m[1], fmt.Sprintf("hunk at line %s does not match", m[2]))
			continue
		}
		if m := doesNotApplyRegex.FindStringSubmatch(line); m != nil {
			add(m[1], "patch does not apply")
			continue
		}
		if m := fileMissingRegex.FindStringSubmatch(line); m != nil {
			add(m[1], "file no longer exists on the branch")
			continue
		}
		if m := alreadyExistsRegex.FindStringSubmatch(line); m != nil {
			add(m[1], "file already exists in the working tree")
		}
	}

	if len(conflicts) == 0 && strings.TrimSpace(output) != "" {
		conflicts = append(conflicts, core.FileConflict{Detail: strings.TrimSpace(output)})
	}
	return conflicts
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
