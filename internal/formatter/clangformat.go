package formatter

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// cppExtensions mirrors the file types git-clang-format handles out of the box.
var cppExtensions = map[string]bool{
	".c": true, ".h": true,
	".cpp": true, ".cc": true, ".cxx": true,
	".hpp": true, ".hh": true, ".hxx": true, ".inc": true,
	".m": true, ".mm": true,
	".cu": true, ".cuh": true,
	".cl": true, ".hlsl": true,
	".proto": true,
}

// ClangFormat wraps git-clang-format for C family sources.
type ClangFormat struct {
	// Binary overrides the clang-format executable passed to
	// git-clang-format. Empty means whatever is on PATH.
	Binary string
}

func (c *ClangFormat) Name() string         { return "clang-format" }
func (c *ClangFormat) FriendlyName() string { return "C/C++ code formatter" }

func (c *ClangFormat) FilterFiles(files []string) []string {
	return filterByExtension(files, cppExtensions)
}

func (c *ClangFormat) Instructions(startRev, endRev string, files []string) string {
	return strings.Join(c.args(startRev, endRev, files), " ")
}

func (c *ClangFormat) args(startRev, endRev string, files []string) []string {
	args := []string{"git-clang-format"}
	if c.Binary != "" {
		args = append(args, "--binary", c.Binary)
	}
	args = append(args, "--diff", startRev, endRev, "--")
	return append(args, files...)
}

// Run invokes git-clang-format in diff mode. Exit code 1 means a diff was
// produced, which is not an error for us.
func (c *ClangFormat) Run(ctx context.Context, repoPath, startRev, endRev string, files []string) (string, error) {
	files = c.FilterFiles(files)
	if len(files) == 0 {
		return "", nil
	}

	args := c.args(startRev, endRev, files)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = repoPath
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
			detail := ""
			if exitErr != nil {
				detail = strings.TrimSpace(string(exitErr.Stderr))
			}
			return "", fmt.Errorf("git-clang-format failed: %s: %w", detail, err)
		}
	}

	diff := normalizeDiff(string(out))
	if strings.TrimSpace(diff) == "" || strings.HasPrefix(diff, "no modified files to format") ||
		strings.HasPrefix(diff, "clang-format did not modify any files") {
		return "", nil
	}
	return diff, nil
}
