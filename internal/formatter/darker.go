package formatter

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var pythonExtensions = map[string]bool{".py": true}

// Darker wraps darker, the incremental black formatter for Python.
type Darker struct{}

func (d *Darker) Name() string         { return "darker" }
func (d *Darker) FriendlyName() string { return "Python code formatter" }

func (d *Darker) FilterFiles(files []string) []string {
	return filterByExtension(files, pythonExtensions)
}

func (d *Darker) Instructions(startRev, endRev string, files []string) string {
	return strings.Join(d.args(startRev, endRev, files), " ")
}

func (d *Darker) args(startRev, endRev string, files []string) []string {
	args := []string{"darker", "--check", "--diff", "-r", fmt.Sprintf("%s..%s", startRev, endRev)}
	return append(args, files...)
}

// Run invokes darker in check mode. Exit code 1 signals a diff, not a
// failure.
func (d *Darker) Run(ctx context.Context, repoPath, startRev, endRev string, files []string) (string, error) {
	files = d.FilterFiles(files)
	if len(files) == 0 {
		return "", nil
	}

	args := d.args(startRev, endRev, files)
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
			return "", fmt.Errorf("darker failed: %s: %w", detail, err)
		}
	}

	diff := normalizeDiff(string(out))
	if strings.TrimSpace(diff) == "" {
		return "", nil
	}
	return diff, nil
}
