package main

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sevigo/patch-warden/internal/formatter"
	gh "github.com/sevigo/patch-warden/internal/github"
	"github.com/sevigo/patch-warden/internal/gitutil"
	"github.com/sevigo/patch-warden/internal/reporter"
	"github.com/sevigo/patch-warden/internal/resolver"
)

// errFormattingNeeded signals that check mode produced a diff. It maps to
// exit code 1 without an error log.
var errFormattingNeeded = errors.New("formatting changes needed")

var (
	startRev     string
	endRev       string
	changedFiles string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the formatters over a revision range and post the diff comment",
	Long: `Runs the configured formatters over the changed files between
--start-rev and --end-rev inside the current working directory, which must be
a checkout of the pull request branch. When a formatter proposes changes, the
diff is posted (or updated) as a PR comment carrying the opt-in checkbox.
Exits 1 when formatting is needed, 0 when the branch is clean.`,
	RunE: runCheck,
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	checkCmd.Flags().StringVar(&startRev, "start-rev", "", "First commit of the revision range")
	checkCmd.Flags().StringVar(&endRev, "end-rev", "", "Last commit of the revision range")
	checkCmd.Flags().StringVar(&changedFiles, "changed-files", "", "Comma-separated list of changed files")

	_ = checkCmd.MarkFlagRequired("start-rev")
	_ = checkCmd.MarkFlagRequired("end-rev")

	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	owner, repo, prNumber, err := resolveTarget()
	if err != nil {
		return err
	}

	logger := slog.Default()
	client := gh.NewPATClient(cmd.Context(), resolveToken(), logger)
	git := gitutil.NewClient(logger)
	runner := formatter.NewRunner(logger)
	res := resolver.New(client, runner, logger)
	rep := reporter.New(client, git, runner, logger)

	ref, err := res.RefFromAPI(cmd.Context(), owner, repo, prNumber)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	// Changed files come from the flag, the local checkout, or the API, in
	// that order. The local tree diff saves a round trip when the revisions
	// resolve in cwd; CI setups with shallow history fall through to the API.
	files := splitFiles(changedFiles)
	if len(files) == 0 {
		if files, err = git.ChangedFiles(cwd, startRev, endRev); err != nil {
			logger.Debug("local diff unavailable, listing changed files via API", "error", err)
			if files, err = res.ChangedFiles(cmd.Context(), ref); err != nil {
				return err
			}
		}
	}

	results, err := runner.RunAll(cmd.Context(), cwd, startRev, endRev, files)
	if err != nil {
		return err
	}

	dirty := make(map[string]bool, len(results))
	for _, result := range results {
		dirty[result.Formatter] = true
		if _, err := rep.PostPending(cmd.Context(), ref, result); err != nil {
			return err
		}
		color.Yellow("%s proposed changes, comment updated on %s/%s#%d", result.Formatter, owner, repo, prNumber)
	}

	// Formatters that came back clean get their earlier comment, if any,
	// flipped to the success body.
	for _, f := range runner.Formatters() {
		if dirty[f.Name()] {
			continue
		}
		if err := rep.PostClean(cmd.Context(), ref, f); err != nil {
			return err
		}
	}

	if len(results) > 0 {
		return errFormattingNeeded
	}
	color.Green("No formatting changes needed for %s/%s#%d", owner, repo, prNumber)
	return nil
}

func splitFiles(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	files := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			files = append(files, trimmed)
		}
	}
	return files
}
