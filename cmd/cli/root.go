package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sevigo/patch-warden/internal/gitutil"
)

var (
	githubToken  string
	repoFullName string
	issueNumber  int
)

var rootCmd = &cobra.Command{
	Use:   "warden-cli",
	Short: "warden-cli is the command-line interface for Patch-Warden.",
	Long: `A CLI for running format checks and applying formatting diffs to pull
request branches, mirroring what the Patch-Warden service does on checkbox
triggers. Intended for CI jobs and local debugging.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&githubToken, "token", "t", "", "GitHub access token")
	rootCmd.PersistentFlags().StringVar(&repoFullName, "repo", "", "Repository in owner/repo form, or a full pull request URL")
	rootCmd.PersistentFlags().IntVar(&issueNumber, "issue-number", 0, "Pull request number")

	if err := viper.BindPFlag("GITHUB_TOKEN", rootCmd.PersistentFlags().Lookup("token")); err != nil {
		slog.Error("Error binding flag", "error", err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix("PW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func resolveToken() string {
	if githubToken != "" {
		return githubToken
	}
	return viper.GetString("GITHUB_TOKEN")
}

// resolveTarget interprets --repo as either an owner/repo pair combined with
// --issue-number, or a full pull request URL carrying the number itself.
func resolveTarget() (owner, repo string, number int, err error) {
	if strings.Contains(repoFullName, "/pull/") {
		return gitutil.ParsePullRequestURL(repoFullName)
	}
	owner, repo, err = gitutil.ParseRepoFullName(repoFullName)
	if err != nil {
		return "", "", 0, err
	}
	if issueNumber <= 0 {
		return "", "", 0, fmt.Errorf("--issue-number is required")
	}
	return owner, repo, issueNumber, nil
}
