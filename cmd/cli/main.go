package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/sevigo/patch-warden/internal/core"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errFormattingNeeded) {
			// Check mode: a produced diff is a finding, not a malfunction.
			os.Exit(1)
		}
		slog.Error("cli failed to run", "error", err)
		os.Exit(core.ExitCodeFor(err))
	}
}
