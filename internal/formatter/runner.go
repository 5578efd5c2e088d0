package formatter

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Result pairs a formatter with the diff it produced and the revision pair
// the diff was computed against.
type Result struct {
	Formatter    string
	FriendlyName string
	Instructions string
	Diff         string
	StartRev     string
	EndRev       string
}

// Runner fans out the registered formatters over a checkout and gathers their
// diffs.
type Runner struct {
	formatters []Formatter
	logger     *slog.Logger
}

// NewRunner returns a Runner over the given formatters.
func NewRunner(logger *slog.Logger, formatters ...Formatter) *Runner {
	if len(formatters) == 0 {
		formatters = []Formatter{&ClangFormat{}, &Darker{}}
	}
	return &Runner{formatters: formatters, logger: logger}
}

// Select returns the registered formatter with the given name, or nil.
func (r *Runner) Select(name string) Formatter {
	for _, f := range r.formatters {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// Formatters returns all registered formatters.
func (r *Runner) Formatters() []Formatter {
	return r.formatters
}

// RunAll runs every formatter concurrently and returns the results ordered
// by formatter registration, so output is deterministic regardless of which
// formatter finishes first. Formatters with nothing to say are omitted.
func (r *Runner) RunAll(ctx context.Context, repoPath, startRev, endRev string, files []string) ([]Result, error) {
	results := make([]Result, len(r.formatters))

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for i, f := range r.formatters {
		g.Go(func() error {
			diff, err := f.Run(gctx, repoPath, startRev, endRev, files)
			if err != nil {
				return err
			}
			r.logger.DebugContext(gctx, "formatter finished",
				"formatter", f.Name(),
				"clean", strings.TrimSpace(diff) == "",
			)
			mu.Lock()
			results[i] = Result{
				Formatter:    f.Name(),
				FriendlyName: f.FriendlyName(),
				Instructions: f.Instructions(startRev, endRev, f.FilterFiles(files)),
				Diff:         diff,
				StartRev:     startRev,
				EndRev:       endRev,
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Result
	for _, res := range results {
		if res.Diff != "" {
			out = append(out, res)
		}
	}
	return out, nil
}
