// Package trust decides whether an event's actor may trigger a patch
// application run on a pull request.
package trust

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/sevigo/patch-warden/internal/core"
)

// Decision is the outcome of an authorization check. Reason is set only on
// denial and is safe to surface to the actor.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// Gate authorizes trigger events against a pull request and the repository's
// policy. It has no side effects.
type Gate struct {
	logger *slog.Logger
}

// NewGate returns a new Gate.
func NewGate(logger *slog.Logger) *Gate {
	return &Gate{logger: logger}
}

// Authorize decides whether the event's actor may apply changes to the pull
// request's branch. The actor must be the PR author or on the repository's
// allow-list. Bot accounts are denied regardless of authorship unless
// allow-listed explicitly.
func (g *Gate) Authorize(event *core.TriggerEvent, ref *core.PullRequestRef, cfg *core.RepoConfig) Decision {
	if event.Actor == "" {
		return deny("event carries no actor")
	}

	// Checkbox-triggered events must actually carry a ticked box. Edits
	// that merely touch a bot comment do not count as opt-in.
	if event.Kind == core.CheckboxToggled && !strings.Contains(event.CommentBody, core.CheckboxChecked) {
		return deny("opt-in checkbox is not ticked")
	}

	if cfg != nil {
		for _, login := range cfg.AllowedActors {
			if strings.EqualFold(login, event.Actor) {
				g.logger.Debug("actor authorized via allow-list", "actor", event.Actor)
				return allow()
			}
		}
	}

	if IsBot(event.Actor) {
		return deny("bot account %q may not trigger patch application", event.Actor)
	}

	if strings.EqualFold(event.Actor, ref.Author) {
		return allow()
	}

	return deny("%q is neither the pull request author nor on the allow-list", event.Actor)
}

// IsBot reports whether a login belongs to a GitHub App bot account.
func IsBot(login string) bool {
	return strings.HasSuffix(login, "[bot]")
}
