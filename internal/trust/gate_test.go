package trust

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sevigo/patch-warden/internal/core"
)

func newGate() *Gate {
	return NewGate(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAuthorize(t *testing.T) {
	ref := &core.PullRequestRef{Owner: "llvm", Repo: "llvm-project", Number: 42, Author: "contributor"}

	tests := []struct {
		name      string
		event     *core.TriggerEvent
		cfg       *core.RepoConfig
		wantAllow bool
	}{
		{
			name: "PR author with ticked checkbox",
			event: &core.TriggerEvent{
				Kind:        core.CheckboxToggled,
				Actor:       "contributor",
				CommentBody: "marker\n" + core.CheckboxChecked,
			},
			wantAllow: true,
		},
		{
			name: "author match is case insensitive",
			event: &core.TriggerEvent{
				Kind:        core.CheckboxToggled,
				Actor:       "Contributor",
				CommentBody: core.CheckboxChecked,
			},
			wantAllow: true,
		},
		{
			name: "checkbox not ticked",
			event: &core.TriggerEvent{
				Kind:        core.CheckboxToggled,
				Actor:       "contributor",
				CommentBody: core.CheckboxUnchecked,
			},
			wantAllow: false,
		},
		{
			name: "stranger denied",
			event: &core.TriggerEvent{
				Kind:        core.CheckboxToggled,
				Actor:       "drive-by",
				CommentBody: core.CheckboxChecked,
			},
			wantAllow: false,
		},
		{
			name: "stranger on allow-list",
			event: &core.TriggerEvent{
				Kind:        core.CheckboxToggled,
				Actor:       "release-manager",
				CommentBody: core.CheckboxChecked,
			},
			cfg:       &core.RepoConfig{AllowedActors: []string{"release-manager"}},
			wantAllow: true,
		},
		{
			name: "bot denied even as author",
			event: &core.TriggerEvent{
				Kind:        core.CheckboxToggled,
				Actor:       "dependabot[bot]",
				CommentBody: core.CheckboxChecked,
			},
			wantAllow: false,
		},
		{
			name: "allow-listed bot permitted",
			event: &core.TriggerEvent{
				Kind:        core.CheckboxToggled,
				Actor:       "merge-queue[bot]",
				CommentBody: core.CheckboxChecked,
			},
			cfg:       &core.RepoConfig{AllowedActors: []string{"merge-queue[bot]"}},
			wantAllow: true,
		},
		{
			name: "reaction trigger needs no checkbox in body",
			event: &core.TriggerEvent{
				Kind:  core.ReactionAdded,
				Actor: "contributor",
			},
			wantAllow: true,
		},
		{
			name:      "empty actor",
			event:     &core.TriggerEvent{Kind: core.CheckboxToggled, CommentBody: core.CheckboxChecked},
			wantAllow: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := newGate().Authorize(tt.event, ref, tt.cfg)
			assert.Equal(t, tt.wantAllow, decision.Allowed)
			if !tt.wantAllow {
				assert.NotEmpty(t, decision.Reason)
			}
		})
	}
}

func TestIsBot(t *testing.T) {
	assert.True(t, IsBot("github-actions[bot]"))
	assert.False(t, IsBot("someone"))
	assert.False(t, IsBot("botanist"))
}
