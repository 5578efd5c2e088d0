package core

import (
	"fmt"
	"strings"

	"github.com/google/go-github/v73/github"
)

// Sentinel lines embedded in bot comments. Ticking the checkbox is the
// opt-in that triggers a patch application run.
const (
	CheckboxUnchecked = "- [ ] Check this box to apply formatting changes to this branch."
	CheckboxChecked   = "- [x] Check this box to apply formatting changes to this branch."
)

// CommentMarkerPrefix is the hidden HTML marker that identifies comments
// authored by this service. The formatter name follows the prefix.
const CommentMarkerPrefix = "<!--PATCH-WARDEN COMMENT: "

// TriggerKind distinguishes how a pipeline run was requested.
type TriggerKind string

const (
	// CheckboxToggled means the opt-in checkbox in a bot comment was ticked.
	CheckboxToggled TriggerKind = "checkbox_toggled"

	// ReactionAdded means a recognized reaction was added to a bot comment.
	ReactionAdded TriggerKind = "reaction_added"
)

// TriggerEvent is the internal view of the external occurrence that starts a
// pipeline instance. It is created once at ingestion and consumed exactly once.
type TriggerEvent struct {
	Kind   TriggerKind
	Action string // "created" or "edited"

	// Actor is the login of the user whose action produced the event.
	Actor string

	CommentID   int64
	CommentBody string

	RepoOwner    string
	RepoName     string
	RepoFullName string
	RepoCloneURL string

	PRNumber int

	InstallationID int64
}

// EventFromIssueComment transforms a raw GitHub IssueCommentEvent into the
// application's internal TriggerEvent representation. It acts as an
// anti-corruption layer: the webhook payload is validated here, and only
// comments that carry this service's marker with a ticked opt-in checkbox
// pass through. Everything else is rejected at zero cost.
func EventFromIssueComment(event *github.IssueCommentEvent) (*TriggerEvent, error) {
	if !event.GetIssue().IsPullRequest() {
		return nil, fmt.Errorf("comment is not on a pull request")
	}

	action := event.GetAction()
	if action != "created" && action != "edited" {
		return nil, fmt.Errorf("unhandled comment action %q", action)
	}

	body := event.GetComment().GetBody()
	if !strings.Contains(body, CommentMarkerPrefix) {
		return nil, fmt.Errorf("comment does not carry the patch-warden marker")
	}
	if !strings.Contains(body, CheckboxChecked) {
		return nil, fmt.Errorf("opt-in checkbox is not ticked")
	}

	repo := event.GetRepo()
	if repo == nil || repo.GetOwner() == nil || repo.GetOwner().GetLogin() == "" || repo.GetName() == "" {
		return nil, fmt.Errorf("repository or owner information is missing from the event")
	}

	prNumber := event.GetIssue().GetNumber()
	if prNumber <= 0 {
		return nil, fmt.Errorf("invalid pull request number: %d", prNumber)
	}

	// The actor is whoever performed the edit, not the comment author: the
	// comment itself is authored by the bot.
	actor := event.GetSender().GetLogin()
	if actor == "" {
		return nil, fmt.Errorf("sender information is missing from the event")
	}

	if event.GetInstallation() == nil || event.GetInstallation().GetID() == 0 {
		return nil, fmt.Errorf("installation ID is missing from the event")
	}

	return &TriggerEvent{
		Kind:           CheckboxToggled,
		Action:         action,
		Actor:          actor,
		CommentID:      event.GetComment().GetID(),
		CommentBody:    body,
		RepoOwner:      repo.GetOwner().GetLogin(),
		RepoName:       repo.GetName(),
		RepoFullName:   repo.GetFullName(),
		RepoCloneURL:   repo.GetCloneURL(),
		PRNumber:       prNumber,
		InstallationID: event.GetInstallation().GetID(),
	}, nil
}

// EventFromReaction builds a TriggerEvent for a recognized reaction on a bot
// comment. Reactions carry no body, so the comment content is looked up later
// by the resolver using CommentID.
func EventFromReaction(actor, repoOwner, repoName, cloneURL string, prNumber int, commentID, installationID int64) (*TriggerEvent, error) {
	if actor == "" {
		return nil, fmt.Errorf("reaction actor is missing")
	}
	if repoOwner == "" || repoName == "" {
		return nil, fmt.Errorf("repository information is missing")
	}
	if prNumber <= 0 {
		return nil, fmt.Errorf("invalid pull request number: %d", prNumber)
	}
	if commentID <= 0 {
		return nil, fmt.Errorf("invalid comment id: %d", commentID)
	}

	return &TriggerEvent{
		Kind:           ReactionAdded,
		Action:         "created",
		Actor:          actor,
		CommentID:      commentID,
		RepoOwner:      repoOwner,
		RepoName:       repoName,
		RepoFullName:   fmt.Sprintf("%s/%s", repoOwner, repoName),
		RepoCloneURL:   cloneURL,
		PRNumber:       prNumber,
		InstallationID: installationID,
	}, nil
}
