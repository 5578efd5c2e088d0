package github

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/go-github/v73/github"

	"github.com/sevigo/patch-warden/internal/core"
)

// diffFence is the fence used around embedded diffs. Ten backticks so that
// diffs containing ordinary fenced code blocks survive markdown rendering.
const diffFence = "``````````"

var diffBlockRegex = regexp.MustCompile("(?s)" + diffFence + "diff(?P<DIFF>.+)" + diffFence)

// MarkerFor returns the hidden HTML marker for a formatter's comment.
func MarkerFor(formatter string) string {
	return core.CommentMarkerPrefix + formatter + "-->"
}

// markerRegex matches any patch-warden marker and captures the formatter name.
var markerRegex = regexp.MustCompile(`<!--PATCH-WARDEN COMMENT: (?P<FMT>.+?)-->`)

// rangeRegex matches the hidden provenance marker recording the revision pair
// the embedded diff was computed against.
var rangeRegex = regexp.MustCompile(`<!--PATCH-WARDEN RANGE: (?P<BASE>\S+)\.\.(?P<HEAD>\S+?)-->`)

// RangeMarker returns the hidden marker recording the revision pair a diff
// was computed against.
func RangeMarker(baseRev, headRev string) string {
	return fmt.Sprintf("<!--PATCH-WARDEN RANGE: %s..%s-->", baseRev, headRev)
}

// RevisionRange extracts the revision pair recorded in a bot comment. ok is
// false for comments posted before provenance tracking existed.
func RevisionRange(body string) (baseRev, headRev string, ok bool) {
	m := rangeRegex.FindStringSubmatch(body)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// FormatterFromComment extracts the formatter name recorded in a bot
// comment's marker.
func FormatterFromComment(body string) (string, error) {
	m := markerRegex.FindStringSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("comment does not carry a patch-warden marker")
	}
	return m[1], nil
}

// ExtractDiff pulls the embedded unified diff out of a bot comment body and
// normalizes its line endings to LF.
func ExtractDiff(body string) (string, error) {
	m := diffBlockRegex.FindStringSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("could not find diff block in comment")
	}
	diff := m[1]
	diff = strings.ReplaceAll(diff, "\r\n", "\n")
	diff = strings.ReplaceAll(diff, "\r", "\n")
	return strings.TrimPrefix(diff, "\n"), nil
}

// PendingCommentBody renders the comment posted when a formatter found
// issues: the diff, local reproduction instructions, and the opt-in checkbox.
// The revision pair the diff was computed against is embedded as a hidden
// marker so a later apply run can detect that the branch moved on.
func PendingCommentBody(formatter, friendlyName, instructions, diff, baseRev, headRev string) string {
	var sb strings.Builder

	sb.WriteString(MarkerFor(formatter))
	sb.WriteString("\n")
	if baseRev != "" && headRev != "" {
		sb.WriteString(RangeMarker(baseRev, headRev))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, ":warning: %s, %s found issues in your code. :warning:\n\n", friendlyName, formatter)

	sb.WriteString("<details>\n<summary>\nYou can test this locally with the following command:\n</summary>\n\n")
	fmt.Fprintf(&sb, "%sbash\n%s\n%s\n\n</details>\n\n", diffFence, instructions, diffFence)

	fmt.Fprintf(&sb, "<details>\n<summary>\nView the diff from %s here.\n</summary>\n\n", formatter)
	fmt.Fprintf(&sb, "%sdiff\n%s\n%s\n\n</details>\n\n", diffFence, strings.TrimRight(diff, "\n"), diffFence)

	sb.WriteString(core.CheckboxUnchecked)
	return sb.String()
}

// SuccessCommentBody renders the body the pending comment is edited to once
// the branch passes the format check (or the diff has been applied).
func SuccessCommentBody(formatter, friendlyName string) string {
	return fmt.Sprintf("%s\n:white_check_mark: With the latest revision this PR passed the %s.\n",
		MarkerFor(formatter), friendlyName)
}

// FailureCommentBody renders a human-readable failure notice naming the
// pipeline stage and reason, so the actor can fix the root cause without
// digging through CI logs.
func FailureCommentBody(formatter string, stage core.Stage, reason string) string {
	return fmt.Sprintf("%s\n:x: Applying the %s changes failed during the %s stage:\n\n> %s\n\nPlease resolve the problem and tick the box again, or apply the diff locally.\n",
		MarkerFor(formatter), formatter, stage, reason)
}

// FindComment locates this service's comment for the given formatter on a
// pull request. Returns nil when no such comment exists.
func FindComment(ctx context.Context, client Client, owner, repo string, prNumber int, formatter string) (*github.IssueComment, error) {
	comments, err := client.ListIssueComments(ctx, owner, repo, prNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	marker := MarkerFor(formatter)
	for _, c := range comments {
		if strings.Contains(c.GetBody(), marker) {
			return c, nil
		}
	}
	return nil, nil
}

// UpsertComment edits the existing bot comment for the formatter, or creates
// a new one when none exists yet. Returns the id of the touched comment.
func UpsertComment(ctx context.Context, client Client, owner, repo string, prNumber int, formatter, body string) (int64, error) {
	existing, err := FindComment(ctx, client, owner, repo, prNumber, formatter)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		if err := client.EditComment(ctx, owner, repo, existing.GetID(), body); err != nil {
			return 0, err
		}
		return existing.GetID(), nil
	}
	return client.CreateComment(ctx, owner, repo, prNumber, body)
}
