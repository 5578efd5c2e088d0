package main

import "time"

// run is the dashboard's view of a single pipeline instance, as returned by
// the server's runs endpoint.
type run struct {
	ID           int64     `json:"id"`
	RepoFullName string    `json:"repo_full_name"`
	PRNumber     int       `json:"pr_number"`
	CommentID    int64     `json:"comment_id"`
	Stage        string    `json:"stage"`
	FailureKind  string    `json:"failure_kind,omitempty"`
	CommitSHA    string    `json:"commit_sha,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Indicates that a poll of the runs endpoint has completed.
type runsLoadedMsg struct {
	runs []run
	err  error
}

// Drives the periodic refresh.
type refreshTickMsg time.Time

// A generic error message for reporting failures from commands.
type errorMsg struct{ err error }

func (e errorMsg) Error() string {
	return e.err.Error()
}
