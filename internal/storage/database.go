// Package storage persists the run ledger in Postgres.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	// import db drivers
	_ "github.com/lib/pq"

	"github.com/sevigo/patch-warden/internal/core"
)

// Store defines the interface for all database operations.
type Store interface {
	// SaveRun records a pipeline instance. Called once when the run
	// terminates, successfully or not.
	SaveRun(ctx context.Context, run *core.PatchRun) error

	// GetRunByCommentID returns the most recent run triggered by the given
	// comment, or nil when the comment never triggered one. Used for the
	// at-most-once guard.
	GetRunByCommentID(ctx context.Context, commentID int64) (*core.PatchRun, error)

	// ListRecentRuns returns up to limit runs, newest first.
	ListRecentRuns(ctx context.Context, limit int) ([]*core.PatchRun, error)
}

type postgresStore struct {
	db *sqlx.DB
}

// NewStore creates a new Store
func NewStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

// SaveRun inserts a new run record into the database.
func (s *postgresStore) SaveRun(ctx context.Context, run *core.PatchRun) error {
	query := `INSERT INTO patch_runs (repo_full_name, pr_number, comment_id, stage, failure_kind, commit_sha, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.ExecContext(ctx, query,
		run.RepoFullName, run.PRNumber, run.CommentID,
		run.Stage, run.FailureKind, run.CommitSHA, run.Detail, time.Now())
	return err
}

// GetRunByCommentID retrieves the latest run for a triggering comment.
func (s *postgresStore) GetRunByCommentID(ctx context.Context, commentID int64) (*core.PatchRun, error) {
	query := `
		SELECT id, repo_full_name, pr_number, comment_id, stage, failure_kind, commit_sha, detail, created_at
		FROM patch_runs
		WHERE comment_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, commentID)

	var r core.PatchRun
	err := row.Scan(&r.ID, &r.RepoFullName, &r.PRNumber, &r.CommentID, &r.Stage, &r.FailureKind, &r.CommitSHA, &r.Detail, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// ListRecentRuns retrieves the newest runs across all repositories.
func (s *postgresStore) ListRecentRuns(ctx context.Context, limit int) ([]*core.PatchRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, repo_full_name, pr_number, comment_id, stage, failure_kind, commit_sha, detail, created_at
		FROM patch_runs
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*core.PatchRun
	for rows.Next() {
		var r core.PatchRun
		if err := rows.Scan(&r.ID, &r.RepoFullName, &r.PRNumber, &r.CommentID, &r.Stage, &r.FailureKind, &r.CommitSHA, &r.Detail, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}
