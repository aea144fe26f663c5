// internal/store/commits.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github-commit-relay/internal/apperr"
	"github-commit-relay/internal/model"
)

const commitColumns = `id, account, repo, sha, committer, branch, message, url, committed_at, created_at`

func scanCommit(row pgx.Row) (model.Commit, error) {
	var c model.Commit
	err := row.Scan(&c.ID, &c.Account, &c.Repo, &c.SHA, &c.Committer,
		&c.Branch, &c.Message, &c.URL, &c.CommittedAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Commit{}, apperr.ErrNotFound
	}
	if err != nil {
		return model.Commit{}, fmt.Errorf("scan commit: %w", err)
	}
	return c, nil
}

// LatestCommit returns the most recently committed stored commit for one
// repository, or apperr.ErrNotFound when the repository has never synced.
func (s *Store) LatestCommit(ctx context.Context, account, repo string) (model.Commit, error) {
	return scanCommit(s.pool.QueryRow(ctx,
		`SELECT `+commitColumns+` FROM commits
		 WHERE account = $1 AND repo = $2
		 ORDER BY committed_at DESC LIMIT 1`, account, repo))
}

// ListCommits returns a page of the global commit history, newest first.
func (s *Store) ListCommits(ctx context.Context, offset, limit int) ([]model.Commit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+commitColumns+` FROM commits
		 ORDER BY committed_at DESC OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	defer rows.Close()
	return collectCommits(rows)
}

// ListCommitsByRepo returns a page of one repository's commit history,
// newest first.
func (s *Store) ListCommitsByRepo(ctx context.Context, account, repo string, offset, limit int) ([]model.Commit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+commitColumns+` FROM commits
		 WHERE account = $1 AND repo = $2
		 ORDER BY committed_at DESC OFFSET $3 LIMIT $4`, account, repo, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list commits by repo: %w", err)
	}
	defer rows.Close()
	return collectCommits(rows)
}

func collectCommits(rows pgx.Rows) ([]model.Commit, error) {
	var commits []model.Commit
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, err
		}
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

// InsertCommit stores one commit. Returns apperr.ErrDuplicate when the
// (account, repo, sha) triple is already recorded.
func (s *Store) InsertCommit(ctx context.Context, c model.Commit) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO commits (account, repo, sha, committer, branch, message, url, committed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.Account, c.Repo, c.SHA, c.Committer, c.Branch, c.Message, c.URL, c.CommittedAt)
	return apperr.FromInsert(err)
}
