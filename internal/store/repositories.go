// internal/store/repositories.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github-commit-relay/internal/apperr"
	"github-commit-relay/internal/model"
)

// ListRepositories returns every watched repository ordered by owner and name.
func (s *Store) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT account, name, COALESCE(added_by, ''), created_at
		 FROM repositories ORDER BY account, name`)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		var r model.Repository
		if err := rows.Scan(&r.Account, &r.Name, &r.AddedBy, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// GetRepository looks one watched repository up by its composite key.
func (s *Store) GetRepository(ctx context.Context, account, name string) (model.Repository, error) {
	var r model.Repository
	err := s.pool.QueryRow(ctx,
		`SELECT account, name, COALESCE(added_by, ''), created_at
		 FROM repositories WHERE account = $1 AND name = $2`, account, name).
		Scan(&r.Account, &r.Name, &r.AddedBy, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Repository{}, apperr.ErrNotFound
	}
	if err != nil {
		return model.Repository{}, fmt.Errorf("get repository: %w", err)
	}
	return r, nil
}

// InsertRepository stores a new watched repository. Returns
// apperr.ErrDuplicate when the (account, name) pair is already watched.
func (s *Store) InsertRepository(ctx context.Context, r model.Repository) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO repositories (account, name, added_by) VALUES ($1, $2, $3)`,
		r.Account, r.Name, r.AddedBy)
	return apperr.FromInsert(err)
}

// DeleteRepository removes a watched repository and reports whether it existed.
func (s *Store) DeleteRepository(ctx context.Context, account, name string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM repositories WHERE account = $1 AND name = $2`, account, name)
	if err != nil {
		return false, fmt.Errorf("delete repository: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
