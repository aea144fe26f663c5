// internal/store/accounts.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github-commit-relay/internal/apperr"
	"github-commit-relay/internal/model"
)

// ListAccounts returns every registered GitHub account in registration order.
func (s *Store) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, token, created_at FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.Name, &a.Token, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// GetAccountByName looks an account up by its GitHub login.
func (s *Store) GetAccountByName(ctx context.Context, name string) (model.Account, error) {
	return s.getAccount(ctx,
		`SELECT name, token, created_at FROM accounts WHERE name = $1`, name)
}

// GetAccountByToken looks an account up by its credential token.
func (s *Store) GetAccountByToken(ctx context.Context, token string) (model.Account, error) {
	return s.getAccount(ctx,
		`SELECT name, token, created_at FROM accounts WHERE token = $1`, token)
}

func (s *Store) getAccount(ctx context.Context, query string, arg any) (model.Account, error) {
	var a model.Account
	err := s.pool.QueryRow(ctx, query, arg).Scan(&a.Name, &a.Token, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, apperr.ErrNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// InsertAccount stores a new account. Returns apperr.ErrDuplicate when
// the name or token is already registered.
func (s *Store) InsertAccount(ctx context.Context, a model.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (name, token) VALUES ($1, $2)`, a.Name, a.Token)
	return apperr.FromInsert(err)
}

// DeleteAccountByName removes an account and reports whether it existed.
func (s *Store) DeleteAccountByName(ctx context.Context, name string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("delete account: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
