// internal/store/store.go
package store

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides CRUD access to accounts, repositories, chats and the
// commit log. Uniqueness violations surface as apperr.ErrDuplicate and
// missing records as apperr.ErrNotFound so callers can treat both as
// recoverable conditions.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store over an established connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
