// internal/store/chats.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github-commit-relay/internal/apperr"
	"github-commit-relay/internal/model"
)

const chatColumns = `name, chat_id, COALESCE(role, ''), created_at`

func scanChat(row pgx.Row) (model.Chat, error) {
	var c model.Chat
	err := row.Scan(&c.Name, &c.ChatID, &c.Role, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Chat{}, apperr.ErrNotFound
	}
	if err != nil {
		return model.Chat{}, fmt.Errorf("scan chat: %w", err)
	}
	return c, nil
}

// ListChats returns every registered chat in registration order.
func (s *Store) ListChats(ctx context.Context) ([]model.Chat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+chatColumns+` FROM chats ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()
	return collectChats(rows)
}

// ListChatsByRole returns the chats holding one role, in registration order.
func (s *Store) ListChatsByRole(ctx context.Context, role model.Role) ([]model.Chat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE role = $1 ORDER BY created_at`, role)
	if err != nil {
		return nil, fmt.Errorf("list chats by role: %w", err)
	}
	defer rows.Close()
	return collectChats(rows)
}

func collectChats(rows pgx.Rows) ([]model.Chat, error) {
	var chats []model.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// GetChatByID looks a chat up by its Telegram chat identifier.
func (s *Store) GetChatByID(ctx context.Context, chatID int64) (model.Chat, error) {
	return scanChat(s.pool.QueryRow(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE chat_id = $1`, chatID))
}

// GetChatByName looks a chat up by its unique name.
func (s *Store) GetChatByName(ctx context.Context, name string) (model.Chat, error) {
	return scanChat(s.pool.QueryRow(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE name = $1`, name))
}

// InsertChat stores a new chat record. Returns apperr.ErrDuplicate when
// the name is already registered.
func (s *Store) InsertChat(ctx context.Context, c model.Chat) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chats (name, chat_id, role) VALUES ($1, $2, $3)`,
		c.Name, c.ChatID, c.Role)
	return apperr.FromInsert(err)
}

// UpdateChatID records the chat identifier for a name-only chat record.
func (s *Store) UpdateChatID(ctx context.Context, name string, chatID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE chats SET chat_id = $1 WHERE name = $2`, chatID, name)
	if err != nil {
		return fmt.Errorf("update chat id: %w", err)
	}
	return nil
}

// UpdateChatName renames a chat record identified by chat identifier.
func (s *Store) UpdateChatName(ctx context.Context, chatID int64, name string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE chats SET name = $1 WHERE chat_id = $2`, name, chatID)
	if err != nil {
		return fmt.Errorf("update chat name: %w", err)
	}
	return nil
}

// DeleteChatByID removes a chat by identifier and reports whether it existed.
func (s *Store) DeleteChatByID(ctx context.Context, chatID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chats WHERE chat_id = $1`, chatID)
	if err != nil {
		return false, fmt.Errorf("delete chat: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteChatByName removes a chat by name and reports whether it existed.
func (s *Store) DeleteChatByName(ctx context.Context, name string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chats WHERE name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("delete chat: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
