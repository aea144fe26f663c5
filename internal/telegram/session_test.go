// internal/telegram/session_test.go
package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionStore(t *testing.T) {
	t.Run("set then pending then clear", func(t *testing.T) {
		s := NewSessionStore(10 * time.Minute)

		_, ok := s.Pending(1)
		assert.False(t, ok)

		s.Set(1, cmdAddRepo)
		cmd, ok := s.Pending(1)
		assert.True(t, ok)
		assert.Equal(t, cmdAddRepo, cmd)

		s.Clear(1)
		_, ok = s.Pending(1)
		assert.False(t, ok)
	})

	t.Run("set supersedes the previous pending command", func(t *testing.T) {
		s := NewSessionStore(10 * time.Minute)
		s.Set(1, cmdAddRepo)
		s.Set(1, cmdAddAuthUser)

		cmd, _ := s.Pending(1)
		assert.Equal(t, cmdAddAuthUser, cmd)
	})

	t.Run("users do not share state", func(t *testing.T) {
		s := NewSessionStore(10 * time.Minute)
		s.Set(1, cmdAddRepo)

		_, ok := s.Pending(2)
		assert.False(t, ok)
	})

	t.Run("entries expire after the idle TTL", func(t *testing.T) {
		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		s := NewSessionStore(10 * time.Minute)
		s.now = func() time.Time { return now }

		s.Set(1, cmdAddRepo)

		now = now.Add(10 * time.Minute)
		_, ok := s.Pending(1)
		assert.True(t, ok, "exactly at the TTL the entry is still live")

		now = now.Add(time.Second)
		_, ok = s.Pending(1)
		assert.False(t, ok)

		// Expiry removed the entry, not just hid it.
		now = now.Add(-time.Hour)
		_, ok = s.Pending(1)
		assert.False(t, ok)
	})

	t.Run("non-positive TTL disables expiry", func(t *testing.T) {
		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		s := NewSessionStore(0)
		s.now = func() time.Time { return now }

		s.Set(1, cmdAddRepo)
		now = now.Add(24 * time.Hour)

		_, ok := s.Pending(1)
		assert.True(t, ok)
	})
}
