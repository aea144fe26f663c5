// internal/notifier/notifier_test.go
package notifier

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github-commit-relay/internal/apperr"
	"github-commit-relay/internal/model"
)

// MockChatRegistry is a mock of the ChatRegistry interface.
type MockChatRegistry struct {
	mock.Mock
}

func (m *MockChatRegistry) ListChats(ctx context.Context) ([]model.Chat, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Chat), args.Error(1)
}
func (m *MockChatRegistry) GetChatByName(ctx context.Context, name string) (model.Chat, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(model.Chat), args.Error(1)
}

// MockSender is a mock of the Sender interface.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendHTML(chatID int64, text string) error {
	args := m.Called(chatID, text)
	return args.Error(0)
}
func (m *MockSender) SendHTMLByName(username string, text string) error {
	args := m.Called(username, text)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNotifier_Broadcast(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to notify and group roles only, plus superadmins", func(t *testing.T) {
		chats := new(MockChatRegistry)
		sender := new(MockSender)

		chats.On("ListChats", ctx).Return([]model.Chat{
			{Name: "carol", ChatID: 10, Role: model.RoleNotify},
			{Name: "devteam", ChatID: 20, Role: model.RoleGroup},
			{Name: "dave", ChatID: 30, Role: model.RoleAuth},
			{Name: "erin", ChatID: 40, Role: model.RoleAdmin},
		}, nil)
		chats.On("GetChatByName", ctx, "root").Return(model.Chat{Name: "root", ChatID: 99, Role: model.RoleAdmin}, nil)

		sender.On("SendHTML", int64(10), "hello").Return(nil).Once()
		sender.On("SendHTML", int64(20), "hello").Return(nil).Once()
		sender.On("SendHTML", int64(99), "hello").Return(nil).Once()

		New(chats, sender, []string{"root"}, testLogger()).Broadcast(ctx, "hello")

		sender.AssertExpectations(t)
		sender.AssertNumberOfCalls(t, "SendHTML", 3)
	})

	t.Run("superadmin without a chat record is addressed by username", func(t *testing.T) {
		chats := new(MockChatRegistry)
		sender := new(MockSender)

		chats.On("ListChats", ctx).Return([]model.Chat{}, nil)
		chats.On("GetChatByName", ctx, "root").Return(model.Chat{}, apperr.ErrNotFound)
		sender.On("SendHTMLByName", "root", "hello").Return(nil).Once()

		New(chats, sender, []string{"root"}, testLogger()).Broadcast(ctx, "hello")

		sender.AssertExpectations(t)
	})

	t.Run("a superadmin already eligible by role is delivered once", func(t *testing.T) {
		chats := new(MockChatRegistry)
		sender := new(MockSender)

		chats.On("ListChats", ctx).Return([]model.Chat{
			{Name: "root", ChatID: 99, Role: model.RoleNotify},
		}, nil)
		sender.On("SendHTML", int64(99), "hello").Return(nil).Once()

		New(chats, sender, []string{"root"}, testLogger()).Broadcast(ctx, "hello")

		sender.AssertExpectations(t)
		sender.AssertNumberOfCalls(t, "SendHTML", 1)
		chats.AssertNotCalled(t, "GetChatByName", mock.Anything, mock.Anything)
	})

	t.Run("one failed recipient does not block the others", func(t *testing.T) {
		chats := new(MockChatRegistry)
		sender := new(MockSender)

		chats.On("ListChats", ctx).Return([]model.Chat{
			{Name: "carol", ChatID: 10, Role: model.RoleNotify},
			{Name: "devteam", ChatID: 20, Role: model.RoleGroup},
		}, nil)
		sender.On("SendHTML", int64(10), "hello").Return(errors.New("blocked by user")).Once()
		sender.On("SendHTML", int64(20), "hello").Return(nil).Once()

		New(chats, sender, nil, testLogger()).Broadcast(ctx, "hello")

		sender.AssertExpectations(t)
	})
}

func TestCommitPushed(t *testing.T) {
	c := model.Commit{
		Account:     "alice",
		Repo:        "demo",
		SHA:         "abc123def456",
		Committer:   "bob",
		Branch:      "main",
		Message:     "feat: add relay\n\nLong description here.",
		URL:         "https://github.com/alice/demo/commit/abc123def456",
		CommittedAt: time.Date(2024, 5, 1, 15, 4, 5, 0, time.UTC),
	}

	msg := CommitPushed(c)

	assert.Contains(t, msg, `<a href="https://github.com/bob/">bob</a>`)
	assert.Contains(t, msg, "alice/demo")
	assert.Contains(t, msg, "main branch")
	assert.Contains(t, msg, "<b>feat: add relay</b>")
	assert.Contains(t, msg, ">abc123</a>")
	assert.Contains(t, msg, `"Long description here."`)

	t.Run("description omitted when absent", func(t *testing.T) {
		c := c
		c.Message = "feat: add relay"
		assert.NotContains(t, CommitPushed(c), "\"\"")
	})
}

func TestRepoInitialized(t *testing.T) {
	msg := RepoInitialized("alice", "demo", 3, 1)
	assert.Contains(t, msg, "Repository initialized")
	assert.Contains(t, msg, "alice/demo")
	assert.Contains(t, msg, "3 commits in 1 branches")
}
