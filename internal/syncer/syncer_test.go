// internal/syncer/syncer_test.go
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	gogithub "github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github-commit-relay/internal/apperr"
	"github-commit-relay/internal/github"
	"github-commit-relay/internal/model"
)

// MockStore is a mock of the Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Account), args.Error(1)
}
func (m *MockStore) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Repository), args.Error(1)
}
func (m *MockStore) LatestCommit(ctx context.Context, account, repo string) (model.Commit, error) {
	args := m.Called(ctx, account, repo)
	return args.Get(0).(model.Commit), args.Error(1)
}
func (m *MockStore) InsertCommit(ctx context.Context, c model.Commit) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

// MockHostClient is a mock of the HostClient interface.
type MockHostClient struct {
	mock.Mock
}

func (m *MockHostClient) AuthenticatedLogin(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
func (m *MockHostClient) GetRepository(ctx context.Context, owner, name string) (github.Repository, error) {
	args := m.Called(ctx, owner, name)
	return args.Get(0).(github.Repository), args.Error(1)
}
func (m *MockHostClient) ListBranches(ctx context.Context, owner, name string) ([]string, error) {
	args := m.Called(ctx, owner, name)
	return args.Get(0).([]string), args.Error(1)
}
func (m *MockHostClient) ListCommits(ctx context.Context, owner, name, branch string, since time.Time) ([]model.Commit, error) {
	args := m.Called(ctx, owner, name, branch, since)
	return args.Get(0).([]model.Commit), args.Error(1)
}

// MockBroadcaster records every broadcast message.
type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Broadcast(ctx context.Context, text string) {
	m.Called(ctx, text)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func notFoundErr() error {
	return &gogithub.ErrorResponse{Response: &http.Response{StatusCode: http.StatusNotFound}}
}

func newTestSyncer(st Store, client HostClient, b Broadcaster) *Syncer {
	return NewSyncer(st,
		func(string) HostClient { return client },
		b, testLogger(), time.Hour)
}

func demoRepo() model.Repository {
	return model.Repository{Account: "alice", Name: "demo"}
}

func commit(sha string, branch string, at time.Time) model.Commit {
	return model.Commit{
		Account:     "alice",
		Repo:        "demo",
		SHA:         sha,
		Committer:   "alice",
		Branch:      branch,
		Message:     "msg " + sha,
		URL:         "https://github.com/alice/demo/commit/" + sha,
		CommittedAt: at,
	}
}

func TestSyncer_InitialBackfill(t *testing.T) {
	ctx := context.Background()
	st := new(MockStore)
	client := new(MockHostClient)
	b := new(MockBroadcaster)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	newer := commit("bbb222", "main", base.Add(time.Hour))
	older := commit("aaa111", "main", base)

	st.On("ListAccounts", ctx).Return([]model.Account{{Name: "alice", Token: "T"}}, nil)
	st.On("ListRepositories", ctx).Return([]model.Repository{demoRepo()}, nil)
	client.On("AuthenticatedLogin", ctx).Return("alice", nil)
	client.On("GetRepository", ctx, "alice", "demo").Return(github.Repository{Owner: "alice", Name: "demo", DefaultBranch: "main"}, nil)
	st.On("LatestCommit", ctx, "alice", "demo").Return(model.Commit{}, apperr.ErrNotFound)
	client.On("ListBranches", ctx, "alice", "demo").Return([]string{"main"}, nil)
	// First sync fetches the whole history.
	client.On("ListCommits", ctx, "alice", "demo", "main", time.Time{}).Return([]model.Commit{newer, older}, nil)

	// Oldest first.
	st.On("InsertCommit", ctx, older).Return(nil).Once()
	st.On("InsertCommit", ctx, newer).Return(nil).Once()

	// Exactly one summary, no per-commit notifications.
	b.On("Broadcast", ctx, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "Repository initialized") &&
			strings.Contains(text, "alice/demo") &&
			strings.Contains(text, "2 commits in 1 branches")
	})).Once()

	newTestSyncer(st, client, b).RunPass(ctx)

	st.AssertExpectations(t)
	client.AssertExpectations(t)
	b.AssertExpectations(t)
	b.AssertNumberOfCalls(t, "Broadcast", 1)
}

func TestSyncer_IncrementalNotification(t *testing.T) {
	ctx := context.Background()
	st := new(MockStore)
	client := new(MockHostClient)
	b := new(MockBroadcaster)

	last := commit("000aaa", "main", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	first := commit("ccc333", "main", last.CommittedAt.Add(time.Hour))
	second := commit("ddd444", "main", last.CommittedAt.Add(2*time.Hour))

	st.On("ListAccounts", ctx).Return([]model.Account{{Name: "alice", Token: "T"}}, nil)
	st.On("ListRepositories", ctx).Return([]model.Repository{demoRepo()}, nil)
	client.On("AuthenticatedLogin", ctx).Return("alice", nil)
	client.On("GetRepository", ctx, "alice", "demo").Return(github.Repository{Owner: "alice", Name: "demo", DefaultBranch: "main"}, nil)
	st.On("LatestCommit", ctx, "alice", "demo").Return(last, nil)

	// The fetch lower bound is the watermark plus one second.
	client.On("ListBranches", ctx, "alice", "demo").Return([]string{"main"}, nil)
	client.On("ListCommits", ctx, "alice", "demo", "main", last.CommittedAt.Add(time.Second)).
		Return([]model.Commit{second, first}, nil)

	st.On("InsertCommit", ctx, first).Return(nil).Once()
	st.On("InsertCommit", ctx, second).Return(nil).Once()

	var sent []string
	b.On("Broadcast", ctx, mock.Anything).Run(func(args mock.Arguments) {
		sent = append(sent, args.String(1))
	}).Twice()

	newTestSyncer(st, client, b).RunPass(ctx)

	st.AssertExpectations(t)
	client.AssertExpectations(t)
	b.AssertExpectations(t)

	// One notification per commit, chronological, each with the
	// 6-character SHA prefix and a link.
	assert.Len(t, sent, 2)
	assert.Contains(t, sent[0], "ccc333")
	assert.Contains(t, sent[0], "https://github.com/alice/demo/commit/ccc333")
	assert.Contains(t, sent[1], "ddd444")
	assert.NotContains(t, sent[0], "initialized")
}

func TestSyncer_SecondPassInsertsNothing(t *testing.T) {
	ctx := context.Background()
	st := new(MockStore)
	client := new(MockHostClient)
	b := new(MockBroadcaster)

	last := commit("aaa111", "main", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	st.On("ListAccounts", ctx).Return([]model.Account{{Name: "alice", Token: "T"}}, nil)
	st.On("ListRepositories", ctx).Return([]model.Repository{demoRepo()}, nil)
	client.On("AuthenticatedLogin", ctx).Return("alice", nil)
	client.On("GetRepository", ctx, "alice", "demo").Return(github.Repository{Owner: "alice", Name: "demo", DefaultBranch: "main"}, nil)
	st.On("LatestCommit", ctx, "alice", "demo").Return(last, nil)
	client.On("ListBranches", ctx, "alice", "demo").Return([]string{"main"}, nil)
	client.On("ListCommits", ctx, "alice", "demo", "main", mock.Anything).Return([]model.Commit{}, nil)

	newTestSyncer(st, client, b).RunPass(ctx)

	st.AssertNotCalled(t, "InsertCommit", mock.Anything, mock.Anything)
	b.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything)
}

func TestSyncer_DuplicateInsertIsNoOp(t *testing.T) {
	ctx := context.Background()
	st := new(MockStore)
	client := new(MockHostClient)
	b := new(MockBroadcaster)

	last := commit("aaa111", "main", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	// The same commit observed on two branches.
	onDev := commit("eee555", "dev", last.CommittedAt.Add(time.Hour))
	onMain := commit("eee555", "main", last.CommittedAt.Add(time.Hour))

	st.On("ListAccounts", ctx).Return([]model.Account{{Name: "alice", Token: "T"}}, nil)
	st.On("ListRepositories", ctx).Return([]model.Repository{demoRepo()}, nil)
	client.On("AuthenticatedLogin", ctx).Return("alice", nil)
	client.On("GetRepository", ctx, "alice", "demo").Return(github.Repository{Owner: "alice", Name: "demo", DefaultBranch: "main"}, nil)
	st.On("LatestCommit", ctx, "alice", "demo").Return(last, nil)
	client.On("ListBranches", ctx, "alice", "demo").Return([]string{"main", "dev"}, nil)
	client.On("ListCommits", ctx, "alice", "demo", "dev", mock.Anything).Return([]model.Commit{onDev}, nil)
	client.On("ListCommits", ctx, "alice", "demo", "main", mock.Anything).Return([]model.Commit{onMain}, nil)

	st.On("InsertCommit", ctx, onMain).Return(nil).Once()
	st.On("InsertCommit", ctx, onDev).Return(apperr.ErrDuplicate).Once()

	b.On("Broadcast", ctx, mock.Anything).Once()

	newTestSyncer(st, client, b).RunPass(ctx)

	st.AssertExpectations(t)
	// Only the successfully inserted occurrence is notified.
	b.AssertNumberOfCalls(t, "Broadcast", 1)
}

func TestSyncer_RepositoryNotFoundIsSkipped(t *testing.T) {
	ctx := context.Background()
	st := new(MockStore)
	client := new(MockHostClient)
	b := new(MockBroadcaster)

	st.On("ListAccounts", ctx).Return([]model.Account{{Name: "alice", Token: "T"}}, nil)
	st.On("ListRepositories", ctx).Return([]model.Repository{demoRepo()}, nil)
	client.On("AuthenticatedLogin", ctx).Return("alice", nil)
	client.On("GetRepository", ctx, "alice", "demo").Return(github.Repository{}, notFoundErr())

	newTestSyncer(st, client, b).RunPass(ctx)

	client.AssertNotCalled(t, "ListBranches", mock.Anything, mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "InsertCommit", mock.Anything, mock.Anything)
}

func TestSyncer_IdentityMismatchSkipsForeignRepos(t *testing.T) {
	ctx := context.Background()
	st := new(MockStore)
	client := new(MockHostClient)
	b := new(MockBroadcaster)

	// Stored as "alice" but the token resolves to "wonderland": only
	// repositories owned by the resolved login are processed.
	st.On("ListAccounts", ctx).Return([]model.Account{{Name: "alice", Token: "T"}}, nil)
	st.On("ListRepositories", ctx).Return([]model.Repository{demoRepo()}, nil)
	client.On("AuthenticatedLogin", ctx).Return("wonderland", nil)

	newTestSyncer(st, client, b).RunPass(ctx)

	client.AssertNotCalled(t, "GetRepository", mock.Anything, mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "InsertCommit", mock.Anything, mock.Anything)
}

func TestSyncer_AccountErrorContinuesWithNextAccount(t *testing.T) {
	ctx := context.Background()
	st := new(MockStore)
	b := new(MockBroadcaster)

	badClient := new(MockHostClient)
	badClient.On("AuthenticatedLogin", ctx).Return("", errors.New("bad credentials"))
	goodClient := new(MockHostClient)
	goodClient.On("AuthenticatedLogin", ctx).Return("bob", nil)

	clients := map[string]HostClient{"BAD": badClient, "GOOD": goodClient}

	st.On("ListAccounts", ctx).Return([]model.Account{
		{Name: "alice", Token: "BAD"},
		{Name: "bob", Token: "GOOD"},
	}, nil)
	st.On("ListRepositories", ctx).Return([]model.Repository{}, nil)

	s := NewSyncer(st, func(token string) HostClient { return clients[token] }, b, testLogger(), time.Hour)
	s.RunPass(ctx)

	goodClient.AssertCalled(t, "AuthenticatedLogin", ctx)
}

func TestOrderBranches(t *testing.T) {
	t.Run("default branch last, rest in reverse discovery order", func(t *testing.T) {
		got := orderBranches([]string{"main", "dev", "feature-x"}, "main")
		assert.Equal(t, []string{"feature-x", "dev", "main"}, got)
	})

	t.Run("default branch alone", func(t *testing.T) {
		got := orderBranches([]string{"main"}, "main")
		assert.Equal(t, []string{"main"}, got)
	})

	t.Run("default branch not in discovery list is still appended", func(t *testing.T) {
		got := orderBranches([]string{"dev"}, "main")
		assert.Equal(t, []string{"dev", "main"}, got)
	})

	t.Run("no branches and no default", func(t *testing.T) {
		assert.Empty(t, orderBranches(nil, ""))
	})
}
