// internal/syncer/syncer.go
package syncer

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github-commit-relay/internal/apperr"
	"github-commit-relay/internal/github"
	"github-commit-relay/internal/model"
	"github-commit-relay/internal/notifier"
)

// Store is the subset of the registry and commit log the syncer uses.
type Store interface {
	ListAccounts(ctx context.Context) ([]model.Account, error)
	ListRepositories(ctx context.Context) ([]model.Repository, error)
	LatestCommit(ctx context.Context, account, repo string) (model.Commit, error)
	InsertCommit(ctx context.Context, c model.Commit) error
}

// HostClient is one account's authenticated view of the source host.
type HostClient interface {
	AuthenticatedLogin(ctx context.Context) (string, error)
	GetRepository(ctx context.Context, owner, name string) (github.Repository, error)
	ListBranches(ctx context.Context, owner, name string) ([]string, error)
	ListCommits(ctx context.Context, owner, name, branch string, since time.Time) ([]model.Commit, error)
}

// ClientFactory builds a HostClient for one account token.
type ClientFactory func(token string) HostClient

// Broadcaster fans one formatted message out to all notification recipients.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string)
}

// Syncer brings stored commits up to date once per poll interval and
// notifies subscribers of what it inserted. A single loop runs one pass
// at a time; passes never overlap.
type Syncer struct {
	store     Store
	newClient ClientFactory
	notify    Broadcaster
	logger    *slog.Logger
	interval  time.Duration
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(store Store, newClient ClientFactory, notify Broadcaster, logger *slog.Logger, interval time.Duration) *Syncer {
	return &Syncer{
		store:     store,
		newClient: newClient,
		notify:    notify,
		logger:    logger,
		interval:  interval,
	}
}

// Start begins the continuous synchronization process. It returns only
// when ctx is cancelled.
func (s *Syncer) Start(ctx context.Context) {
	s.logger.Info("Starting syncer", "interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunPass(ctx) // Initial sync

	for {
		select {
		case <-ticker.C:
			s.RunPass(ctx)
		case <-ctx.Done():
			s.logger.Info("Syncer shutting down", "reason", ctx.Err())
			return
		}
	}
}

// RunPass executes one synchronization pass. Nothing propagates past the
// pass boundary: a panic in the pass body is logged and the loop resumes
// on the next tick.
func (s *Syncer) RunPass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Sync pass panicked", "panic", r)
		}
	}()
	s.pass(ctx)
}

// pass processes every account and every repository it owns, one at a
// time, against a single snapshot of the registry.
func (s *Syncer) pass(ctx context.Context) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		s.logger.Error("Failed to load accounts", "error", err)
		return
	}
	repos, err := s.store.ListRepositories(ctx)
	if err != nil {
		s.logger.Error("Failed to load repositories", "error", err)
		return
	}

	repoCount := 0
	insertedAll := 0
	for _, account := range accounts {
		if ctx.Err() != nil {
			return
		}
		client := s.newClient(account.Token)
		login, err := client.AuthenticatedLogin(ctx)
		if err != nil {
			s.logger.Error("Failed to resolve account identity", "account", account.Name, "error", err)
			continue
		}
		if login != account.Name {
			s.logger.Warn("GitHub username does not match", "stored", account.Name, "resolved", login)
		}
		// Repositories are matched against the login the host actually
		// resolved, not the stored account name.
		for _, repo := range repos {
			if repo.Account != login {
				continue
			}
			inserted, counted := s.syncRepo(ctx, client, repo)
			if counted {
				repoCount++
			}
			insertedAll += inserted
		}
	}

	if insertedAll > 0 {
		s.logger.Info("Sync pass finished", "new_commits", insertedAll, "repositories", repoCount)
	} else {
		s.logger.Info("No new commit", "repositories", repoCount)
	}
}

// syncRepo synchronizes one repository: watermark lookup, branch-ordered
// incremental fetch, dedup-safe insertion and notification. It reports
// the number of commits inserted and whether the repository was reachable
// upstream.
func (s *Syncer) syncRepo(ctx context.Context, client HostClient, repo model.Repository) (int, bool) {
	logger := s.logger.With("owner", repo.Account, "repo", repo.Name)

	meta, err := client.GetRepository(ctx, repo.Account, repo.Name)
	if err != nil {
		if github.IsNotFound(err) {
			logger.Warn("Repository not found upstream")
		} else {
			logger.Error("Failed to get repository", "error", err)
		}
		return 0, false
	}

	var since time.Time
	hasWatermark := false
	last, err := s.store.LatestCommit(ctx, repo.Account, repo.Name)
	switch {
	case err == nil:
		// The boundary commit itself must never be re-fetched.
		since = last.CommittedAt.Add(1 * time.Second)
		hasWatermark = true
	case apperr.IsNotFound(err):
		// First sync for this repository: full backfill.
	default:
		logger.Error("Failed to load watermark", "error", err)
		return 0, true
	}

	branches, err := client.ListBranches(ctx, repo.Account, repo.Name)
	if err != nil {
		if github.IsNotFound(err) {
			logger.Warn("Repository not found upstream")
		} else {
			logger.Error("Failed to list branches", "error", err)
		}
		return 0, true
	}
	ordered := orderBranches(branches, meta.DefaultBranch)

	var commits []model.Commit
	for _, branch := range ordered {
		page, err := client.ListCommits(ctx, repo.Account, repo.Name, branch, since)
		if err != nil {
			if github.IsNotFound(err) {
				logger.Warn("Branch not found upstream", "branch", branch)
			} else {
				logger.Error("Failed to list commits", "branch", branch, "error", err)
			}
			return 0, true
		}
		commits = append(commits, page...)
	}
	if len(commits) == 0 {
		return 0, true
	}

	// The host delivers commits newest first; insert oldest first so the
	// stored order and the notification order are chronological.
	slices.Reverse(commits)

	inserted := 0
	for i, c := range commits {
		if ctx.Err() != nil {
			return inserted, true
		}
		err := s.store.InsertCommit(ctx, c)
		if apperr.IsDuplicate(err) {
			logger.Warn("Commit already exists", "sha", c.ShortSHA(), "branch", c.Branch, "progress", i+1, "of", len(commits))
			continue
		}
		if err != nil {
			logger.Error("Failed to insert commit", "sha", c.ShortSHA(), "error", err, "progress", i+1, "of", len(commits))
			continue
		}
		inserted++
		logger.Info("Commit saved", "sha", c.ShortSHA(), "branch", c.Branch, "progress", i+1, "of", len(commits))
		if hasWatermark {
			s.notify.Broadcast(ctx, notifier.CommitPushed(c))
		}
	}

	if inserted > 0 {
		logger.Info("New commits", "count", inserted, "branches", len(ordered))
		if !hasWatermark {
			// Initial backfill: one summary instead of per-commit noise.
			s.notify.Broadcast(ctx, notifier.RepoInitialized(repo.Account, repo.Name, inserted, len(ordered)))
		}
	}
	return inserted, true
}

// orderBranches places the default branch last and the remaining
// branches in reverse discovery order. The default branch therefore has
// the final say on notification ordering for commits reachable from
// several branches.
func orderBranches(branches []string, defaultBranch string) []string {
	ordered := make([]string, 0, len(branches)+1)
	for _, b := range branches {
		if b != defaultBranch {
			ordered = append(ordered, b)
		}
	}
	slices.Reverse(ordered)
	if defaultBranch != "" {
		ordered = append(ordered, defaultBranch)
	}
	return ordered
}
