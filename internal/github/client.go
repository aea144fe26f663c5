// internal/github/client.go
package github

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"github-commit-relay/internal/model"
)

// Client is a wrapper around the go-github client, authenticated with a
// single account token.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// Repository is the subset of upstream repository metadata the relay
// consumes.
type Repository struct {
	Owner         string
	Name          string
	DefaultBranch string
	URL           string
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client.
func NewClient(token string, logger *slog.Logger) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		gh:     github.NewClient(tc),
		logger: logger,
	}
}

// AuthenticatedLogin resolves the login of the user the token belongs to.
func (c *Client) AuthenticatedLogin(ctx context.Context) (string, error) {
	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return "", err
	}
	return user.GetLogin(), nil
}

// GetRepository fetches repository metadata.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (Repository, error) {
	repo, _, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return Repository{}, err
	}
	return Repository{
		Owner:         repo.GetOwner().GetLogin(),
		Name:          repo.GetName(),
		DefaultBranch: repo.GetDefaultBranch(),
		URL:           repo.GetHTMLURL(),
	}, nil
}

// ListBranches enumerates the repository's branch names in discovery
// order. It handles API pagination transparently.
func (c *Client) ListBranches(ctx context.Context, owner, name string) ([]string, error) {
	var branches []string

	opts := &github.BranchListOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		page, resp, err := c.gh.Repositories.ListBranches(ctx, owner, name, opts)
		if err != nil {
			return nil, err
		}
		for _, b := range page {
			branches = append(branches, b.GetName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return branches, nil
}

// ListCommits fetches the commits on one branch committed after since,
// newest first as delivered by the API. A zero since fetches the whole
// branch history. It handles API pagination transparently.
func (c *Client) ListCommits(ctx context.Context, owner, name, branch string, since time.Time) ([]model.Commit, error) {
	var commits []model.Commit

	opts := &github.CommitsListOptions{
		SHA:         branch,
		ListOptions: github.ListOptions{PerPage: 100},
	}
	if !since.IsZero() {
		opts.Since = since
	}

	for {
		c.logger.Debug("Fetching commits page", "owner", owner, "repo", name, "branch", branch, "page", opts.Page)

		page, resp, err := c.gh.Repositories.ListCommits(ctx, owner, name, opts)
		if err != nil {
			return nil, err
		}
		for _, rc := range page {
			commits = append(commits, toInternalCommit(owner, name, branch, rc))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return commits, nil
}

// toInternalCommit translates a github.RepositoryCommit object to our
// internal model.Commit. Commits without a resolvable author are
// attributed to the repository owner.
func toInternalCommit(owner, name, branch string, rc *github.RepositoryCommit) model.Commit {
	committer := rc.GetAuthor().GetLogin()
	if committer == "" {
		committer = owner
	}
	return model.Commit{
		Account:     owner,
		Repo:        name,
		SHA:         rc.GetSHA(),
		Committer:   committer,
		Branch:      branch,
		Message:     rc.GetCommit().GetMessage(),
		URL:         rc.GetHTMLURL(),
		CommittedAt: rc.GetCommit().GetCommitter().GetDate().Time,
	}
}

// IsNotFound reports whether err is an upstream 404 for a missing
// repository or user.
func IsNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil &&
		ghErr.Response.StatusCode == http.StatusNotFound
}
