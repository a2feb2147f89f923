package adwflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitHubTracker talks to GitHub for issue fetches and progress comments.
// It implements IssueFetcher and IssueCommenter.
type GitHubTracker struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGitHubTracker creates a GitHub tracker. token is a personal access
// token or GitHub App token; owner and repo identify the repository.
func NewGitHubTracker(token, owner, repo string) (*GitHubTracker, error) {
	if token == "" {
		return nil, fmt.Errorf("GitHub token is required")
	}
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("owner and repo are required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	client := github.NewClient(tc)

	return &GitHubTracker{
		client: client,
		owner:  owner,
		repo:   repo,
	}, nil
}

// NewGitHubTrackerFromRepo creates a tracker from an "owner/repo" string.
func NewGitHubTrackerFromRepo(token, ownerRepo string) (*GitHubTracker, error) {
	owner, repo, err := splitOwnerRepo(ownerRepo)
	if err != nil {
		return nil, err
	}
	return NewGitHubTracker(token, owner, repo)
}

// FetchIssue retrieves an issue by number.
func (t *GitHubTracker) FetchIssue(ctx context.Context, number int) (*Issue, error) {
	issue, _, err := t.client.Issues.Get(ctx, t.owner, t.repo, number)
	if err != nil {
		return nil, fmt.Errorf("fetch issue #%d: %w", number, err)
	}
	return &Issue{
		Number: number,
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
	}, nil
}

// CommentOnIssue posts a comment to the issue.
func (t *GitHubTracker) CommentOnIssue(ctx context.Context, number int, body string) error {
	comment := &github.IssueComment{Body: github.String(body)}
	if _, _, err := t.client.Issues.CreateComment(ctx, t.owner, t.repo, number, comment); err != nil {
		return fmt.Errorf("comment on issue #%d: %w", number, err)
	}
	return nil
}

// splitOwnerRepo parses an "owner/repo" identifier.
func splitOwnerRepo(ownerRepo string) (string, string, error) {
	parts := strings.Split(ownerRepo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q: want owner/repo", ownerRepo)
	}
	return parts[0], parts[1], nil
}
