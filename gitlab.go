package adwflow

import (
	"context"
	"fmt"

	"github.com/xanzy/go-gitlab"
)

// GitLabTracker posts progress comments to GitLab issues. It implements
// IssueCommenter and IssueFetcher.
type GitLabTracker struct {
	client    *gitlab.Client
	projectID string
}

// NewGitLabTracker creates a GitLab tracker.
// token is a personal access token.
// baseURL is the GitLab instance URL (empty for gitlab.com).
// projectID can be a numeric ID or "namespace/project" path.
func NewGitLabTracker(token, baseURL, projectID string) (*GitLabTracker, error) {
	if token == "" {
		return nil, fmt.Errorf("GitLab token is required")
	}
	if projectID == "" {
		return nil, fmt.Errorf("project ID is required")
	}

	var client *gitlab.Client
	var err error

	if baseURL != "" {
		client, err = gitlab.NewClient(token, gitlab.WithBaseURL(baseURL))
	} else {
		client, err = gitlab.NewClient(token)
	}
	if err != nil {
		return nil, fmt.Errorf("create GitLab client: %w", err)
	}

	return &GitLabTracker{
		client:    client,
		projectID: projectID,
	}, nil
}

// FetchIssue retrieves an issue by its project-local IID.
func (t *GitLabTracker) FetchIssue(ctx context.Context, number int) (*Issue, error) {
	issue, _, err := t.client.Issues.GetIssue(t.projectID, number)
	if err != nil {
		return nil, fmt.Errorf("fetch issue #%d: %w", number, err)
	}
	return &Issue{
		Number: number,
		Title:  issue.Title,
		Body:   issue.Description,
	}, nil
}

// CommentOnIssue adds a note to the issue.
func (t *GitLabTracker) CommentOnIssue(ctx context.Context, number int, body string) error {
	_, _, err := t.client.Notes.CreateIssueNote(t.projectID, number,
		&gitlab.CreateIssueNoteOptions{Body: gitlab.Ptr(body)})
	if err != nil {
		return fmt.Errorf("comment on issue #%d: %w", number, err)
	}
	return nil
}
