package adwflow

import (
	"context"
	"encoding/json"
	"fmt"
)

// BotIdentifier marks comments posted by the orchestrator.
const BotIdentifier = "[ADW-BOT]"

// Issue is the change request a workflow acts on.
type Issue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Content returns the free text used for classification and planning.
func (i Issue) Content() string {
	if i.Title == "" {
		return i.Body
	}
	if i.Body == "" {
		return i.Title
	}
	return i.Title + "\n\n" + i.Body
}

// PayloadJSON returns the issue as the JSON payload passed to the agent's
// plan command.
func (i Issue) PayloadJSON() (string, error) {
	if i.Title == "" {
		i.Title = fmt.Sprintf("Issue #%d", i.Number)
	}
	data, err := json.Marshal(i)
	if err != nil {
		return "", fmt.Errorf("encode issue: %w", err)
	}
	return string(data), nil
}

// IssueCommenter posts progress comments to an issue tracker. Commenting
// is best-effort: callers log failures and never abort the workflow over
// them.
type IssueCommenter interface {
	CommentOnIssue(ctx context.Context, number int, body string) error
}

// IssueFetcher retrieves an issue from a tracker by number.
type IssueFetcher interface {
	FetchIssue(ctx context.Context, number int) (*Issue, error)
}

// FormatIssueMessage formats a progress message for an issue comment with
// the orchestrator's tracking prefix.
func FormatIssueMessage(workflowID, agentName, message string) string {
	return fmt.Sprintf("%s %s_%s: %s", BotIdentifier, workflowID, agentName, message)
}
