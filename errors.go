package adwflow

import "errors"

// Agent invocation errors
var (
	// ErrAgentNotFound indicates the agent CLI binary was not found at its
	// configured path.
	ErrAgentNotFound = errors.New("agent CLI not found")

	// ErrAgentTimeout indicates the agent subprocess exceeded its wall-clock
	// timeout.
	ErrAgentTimeout = errors.New("agent execution timed out")

	// ErrAgentFailed indicates the agent subprocess exited non-zero.
	ErrAgentFailed = errors.New("agent execution failed")

	// ErrNoResult indicates the agent exited cleanly but its output stream
	// carried no result record.
	ErrNoResult = errors.New("agent returned no result")
)

// Workflow errors
var (
	// ErrUnclassifiable indicates the issue could not be mapped to a known
	// class. The workflow aborts before any branch or plan work begins.
	ErrUnclassifiable = errors.New("could not classify issue")

	// ErrPlanNotFound indicates the plan file recorded in state does not
	// exist on disk.
	ErrPlanNotFound = errors.New("plan file not found")

	// ErrStepFailed indicates an agent-backed step failed after retries.
	ErrStepFailed = errors.New("workflow step failed")
)

// Git operation errors
var (
	// ErrNotGitRepo indicates the path is not a git repository.
	ErrNotGitRepo = errors.New("not a git repository")

	// ErrNothingToCommit indicates there are no staged changes to commit.
	ErrNothingToCommit = errors.New("nothing to commit")
)

// GitError wraps a git command error with context.
type GitError struct {
	Op     string // Operation that failed (e.g., "commit", "create branch")
	Output string // Combined stdout/stderr output
	Err    error  // Underlying error
}

func (e *GitError) Error() string {
	if e.Output != "" {
		return e.Op + ": " + e.Output
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *GitError) Unwrap() error {
	return e.Err
}
