package adwflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commandInvoker responds per command and records every request.
type commandInvoker struct {
	responses map[Command]AgentResult
	requests  []AgentRequest
}

func (c *commandInvoker) Invoke(_ context.Context, req AgentRequest) AgentResult {
	c.requests = append(c.requests, req)
	if result, ok := c.responses[req.Command]; ok {
		return result
	}
	return failureResult(fmt.Sprintf("unexpected command %s", req.Command), false, "")
}

func (c *commandInvoker) commands() []Command {
	var cmds []Command
	for _, req := range c.requests {
		cmds = append(cmds, req.Command)
	}
	return cmds
}

// recordingCommenter collects posted comments.
type recordingCommenter struct {
	bodies []string
}

func (r *recordingCommenter) CommentOnIssue(_ context.Context, _ int, body string) error {
	r.bodies = append(r.bodies, body)
	return nil
}

func newTestEngine(t *testing.T, repo string, invoker Invoker, comments IssueCommenter) (*Engine, *Store) {
	t.Helper()

	store := NewStore(t.TempDir())
	git, err := NewGitContext(repo)
	require.NoError(t, err)

	engine := NewEngine(EngineConfig{
		Store:    store,
		Executor: NewRetryExecutor(invoker, WithSleep(func(time.Duration) {})),
		Git:      git,
		Comments: comments,
	})
	return engine, store
}

func TestEngine_FullRun(t *testing.T) {
	repo := setupTempRepo(t)

	planPath := filepath.Join(repo, "plan.md")
	require.NoError(t, os.WriteFile(planPath, []byte("# Plan\n"), 0o644))

	invoker := &commandInvoker{responses: map[Command]AgentResult{
		CmdClassifyIssue: successResult("/feature", ""),
		CmdFeature:       successResult(planPath+"\n", ""),
		CmdImplement:     successResult("implemented the login form", ""),
		CmdCommit:        successResult("feat: add login form", ""),
	}}
	comments := &recordingCommenter{}

	engine, store := newTestEngine(t, repo, invoker, comments)

	state := NewState("abc12345")
	issue := Issue{Number: 42, Body: "Add login form"}

	final, err := engine.Run(context.Background(), state, issue)
	require.NoError(t, err)

	assert.Equal(t, ClassFeature, final.IssueClass)
	assert.Equal(t, "feat-42-abc12345-add-login-form", final.BranchName)
	assert.Equal(t, planPath, final.PlanFile)
	assert.Equal(t, 42, final.IssueNumber)
	assert.Equal(t, []string{"abc12345"}, final.AllRuns)

	// The checkpoint on disk matches the final state.
	loaded, err := store.Load("abc12345")
	require.NoError(t, err)
	assert.Equal(t, final.BranchName, loaded.BranchName)
	assert.Equal(t, final.PlanFile, loaded.PlanFile)
	assert.Equal(t, final.IssueClass, loaded.IssueClass)

	// The branch was created and checked out, and the plan committed.
	git, err := NewGitContext(repo)
	require.NoError(t, err)
	branch, err := git.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "feat-42-abc12345-add-login-form", branch)
	assert.False(t, git.HasUncommittedChanges())

	// Progress comments were posted with the bot identifier.
	require.NotEmpty(t, comments.bodies)
	for _, body := range comments.bodies {
		assert.Contains(t, body, BotIdentifier)
		assert.Contains(t, body, "abc12345")
	}
}

func TestEngine_ResumeSkipsCompletedSteps(t *testing.T) {
	repo := setupTempRepo(t)

	planPath := filepath.Join(repo, "plan.md")
	require.NoError(t, os.WriteFile(planPath, []byte("# Plan\n"), 0o644))

	invoker := &commandInvoker{responses: map[Command]AgentResult{
		CmdImplement: successResult("done", ""),
		CmdCommit:    successResult("chore: finish up", ""),
	}}

	engine, _ := newTestEngine(t, repo, invoker, nil)

	// State from a previous run that completed through planning.
	state := NewState("abc12345")
	state.IssueNumber = 42
	state.IssueClass = ClassChore
	state.BranchName = "chore-42-abc12345-preexisting"
	state.PlanFile = planPath

	final, err := engine.Run(context.Background(), state, Issue{Number: 42, Body: "tidy"})
	require.NoError(t, err)

	// Classify, branch and plan were skipped: the agent only saw the
	// commit and implement commands.
	for _, cmd := range invoker.commands() {
		assert.Contains(t, []Command{CmdImplement, CmdCommit}, cmd)
	}
	assert.Equal(t, "chore-42-abc12345-preexisting", final.BranchName)

	// The branch step did not run: the repo is still on main.
	git, err := NewGitContext(repo)
	require.NoError(t, err)
	branch, err := git.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestEngine_RunsBranchStepWhenUnset(t *testing.T) {
	repo := setupTempRepo(t)

	planPath := filepath.Join(repo, "plan.md")
	require.NoError(t, os.WriteFile(planPath, []byte("# Plan\n"), 0o644))

	invoker := &commandInvoker{responses: map[Command]AgentResult{
		CmdChore:     successResult(planPath, ""),
		CmdImplement: successResult("done", ""),
		CmdCommit:    successResult("chore: tidy", ""),
	}}

	engine, _ := newTestEngine(t, repo, invoker, nil)

	state := NewState("abc12345")
	state.IssueClass = ClassChore // classified, but no branch yet

	final, err := engine.Run(context.Background(), state, Issue{Number: 9, Body: "tidy things"})
	require.NoError(t, err)
	require.NotEmpty(t, final.BranchName)

	git, err := NewGitContext(repo)
	require.NoError(t, err)
	branch, err := git.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, final.BranchName, branch)
}

func TestEngine_UnclassifiableAborts(t *testing.T) {
	repo := setupTempRepo(t)

	invoker := &commandInvoker{responses: map[Command]AgentResult{
		CmdClassifyIssue: successResult("0", ""),
	}}

	engine, store := newTestEngine(t, repo, invoker, nil)

	state := NewState("abc12345")
	_, err := engine.Run(context.Background(), state, Issue{Number: 1, Body: "???"})
	require.ErrorIs(t, err, ErrUnclassifiable)

	// No branch or plan work happened.
	git, err := NewGitContext(repo)
	require.NoError(t, err)
	branch, err := git.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	loaded, err := store.Load("abc12345")
	require.NoError(t, err)
	assert.Empty(t, loaded.BranchName)
	assert.False(t, loaded.IssueClass.IsKnown())
}

func TestEngine_StepFailureHaltsAndPreservesCheckpoints(t *testing.T) {
	repo := setupTempRepo(t)

	planPath := filepath.Join(repo, "plan.md")
	require.NoError(t, os.WriteFile(planPath, []byte("# Plan\n"), 0o644))

	invoker := &commandInvoker{responses: map[Command]AgentResult{
		CmdClassifyIssue: successResult("/feature", ""),
		CmdFeature:       successResult(planPath, ""),
		CmdCommit:        successResult("feat: plan", ""),
		CmdImplement:     {Err: "agent gave up", Retryable: false},
	}}

	engine, store := newTestEngine(t, repo, invoker, nil)

	state := NewState("abc12345")
	_, err := engine.Run(context.Background(), state, Issue{Number: 5, Body: "Add widget"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStepFailed)

	// Completed steps survive the failure.
	loaded, err := store.Load("abc12345")
	require.NoError(t, err)
	assert.Equal(t, ClassFeature, loaded.IssueClass)
	assert.NotEmpty(t, loaded.BranchName)
	assert.Equal(t, planPath, loaded.PlanFile)
}

func TestEngine_MissingPlanFileIsFatal(t *testing.T) {
	repo := setupTempRepo(t)

	invoker := &commandInvoker{responses: map[Command]AgentResult{
		CmdClassifyIssue: successResult("/feature", ""),
		CmdFeature:       successResult(filepath.Join(repo, "no-such-plan.md"), ""),
		CmdCommit:        successResult("feat: plan", ""),
	}}

	engine, _ := newTestEngine(t, repo, invoker, nil)

	state := NewState("abc12345")
	_, err := engine.Run(context.Background(), state, Issue{Number: 5, Body: "Add widget"})
	require.ErrorIs(t, err, ErrPlanNotFound)
}

func TestEngine_CommentFailureIsNotFatal(t *testing.T) {
	repo := setupTempRepo(t)

	planPath := filepath.Join(repo, "plan.md")
	require.NoError(t, os.WriteFile(planPath, []byte("# Plan\n"), 0o644))

	invoker := &commandInvoker{responses: map[Command]AgentResult{
		CmdClassifyIssue: successResult("/feature", ""),
		CmdFeature:       successResult(planPath, ""),
		CmdImplement:     successResult("done", ""),
		CmdCommit:        successResult("feat: widget", ""),
	}}

	engine, _ := newTestEngine(t, repo, invoker, failingCommenter{})

	state := NewState("abc12345")
	_, err := engine.Run(context.Background(), state, Issue{Number: 5, Body: "Add widget"})
	require.NoError(t, err)
}

type failingCommenter struct{}

func (failingCommenter) CommentOnIssue(context.Context, int, string) error {
	return errors.New("tracker unavailable")
}
