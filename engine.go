package adwflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"
)

// Step names in execution order.
const (
	StepClassify        = "classify"
	StepBranch          = "branch"
	StepPlan            = "plan"
	StepCommitPlan      = "commit-plan"
	StepImplement       = "implement"
	StepCommitImplement = "commit-implementation"
)

// EngineConfig configures a workflow engine.
type EngineConfig struct {
	Store      *Store         // State store (required)
	Executor   *RetryExecutor // Agent executor (required)
	Git        *GitContext    // Git plumbing (required)
	Classifier Classifier     // Issue classifier (default: agent-delegated)
	Comments   IssueCommenter // Progress comments (optional, best-effort)
	Logger     *slog.Logger   // Logger (default: slog.Default)
}

// Engine sequences the workflow steps for one run: classify the issue,
// create a branch, plan, commit the plan, implement, commit the
// implementation. State is checkpointed after every step, and steps whose
// output is already recorded in state are skipped on re-entry.
type Engine struct {
	store      *Store
	executor   *RetryExecutor
	git        *GitContext
	classifier Classifier
	comments   IssueCommenter
	logger     *slog.Logger
}

// NewEngine creates an engine from the given configuration.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		store:      cfg.Store,
		executor:   cfg.Executor,
		git:        cfg.Git,
		classifier: cfg.Classifier,
		comments:   cfg.Comments,
		logger:     cfg.Logger,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Run executes the workflow for the given state and issue content,
// returning the final state. The first failing step halts the run; state
// on disk reflects exactly the last fully completed step.
func (e *Engine) Run(ctx context.Context, state *State, issue Issue) (*State, error) {
	classifier := e.classifier
	if classifier == nil {
		classifier = NewAgentClassifier(e.executor, state.ModelSet)
	}

	state.RecordRun(state.ID)
	if state.IssueNumber == 0 && issue.Number > 0 {
		state.IssueNumber = issue.Number
	}
	if err := e.store.Save(state, "engine"); err != nil {
		return state, err
	}

	e.logger.Info("starting workflow",
		"workflowId", state.ID, "issueNumber", state.IssueNumber)

	graph := flowgraph.NewGraph[State]().
		AddNode(StepClassify, e.classifyNode(classifier, issue)).
		AddNode(StepBranch, e.branchNode(issue)).
		AddNode(StepPlan, e.planNode(issue)).
		AddNode(StepCommitPlan, e.commitNode("planner", issue)).
		AddNode(StepImplement, e.implementNode()).
		AddNode(StepCommitImplement, e.commitNode("implementor", issue)).
		AddEdge(StepClassify, StepBranch).
		AddEdge(StepBranch, StepPlan).
		AddEdge(StepPlan, StepCommitPlan).
		AddEdge(StepCommitPlan, StepImplement).
		AddEdge(StepImplement, StepCommitImplement).
		AddEdge(StepCommitImplement, flowgraph.END).
		SetEntry(StepClassify)

	compiled, err := graph.Compile()
	if err != nil {
		return state, fmt.Errorf("compile workflow graph: %w", err)
	}

	final, err := compiled.Run(flowgraph.NewContext(ctx), *state)
	if err != nil {
		e.logger.Error("workflow halted",
			"workflowId", state.ID, "error", err)
		return &final, err
	}

	e.logger.Info("workflow complete",
		"workflowId", final.ID, "branch", final.BranchName, "planFile", final.PlanFile)
	return &final, nil
}

// classifyNode classifies the issue. An unclassifiable issue is fatal:
// the workflow aborts before any branch or plan work begins.
func (e *Engine) classifyNode(classifier Classifier, issue Issue) flowgraph.NodeFunc[State] {
	return func(ctx flowgraph.Context, state State) (State, error) {
		if state.IssueClass.IsKnown() {
			e.logger.Info("issue already classified, skipping",
				"workflowId", state.ID, "class", state.IssueClass)
			return state, nil
		}

		class, err := classifier.Classify(ctx, state.ID, issue.Content())
		if err != nil {
			return state, err
		}
		if !class.IsKnown() {
			return state, ErrUnclassifiable
		}

		state.IssueClass = class
		if err := e.checkpoint(&state, StepClassify); err != nil {
			return state, err
		}

		e.logger.Info("issue classified", "workflowId", state.ID, "class", class)
		e.comment(ctx, &state, "classifier", fmt.Sprintf("classified issue as %s", class))
		return state, nil
	}
}

// branchNode derives the branch name and creates (or checks out) the
// branch. A state that already carries a branch name skips the step.
func (e *Engine) branchNode(issue Issue) flowgraph.NodeFunc[State] {
	return func(ctx flowgraph.Context, state State) (State, error) {
		if state.BranchName != "" {
			e.logger.Info("branch already created, skipping",
				"workflowId", state.ID, "branch", state.BranchName)
			return state, nil
		}

		name := BranchName(state.ID, state.IssueNumber, truncate(issue.Content(), 50), state.IssueClass)
		git := e.git.InDir(state.WorktreePath)
		if err := git.CreateBranch(name); err != nil {
			return state, err
		}

		state.BranchName = name
		if err := e.checkpoint(&state, StepBranch); err != nil {
			return state, err
		}

		e.logger.Info("branch created", "workflowId", state.ID, "branch", name)
		e.comment(ctx, &state, "ops", fmt.Sprintf("created branch %s", name))
		return state, nil
	}
}

// planNode asks the agent to produce an implementation plan. The plan
// command is the issue class itself; the result text is the plan file path.
func (e *Engine) planNode(issue Issue) flowgraph.NodeFunc[State] {
	return func(ctx flowgraph.Context, state State) (State, error) {
		if state.PlanFile != "" {
			e.logger.Info("plan already created, skipping",
				"workflowId", state.ID, "planFile", state.PlanFile)
			return state, nil
		}

		payload, err := issue.PayloadJSON()
		if err != nil {
			return state, err
		}

		result := e.executor.Invoke(ctx, AgentRequest{
			AgentName:  "planner",
			Command:    state.IssueClass.Command(),
			Args:       []string{strconv.Itoa(state.IssueNumber), state.ID, payload},
			WorkflowID: state.ID,
			ModelSet:   state.ModelSet,
			WorkingDir: state.WorktreePath,
		})
		if !result.Success {
			return state, fmt.Errorf("%w: create plan: %s", ErrStepFailed, result.Err)
		}

		state.PlanFile = strings.TrimSpace(result.Output)
		if err := e.checkpoint(&state, StepPlan); err != nil {
			return state, err
		}

		e.logger.Info("plan created", "workflowId", state.ID, "planFile", state.PlanFile)
		e.comment(ctx, &state, "planner", fmt.Sprintf("plan created: %s", state.PlanFile))
		return state, nil
	}
}

// implementNode feeds the plan file contents to the agent's implement
// command. A missing plan file is fatal.
func (e *Engine) implementNode() flowgraph.NodeFunc[State] {
	return func(ctx flowgraph.Context, state State) (State, error) {
		plan, err := os.ReadFile(state.PlanFile)
		if err != nil {
			return state, fmt.Errorf("%w: %s", ErrPlanNotFound, state.PlanFile)
		}

		result := e.executor.Invoke(ctx, AgentRequest{
			AgentName:  "implementor",
			Command:    CmdImplement,
			Args:       []string{string(plan)},
			WorkflowID: state.ID,
			ModelSet:   state.ModelSet,
			WorkingDir: state.WorktreePath,
		})
		if !result.Success {
			return state, fmt.Errorf("%w: implement plan: %s", ErrStepFailed, result.Err)
		}

		if err := e.checkpoint(&state, StepImplement); err != nil {
			return state, err
		}

		e.logger.Info("implementation complete",
			"workflowId", state.ID, "result", truncate(result.Output, 120))
		e.comment(ctx, &state, "implementor", "implementation complete")
		return state, nil
	}
}

// commitNode asks the agent for a commit message and commits all staged
// and unstaged changes. A clean tree is not an error; the step logs and
// moves on, matching git's create-if-needed semantics elsewhere.
func (e *Engine) commitNode(agentName string, issue Issue) flowgraph.NodeFunc[State] {
	return func(ctx flowgraph.Context, state State) (State, error) {
		result := e.executor.Invoke(ctx, AgentRequest{
			AgentName:  agentName,
			Command:    CmdCommit,
			Args:       []string{agentName, string(state.IssueClass), issue.Content()},
			WorkflowID: state.ID,
			ModelSet:   state.ModelSet,
			WorkingDir: state.WorktreePath,
		})
		if !result.Success {
			return state, fmt.Errorf("%w: create commit: %s", ErrStepFailed, result.Err)
		}

		message := strings.TrimSpace(result.Output)
		git := e.git.InDir(state.WorktreePath)
		sha, err := git.CommitAll(message)
		if err != nil {
			if errors.Is(err, ErrNothingToCommit) {
				e.logger.Warn("nothing to commit", "workflowId", state.ID, "agent", agentName)
				return state, nil
			}
			return state, err
		}

		if err := e.checkpoint(&state, "commit-"+agentName); err != nil {
			return state, err
		}

		e.logger.Info("changes committed",
			"workflowId", state.ID, "agent", agentName, "commit", sha)
		e.comment(ctx, &state, agentName, fmt.Sprintf("committed %s: %s", truncate(sha, 8), message))
		return state, nil
	}
}

// checkpoint persists the state immediately after a step's side effect.
func (e *Engine) checkpoint(state *State, step string) error {
	if err := e.store.Save(state, step); err != nil {
		return fmt.Errorf("checkpoint after %s: %w", step, err)
	}
	return nil
}

// comment posts a best-effort progress comment. Failures are logged and
// never fatal.
func (e *Engine) comment(ctx context.Context, state *State, agentName, message string) {
	if e.comments == nil || state.IssueNumber == 0 {
		return
	}
	body := FormatIssueMessage(state.ID, agentName, message)
	if err := e.comments.CommentOnIssue(ctx, state.IssueNumber, body); err != nil {
		e.logger.Warn("failed to post issue comment",
			"workflowId", state.ID, "issueNumber", state.IssueNumber, "error", err)
	}
}

// truncate shortens s to at most n bytes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
