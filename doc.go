// Package adwflow orchestrates agentic development workflows: classify an
// issue, create a branch, plan the change, implement it, and commit the
// result, driving an external code-generation agent for each step.
//
// The package is organized by concern:
//
//   - state.go: durable per-workflow state with atomic checkpointing
//   - agent.go: bounded subprocess invocation of the agent CLI
//   - retry.go: bounded-attempt, fixed-backoff retry over agent calls
//   - classify.go: issue classification (keyword or agent-delegated)
//   - branch.go: deterministic branch naming
//   - git.go: git plumbing (branches, commits, status)
//   - github.go, gitlab.go: best-effort issue comment providers
//   - engine.go: the step state machine, built on flowgraph
//
// # Quick Start
//
//	store := adwflow.NewStore("agents")
//	id, _ := store.EnsureID("")
//	state, _ := store.Load(id)
//
//	git, _ := adwflow.NewGitContext(".")
//	invoker := adwflow.NewClaudeInvoker(adwflow.InvokerConfig{})
//	engine := adwflow.NewEngine(adwflow.EngineConfig{
//	    Store:    store,
//	    Executor: adwflow.NewRetryExecutor(invoker),
//	    Git:      git,
//	})
//
//	issue := adwflow.Issue{Number: 123, Body: "Fix bug: crash on null input"}
//	state, err := engine.Run(ctx, state, issue)
//
// Every step checkpoints state to disk before the next step begins, so an
// interrupted workflow resumes from its last completed step when re-run with
// the same workflow id.
package adwflow
