package adwflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Command identifies one of the agent's slash command templates.
type Command string

// The closed set of commands the orchestrator issues.
const (
	CmdClassifyIssue Command = "/classify_issue"
	CmdChore         Command = "/chore"
	CmdBug           Command = "/bug"
	CmdFeature       Command = "/feature"
	CmdPatch         Command = "/patch"
	CmdImplement     Command = "/implement"
	CmdCommit        Command = "/commit"
	CmdTest          Command = "/test"
)

// ModelBaseline is the model used when a command has no mapping.
const ModelBaseline = "sonnet"

// commandModels maps (command, model set) to the model to run it with.
var commandModels = map[Command]map[ModelSet]string{
	CmdClassifyIssue: {ModelSetBase: "sonnet", ModelSetHeavy: "sonnet"},
	CmdChore:         {ModelSetBase: "sonnet", ModelSetHeavy: "opus"},
	CmdBug:           {ModelSetBase: "sonnet", ModelSetHeavy: "opus"},
	CmdFeature:       {ModelSetBase: "sonnet", ModelSetHeavy: "opus"},
	CmdPatch:         {ModelSetBase: "sonnet", ModelSetHeavy: "sonnet"},
	CmdImplement:     {ModelSetBase: "sonnet", ModelSetHeavy: "opus"},
	CmdCommit:        {ModelSetBase: "sonnet", ModelSetHeavy: "sonnet"},
	CmdTest:          {ModelSetBase: "sonnet", ModelSetHeavy: "sonnet"},
}

// ModelForCommand returns the model for a command under the given model set,
// falling back to ModelBaseline for unmapped commands or sets.
func ModelForCommand(cmd Command, set ModelSet) string {
	models, ok := commandModels[cmd]
	if !ok {
		return ModelBaseline
	}
	if model, ok := models[set]; ok {
		return model
	}
	return ModelBaseline
}

// AgentRequest describes a single agent invocation. Immutable once built.
type AgentRequest struct {
	AgentName  string   // Provenance tag for state updates and comments
	Command    Command  // Slash command to execute
	Args       []string // Positional arguments for the command
	WorkflowID string   // Owning workflow id
	Model      string   // Explicit model override (empty = resolve by command)
	ModelSet   ModelSet // Model set used when resolving by command
	WorkingDir string   // Working directory override (empty = process cwd)
}

// AgentResult is the outcome of one invocation attempt.
type AgentResult struct {
	Success   bool   // True iff a result was produced and no error reported
	Output    string // Result text on success
	Err       string // Error text on failure
	RawOutput string // Complete raw stdout, for diagnostics
	Retryable bool   // Whether the failure is considered transient
}

func successResult(output, raw string) AgentResult {
	return AgentResult{Success: true, Output: output, RawOutput: raw}
}

func failureResult(errText string, retryable bool, raw string) AgentResult {
	return AgentResult{Err: errText, Retryable: retryable, RawOutput: raw}
}

// Invoker executes one agent request and reports its typed outcome.
// Failures are returned in the result, not as an error; the error channel
// is reserved for the caller's own plumbing.
type Invoker interface {
	Invoke(ctx context.Context, req AgentRequest) AgentResult
}

// DefaultAgentTimeout bounds one agent subprocess invocation.
const DefaultAgentTimeout = 600 * time.Second

// InvokerConfig configures the Claude CLI invoker.
type InvokerConfig struct {
	BinaryPath string        // Path to the agent binary (default: ~/.local/bin/claude)
	Timeout    time.Duration // Per-invocation timeout (default: 600s)
}

// ClaudeInvoker drives the Claude Code CLI as the external agent.
type ClaudeInvoker struct {
	binaryPath string
	timeout    time.Duration
}

// NewClaudeInvoker creates an invoker. The binary is not required to exist
// at construction time; a missing binary surfaces as a non-retryable
// failure on each invocation, naming the missing path.
func NewClaudeInvoker(cfg InvokerConfig) *ClaudeInvoker {
	binaryPath := cfg.BinaryPath
	if binaryPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			binaryPath = filepath.Join(home, ".local", "bin", "claude")
		} else {
			binaryPath = "claude"
		}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultAgentTimeout
	}

	return &ClaudeInvoker{
		binaryPath: binaryPath,
		timeout:    timeout,
	}
}

// BinaryPath returns the configured agent binary path.
func (c *ClaudeInvoker) BinaryPath() string {
	return c.binaryPath
}

// Timeout returns the per-invocation timeout.
func (c *ClaudeInvoker) Timeout() time.Duration {
	return c.timeout
}

// Invoke runs the agent for one request.
//
// Outcome taxonomy: a missing binary is non-retryable (the environment is
// broken). A timeout or non-zero exit is retryable (assumed transient).
// A clean exit is parsed as newline-delimited JSON; a well-formed reply
// that signals an error, or yields no result at all, is non-retryable.
func (c *ClaudeInvoker) Invoke(ctx context.Context, req AgentRequest) AgentResult {
	if _, err := os.Stat(c.binaryPath); err != nil {
		return failureResult(
			fmt.Sprintf("%v at %s", ErrAgentNotFound, c.binaryPath), false, "")
	}

	model := req.Model
	if model == "" {
		model = ModelForCommand(req.Command, req.ModelSet)
	}

	args := []string{"-m", model, "-p", string(req.Command)}
	args = append(args, req.Args...)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binaryPath, args...)
	if req.WorkingDir != "" {
		cmd.Dir = req.WorkingDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return c.outcome(err, ctx.Err(), stdout.String(), stderr.String())
}

// outcome classifies one finished run. A clean exit is parsed even when the
// deadline fired while the output was being drained; only a failed run is
// reported as a timeout.
func (c *ClaudeInvoker) outcome(runErr, ctxErr error, stdout, stderr string) AgentResult {
	if runErr == nil {
		return parseAgentOutput(stdout)
	}

	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return failureResult(
			fmt.Sprintf("%v after %v", ErrAgentTimeout, c.timeout), true, stdout)
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return failureResult(
			fmt.Sprintf("%v: exit code %d: %s",
				ErrAgentFailed, exitErr.ExitCode(), strings.TrimSpace(stderr)),
			true, stdout)
	}

	// Could not spawn the process at all.
	return failureResult(fmt.Sprintf("execution error: %v", runErr), false, stdout)
}

// parseAgentOutput decodes the agent's newline-delimited JSON stdout.
//
// Each record is decoded independently; malformed records are skipped. A
// record's "result" or "text" field becomes the result candidate, its
// "error" field the error candidate. The last matching record wins: the
// protocol assumes the final record carries the authoritative outcome.
func parseAgentOutput(output string) AgentResult {
	var resultText, errorText string
	var haveResult, haveError bool

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var record map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			continue
		}

		if raw, ok := record["result"]; ok {
			if s, ok := decodeString(raw); ok {
				resultText = s
				haveResult = true
			}
		} else if raw, ok := record["text"]; ok {
			if s, ok := decodeString(raw); ok {
				resultText = s
				haveResult = true
			}
		} else if raw, ok := record["error"]; ok {
			if s, ok := decodeString(raw); ok {
				errorText = s
				haveError = true
			}
		}
	}

	if haveResult && !haveError {
		return successResult(resultText, output)
	}
	if haveError {
		return failureResult(errorText, false, output)
	}
	return failureResult(ErrNoResult.Error(), false, output)
}

func decodeString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
