package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/adwflow"
	"github.com/randalmurphal/adwflow/config"
)

func runCmd() *cobra.Command {
	var (
		modelSet    string
		issueText   string
		stateDir    string
		agentBinary string
		fromStdin   bool
		emitState   bool
	)

	cmd := &cobra.Command{
		Use:   "run <issue-number> [workflow-id]",
		Short: "Run the classify-branch-plan-implement-commit workflow for an issue",
		Long: `Run executes the full workflow for an issue. With a workflow id argument
it resumes that workflow, skipping steps whose output is already recorded.

Issue content is fetched from the configured tracker when one is set up,
taken from --issue-text otherwise, or read from stdin as a last resort.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			issueNumber, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid issue number %q", args[0])
			}

			resolver := config.NewResolver()
			cfg := resolver.ResolveWithFlags(map[string]string{
				config.KeyModelSet:    modelSet,
				config.KeyStateDir:    stateDir,
				config.KeyAgentBinary: agentBinary,
			})

			store := adwflow.NewStore(cfg.Get(config.KeyStateDir))

			var provided string
			if len(args) > 1 {
				provided = args[1]
			}
			id, err := store.EnsureID(provided)
			if err != nil {
				return err
			}

			state, err := store.Load(id)
			if err != nil {
				return err
			}
			if fromStdin {
				state.MergeTransfer(os.Stdin)
			}
			applyModelSet(state, cmd.Flags().Changed("model-set"), modelSet, cfg.Get(config.KeyModelSet))

			fetcher, commenter := buildTracker(cfg)
			issue, err := resolveIssue(cmd, fetcher, issueNumber, issueText, fromStdin)
			if err != nil {
				return err
			}

			git, err := adwflow.NewGitContext(".")
			if err != nil {
				return err
			}

			invoker := adwflow.NewClaudeInvoker(adwflow.InvokerConfig{
				BinaryPath: cfg.Get(config.KeyAgentBinary),
			})
			executor := adwflow.NewRetryExecutor(invoker)

			var classifier adwflow.Classifier
			if cfg.Get(config.KeyClassifier) == "keyword" {
				classifier = adwflow.KeywordClassifier{}
			}

			engine := adwflow.NewEngine(adwflow.EngineConfig{
				Store:      store,
				Executor:   executor,
				Git:        git,
				Classifier: classifier,
				Comments:   commenter,
			})

			final, err := engine.Run(cmd.Context(), state, *issue)
			if err != nil {
				return err
			}

			if emitState {
				return final.WriteTransfer(os.Stdout)
			}
			fmt.Printf("Workflow %s complete on branch %s\n", final.ID, final.BranchName)
			return nil
		},
	}

	cmd.Flags().StringVar(&modelSet, "model-set", "", "model set: base or heavy")
	cmd.Flags().StringVar(&issueText, "issue-text", "", "inline issue text instead of fetching from a tracker")
	cmd.Flags().StringVar(&stateDir, "state-dir", "", "workflow state root directory")
	cmd.Flags().StringVar(&agentBinary, "agent-binary", "", "path to the agent CLI binary")
	cmd.Flags().BoolVar(&fromStdin, "from-stdin", false, "merge a state line piped from a previous process")
	cmd.Flags().BoolVar(&emitState, "emit-state", false, "emit final state as a JSON line on stdout")

	return cmd
}

// applyModelSet decides the model set for this run. An explicit flag always
// wins; otherwise a state still on the default adopts the configured value
// (from file or environment), and a resumed state keeps what it recorded.
func applyModelSet(state *adwflow.State, flagSet bool, flagValue, cfgValue string) {
	if flagSet {
		state.ModelSet = adwflow.ModelSet(flagValue)
		return
	}
	if (state.ModelSet == "" || state.ModelSet == adwflow.ModelSetBase) && cfgValue != "" {
		state.ModelSet = adwflow.ModelSet(cfgValue)
	}
}

// buildTracker wires the configured issue tracker, if any. A GitHub setup
// wins over GitLab when both are configured.
func buildTracker(cfg *config.Resolved) (adwflow.IssueFetcher, adwflow.IssueCommenter) {
	if token, repo := cfg.Get(config.KeyGitHubToken), cfg.Get(config.KeyGitHubRepo); token != "" && repo != "" {
		tracker, err := adwflow.NewGitHubTrackerFromRepo(token, repo)
		if err != nil {
			slog.Warn("GitHub tracker not configured", "error", err)
			return nil, nil
		}
		return tracker, tracker
	}

	if token, project := cfg.Get(config.KeyGitLabToken), cfg.Get(config.KeyGitLabProject); token != "" && project != "" {
		tracker, err := adwflow.NewGitLabTracker(token, cfg.Get(config.KeyGitLabBaseURL), project)
		if err != nil {
			slog.Warn("GitLab tracker not configured", "error", err)
			return nil, nil
		}
		return tracker, tracker
	}

	return nil, nil
}

// resolveIssue determines the issue content for the run.
func resolveIssue(cmd *cobra.Command, fetcher adwflow.IssueFetcher, number int, inline string, stdinUsed bool) (*adwflow.Issue, error) {
	if fetcher != nil {
		issue, err := fetcher.FetchIssue(cmd.Context(), number)
		if err == nil {
			return issue, nil
		}
		slog.Warn("could not fetch issue, falling back to local content",
			"issueNumber", number, "error", err)
	}

	if inline != "" {
		return &adwflow.Issue{Number: number, Body: inline}, nil
	}

	// Piped stdin carries the issue body, unless it was already consumed
	// for the state transfer line.
	if !stdinUsed {
		if info, err := os.Stdin.Stat(); err == nil && info.Mode()&os.ModeCharDevice == 0 {
			body, err := io.ReadAll(os.Stdin)
			if err == nil && len(body) > 0 {
				return &adwflow.Issue{Number: number, Body: string(body)}, nil
			}
		}
	}

	return nil, fmt.Errorf("no issue content: configure a tracker or pass --issue-text")
}
