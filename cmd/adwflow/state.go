package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/adwflow"
	"github.com/randalmurphal/adwflow/config"
)

func stateCmd() *cobra.Command {
	var stateDir string

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect persisted workflow state",
	}
	cmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "workflow state root directory")

	show := &cobra.Command{
		Use:   "show <workflow-id>",
		Short: "Print a workflow's state file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := newStore(stateDir)
			id := args[0]
			if !store.Exists(id) {
				return fmt.Errorf("no state for workflow %s", id)
			}
			data, err := os.ReadFile(store.Path(id))
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}

	path := &cobra.Command{
		Use:   "path <workflow-id>",
		Short: "Print the path of a workflow's state file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(newStore(stateDir).Path(args[0]))
			return nil
		},
	}

	cmd.AddCommand(show, path)
	return cmd
}

func newStore(stateDir string) *adwflow.Store {
	cfg := config.NewResolver().ResolveWithFlags(map[string]string{
		config.KeyStateDir: stateDir,
	})
	return adwflow.NewStore(cfg.Get(config.KeyStateDir))
}
