package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var unmountAll bool

var unmountCmd = &cobra.Command{
	Use:   "unmount [resource-uri...]",
	Short: "Unmount registered shares",
	Long: `Unmount one or more registered shares.

A share unmounted this way stays unmounted: the daemon will not re-mount
it automatically until the network changes or it is mounted by hand.

Examples:
  # Unmount everything
  mountkeep unmount --all

  # Unmount a specific share
  mountkeep unmount smb://nas.corp.example/finance`,
	RunE: runUnmount,
}

func init() {
	unmountCmd.Flags().BoolVarP(&unmountAll, "all", "a", false, "Unmount all registered shares")
}

func runUnmount(cmd *cobra.Command, args []string) error {
	scope, err := scopeFromArgs(unmountAll, args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	_, eng, err := loadEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if err := eng.orchestrator.Unmount(ctx, scope, true); err != nil {
		return err
	}

	printShareOutcomes(cmd, eng.registry.All(), scope)
	return nil
}
