package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/mountkeep/pkg/mount"
	"github.com/marmos91/mountkeep/pkg/mount/orchestrator"
)

var mountAll bool

var mountCmd = &cobra.Command{
	Use:   "mount [resource-uri...]",
	Short: "Mount registered shares",
	Long: `Mount one or more registered shares immediately.

A user-initiated mount overrides the automatic cool-down: shares that
previously failed or were unmounted by hand are retried.

Examples:
  # Mount everything
  mountkeep mount --all

  # Mount specific shares
  mountkeep mount smb://nas.corp.example/finance`,
	RunE: runMount,
}

func init() {
	mountCmd.Flags().BoolVarP(&mountAll, "all", "a", false, "Mount all registered shares")
}

func runMount(cmd *cobra.Command, args []string) error {
	scope, err := scopeFromArgs(mountAll, args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	_, eng, err := loadEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if err := eng.orchestrator.Reconcile(ctx, scope, orchestrator.TriggerUser); err != nil {
		return err
	}

	printShareOutcomes(cmd, eng.registry.All(), scope)
	return nil
}

// scopeFromArgs builds a reconcile scope from the --all flag and the
// positional resource URIs.
func scopeFromArgs(all bool, args []string) (orchestrator.Scope, error) {
	if all {
		if len(args) > 0 {
			return orchestrator.Scope{}, fmt.Errorf("cannot combine --all with resource URIs")
		}
		return orchestrator.ScopeAll(), nil
	}
	if len(args) == 0 {
		return orchestrator.Scope{}, fmt.Errorf("specify at least one resource URI or use --all")
	}
	return orchestrator.ScopeURIs(args...), nil
}

// printShareOutcomes reports per-share status after a one-shot operation.
func printShareOutcomes(cmd *cobra.Command, shares []*mount.Share, scope orchestrator.Scope) {
	for _, share := range shares {
		if !scope.All && !scopeContains(scope, share.ResourceURI) {
			continue
		}
		if share.Status == mount.StatusMounted {
			cmd.Printf("%s  %s (%s)\n", share.Status, share.ResourceURI, share.ActualMountPoint)
		} else {
			cmd.Printf("%s  %s\n", share.Status, share.ResourceURI)
		}
	}
}

func scopeContains(scope orchestrator.Scope, uri string) bool {
	for _, candidate := range scope.URIs {
		if mount.SameResource(candidate, uri) {
			return true
		}
	}
	return false
}
