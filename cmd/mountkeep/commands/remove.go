package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/mountkeep/internal/cli/prompt"
	"github.com/marmos91/mountkeep/pkg/mount/orchestrator"
)

var removeForce bool

var removeCmd = &cobra.Command{
	Use:   "remove <resource-uri>",
	Short: "Unregister a share",
	Long: `Unregister a share, unmounting it first if it is currently mounted.

Centrally managed shares cannot be removed locally.

Examples:
  mountkeep remove smb://nas.corp.example/finance`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().BoolVar(&removeForce, "force", false, "Skip confirmation and remove even if unmounting fails")
}

func runRemove(cmd *cobra.Command, args []string) error {
	uri := args[0]

	ctx := context.Background()
	_, eng, err := loadEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	share, ok := eng.registry.FindByURI(uri)
	if !ok {
		return fmt.Errorf("no registered share matches %s", uri)
	}
	if share.Managed {
		return fmt.Errorf("%s is centrally managed and cannot be removed locally", uri)
	}

	label := fmt.Sprintf("Remove %s", uri)
	if share.Status.Mounted() {
		label = fmt.Sprintf("Unmount %s and remove it", uri)
	}
	confirmed, err := prompt.ConfirmWithForce(label, removeForce)
	if err != nil {
		return err
	}
	if !confirmed {
		cmd.Println("Aborted")
		return nil
	}

	if share.Status.Mounted() {
		if err := eng.orchestrator.Unmount(ctx, orchestrator.ScopeURIs(uri), true); err != nil && !removeForce {
			return fmt.Errorf("unmount failed (use --force to remove anyway): %w", err)
		}
	}

	if err := eng.registry.Remove(share.ID); err != nil {
		return err
	}
	cmd.Printf("Removed %s\n", uri)
	return nil
}
