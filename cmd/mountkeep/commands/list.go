package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/mountkeep/internal/cli/output"
	"github.com/marmos91/mountkeep/pkg/mount"
)

var listOutput string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered shares",
	Long: `List all registered shares with their current status.

Examples:
  mountkeep list
  mountkeep list --output json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format: table, json, yaml")
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(listOutput)
	if err != nil {
		return err
	}

	ctx := context.Background()
	_, eng, err := loadEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	shares := eng.registry.All()

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, shares)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, shares)
	default:
		return output.PrintTable(os.Stdout, shareTable(shares))
	}
}

// shareTable renders shares for table output.
type shareTable []*mount.Share

func (shareTable) Headers() []string {
	return []string{"RESOURCE", "AUTH", "STATUS", "MOUNT POINT", "MANAGED"}
}

func (s shareTable) Rows() [][]string {
	rows := make([][]string, 0, len(s))
	for _, share := range s {
		managed := ""
		if share.Managed {
			managed = "yes"
		}
		rows = append(rows, []string{
			share.ResourceURI,
			string(share.AuthKind),
			string(share.Status),
			share.ActualMountPoint,
			managed,
		})
	}
	return rows
}
