package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/mountkeep/internal/cli/prompt"
	"github.com/marmos91/mountkeep/pkg/config"
	"github.com/marmos91/mountkeep/pkg/mount"
	"github.com/marmos91/mountkeep/pkg/mount/orchestrator"
)

var (
	addAuth          string
	addName          string
	addCredentialRef string
	addMount         bool
)

var addCmd = &cobra.Command{
	Use:   "add <resource-uri>",
	Short: "Register a share",
	Long: `Register a remote share so the daemon keeps it mounted.

The resource URI addresses the remote share, e.g. smb://nas.corp.example/finance
or nfs://filer.corp.example/exports/scratch.

For password authentication the credential is stored in the configuration
file under the given reference; the share itself only carries the
reference. If the reference has no entry yet, you are prompted for the
username and password (never echoed).

Examples:
  # Kerberos share, mount right away
  mountkeep add smb://nas.corp.example/finance --auth kerberos --credential-ref alice@CORP.EXAMPLE --mount

  # Password share, prompts for the credential
  mountkeep add smb://legacy/backup --auth password --credential-ref legacy-nas

  # Guest NFS export with a custom mount directory name
  mountkeep add nfs://filer/exports/scratch --name scratch-space`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addAuth, "auth", "guest", "Authentication method: guest, password, kerberos")
	addCmd.Flags().StringVar(&addName, "name", "", "Mount directory name (default: last path segment of the URI)")
	addCmd.Flags().StringVar(&addCredentialRef, "credential-ref", "", "Credential reference (config entry name, or principal for kerberos)")
	addCmd.Flags().BoolVar(&addMount, "mount", false, "Mount the share immediately after registering it")
}

func runAdd(cmd *cobra.Command, args []string) error {
	uri := args[0]

	share := mount.NewShare(uri, mount.AuthKind(addAuth))
	share.MountPointName = addName
	share.CredentialRef = addCredentialRef
	if err := share.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	cfg, eng, err := loadEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if share.AuthKind == mount.AuthPassword {
		if err := ensurePasswordCredential(cfg, share.CredentialRef); err != nil {
			return err
		}
	}

	if !eng.registry.Add(share) {
		return fmt.Errorf("a share for %s is already registered", uri)
	}
	cmd.Printf("Registered %s\n", share.ResourceURI)

	if addMount {
		if err := eng.orchestrator.Reconcile(ctx, orchestrator.ScopeURIs(share.ResourceURI), orchestrator.TriggerUser); err != nil {
			return err
		}
		printShareOutcomes(cmd, eng.registry.All(), orchestrator.ScopeURIs(share.ResourceURI))
	}

	return nil
}

// ensurePasswordCredential makes sure the credential reference resolves:
// an existing config entry is kept, a missing one is prompted for and
// written back to the configuration file.
func ensurePasswordCredential(cfg *config.Config, ref string) error {
	if ref == "" {
		return fmt.Errorf("password authentication requires --credential-ref")
	}
	if _, ok := cfg.Credentials[ref]; ok {
		return nil
	}

	username, err := prompt.InputRequired("Username")
	if err != nil {
		return err
	}
	password, err := prompt.Password("Password")
	if err != nil {
		return err
	}
	domain, err := prompt.InputOptional("Domain")
	if err != nil {
		return err
	}

	if cfg.Credentials == nil {
		cfg.Credentials = make(map[string]config.CredentialEntry)
	}
	cfg.Credentials[ref] = config.CredentialEntry{
		Username: username,
		Password: password,
		Domain:   domain,
	}

	path := GetConfigFile()
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	if err := config.SaveConfig(cfg, path); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}
