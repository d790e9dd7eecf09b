// Package provider is the boundary to the operating system's mount
// machinery. It executes mounts and unmounts and reports outcomes as raw
// numeric codes; interpretation of those codes lives in the error taxonomy,
// not here.
package provider

import (
	"context"

	"github.com/marmos91/mountkeep/pkg/mount"
)

// Request describes one mount attempt. Credentials arrive already
// resolved; the provider never consults credential storage itself.
type Request struct {
	// ResourceURI is the remote share reference, e.g. smb://srv/finance
	// or nfs://nas/export/home.
	ResourceURI string

	// AuthKind selects how the mount authenticates.
	AuthKind mount.AuthKind

	// Username, Password and Domain are used for password
	// authentication. Empty for Kerberos and guest mounts.
	Username string
	Password string
	Domain   string

	// TargetPath is the local directory to mount at.
	TargetPath string

	// ProviderOwned marks targets inside the OS-default shared
	// namespace, where the system manages the mount directory itself.
	ProviderOwned bool
}

// Provider mounts and unmounts network shares.
//
// Mount returns the provider's raw outcome code: mount.RawCodeOK on
// success, a non-zero code otherwise. The error return is reserved for
// failures to run the provider at all (binary missing, context cancelled);
// a mount that ran and failed reports through the raw code alone.
type Provider interface {
	Mount(ctx context.Context, req Request) (int, error)
	Unmount(ctx context.Context, path string) error
}
