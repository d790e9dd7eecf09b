// Package resolver turns a share definition plus a base directory into a
// candidate local mount path and classifies whatever already sits there.
//
// Resolution is pure bookkeeping: it never creates, deletes, or mounts
// anything. The orchestrator acts on the returned classification.
package resolver

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/marmos91/mountkeep/pkg/mount"
	"github.com/marmos91/mountkeep/pkg/mount/mtab"
)

// ErrNoMountComponent is returned when neither the URI path nor the host
// yields a usable mount directory name.
var ErrNoMountComponent = errors.New("cannot determine mount component")

// hiddenShareMarker is stripped from local directory names. Windows hidden
// shares end in "$" (finance$); the marker only affects the local path, the
// remote resource reference keeps it.
const hiddenShareMarker = "$"

// State classifies what currently occupies the resolved target path.
type State string

const (
	// StateFresh: nothing at the target, safe to create and mount.
	StateFresh State = "fresh"

	// StateAlreadyMounted: the target is already a mount of this very
	// share. Idempotent success, no new attempt needed.
	StateAlreadyMounted State = "alreadyMounted"

	// StateObstructingMount: the target is a mount of something else.
	// Fatal for this attempt unless the base is provider-owned.
	StateObstructingMount State = "obstructingMount"

	// StateObstructingDirectory: a plain directory or file occupies the
	// target. Reclaimable only outside the provider-owned namespace.
	StateObstructingDirectory State = "obstructingDirectory"
)

// Target is the outcome of resolution.
type Target struct {
	// Path is the concrete local path to mount at. For a provider-owned
	// base this is the base directory itself: the provider picks the
	// final path component.
	Path string

	// DisplayName is the effective mount directory name, kept for
	// bookkeeping even when the provider owns the final component.
	DisplayName string

	// ProviderOwned marks the OS-default shared mount root, where the
	// daemon never creates or removes directories itself.
	ProviderOwned bool

	// State classifies the current on-disk situation at Path.
	State State
}

// Resolver resolves mount targets against the live mount table.
type Resolver struct {
	table mtab.Table
}

// New creates a resolver backed by the given mount table.
func New(table mtab.Table) *Resolver {
	return &Resolver{table: table}
}

// DefaultSharedRoot returns the mount namespace owned by the OS, where the
// system picks final path components and the daemon must not clean up.
func DefaultSharedRoot() string {
	if runtime.GOOS == "darwin" {
		return "/Volumes"
	}
	return "/media"
}

// ProviderOwned reports whether baseDir is the OS-default shared root.
func ProviderOwned(baseDir string) bool {
	return filepath.Clean(baseDir) == DefaultSharedRoot()
}

// EffectiveName derives the local mount directory name for a share:
// the explicit MountPointName if set, else the final path segment of the
// resource URI, else the host name. A trailing hidden-share marker is
// stripped for the local name only.
func EffectiveName(share *mount.Share) (string, error) {
	name := share.MountPointName
	if name == "" {
		derived, err := deriveName(share.ResourceURI)
		if err != nil {
			return "", err
		}
		name = derived
	}

	name = strings.TrimSuffix(name, hiddenShareMarker)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("%w: %q", ErrNoMountComponent, share.ResourceURI)
	}
	return name, nil
}

func deriveName(resourceURI string) (string, error) {
	u, err := url.Parse(resourceURI)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrNoMountComponent, resourceURI, err)
	}

	if segment := path.Base(strings.TrimSuffix(u.Path, "/")); segment != "" && segment != "." && segment != "/" {
		return segment, nil
	}
	if host := u.Hostname(); host != "" {
		return host, nil
	}
	return "", fmt.Errorf("%w: %q", ErrNoMountComponent, resourceURI)
}

// Resolve computes the target path for a share under baseDir and classifies
// the current on-disk state there.
func (r *Resolver) Resolve(share *mount.Share, baseDir string) (*Target, error) {
	name, err := EffectiveName(share)
	if err != nil {
		return nil, err
	}

	if ProviderOwned(baseDir) {
		return r.resolveProviderOwned(share, baseDir, name)
	}

	target := &Target{
		Path:        filepath.Join(baseDir, name),
		DisplayName: name,
	}

	state, err := r.classify(share, target.Path)
	if err != nil {
		return nil, err
	}
	target.State = state
	return target, nil
}

// resolveProviderOwned handles the OS-default namespace: the working
// location is the base directory itself and the final component is the
// provider's to choose. The only classification that matters is whether the
// share is already mounted at its natural name.
func (r *Resolver) resolveProviderOwned(share *mount.Share, baseDir, name string) (*Target, error) {
	target := &Target{
		Path:          baseDir,
		DisplayName:   name,
		ProviderOwned: true,
		State:         StateFresh,
	}

	natural := filepath.Join(baseDir, name)
	mounted, err := r.table.IsMountPoint(natural)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", natural, err)
	}
	if mounted {
		device, err := r.table.DeviceFor(natural)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect %s: %w", natural, err)
		}
		if mtab.MatchesResource(device, share.ResourceURI) {
			target.Path = natural
			target.State = StateAlreadyMounted
		}
		// A foreign mount at the natural name is not an obstruction
		// here: the provider mints its own sibling name.
	}

	return target, nil
}

// classify inspects the on-disk state at path for a non-provider-owned base.
func (r *Resolver) classify(share *mount.Share, path string) (State, error) {
	if _, err := os.Lstat(path); err != nil {
		if os.IsNotExist(err) {
			return StateFresh, nil
		}
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}

	mounted, err := r.table.IsMountPoint(path)
	if err != nil {
		return "", fmt.Errorf("failed to inspect %s: %w", path, err)
	}
	if !mounted {
		return StateObstructingDirectory, nil
	}

	device, err := r.table.DeviceFor(path)
	if err != nil {
		return "", fmt.Errorf("failed to inspect %s: %w", path, err)
	}
	if mtab.MatchesResource(device, share.ResourceURI) {
		return StateAlreadyMounted, nil
	}
	return StateObstructingMount, nil
}
