// Package sweeper keeps the mount base directory free of artifacts that
// would otherwise make the OS mint "name-1", "name-2" sibling directories on
// a later mount attempt: leftover empty directories, desktop metadata junk,
// and stray duplicate mounts of shares that are already registered.
package sweeper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/marmos91/mountkeep/internal/logger"
	"github.com/marmos91/mountkeep/pkg/mount"
	"github.com/marmos91/mountkeep/pkg/mount/mtab"
	"github.com/marmos91/mountkeep/pkg/mount/resolver"
)

// maxDuplicateSuffix bounds the numeric suffix parse. Suffixes beyond this
// are not plausible OS-minted duplicates and are left alone.
const maxDuplicateSuffix = 30

// junkFiles are desktop metadata files deleted from leftover directories so
// the directories can be removed once empty.
var junkFiles = map[string]bool{
	".DS_Store":    true,
	".directory":   true,
	"Thumbs.db":    true,
	"desktop.ini":  true,
	".autodiskmnt": true,
}

// Unmounter issues unmount operations against stray duplicate mounts.
type Unmounter interface {
	Unmount(ctx context.Context, path string) error
}

// Report summarizes one sweep pass.
type Report struct {
	RemovedDirs     int
	RemovedJunk     int
	UnmountedStrays []string
	SkippedNonEmpty int
}

// Sweeper scans the base mount directory before a reconcile batch.
type Sweeper struct {
	table     mtab.Table
	unmounter Unmounter

	// removeJunk enables deletion of known junk files and the empty
	// directories left behind. When false, only stray duplicate mounts
	// are handled.
	removeJunk bool
}

// New creates a sweeper. unmounter may be nil, in which case stray
// duplicate mounts are reported but left mounted.
func New(table mtab.Table, unmounter Unmounter, removeJunk bool) *Sweeper {
	return &Sweeper{table: table, unmounter: unmounter, removeJunk: removeJunk}
}

// Sweep pre-cleans baseDir against the known share list. Idempotent and
// safe to run repeatedly: an empty or missing base directory is a no-op.
// Per-item failures are logged and skipped, never aborting the sweep.
//
// The provider-owned OS namespace is never swept.
func (s *Sweeper) Sweep(ctx context.Context, baseDir string, shares []*mount.Share) Report {
	var report Report

	if resolver.ProviderOwned(baseDir) {
		logger.Debug("skipping sweep of provider-owned namespace", logger.KeyBaseDir, baseDir)
		return report
	}

	// The base directory itself must never be a mount point: removing
	// entries under a network volume is exactly the blast radius this
	// check bounds.
	if mounted, err := s.table.IsMountPoint(baseDir); err != nil || mounted {
		if err != nil {
			logger.Warn("cannot inspect base directory, skipping sweep", logger.KeyBaseDir, baseDir, logger.KeyError, err.Error())
		}
		return report
	}

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("cannot list base directory, skipping sweep", logger.KeyBaseDir, baseDir, logger.KeyError, err.Error())
		}
		return report
	}

	names := knownNames(shares)

	for _, entry := range entries {
		if ctx.Err() != nil {
			return report
		}

		child := filepath.Join(baseDir, entry.Name())

		mounted, err := s.table.IsMountPoint(child)
		if err != nil {
			logger.Warn("cannot inspect directory, skipping", logger.KeyPath, child, logger.KeyError, err.Error())
			continue
		}

		if mounted {
			s.sweepStray(ctx, child, entry.Name(), names, &report)
			continue
		}

		if s.removeJunk && entry.IsDir() {
			s.sweepLeftover(child, &report)
		}
	}

	return report
}

// sweepStray checks a mounted child against every known share name
// decorated with a numeric duplicate suffix. A match whose backing device
// addresses an already-registered resource is a stray duplicate mount and
// is unmounted.
func (s *Sweeper) sweepStray(ctx context.Context, path, name string, names map[string]*mount.Share, report *Report) {
	base, n, ok := splitDuplicateSuffix(name)
	if !ok || n > maxDuplicateSuffix {
		return
	}

	share, known := names[base]
	if !known {
		return
	}

	// Exact comparison against the registered resource, not just the
	// name pattern: a user mount that happens to be called "finance-1"
	// but points elsewhere is not ours to unmount.
	device, err := s.table.DeviceFor(path)
	if err != nil {
		logger.Warn("cannot inspect stray mount, skipping", logger.KeyPath, path, logger.KeyError, err.Error())
		return
	}
	if !mtab.MatchesResource(device, share.ResourceURI) {
		return
	}

	if s.unmounter == nil {
		logger.Warn("stray duplicate mount detected, no unmounter configured", logger.KeyPath, path, logger.KeyShare, share.ResourceURI)
		return
	}

	logger.Info("unmounting stray duplicate mount", logger.KeyPath, path, logger.KeyShare, share.ResourceURI)
	if err := s.unmounter.Unmount(ctx, path); err != nil {
		logger.Warn("failed to unmount stray duplicate", logger.KeyPath, path, logger.KeyError, err.Error())
		return
	}
	report.UnmountedStrays = append(report.UnmountedStrays, path)
}

// sweepLeftover deletes junk files inside a non-mounted directory and
// removes the directory once empty.
func (s *Sweeper) sweepLeftover(path string, report *Report) {
	entries, err := os.ReadDir(path)
	if err != nil {
		logger.Warn("cannot list leftover directory, skipping", logger.KeyPath, path, logger.KeyError, err.Error())
		return
	}

	remaining := 0
	for _, entry := range entries {
		if entry.IsDir() || !isJunk(entry.Name()) {
			remaining++
			continue
		}
		if err := os.Remove(filepath.Join(path, entry.Name())); err != nil {
			logger.Warn("cannot remove junk file", logger.KeyPath, filepath.Join(path, entry.Name()), logger.KeyError, err.Error())
			remaining++
			continue
		}
		report.RemovedJunk++
	}

	if remaining > 0 {
		report.SkippedNonEmpty++
		return
	}

	if err := os.Remove(path); err != nil {
		logger.Warn("cannot remove leftover directory", logger.KeyPath, path, logger.KeyError, err.Error())
		return
	}
	logger.Debug("removed leftover directory", logger.KeyPath, path)
	report.RemovedDirs++
}

// knownNames maps each share's effective mount name to its share. Shares
// whose name cannot be derived are skipped; the orchestrator surfaces that
// error on the mount path.
func knownNames(shares []*mount.Share) map[string]*mount.Share {
	names := make(map[string]*mount.Share, len(shares))
	for _, share := range shares {
		name, err := resolver.EffectiveName(share)
		if err != nil {
			continue
		}
		names[name] = share
	}
	return names
}

// isJunk reports whether a file name is desktop metadata safe to delete.
// AppleDouble companion files ("._foo") count alongside the fixed list.
func isJunk(name string) bool {
	return junkFiles[name] || strings.HasPrefix(name, "._")
}

// splitDuplicateSuffix parses "finance-2" into ("finance", 2, true).
func splitDuplicateSuffix(name string) (string, int, bool) {
	dash := strings.LastIndex(name, "-")
	if dash <= 0 || dash == len(name)-1 {
		return "", 0, false
	}
	n, err := strconv.Atoi(name[dash+1:])
	if err != nil || n < 1 {
		return "", 0, false
	}
	return name[:dash], n, true
}

// String implements fmt.Stringer for log output.
func (r Report) String() string {
	return fmt.Sprintf("dirs=%d junk=%d strays=%d", r.RemovedDirs, r.RemovedJunk, len(r.UnmountedStrays))
}
