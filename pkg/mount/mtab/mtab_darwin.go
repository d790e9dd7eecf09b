//go:build darwin

package mtab

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// SystemTable reads the live mount table via getfsstat(2).
type SystemTable struct{}

// NewSystemTable returns a Table backed by the live mount table.
func NewSystemTable() *SystemTable {
	return &SystemTable{}
}

// IsMountPoint implements Table.
func (t *SystemTable) IsMountPoint(path string) (bool, error) {
	dev, err := t.DeviceFor(path)
	if err != nil {
		return false, err
	}
	return dev != "", nil
}

// DeviceFor implements Table.
func (t *SystemTable) DeviceFor(path string) (string, error) {
	n, err := unix.Getfsstat(nil, unix.MNT_NOWAIT)
	if err != nil {
		return "", fmt.Errorf("getfsstat: %w", err)
	}

	stats := make([]unix.Statfs_t, n)
	if _, err := unix.Getfsstat(stats, unix.MNT_NOWAIT); err != nil {
		return "", fmt.Errorf("getfsstat: %w", err)
	}

	clean := strings.TrimSuffix(path, "/")
	for _, st := range stats {
		if cString(st.Mntonname[:]) == clean {
			return cString(st.Mntfromname[:]), nil
		}
	}
	return "", nil
}

func cString(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
