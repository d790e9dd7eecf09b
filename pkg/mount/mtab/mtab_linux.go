//go:build linux

package mtab

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// SystemTable reads the kernel mount table at /proc/self/mounts.
type SystemTable struct {
	// procMounts overrides the mount table path for tests.
	procMounts string
}

// NewSystemTable returns a Table backed by the live mount table.
func NewSystemTable() *SystemTable {
	return &SystemTable{procMounts: "/proc/self/mounts"}
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
	f, err := os.Open(t.procMounts)
	if err != nil {
		return "", fmt.Errorf("failed to read mount table: %w", err)
	}
	defer f.Close()

	clean := strings.TrimSuffix(path, "/")

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if unescapeMountPath(fields[1]) == clean {
			return fields[0], nil
		}
	}
	return "", scanner.Err()
}

// unescapeMountPath decodes the octal escapes /proc/self/mounts uses for
// spaces, tabs, newlines, and backslashes in mount point paths.
func unescapeMountPath(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			var c byte
			octal := true
			for j := 1; j <= 3; j++ {
				d := s[i+j]
				if d < '0' || d > '7' {
					octal = false
					break
				}
				c = c<<3 | (d - '0')
			}
			if octal {
				b.WriteByte(c)
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
