//go:build linux

package mtab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMounts(t *testing.T, content string) *SystemTable {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mounts")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return &SystemTable{procMounts: path}
}

func TestSystemTableDeviceFor(t *testing.T) {
	table := writeMounts(t, ""+
		"/dev/sda1 / ext4 rw 0 0\n"+
		"//alice@srv/finance /mnt/shares/finance cifs rw 0 0\n"+
		"nas:/export /mnt/shares/export nfs rw 0 0\n")

	dev, err := table.DeviceFor("/mnt/shares/finance")
	require.NoError(t, err)
	assert.Equal(t, "//alice@srv/finance", dev)

	dev, err = table.DeviceFor("/mnt/shares/export/")
	require.NoError(t, err)
	assert.Equal(t, "nas:/export", dev)

	dev, err = table.DeviceFor("/mnt/shares/missing")
	require.NoError(t, err)
	assert.Empty(t, dev)
}

func TestSystemTableIsMountPoint(t *testing.T) {
	table := writeMounts(t, "//alice@srv/finance /mnt/shares/finance cifs rw 0 0\n")

	mounted, err := table.IsMountPoint("/mnt/shares/finance")
	require.NoError(t, err)
	assert.True(t, mounted)

	mounted, err = table.IsMountPoint("/mnt/elsewhere")
	require.NoError(t, err)
	assert.False(t, mounted)
}

func TestUnescapeMountPath(t *testing.T) {
	assert.Equal(t, "/mnt/with space", unescapeMountPath(`/mnt/with\040space`))
	assert.Equal(t, "/mnt/plain", unescapeMountPath("/mnt/plain"))
}
