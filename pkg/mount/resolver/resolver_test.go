package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mountkeep/pkg/mount"
	"github.com/marmos91/mountkeep/pkg/mount/mtab"
)

func TestEffectiveName(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		local   string
		want    string
		wantErr bool
	}{
		{"last path segment", "smb://srv/finance", "", "finance", false},
		{"nested path", "nfs://nas/export/home", "", "home", false},
		{"trailing slash", "smb://srv/finance/", "", "finance", false},
		{"hidden share marker stripped", "smb://srv/backup$", "", "backup", false},
		{"explicit name wins", "smb://srv/finance", "books", "books", false},
		{"explicit hidden marker stripped", "smb://srv/finance", "books$", "books", false},
		{"host fallback", "smb://srv", "", "srv", false},
		{"host fallback with slash", "smb://srv/", "", "srv", false},
		{"nothing usable", "smb://", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			share := mount.NewShare(tt.uri, mount.AuthGuest)
			share.MountPointName = tt.local

			got, err := EffectiveName(share)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoMountComponent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveFresh(t *testing.T) {
	base := t.TempDir()
	r := New(mtab.NewFakeTable())

	share := mount.NewShare("smb://srv/finance", mount.AuthKerberos)
	target, err := r.Resolve(share, base)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "finance"), target.Path)
	assert.Equal(t, "finance", target.DisplayName)
	assert.Equal(t, StateFresh, target.State)
	assert.False(t, target.ProviderOwned)
}

func TestResolveAlreadyMounted(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "finance")
	require.NoError(t, os.Mkdir(target, 0755))

	table := mtab.NewFakeTable()
	table.AddMount(target, "//alice@srv/finance")

	r := New(table)
	share := mount.NewShare("smb://srv/finance", mount.AuthKerberos)

	resolved, err := r.Resolve(share, base)
	require.NoError(t, err)
	assert.Equal(t, StateAlreadyMounted, resolved.State)
	assert.Equal(t, target, resolved.Path)
}

func TestResolveObstructingMount(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "finance")
	require.NoError(t, os.Mkdir(target, 0755))

	table := mtab.NewFakeTable()
	table.AddMount(target, "//bob@other/elsewhere")

	r := New(table)
	share := mount.NewShare("smb://srv/finance", mount.AuthKerberos)

	resolved, err := r.Resolve(share, base)
	require.NoError(t, err)
	assert.Equal(t, StateObstructingMount, resolved.State)
}

func TestResolveObstructingDirectory(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(base, "finance"), 0755))

	r := New(mtab.NewFakeTable())
	share := mount.NewShare("smb://srv/finance", mount.AuthKerberos)

	resolved, err := r.Resolve(share, base)
	require.NoError(t, err)
	assert.Equal(t, StateObstructingDirectory, resolved.State)
}

func TestResolveObstructingFile(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "finance"), []byte("junk"), 0644))

	r := New(mtab.NewFakeTable())
	share := mount.NewShare("smb://srv/finance", mount.AuthKerberos)

	resolved, err := r.Resolve(share, base)
	require.NoError(t, err)
	assert.Equal(t, StateObstructingDirectory, resolved.State)
}

func TestResolveProviderOwned(t *testing.T) {
	base := DefaultSharedRoot()
	table := mtab.NewFakeTable()
	r := New(table)

	share := mount.NewShare("smb://srv/finance", mount.AuthKerberos)

	resolved, err := r.Resolve(share, base)
	require.NoError(t, err)
	assert.True(t, resolved.ProviderOwned)
	assert.Equal(t, base, resolved.Path)
	assert.Equal(t, "finance", resolved.DisplayName)
	assert.Equal(t, StateFresh, resolved.State)

	// Once the share is mounted at its natural name, resolution
	// short-circuits to alreadyMounted.
	natural := filepath.Join(base, "finance")
	table.AddMount(natural, "//alice@srv/finance")

	resolved, err = r.Resolve(share, base)
	require.NoError(t, err)
	assert.Equal(t, StateAlreadyMounted, resolved.State)
	assert.Equal(t, natural, resolved.Path)
}

func TestProviderOwned(t *testing.T) {
	assert.True(t, ProviderOwned(DefaultSharedRoot()))
	assert.True(t, ProviderOwned(DefaultSharedRoot()+"/"))
	assert.False(t, ProviderOwned("/mnt/shares"))
}
