package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mountkeep/pkg/mount"
)

func newTestStore(t *testing.T) *GORMStore {
	t.Helper()
	s, err := New(&Config{
		Type:   DatabaseTypeSQLite,
		SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "shares.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndLoadShares(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mount.NewShare("smb://srv/finance", mount.AuthKerberos)
	a.CredentialRef = "alice@CORP.EXAMPLE"
	b := mount.NewShare("nfs://nas/export/home", mount.AuthGuest)
	b.MountPointName = "homes"
	b.Managed = true

	// Runtime state must not be persisted.
	a.Status = mount.StatusMounted
	a.ActualMountPoint = "/mnt/shares/finance"

	require.NoError(t, s.SaveShares(ctx, []*mount.Share{a, b}))

	loaded, err := s.LoadShares(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	byURI := map[string]*mount.Share{}
	for _, share := range loaded {
		byURI[share.ResourceURI] = share
	}

	got := byURI["smb://srv/finance"]
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, mount.AuthKerberos, got.AuthKind)
	assert.Equal(t, "alice@CORP.EXAMPLE", got.CredentialRef)
	assert.Equal(t, mount.StatusUndefined, got.Status)
	assert.Empty(t, got.ActualMountPoint)

	got = byURI["nfs://nas/export/home"]
	require.NotNil(t, got)
	assert.Equal(t, "homes", got.MountPointName)
	assert.True(t, got.Managed)
}

func TestSaveSharesPrunesRemoved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mount.NewShare("smb://srv/finance", mount.AuthGuest)
	b := mount.NewShare("smb://srv/backup", mount.AuthGuest)
	require.NoError(t, s.SaveShares(ctx, []*mount.Share{a, b}))

	require.NoError(t, s.SaveShares(ctx, []*mount.Share{a}))

	loaded, err := s.LoadShares(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, a.ID, loaded[0].ID)
}

func TestSaveSharesEmptySnapshotClearsAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveShares(ctx, []*mount.Share{mount.NewShare("smb://srv/finance", mount.AuthGuest)}))
	require.NoError(t, s.SaveShares(ctx, nil))

	loaded, err := s.LoadShares(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSaveSharesUpdatesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	share := mount.NewShare("smb://srv/finance", mount.AuthGuest)
	require.NoError(t, s.SaveShares(ctx, []*mount.Share{share}))

	share.AuthKind = mount.AuthPassword
	share.CredentialRef = "finance-svc"
	require.NoError(t, s.SaveShares(ctx, []*mount.Share{share}))

	got, err := s.GetShare(ctx, share.ID)
	require.NoError(t, err)
	assert.Equal(t, mount.AuthPassword, got.AuthKind)
	assert.Equal(t, "finance-svc", got.CredentialRef)
}

func TestGetShareNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetShare(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrShareNotFound)
}

func TestDeleteShare(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	share := mount.NewShare("smb://srv/finance", mount.AuthGuest)
	require.NoError(t, s.SaveShares(ctx, []*mount.Share{share}))

	require.NoError(t, s.DeleteShare(ctx, share.ID))
	assert.ErrorIs(t, s.DeleteShare(ctx, share.ID), ErrShareNotFound)
}
