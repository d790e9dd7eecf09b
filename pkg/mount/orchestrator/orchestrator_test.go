package orchestrator

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mountkeep/pkg/credentials"
	"github.com/marmos91/mountkeep/pkg/mount"
	"github.com/marmos91/mountkeep/pkg/mount/mtab"
	"github.com/marmos91/mountkeep/pkg/mount/provider"
	"github.com/marmos91/mountkeep/pkg/mount/resolver"
	"github.com/marmos91/mountkeep/pkg/mount/sweeper"
	"github.com/marmos91/mountkeep/pkg/reachability"
	"github.com/marmos91/mountkeep/pkg/registry"
)

type fixture struct {
	registry *registry.Registry
	table    *mtab.FakeTable
	provider *provider.FakeProvider
	creds    *credentials.StaticStore
	monitor  *reachability.Monitor
	orch     *Orchestrator
	baseDir  string
}

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()

	f := &fixture{
		registry: registry.New(),
		table:    mtab.NewFakeTable(),
		provider: provider.NewFake(),
		creds:    credentials.NewStatic(),
		monitor:  reachability.NewMonitor(nil, time.Minute, nil),
		baseDir:  t.TempDir(),
	}

	options := Options{
		BaseDir:        f.baseDir,
		AttemptTimeout: 5 * time.Second,
		CleanupEnabled: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	res := resolver.New(f.table)
	sw := sweeper.New(f.table, f.provider, true)
	f.orch = New(f.registry, res, sw, f.provider, f.creds, f.monitor, nil, nil, options)
	return f
}

func (f *fixture) addShare(t *testing.T, uri string, auth mount.AuthKind) *mount.Share {
	t.Helper()
	share := mount.NewShare(uri, auth)
	require.True(t, f.registry.Add(share))
	return share
}

func (f *fixture) status(t *testing.T, id string) mount.Status {
	t.Helper()
	share, err := f.registry.Get(id)
	require.NoError(t, err)
	return share.Status
}

func TestReconcileMountsAllShares(t *testing.T) {
	f := newFixture(t)
	a := f.addShare(t, "smb://srv/finance", mount.AuthGuest)
	b := f.addShare(t, "nfs://nas/export/home", mount.AuthGuest)

	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))

	for _, id := range []string{a.ID, b.ID} {
		share, err := f.registry.Get(id)
		require.NoError(t, err)
		assert.Equal(t, mount.StatusMounted, share.Status)
		assert.NotEmpty(t, share.ActualMountPoint)
		assert.DirExists(t, share.ActualMountPoint)
	}
	assert.Len(t, f.provider.MountCalls(), 2)
}

func TestReconcileIdempotentWhenAlreadyMounted(t *testing.T) {
	f := newFixture(t)
	share := f.addShare(t, "smb://srv/finance", mount.AuthGuest)

	target := filepath.Join(f.baseDir, "finance")
	require.NoError(t, os.MkdirAll(target, 0755))
	f.table.AddMount(target, "//srv/finance")

	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))

	got, err := f.registry.Get(share.ID)
	require.NoError(t, err)
	assert.Equal(t, mount.StatusMounted, got.Status)
	assert.Equal(t, target, got.ActualMountPoint)
	// No provider call: resolution short-circuited.
	assert.Empty(t, f.provider.MountCalls())
}

func TestReconcileSkippedWithoutNetwork(t *testing.T) {
	f := newFixture(t)
	share := f.addShare(t, "smb://srv/finance", mount.AuthGuest)

	f.monitor.SetState(context.Background(), reachability.State{Online: false, Kind: "wifi"})

	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))
	assert.Equal(t, mount.StatusUndefined, f.status(t, share.ID))
	assert.Empty(t, f.provider.MountCalls())
}

func TestReconcileRespectsCoolDownForAutomaticTriggers(t *testing.T) {
	f := newFixture(t)
	share := f.addShare(t, "smb://srv/finance", mount.AuthGuest)
	require.NoError(t, f.registry.Update(share.ID, func(s *mount.Share) {
		s.Status = mount.StatusErrorOnMount
	}))

	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))
	assert.Equal(t, mount.StatusErrorOnMount, f.status(t, share.ID))
	assert.Empty(t, f.provider.MountCalls())
}

func TestUserTriggerOverridesCoolDown(t *testing.T) {
	f := newFixture(t)
	share := f.addShare(t, "smb://srv/finance", mount.AuthGuest)
	require.NoError(t, f.registry.Update(share.ID, func(s *mount.Share) {
		s.Status = mount.StatusUserUnmounted
	}))

	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerUser))
	assert.Equal(t, mount.StatusMounted, f.status(t, share.ID))
	assert.Len(t, f.provider.MountCalls(), 1)
}

func TestReconcileClassifiesFailures(t *testing.T) {
	tests := []struct {
		name    string
		rawCode int
		want    mount.Status
	}{
		{"authentication rejected", 13, mount.StatusInvalidCredentials},
		{"eauth", 80, mount.StatusInvalidCredentials},
		{"host unreachable", 65, mount.StatusUnreachable},
		{"host down", 64, mount.StatusUnreachable},
		{"share missing", -6003, mount.StatusErrorOnMount},
		{"enoent", 2, mount.StatusErrorOnMount},
		{"unknown code", 47, mount.StatusErrorOnMount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			share := f.addShare(t, "smb://srv/finance", mount.AuthGuest)
			f.provider.ScriptCode("smb://srv/finance", tt.rawCode)

			require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))

			got, err := f.registry.Get(share.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			assert.Empty(t, got.ActualMountPoint)
			// The directory created for the attempt must not survive.
			assert.NoDirExists(t, filepath.Join(f.baseDir, "finance"))
		})
	}
}

func TestReconcileTimesOutSlowProvider(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.AttemptTimeout = 50 * time.Millisecond })
	share := f.addShare(t, "smb://srv/finance", mount.AuthGuest)
	f.provider.ScriptDelay("smb://srv/finance", time.Second)

	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))

	assert.Equal(t, mount.StatusUnreachable, f.status(t, share.ID))
	assert.NoDirExists(t, filepath.Join(f.baseDir, "finance"))
}

func TestReconcileMissingCredentials(t *testing.T) {
	f := newFixture(t)
	share := mount.NewShare("smb://srv/finance", mount.AuthPassword)
	share.CredentialRef = "nowhere"
	require.True(t, f.registry.Add(share))

	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))
	assert.Equal(t, mount.StatusInvalidCredentials, f.status(t, share.ID))
	assert.Empty(t, f.provider.MountCalls())
}

func TestReconcilePassesResolvedCredentials(t *testing.T) {
	f := newFixture(t)
	share := mount.NewShare("smb://srv/finance", mount.AuthPassword)
	share.CredentialRef = "finance-svc"
	require.True(t, f.registry.Add(share))
	f.creds.Put("finance-svc", credentials.Credential{Username: "alice", Password: "s3cret", Domain: "CORP"})

	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))

	calls := f.provider.MountCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "alice", calls[0].Username)
	assert.Equal(t, "s3cret", calls[0].Password)
	assert.Equal(t, "CORP", calls[0].Domain)
}

func TestReconcileReclaimsEmptyObstructingDirectory(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.CleanupEnabled = false })
	share := f.addShare(t, "smb://srv/finance", mount.AuthGuest)
	require.NoError(t, os.MkdirAll(filepath.Join(f.baseDir, "finance"), 0755))

	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))
	assert.Equal(t, mount.StatusMounted, f.status(t, share.ID))
	assert.Len(t, f.provider.MountCalls(), 1)
}

func TestReconcileRefusesNonEmptyObstruction(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.CleanupEnabled = false })
	share := f.addShare(t, "smb://srv/finance", mount.AuthGuest)
	dir := filepath.Join(f.baseDir, "finance")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "precious.txt"), []byte("keep"), 0644))

	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))

	assert.Equal(t, mount.StatusObstructingDirectory, f.status(t, share.ID))
	assert.Empty(t, f.provider.MountCalls())
	assert.FileExists(t, filepath.Join(dir, "precious.txt"))
}

func TestReconcileRefusesForeignMount(t *testing.T) {
	f := newFixture(t)
	share := f.addShare(t, "smb://srv/finance", mount.AuthGuest)
	dir := filepath.Join(f.baseDir, "finance")
	require.NoError(t, os.MkdirAll(dir, 0755))
	f.table.AddMount(dir, "//bob@other/elsewhere")

	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))

	assert.Equal(t, mount.StatusObstructingDirectory, f.status(t, share.ID))
	assert.Empty(t, f.provider.MountCalls())
}

func TestReconcileMalformedURI(t *testing.T) {
	f := newFixture(t)
	share := f.addShare(t, "not a uri", mount.AuthGuest)

	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))
	assert.Equal(t, mount.StatusErrorOnMount, f.status(t, share.ID))
}

func TestReconcileTargetedScope(t *testing.T) {
	f := newFixture(t)
	a := f.addShare(t, "smb://srv/finance", mount.AuthGuest)
	b := f.addShare(t, "smb://srv/backup", mount.AuthGuest)

	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeURIs("smb://srv/finance"), TriggerUser))

	assert.Equal(t, mount.StatusMounted, f.status(t, a.ID))
	assert.Equal(t, mount.StatusUndefined, f.status(t, b.ID))
}

func TestReconcileUnknownScopeIsError(t *testing.T) {
	f := newFixture(t)

	err := f.orch.Reconcile(context.Background(), ScopeURIs("smb://srv/ghost"), TriggerUser)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestSupersededBatchLeavesNothingQueued(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.AttemptTimeout = 10 * time.Second })
	share := f.addShare(t, "smb://srv/finance", mount.AuthGuest)
	f.provider.ScriptDelay("smb://srv/finance", 10*time.Second)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic)
	}()

	// Wait for the first batch's attempt to be in flight.
	require.Eventually(t, func() bool {
		got, err := f.registry.Get(share.ID)
		return err == nil && got.Status == mount.StatusQueued
	}, 5*time.Second, 10*time.Millisecond)

	// Second all-shares reconcile supersedes the first.
	f.provider.ScriptDelay("smb://srv/finance", 0)
	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))

	require.NoError(t, <-firstDone)

	got, err := f.registry.Get(share.ID)
	require.NoError(t, err)
	assert.Equal(t, mount.StatusMounted, got.Status)
	assert.Len(t, f.provider.MountCalls(), 2)
}

func TestUnmountUserSticky(t *testing.T) {
	f := newFixture(t)
	share := f.addShare(t, "smb://srv/finance", mount.AuthGuest)
	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))

	require.NoError(t, f.orch.Unmount(context.Background(), ScopeAll(), true))

	got, err := f.registry.Get(share.ID)
	require.NoError(t, err)
	assert.Equal(t, mount.StatusUserUnmounted, got.Status)
	assert.Empty(t, got.ActualMountPoint)
	assert.Len(t, f.provider.UnmountCalls(), 1)

	// Sticky: the next automatic reconcile must not remount.
	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))
	assert.Equal(t, mount.StatusUserUnmounted, f.status(t, share.ID))
	assert.Len(t, f.provider.MountCalls(), 1)
}

func TestUnmountDaemonRemountable(t *testing.T) {
	f := newFixture(t)
	share := f.addShare(t, "smb://srv/finance", mount.AuthGuest)
	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))

	require.NoError(t, f.orch.Unmount(context.Background(), ScopeAll(), false))
	assert.Equal(t, mount.StatusUnmounted, f.status(t, share.ID))

	// Eligible again on the next automatic cycle.
	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))
	assert.Equal(t, mount.StatusMounted, f.status(t, share.ID))
}

func TestUnmountFailureResetsToUndefined(t *testing.T) {
	f := newFixture(t)
	share := f.addShare(t, "smb://srv/finance", mount.AuthGuest)
	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))

	f.provider.ScriptUnmountError(errors.New("target is busy"))
	err := f.orch.Unmount(context.Background(), ScopeAll(), true)
	require.Error(t, err)

	got, gerr := f.registry.Get(share.ID)
	require.NoError(t, gerr)
	assert.Equal(t, mount.StatusUndefined, got.Status)
	assert.Empty(t, got.ActualMountPoint)
}

func TestUnmountSkipsUnmountedShares(t *testing.T) {
	f := newFixture(t)
	f.addShare(t, "smb://srv/finance", mount.AuthGuest)

	require.NoError(t, f.orch.Unmount(context.Background(), ScopeAll(), true))
	assert.Empty(t, f.provider.UnmountCalls())
}

// bindingProvider records successful mounts in the fake table, the way the
// kernel updates the real mount table.
type bindingProvider struct {
	*provider.FakeProvider
	table *mtab.FakeTable
}

func (p *bindingProvider) Mount(ctx context.Context, req provider.Request) (int, error) {
	code, err := p.FakeProvider.Mount(ctx, req)
	if err == nil && code == mount.RawCodeOK {
		p.table.AddMount(req.TargetPath, deviceString(req.ResourceURI))
	}
	return code, err
}

func (p *bindingProvider) Unmount(ctx context.Context, path string) error {
	err := p.FakeProvider.Unmount(ctx, path)
	if err == nil {
		p.table.RemoveMount(path)
	}
	return err
}

func deviceString(uri string) string {
	u, _ := url.Parse(uri)
	return "//" + u.Host + u.Path
}

func newBindingFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	prov := &bindingProvider{FakeProvider: f.provider, table: f.table}
	res := resolver.New(f.table)
	f.orch = New(f.registry, res, nil, prov, f.creds, f.monitor, nil, nil, Options{
		BaseDir:        f.baseDir,
		AttemptTimeout: 5 * time.Second,
	})
	return f
}

func TestReconcileDuplicateNamesMountOnlyOne(t *testing.T) {
	f := newBindingFixture(t)
	f.addShare(t, "smb://srv/finance", mount.AuthGuest)
	f.addShare(t, "smb://srv2/finance", mount.AuthGuest)

	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))

	// Both shares resolve to baseDir/finance. Whichever attempt wins the
	// path takes it; the other must see the winner's mount as a foreign
	// occupant, never call the provider, and never reclaim the directory.
	require.Len(t, f.provider.MountCalls(), 1)

	statuses := make(map[mount.Status]int)
	var mounted *mount.Share
	for _, s := range f.registry.All() {
		statuses[s.Status]++
		if s.Status == mount.StatusMounted {
			mounted = s
		}
	}
	assert.Equal(t, 1, statuses[mount.StatusMounted])
	assert.Equal(t, 1, statuses[mount.StatusObstructingDirectory])

	require.NotNil(t, mounted)
	assert.Equal(t, filepath.Join(f.baseDir, "finance"), mounted.ActualMountPoint)
	isMount, err := f.table.IsMountPoint(mounted.ActualMountPoint)
	require.NoError(t, err)
	assert.True(t, isMount, "winner's mount must survive the loser's attempt")
}

func TestAutomaticReconcileRemountsEjectedShare(t *testing.T) {
	f := newFixture(t)
	share := f.addShare(t, "smb://srv/finance", mount.AuthGuest)

	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))
	assert.Equal(t, mount.StatusMounted, f.status(t, share.ID))

	// The fake table never recorded the mount, which is exactly what an
	// eject behind the daemon's back looks like. The next automatic cycle
	// must re-observe and remount instead of trusting the cached status.
	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))

	got, err := f.registry.Get(share.ID)
	require.NoError(t, err)
	assert.Equal(t, mount.StatusMounted, got.Status)
	assert.NotEmpty(t, got.ActualMountPoint)
	assert.Len(t, f.provider.MountCalls(), 2)
}

func TestAutomaticReconcileIdempotentForLiveMount(t *testing.T) {
	f := newBindingFixture(t)
	share := f.addShare(t, "smb://srv/finance", mount.AuthGuest)

	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))
	require.Len(t, f.provider.MountCalls(), 1)

	// Still in the mount table: the next cycle short-circuits on
	// resolution with no further provider call.
	require.NoError(t, f.orch.Reconcile(context.Background(), ScopeAll(), TriggerAutomatic))

	got, err := f.registry.Get(share.ID)
	require.NoError(t, err)
	assert.Equal(t, mount.StatusMounted, got.Status)
	assert.Len(t, f.provider.MountCalls(), 1)
}

func TestNetworkTransitionResetsStickyAndRemounts(t *testing.T) {
	f := newFixture(t)
	share := f.addShare(t, "smb://srv/finance", mount.AuthGuest)
	require.NoError(t, f.registry.Update(share.ID, func(s *mount.Share) {
		s.Status = mount.StatusUserUnmounted
	}))

	// The daemon wires this hook at startup: reset sticky states, then
	// reconcile with the network trigger.
	f.monitor.OnTransition(func(ctx context.Context, state reachability.State) {
		if state.Online {
			f.registry.ResetStickyStates()
			_ = f.orch.Reconcile(ctx, ScopeAll(), TriggerNetwork)
		}
	})

	ctx := context.Background()
	f.monitor.SetState(ctx, reachability.State{Online: false, Kind: "wifi"})
	f.monitor.SetState(ctx, reachability.State{Online: true, Kind: "wifi"})

	assert.Equal(t, mount.StatusMounted, f.status(t, share.ID))
}
