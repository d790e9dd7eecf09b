// Package orchestrator drives shares toward their desired state: every
// registered share mounted, unless a failure state or an explicit user
// unmount says otherwise.
//
// A reconcile runs as a batch: sweep the base directory, select eligible
// shares, then attempt each in its own goroutine with a join barrier at the
// end. A new all-shares reconcile supersedes the batch before it; cancelled
// attempts roll their share back to undefined so nothing is ever left
// queued.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/mountkeep/internal/logger"
	"github.com/marmos91/mountkeep/pkg/credentials"
	"github.com/marmos91/mountkeep/pkg/metrics"
	"github.com/marmos91/mountkeep/pkg/mount"
	"github.com/marmos91/mountkeep/pkg/mount/provider"
	"github.com/marmos91/mountkeep/pkg/mount/resolver"
	"github.com/marmos91/mountkeep/pkg/mount/sweeper"
	"github.com/marmos91/mountkeep/pkg/reachability"
	"github.com/marmos91/mountkeep/pkg/registry"
)

const tracerName = "github.com/marmos91/mountkeep/pkg/mount/orchestrator"

// Trigger identifies what started a reconcile. User triggers override the
// cool-down guard; automatic ones respect it.
type Trigger string

const (
	TriggerUser      Trigger = "user"
	TriggerAutomatic Trigger = "automatic"
	TriggerNetwork   Trigger = "network"
	TriggerConfig    Trigger = "config"
)

// UserInitiated reports whether the trigger came from an explicit user
// action.
func (t Trigger) UserInitiated() bool {
	return t == TriggerUser
}

// Scope selects the shares a reconcile or unmount operates on.
type Scope struct {
	All  bool
	URIs []string
}

// ScopeAll covers every registered share.
func ScopeAll() Scope { return Scope{All: true} }

// ScopeURIs covers the shares addressing the given resources.
func ScopeURIs(uris ...string) Scope { return Scope{URIs: uris} }

// ErrNoMatch is returned when a targeted scope matches no registered share.
var ErrNoMatch = errors.New("no registered share matches the given resource")

// Options tune one orchestrator instance.
type Options struct {
	// BaseDir is the directory mount points are created under.
	BaseDir string

	// AttemptTimeout bounds each provider mount call. An expired attempt
	// is classified as a timed-out host.
	AttemptTimeout time.Duration

	// CleanupEnabled runs the sweeper before each batch.
	CleanupEnabled bool
}

// DefaultAttemptTimeout matches the slowest observed SMB negotiation
// against a wedged server before the kernel gives up anyway.
const DefaultAttemptTimeout = 60 * time.Second

// Orchestrator owns all share status transitions.
type Orchestrator struct {
	registry *registry.Registry
	resolver *resolver.Resolver
	sweeper  *sweeper.Sweeper
	provider provider.Provider
	creds    credentials.Store
	monitor  *reachability.Monitor
	prober   reachability.Prober
	metrics  metrics.MountMetrics
	opts     Options

	// batchMu serializes batches; paths guards per-path work within one.
	batchMu sync.Mutex
	paths   pathLocks

	mu           sync.Mutex
	cancelActive context.CancelFunc
	activeGen    uint64
}

// New creates an orchestrator. monitor, prober, sweeper, creds and metrics
// may each be nil: a nil monitor assumes the network is up, a nil prober
// skips per-host preflight, a nil sweeper disables pre-cleaning, a nil
// credential store serves only guest mounts.
func New(reg *registry.Registry, res *resolver.Resolver, sw *sweeper.Sweeper,
	prov provider.Provider, creds credentials.Store, monitor *reachability.Monitor,
	prober reachability.Prober, m metrics.MountMetrics, opts Options,
) *Orchestrator {
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = DefaultAttemptTimeout
	}
	return &Orchestrator{
		registry: reg,
		resolver: res,
		sweeper:  sw,
		provider: prov,
		creds:    creds,
		monitor:  monitor,
		prober:   prober,
		metrics:  m,
		opts:     opts,
		paths:    pathLocks{locks: make(map[string]*lockEntry)},
	}
}

// Reconcile mounts every share in scope that should be mounted. Blocks
// until all attempts of the batch finish or the batch is superseded.
//
// An all-shares reconcile cancels whatever batch is currently running
// before taking its place; targeted reconciles queue up behind it.
func (o *Orchestrator) Reconcile(ctx context.Context, scope Scope, trigger Trigger) error {
	lc := logger.NewLogContext(string(trigger))
	ctx = logger.WithContext(ctx, lc)

	if !o.networkUsable() {
		logger.InfoCtx(ctx, "reconcile skipped, no network")
		return nil
	}

	if scope.All {
		o.supersede()
	}

	o.batchMu.Lock()
	defer o.batchMu.Unlock()

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	gen := o.setActive(cancel)
	defer o.clearActive(gen)

	tracer := otel.Tracer(tracerName)
	batchCtx, span := tracer.Start(batchCtx, "reconcile",
		trace.WithAttributes(attribute.String("trigger", string(trigger))))
	defer span.End()
	lc.TraceID = span.SpanContext().TraceID().String()

	start := time.Now()
	defer func() {
		metrics.ObserveBatch(o.metrics, string(trigger), time.Since(start))
		metrics.SetMountedShares(o.metrics, len(o.registry.Mounted()))
	}()

	if trigger.UserInitiated() {
		o.resetForUser(scope)
	}

	o.sweep(batchCtx)

	candidates, err := o.selectCandidates(scope, trigger)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		logger.DebugCtx(ctx, "reconcile found nothing to do")
		return nil
	}

	logger.InfoCtx(ctx, "reconcile batch starting", logger.KeyShares, len(candidates))

	var wg sync.WaitGroup
	for _, share := range candidates {
		wg.Add(1)
		go func(share *mount.Share) {
			defer wg.Done()
			o.attempt(batchCtx, share, trigger)
		}(share)
	}
	wg.Wait()

	logger.InfoCtx(ctx, "reconcile batch finished", logger.KeyDurationMs, lc.DurationMs())
	return nil
}

// Unmount releases every mounted share in scope. userTriggered selects the
// sticky userUnmounted state over the remountable unmounted one.
func (o *Orchestrator) Unmount(ctx context.Context, scope Scope, userTriggered bool) error {
	trigger := TriggerAutomatic
	if userTriggered {
		trigger = TriggerUser
	}
	lc := logger.NewLogContext(string(trigger))
	ctx = logger.WithContext(ctx, lc)

	o.batchMu.Lock()
	defer o.batchMu.Unlock()

	shares, err := o.sharesInScope(scope)
	if err != nil {
		return err
	}

	var firstErr error
	for _, share := range shares {
		if !share.Status.Mounted() || share.ActualMountPoint == "" {
			continue
		}
		if err := o.unmountOne(ctx, share, userTriggered); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	metrics.SetMountedShares(o.metrics, len(o.registry.Mounted()))
	return firstErr
}

func (o *Orchestrator) unmountOne(ctx context.Context, share *mount.Share, userTriggered bool) error {
	unlock := o.paths.lock(share.ActualMountPoint)
	defer unlock()

	path := share.ActualMountPoint
	err := o.provider.Unmount(ctx, path)

	status := mount.StatusUnmounted
	if userTriggered {
		status = mount.StatusUserUnmounted
	}
	if err != nil {
		// The mount table is now in doubt. Undefined lets the next
		// cycle re-observe instead of trusting a stale status.
		status = mount.StatusUndefined
		logger.WarnCtx(ctx, "unmount failed",
			logger.KeyShare, share.ResourceURI,
			logger.KeyMountPoint, path,
			logger.KeyError, err.Error())
	}

	o.setStatus(share.ID, status, "")

	if err == nil {
		logger.InfoCtx(ctx, "share unmounted",
			logger.KeyShare, share.ResourceURI,
			logger.KeyMountPoint, path,
			logger.KeyStatus, status.String())
		o.removeMountDir(ctx, path)
	}
	return err
}

// attempt runs the full mount pipeline for one share.
func (o *Orchestrator) attempt(ctx context.Context, share *mount.Share, trigger Trigger) {
	lc := logger.FromContext(ctx).WithShare(share.ResourceURI, share.Host())
	ctx = logger.WithContext(ctx, lc)

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "mount.attempt",
		trace.WithAttributes(
			attribute.String("share.uri", share.ResourceURI),
			attribute.String("share.auth", string(share.AuthKind)),
		))
	defer span.End()
	lc.SpanID = span.SpanContext().SpanID().String()

	metrics.RecordAttempt(o.metrics, string(trigger))
	o.setStatus(share.ID, mount.StatusQueued, "")

	attemptCtx, cancel := context.WithTimeout(ctx, o.opts.AttemptTimeout)
	defer cancel()

	status, mountPoint := o.runAttempt(attemptCtx, share)

	// Batch cancellation must not leave the share parked in queued or in
	// a half-reported failure: it goes back to undefined and the next
	// cycle re-observes it.
	if ctx.Err() != nil {
		logger.InfoCtx(ctx, "mount attempt cancelled", logger.KeyShare, share.ResourceURI)
		o.setStatus(share.ID, mount.StatusUndefined, "")
		return
	}

	o.setStatus(share.ID, status, mountPoint)

	if status == mount.StatusMounted {
		logger.InfoCtx(ctx, "share mounted",
			logger.KeyMountPoint, mountPoint,
			logger.KeyDurationMs, lc.DurationMs())
	}
}

// runAttempt performs resolution, credential acquisition and the provider
// call, returning the resulting status and mount point ("" unless mounted).
func (o *Orchestrator) runAttempt(ctx context.Context, share *mount.Share) (mount.Status, string) {
	if err := share.Validate(); err != nil {
		return o.fail(ctx, share, mount.KindMalformedResource, 0, err), ""
	}

	if o.prober != nil && !o.prober.Reachable(ctx, share.Host()) {
		if ctx.Err() != nil {
			return mount.StatusUndefined, ""
		}
		return o.fail(ctx, share, mount.KindHostUnreachable, 0, nil), ""
	}

	target, err := o.resolver.Resolve(share, o.opts.BaseDir)
	if err != nil {
		return o.fail(ctx, share, mount.KindMalformedResource, 0, err), ""
	}

	unlock := o.paths.lock(target.Path)
	defer unlock()

	// Classification is only trustworthy while the path lock is held: two
	// shares resolving to the same effective name classify fresh
	// concurrently, and whichever loses the lock race must see the
	// winner's mount, not the pre-lock snapshot.
	target, err = o.resolver.Resolve(share, o.opts.BaseDir)
	if err != nil {
		return o.fail(ctx, share, mount.KindMalformedResource, 0, err), ""
	}

	created := false
	switch target.State {
	case resolver.StateAlreadyMounted:
		// Idempotent re-mount: nothing to do.
		logger.DebugCtx(ctx, "share already mounted", logger.KeyMountPoint, target.Path)
		return mount.StatusMounted, target.Path

	case resolver.StateObstructingMount:
		return o.fail(ctx, share, mount.KindLocalObstruction, 0,
			fmt.Errorf("foreign mount at %s", target.Path)), ""

	case resolver.StateObstructingDirectory:
		// Reclaim is only ever attempted outside the provider-owned
		// namespace, and only succeeds for an empty directory.
		if target.ProviderOwned {
			return o.fail(ctx, share, mount.KindLocalObstruction, 0,
				fmt.Errorf("obstruction at %s in provider-owned namespace", target.Path)), ""
		}
		if err := os.Remove(target.Path); err != nil {
			return o.fail(ctx, share, mount.KindLocalObstruction, 0,
				fmt.Errorf("cannot reclaim %s: %w", target.Path, err)), ""
		}
		logger.InfoCtx(ctx, "reclaimed obstructing directory", logger.KeyPath, target.Path)
		fallthrough

	case resolver.StateFresh:
		if !target.ProviderOwned {
			if err := os.MkdirAll(target.Path, 0755); err != nil {
				return o.fail(ctx, share, mount.KindLocalObstruction, 0,
					fmt.Errorf("cannot create %s: %w", target.Path, err)), ""
			}
			created = true
		}
	}

	cred, err := o.resolveCredential(ctx, share)
	if err != nil {
		if ctx.Err() != nil {
			o.cleanupFailed(ctx, target, created)
			return mount.StatusUndefined, ""
		}
		o.cleanupFailed(ctx, target, created)
		return o.fail(ctx, share, mount.KindAuthenticationFailed, 0, err), ""
	}

	rawCode, err := o.provider.Mount(ctx, provider.Request{
		ResourceURI:   share.ResourceURI,
		AuthKind:      share.AuthKind,
		Username:      cred.Username,
		Password:      cred.Password,
		Domain:        cred.Domain,
		TargetPath:    target.Path,
		ProviderOwned: target.ProviderOwned,
	})

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		o.cleanupFailed(ctx, target, created)
		return o.fail(ctx, share, mount.KindTimedOutHost, 0, err), ""
	case errors.Is(err, context.Canceled):
		o.cleanupFailed(ctx, target, created)
		return mount.StatusUndefined, ""
	case err != nil:
		o.cleanupFailed(ctx, target, created)
		return o.fail(ctx, share, mount.KindUnknownProviderCode, 0, err), ""
	}

	kind := mount.Classify(rawCode)
	if kind == mount.KindNone || kind == mount.KindAlreadyBound {
		return mount.StatusMounted, target.Path
	}

	o.cleanupFailed(ctx, target, created)
	return o.fail(ctx, share, kind, rawCode, nil), ""
}

// resolveCredential fetches mount material for the share's auth kind.
func (o *Orchestrator) resolveCredential(ctx context.Context, share *mount.Share) (*credentials.Credential, error) {
	if o.creds == nil {
		if share.AuthKind == mount.AuthGuest {
			return &credentials.Credential{}, nil
		}
		return nil, fmt.Errorf("no credential store configured for %s mount", share.AuthKind)
	}
	return o.creds.Resolve(ctx, share.CredentialRef, share.AuthKind)
}

// fail logs and counts a classified failure, returning the status it maps
// to.
func (o *Orchestrator) fail(ctx context.Context, share *mount.Share, kind mount.ErrorKind, rawCode int, err error) mount.Status {
	status := kind.StatusFor()

	args := []any{
		logger.KeyShare, share.ResourceURI,
		logger.KeyErrorKind, string(kind),
		logger.KeyStatus, status.String(),
	}
	if rawCode != mount.RawCodeOK {
		args = append(args, logger.KeyRawCode, rawCode)
	}
	if err != nil {
		args = append(args, logger.KeyError, err.Error())
	}
	logger.WarnCtx(ctx, "mount attempt failed", args...)

	metrics.RecordFailure(o.metrics, string(kind))
	return status
}

// cleanupFailed removes the mount directory a failed attempt created.
// Never touches the provider-owned namespace.
func (o *Orchestrator) cleanupFailed(ctx context.Context, target *resolver.Target, created bool) {
	if !created || target.ProviderOwned {
		return
	}
	if err := os.Remove(target.Path); err != nil && !os.IsNotExist(err) {
		logger.DebugCtx(ctx, "could not remove mount directory after failed attempt",
			logger.KeyPath, target.Path,
			logger.KeyError, err.Error())
	}
}

// removeMountDir removes the empty directory left by a successful unmount.
func (o *Orchestrator) removeMountDir(ctx context.Context, path string) {
	if resolver.ProviderOwned(o.opts.BaseDir) {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.DebugCtx(ctx, "could not remove mount directory after unmount",
			logger.KeyPath, path,
			logger.KeyError, err.Error())
	}
}

// setStatus updates one share's status and mount point, keeping the
// invariant that a mount point is recorded iff the share is mounted.
func (o *Orchestrator) setStatus(id string, status mount.Status, mountPoint string) {
	if status != mount.StatusMounted {
		mountPoint = ""
	}
	_ = o.registry.Update(id, func(s *mount.Share) {
		s.Status = status
		s.ActualMountPoint = mountPoint
	})
}

// resetForUser clears cool-down and failure states in scope so an explicit
// user action always gets a fresh attempt. Mounted and queued shares keep
// their status.
func (o *Orchestrator) resetForUser(scope Scope) {
	shares, err := o.sharesInScope(scope)
	if err != nil {
		return
	}
	for _, share := range shares {
		if share.Status == mount.StatusMounted || share.Status == mount.StatusQueued {
			continue
		}
		o.setStatus(share.ID, mount.StatusUndefined, "")
	}
}

// sweep pre-cleans the base directory when enabled.
func (o *Orchestrator) sweep(ctx context.Context) {
	if !o.opts.CleanupEnabled || o.sweeper == nil {
		return
	}
	report := o.sweeper.Sweep(ctx, o.opts.BaseDir, o.registry.All())
	metrics.RecordSweep(o.metrics, report.RemovedDirs, report.RemovedJunk, len(report.UnmountedStrays))
	if report.RemovedDirs > 0 || report.RemovedJunk > 0 || len(report.UnmountedStrays) > 0 {
		logger.InfoCtx(ctx, "sweep removed leftovers", logger.KeyRemoved, report.String())
	}
}

// selectCandidates picks the shares this batch will attempt.
func (o *Orchestrator) selectCandidates(scope Scope, trigger Trigger) ([]*mount.Share, error) {
	shares, err := o.sharesInScope(scope)
	if err != nil {
		return nil, err
	}

	var out []*mount.Share
	for _, share := range shares {
		if share.Status == mount.StatusQueued {
			// Another attempt is in flight.
			continue
		}
		// Mounted shares stay in: resolution short-circuits without a
		// provider call while the mount table still shows them, and a
		// share ejected behind the daemon's back gets remounted.
		if !trigger.UserInitiated() && share.Status.InCoolDown() {
			logger.Debug("skipping share in cool-down",
				logger.KeyShare, share.ResourceURI,
				logger.KeyStatus, share.Status.String())
			continue
		}
		out = append(out, share)
	}
	return out, nil
}

// sharesInScope expands a scope against the registry. Unknown URIs in a
// targeted scope are logged and skipped; a scope matching nothing is an
// error.
func (o *Orchestrator) sharesInScope(scope Scope) ([]*mount.Share, error) {
	if scope.All {
		return o.registry.All(), nil
	}

	var out []*mount.Share
	for _, uri := range scope.URIs {
		share, ok := o.registry.FindByURI(uri)
		if !ok {
			logger.Warn("no registered share for resource", logger.KeyShare, uri)
			continue
		}
		out = append(out, share)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoMatch, scope.URIs)
	}
	return out, nil
}

// networkUsable consults the reachability monitor, assuming online when no
// monitor is wired.
func (o *Orchestrator) networkUsable() bool {
	if o.monitor == nil {
		return true
	}
	return o.monitor.State().Online
}

// supersede cancels the currently running batch, if any. The batch mutex
// taken afterwards makes the caller wait for it to drain.
func (o *Orchestrator) supersede() {
	o.mu.Lock()
	cancel := o.cancelActive
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (o *Orchestrator) setActive(cancel context.CancelFunc) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.activeGen++
	o.cancelActive = cancel
	return o.activeGen
}

// clearActive drops the cancel func unless a successor batch has already
// replaced it.
func (o *Orchestrator) clearActive(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.activeGen == gen {
		o.cancelActive = nil
	}
}

// pathLocks serializes work per mount path so sweeping, reclaiming and
// mounting never race on the same directory.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (p *pathLocks) lock(path string) func() {
	p.mu.Lock()
	entry, ok := p.locks[path]
	if !ok {
		entry = &lockEntry{}
		p.locks[path] = entry
	}
	entry.refs++
	p.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		p.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(p.locks, path)
		}
		p.mu.Unlock()
	}
}
