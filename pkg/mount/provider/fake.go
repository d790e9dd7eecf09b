package provider

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/mountkeep/pkg/mount"
)

// FakeProvider is a scriptable Provider for tests. Outcomes are keyed by
// resource URI; unscripted mounts succeed.
type FakeProvider struct {
	mu sync.Mutex

	// codes maps resource URI to the raw code Mount returns.
	codes map[string]int

	// delays maps resource URI to an artificial mount duration, used to
	// exercise timeouts and cancellation.
	delays map[string]time.Duration

	unmountErr error

	mountCalls   []Request
	unmountCalls []string
}

// NewFake creates a fake provider where every mount succeeds.
func NewFake() *FakeProvider {
	return &FakeProvider{
		codes:  make(map[string]int),
		delays: make(map[string]time.Duration),
	}
}

// ScriptCode makes mounts of uri return the given raw code.
func (f *FakeProvider) ScriptCode(uri string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[uri] = code
}

// ScriptDelay makes mounts of uri block for d before returning, or until
// the context is cancelled.
func (f *FakeProvider) ScriptDelay(uri string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[uri] = d
}

// ScriptUnmountError makes every unmount fail with err.
func (f *FakeProvider) ScriptUnmountError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unmountErr = err
}

// Mount implements Provider.
func (f *FakeProvider) Mount(ctx context.Context, req Request) (int, error) {
	f.mu.Lock()
	f.mountCalls = append(f.mountCalls, req)
	delay := f.delays[req.ResourceURI]
	code := f.codes[req.ResourceURI]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if code != 0 {
		return code, nil
	}
	return mount.RawCodeOK, nil
}

// Unmount implements Provider.
func (f *FakeProvider) Unmount(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unmountCalls = append(f.unmountCalls, path)
	return f.unmountErr
}

// MountCalls returns a copy of every recorded mount request.
func (f *FakeProvider) MountCalls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.mountCalls...)
}

// UnmountCalls returns a copy of every recorded unmount path.
func (f *FakeProvider) UnmountCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unmountCalls...)
}
