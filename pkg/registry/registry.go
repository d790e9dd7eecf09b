// Package registry owns the canonical, mutable list of configured shares.
//
// The registry is the only shared mutable state touched by concurrent mount
// attempts, so every operation is serialized behind a single mutex and reads
// hand out clones, never live records. It carries no business logic: status
// transitions belong to the orchestrator.
package registry

import (
	"errors"
	"sync"

	"github.com/marmos91/mountkeep/pkg/mount"
)

// ErrInvalidIndex is signalled when an operation names a share ID that is
// not in the registry. The registry state is left untouched.
var ErrInvalidIndex = errors.New("no share with this id")

// ChangeFunc is invoked after every successful mutation so the caller can
// persist the new share list. Invoked outside the registry lock.
type ChangeFunc func(shares []*mount.Share)

// Registry is a mutex-guarded, insertion-ordered share list.
//
// Order is stable so UI listings and sweeper comparisons see shares in the
// order they were configured.
type Registry struct {
	mu       sync.RWMutex
	shares   []*mount.Share
	byID     map[string]*mount.Share
	onChange ChangeFunc
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byID: make(map[string]*mount.Share),
	}
}

// SetOnChange installs the persistence callback. Pass nil to disable.
func (r *Registry) SetOnChange(fn ChangeFunc) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Add registers a share. Idempotent on the resource URI: adding a share
// whose URI already exists is a no-op and returns false, with no error and
// no duplicate entry.
func (r *Registry) Add(share *mount.Share) bool {
	if share == nil {
		return false
	}

	r.mu.Lock()
	for _, existing := range r.shares {
		if mount.SameResource(existing.ResourceURI, share.ResourceURI) {
			r.mu.Unlock()
			return false
		}
	}

	stored := share.Clone()
	r.shares = append(r.shares, stored)
	r.byID[stored.ID] = stored
	fn, snapshot := r.onChange, r.cloneAllLocked()
	r.mu.Unlock()

	notify(fn, snapshot)
	return true
}

// Remove deletes the share with the given ID. Returns ErrInvalidIndex when
// the ID is unknown; the registry is not modified in that case.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	if _, ok := r.byID[id]; !ok {
		r.mu.Unlock()
		return ErrInvalidIndex
	}

	delete(r.byID, id)
	for i, s := range r.shares {
		if s.ID == id {
			r.shares = append(r.shares[:i], r.shares[i+1:]...)
			break
		}
	}
	fn, snapshot := r.onChange, r.cloneAllLocked()
	r.mu.Unlock()

	notify(fn, snapshot)
	return nil
}

// Update applies mutate to the share with the given ID under the registry
// lock. An unknown ID is a no-op that signals ErrInvalidIndex without
// corrupting state.
//
// The mutator must not block: it runs while the registry is locked.
func (r *Registry) Update(id string, mutate func(*mount.Share)) error {
	r.mu.Lock()
	share, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return ErrInvalidIndex
	}

	mutate(share)
	fn, snapshot := r.onChange, r.cloneAllLocked()
	r.mu.Unlock()

	notify(fn, snapshot)
	return nil
}

// Get returns a clone of the share with the given ID.
func (r *Registry) Get(id string) (*mount.Share, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	share, ok := r.byID[id]
	if !ok {
		return nil, ErrInvalidIndex
	}
	return share.Clone(), nil
}

// FindByURI returns a clone of the share addressing the given resource.
func (r *Registry) FindByURI(uri string) (*mount.Share, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.shares {
		if mount.SameResource(s.ResourceURI, uri) {
			return s.Clone(), true
		}
	}
	return nil, false
}

// All returns clones of every share in insertion order.
func (r *Registry) All() []*mount.Share {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cloneAllLocked()
}

// Mounted returns clones of every share currently bound to a mount point.
func (r *Registry) Mounted() []*mount.Share {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*mount.Share
	for _, s := range r.shares {
		if s.Status.Mounted() {
			out = append(out, s.Clone())
		}
	}
	return out
}

// Len returns the number of registered shares.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shares)
}

// ResetStickyStates clears userUnmounted and unreachable back to undefined.
// Called on a fresh network-reachability transition, which re-authorizes
// automatic attempts for shares a user unmounted on the old network.
func (r *Registry) ResetStickyStates() int {
	r.mu.Lock()
	reset := 0
	for _, s := range r.shares {
		if s.Status == mount.StatusUserUnmounted || s.Status == mount.StatusUnreachable {
			s.Status = mount.StatusUndefined
			reset++
		}
	}
	fn, snapshot := r.onChange, r.cloneAllLocked()
	r.mu.Unlock()

	if reset > 0 {
		notify(fn, snapshot)
	}
	return reset
}

func (r *Registry) cloneAllLocked() []*mount.Share {
	out := make([]*mount.Share, len(r.shares))
	for i, s := range r.shares {
		out[i] = s.Clone()
	}
	return out
}

func notify(fn ChangeFunc, shares []*mount.Share) {
	if fn != nil {
		fn(shares)
	}
}
