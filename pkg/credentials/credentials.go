// Package credentials resolves a share's credential reference into the
// material a mount attempt needs. Secrets live here at mount time only:
// nothing in this package persists them, and the share store never sees
// them.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/marmos91/mountkeep/pkg/mount"
)

// ErrUnknownRef is returned when a credential reference has no entry in the
// backing store.
var ErrUnknownRef = errors.New("unknown credential reference")

// Credential is resolved authentication material for one mount attempt.
type Credential struct {
	Username string
	Password string
	Domain   string
}

// Store resolves a credential reference for a given authentication kind.
type Store interface {
	Resolve(ctx context.Context, ref string, kind mount.AuthKind) (*Credential, error)
}

// StaticStore serves credentials injected at startup, typically from the
// configuration layer or an interactive prompt.
type StaticStore struct {
	mu      sync.RWMutex
	entries map[string]Credential
}

// NewStatic creates an empty static store.
func NewStatic() *StaticStore {
	return &StaticStore{entries: make(map[string]Credential)}
}

// Put registers or replaces the credential behind ref.
func (s *StaticStore) Put(ref string, cred Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[ref] = cred
}

// Resolve implements Store. Guest mounts need no material and always
// succeed; password mounts require a registered entry.
func (s *StaticStore) Resolve(_ context.Context, ref string, kind mount.AuthKind) (*Credential, error) {
	if kind == mount.AuthGuest {
		return &Credential{}, nil
	}

	s.mu.RLock()
	cred, ok := s.entries[ref]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRef, ref)
	}
	return &cred, nil
}

// Chain tries stores in order, falling through on ErrUnknownRef.
type Chain []Store

// Resolve implements Store.
func (c Chain) Resolve(ctx context.Context, ref string, kind mount.AuthKind) (*Credential, error) {
	for _, store := range c {
		cred, err := store.Resolve(ctx, ref, kind)
		if err == nil {
			return cred, nil
		}
		if !errors.Is(err, ErrUnknownRef) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRef, ref)
}
