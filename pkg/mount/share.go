// Package mount defines the share model, the mount status state machine,
// and the error taxonomy shared by the resolver, sweeper, and orchestrator.
package mount

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// AuthKind selects how credentials for a share are acquired at mount time.
type AuthKind string

const (
	AuthKerberos AuthKind = "kerberos"
	AuthPassword AuthKind = "password"
	AuthGuest    AuthKind = "guest"
)

// Valid reports whether the auth kind is one of the supported values.
func (a AuthKind) Valid() bool {
	switch a {
	case AuthKerberos, AuthPassword, AuthGuest:
		return true
	}
	return false
}

// ErrMalformedURI is returned when a share's resource URI cannot be parsed
// or carries no host.
var ErrMalformedURI = errors.New("malformed resource URI")

// Share is a configured remote filesystem resource the daemon keeps mounted.
//
// A share is identified by a stable opaque ID; uniqueness across the registry
// is enforced on ResourceURI, which acts as the natural key. Status and
// ActualMountPoint are owned by the orchestrator: no other component may
// mutate them.
type Share struct {
	// ID is a stable opaque identifier, assigned at creation.
	ID string `json:"id" yaml:"id"`

	// ResourceURI is the remote resource address (scheme://host/path).
	ResourceURI string `json:"resource_uri" yaml:"resource_uri"`

	// AuthKind selects the credential acquisition strategy.
	AuthKind AuthKind `json:"auth_kind" yaml:"auth_kind"`

	// CredentialRef is an opaque reference resolved by the credential
	// store at mount time. Never a plaintext secret.
	CredentialRef string `json:"credential_ref,omitempty" yaml:"credential_ref,omitempty"`

	// MountPointName is an optional admin-supplied local directory name.
	// When empty the name is derived from the resource URI.
	MountPointName string `json:"mount_point_name,omitempty" yaml:"mount_point_name,omitempty"`

	// ActualMountPoint is the absolute local path the share is bound to.
	// Non-empty iff Status == StatusMounted.
	ActualMountPoint string `json:"actual_mount_point,omitempty" yaml:"-"`

	// Status is the current position in the mount state machine.
	Status Status `json:"status" yaml:"-"`

	// Managed marks shares sourced from centrally pushed configuration.
	// Managed shares cannot be deleted locally, only re-authenticated.
	Managed bool `json:"managed" yaml:"managed"`
}

// NewShare creates a share in the initial state with a fresh ID.
func NewShare(resourceURI string, auth AuthKind) *Share {
	return &Share{
		ID:          uuid.New().String(),
		ResourceURI: resourceURI,
		AuthKind:    auth,
		Status:      StatusUndefined,
	}
}

// Validate checks that the share definition is well formed enough to attempt
// a mount: the URI must parse and carry a resolvable host.
func (s *Share) Validate() error {
	if _, err := s.URL(); err != nil {
		return err
	}
	if !s.AuthKind.Valid() {
		return fmt.Errorf("share %s: unknown auth kind %q", s.ID, s.AuthKind)
	}
	return nil
}

// URL parses the resource URI. Returns ErrMalformedURI when the URI does not
// parse or has no host component.
func (s *Share) URL() (*url.URL, error) {
	u, err := url.Parse(s.ResourceURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformedURI, s.ResourceURI, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrMalformedURI, s.ResourceURI)
	}
	return u, nil
}

// Host returns the remote host name, or "" for a malformed URI.
func (s *Share) Host() string {
	u, err := s.URL()
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// SameResource reports whether two URIs address the same remote resource.
// Comparison is case-insensitive on scheme and host, case-sensitive on path,
// and ignores a single trailing slash.
func SameResource(a, b string) bool {
	return normalizeURI(a) == normalizeURI(b)
}

func normalizeURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(raw, "/")
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + strings.TrimSuffix(u.Path, "/")
}

// Clone returns a deep copy. Registry reads hand out clones so concurrent
// mount attempts never observe a partially mutated record.
func (s *Share) Clone() *Share {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
