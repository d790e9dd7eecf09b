package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jcmturner/gokrb5/v8/client"
	krb5config "github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/keytab"

	"github.com/marmos91/mountkeep/internal/logger"
	"github.com/marmos91/mountkeep/pkg/mount"
)

// KerberosStore validates Kerberos material before a mount attempt. The
// reference format is "principal@REALM"; the store proves a TGT can be
// obtained from the configured keytab so authentication failures surface as
// invalid credentials instead of an opaque provider error mid-mount.
type KerberosStore struct {
	keytabPath string
	krb5Conf   string

	mu   sync.Mutex
	kt   *keytab.Keytab
	conf *krb5config.Config
}

// NewKerberos creates a Kerberos store. krb5ConfPath falls back to
// /etc/krb5.conf when empty. Files are loaded lazily on first resolve so a
// daemon without Kerberos shares never touches them.
func NewKerberos(keytabPath, krb5ConfPath string) *KerberosStore {
	if krb5ConfPath == "" {
		krb5ConfPath = "/etc/krb5.conf"
	}
	return &KerberosStore{keytabPath: keytabPath, krb5Conf: krb5ConfPath}
}

// Resolve implements Store. Only Kerberos references are served; other
// kinds fall through with ErrUnknownRef so a Chain can keep looking.
func (s *KerberosStore) Resolve(ctx context.Context, ref string, kind mount.AuthKind) (*Credential, error) {
	if kind != mount.AuthKerberos {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRef, ref)
	}

	principal, realm, err := splitPrincipal(ref)
	if err != nil {
		return nil, err
	}

	kt, conf, err := s.load()
	if err != nil {
		return nil, err
	}

	cl := client.NewWithKeytab(principal, realm, kt, conf, client.DisablePAFXFAST(true))
	defer cl.Destroy()

	done := make(chan error, 1)
	go func() { done <- cl.Login() }()
	select {
	case err = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("kerberos login for %s: %w", ref, err)
	}

	logger.Debug("kerberos ticket validated", logger.KeyAuth, string(kind), "principal", ref)
	return &Credential{Username: principal, Domain: realm}, nil
}

// load reads keytab and krb5.conf once and caches them.
func (s *KerberosStore) load() (*keytab.Keytab, *krb5config.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.kt != nil && s.conf != nil {
		return s.kt, s.conf, nil
	}

	data, err := os.ReadFile(s.keytabPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read keytab %s: %w", s.keytabPath, err)
	}
	kt := keytab.New()
	if err := kt.Unmarshal(data); err != nil {
		return nil, nil, fmt.Errorf("parse keytab %s: %w", s.keytabPath, err)
	}

	conf, err := krb5config.Load(s.krb5Conf)
	if err != nil {
		return nil, nil, fmt.Errorf("parse krb5.conf %s: %w", s.krb5Conf, err)
	}

	s.kt = kt
	s.conf = conf
	return kt, conf, nil
}

// splitPrincipal parses "alice@CORP.EXAMPLE" into principal and realm.
func splitPrincipal(ref string) (string, string, error) {
	at := strings.LastIndex(ref, "@")
	if at <= 0 || at == len(ref)-1 {
		return "", "", fmt.Errorf("malformed kerberos reference %q, want principal@REALM", ref)
	}
	return ref[:at], ref[at+1:], nil
}
