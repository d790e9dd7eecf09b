package config

import (
	"github.com/marmos91/mountkeep/pkg/credentials"
)

// CreateCredentialStore creates a credential store from the configuration.
//
// The static entries from the credentials section always participate.
// When Kerberos is enabled, a keytab-backed store is chained in front of
// them so that kerberos shares resolve against the keytab while
// password shares keep resolving against the static entries.
func (c *Config) CreateCredentialStore() credentials.Store {
	static := credentials.NewStatic()
	for ref, entry := range c.Credentials {
		static.Put(ref, credentials.Credential{
			Username: entry.Username,
			Password: entry.Password,
			Domain:   entry.Domain,
		})
	}

	if !c.Kerberos.Enabled {
		return static
	}

	kerberos := credentials.NewKerberos(c.Kerberos.KeytabPath, c.Kerberos.Krb5Conf)
	return credentials.Chain{kerberos, static}
}
