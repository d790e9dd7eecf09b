package mount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShare(t *testing.T) {
	s := NewShare("smb://srv/finance", AuthKerberos)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StatusUndefined, s.Status)
	assert.Empty(t, s.ActualMountPoint)
	assert.False(t, s.Managed)
}

func TestShareValidate(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		auth    AuthKind
		wantErr bool
	}{
		{"valid smb", "smb://srv.example.com/finance", AuthKerberos, false},
		{"valid nfs", "nfs://nas.example.com/export/home", AuthGuest, false},
		{"no host", "smb:///finance", AuthPassword, true},
		{"not a URI", "://bogus", AuthPassword, true},
		{"bad auth kind", "smb://srv/finance", AuthKind("ldap"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewShare(tt.uri, tt.auth)
			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestShareHost(t *testing.T) {
	s := NewShare("smb://fileserver.example.com/media", AuthGuest)
	assert.Equal(t, "fileserver.example.com", s.Host())

	bad := NewShare("not a uri", AuthGuest)
	assert.Empty(t, bad.Host())
}

func TestSameResource(t *testing.T) {
	assert.True(t, SameResource("smb://SRV/finance", "smb://srv/finance"))
	assert.True(t, SameResource("smb://srv/finance/", "smb://srv/finance"))
	assert.False(t, SameResource("smb://srv/finance", "smb://srv/Finance"))
	assert.False(t, SameResource("smb://srv/finance", "nfs://srv/finance"))
}

func TestShareClone(t *testing.T) {
	s := NewShare("smb://srv/finance", AuthPassword)
	s.Status = StatusMounted
	s.ActualMountPoint = "/mnt/shares/finance"

	c := s.Clone()
	require.NotSame(t, s, c)
	assert.Equal(t, s.Status, c.Status)

	c.Status = StatusUnmounted
	assert.Equal(t, StatusMounted, s.Status)
}

func TestStatusCoolDown(t *testing.T) {
	for _, s := range []Status{StatusQueued, StatusErrorOnMount, StatusUserUnmounted, StatusUnreachable} {
		assert.True(t, s.InCoolDown(), "status %s", s)
	}
	for _, s := range []Status{StatusUndefined, StatusMounted, StatusUnmounted, StatusInvalidCredentials, StatusObstructingDirectory} {
		assert.False(t, s.InCoolDown(), "status %s", s)
	}
}
