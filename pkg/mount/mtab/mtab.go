// Package mtab answers questions about the live mount table: whether a path
// is a mount point and which remote device backs it. The resolver and the
// cleanup sweeper both depend on it through the Table interface so tests can
// substitute a fake table.
package mtab

import (
	"net/url"
	"strings"
)

// Table exposes the parts of the OS mount table the mount engine needs.
type Table interface {
	// IsMountPoint reports whether path is the root of a mounted
	// filesystem. A missing path is not an error: it is simply not a
	// mount point.
	IsMountPoint(path string) (bool, error)

	// DeviceFor returns the device/source backing the mount at path
	// (e.g. "//alice@srv/finance" for SMB, "srv:/export" for NFS).
	// Returns "" when path is not a mount point.
	DeviceFor(path string) (string, error)
}

// MatchesResource reports whether a mount-table device string refers to the
// same remote resource as the given URI. Device syntax differs per
// filesystem ("//user@host/share" for SMB, "host:/path" for NFS), so the
// comparison normalizes both sides to host + path.
func MatchesResource(device, resourceURI string) bool {
	devHost, devPath, ok := splitDevice(device)
	if !ok {
		return false
	}

	u, err := url.Parse(resourceURI)
	if err != nil || u.Host == "" {
		return false
	}

	if !strings.EqualFold(devHost, u.Hostname()) {
		return false
	}
	return trimPath(devPath) == trimPath(u.Path)
}

// splitDevice parses an SMB-style ("//user@host/share") or NFS-style
// ("host:/path") device string into host and path.
func splitDevice(device string) (host, path string, ok bool) {
	if strings.HasPrefix(device, "//") {
		rest := strings.TrimPrefix(device, "//")
		slash := strings.Index(rest, "/")
		if slash < 0 {
			return "", "", false
		}
		host = rest[:slash]
		path = rest[slash:]
		// Strip the user@ prefix SMB mounts carry.
		if at := strings.LastIndex(host, "@"); at >= 0 {
			host = host[at+1:]
		}
		return host, path, true
	}

	if colon := strings.Index(device, ":"); colon > 0 {
		return device[:colon], device[colon+1:], true
	}

	return "", "", false
}

func trimPath(p string) string {
	return strings.Trim(p, "/")
}
