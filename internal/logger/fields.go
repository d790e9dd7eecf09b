package logger

import "log/slog"

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so mount activity
// can be aggregated and queried per share, host, or trigger.
const (
	// Distributed tracing
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for batch correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for attempt tracking

	// Mount orchestration
	KeyTrigger    = "trigger"     // Reconcile trigger: automatic, user
	KeyShare      = "share"       // Remote resource URI (smb://host/share)
	KeyShareID    = "share_id"    // Stable share identifier
	KeyHost       = "host"        // Remote host name
	KeyMountPoint = "mount_point" // Local mount point path
	KeyStatus     = "status"      // Share mount status
	KeyAuth       = "auth"        // Authentication kind: kerberos, password, guest

	// Filesystem
	KeyPath    = "path"     // Full file/directory path
	KeyBaseDir = "base_dir" // Mount base directory

	// Operation metadata
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorKind  = "error_kind"  // Classified mount error kind
	KeyRawCode    = "raw_code"    // Provider raw result code
	KeyRemoved    = "removed"     // Number of entries removed by a sweep
	KeyShares     = "shares"      // Number of shares in scope
)

// Field constructors for type safety.

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Trigger returns a slog.Attr for the reconcile trigger kind
func Trigger(kind string) slog.Attr {
	return slog.String(KeyTrigger, kind)
}

// Share returns a slog.Attr for the remote resource URI
func Share(uri string) slog.Attr {
	return slog.String(KeyShare, uri)
}

// ShareID returns a slog.Attr for the stable share identifier
func ShareID(id string) slog.Attr {
	return slog.String(KeyShareID, id)
}

// Host returns a slog.Attr for the remote host
func Host(host string) slog.Attr {
	return slog.String(KeyHost, host)
}

// MountPoint returns a slog.Attr for the local mount point
func MountPoint(path string) slog.Attr {
	return slog.String(KeyMountPoint, path)
}

// Status returns a slog.Attr for a share mount status
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Auth returns a slog.Attr for the authentication kind
func Auth(kind string) slog.Attr {
	return slog.String(KeyAuth, kind)
}

// Path returns a slog.Attr for a filesystem path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// BaseDir returns a slog.Attr for the mount base directory
func BaseDir(dir string) slog.Attr {
	return slog.String(KeyBaseDir, dir)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorKind returns a slog.Attr for a classified mount error kind
func ErrorKind(kind string) slog.Attr {
	return slog.String(KeyErrorKind, kind)
}

// RawCode returns a slog.Attr for a provider raw result code
func RawCode(code int) slog.Attr {
	return slog.Int(KeyRawCode, code)
}
