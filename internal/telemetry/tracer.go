package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for mount operations.
// Protocol-agnostic keys use the "mount." prefix; reachability and sweep
// concerns use their own.
const (
	// ========================================================================
	// Share attributes
	// ========================================================================
	AttrShareURI   = "share.uri"        // Canonical resource URI
	AttrShareID    = "share.id"         // Registry identifier
	AttrShareHost  = "share.host"       // Remote host
	AttrShareName  = "share.name"       // Effective mount directory name
	AttrAuthMethod = "share.auth"       // guest, password, kerberos
	AttrManaged    = "share.managed"    // Centrally managed flag
	AttrMountPoint = "share.mountpoint" // Local mount point path

	// ========================================================================
	// Mount attempt attributes
	// ========================================================================
	AttrTrigger   = "mount.trigger"    // user, automatic, network, config
	AttrStatus    = "mount.status"     // Resulting share status
	AttrRawCode   = "mount.raw_code"   // Provider exit/status code
	AttrErrorKind = "mount.error_kind" // Classified failure kind

	// ========================================================================
	// Reachability attributes
	// ========================================================================
	AttrNetworkOnline = "network.online"
	AttrNetworkKind   = "network.kind"

	// ========================================================================
	// Sweep attributes
	// ========================================================================
	AttrSweepDirs   = "sweep.removed_dirs"
	AttrSweepJunk   = "sweep.removed_junk"
	AttrSweepStrays = "sweep.unmounted_strays"
)

// Span names for operations.
// Format: <component>.<operation>
const (
	SpanReconcile    = "reconcile"
	SpanMountAttempt = "mount.attempt"
	SpanUnmount      = "mount.unmount"
	SpanSweep        = "sweep"
	SpanProbe        = "network.probe"
)

// ShareURI returns an attribute for the canonical resource URI
func ShareURI(uri string) attribute.KeyValue {
	return attribute.String(AttrShareURI, uri)
}

// ShareID returns an attribute for the registry identifier
func ShareID(id string) attribute.KeyValue {
	return attribute.String(AttrShareID, id)
}

// ShareHost returns an attribute for the remote host
func ShareHost(host string) attribute.KeyValue {
	return attribute.String(AttrShareHost, host)
}

// ShareName returns an attribute for the effective mount directory name
func ShareName(name string) attribute.KeyValue {
	return attribute.String(AttrShareName, name)
}

// AuthMethod returns an attribute for the authentication method
func AuthMethod(method string) attribute.KeyValue {
	return attribute.String(AttrAuthMethod, method)
}

// MountPoint returns an attribute for the local mount point path
func MountPoint(path string) attribute.KeyValue {
	return attribute.String(AttrMountPoint, path)
}

// Trigger returns an attribute for what initiated the operation
func Trigger(trigger string) attribute.KeyValue {
	return attribute.String(AttrTrigger, trigger)
}

// Status returns an attribute for the resulting share status
func Status(status string) attribute.KeyValue {
	return attribute.String(AttrStatus, status)
}

// RawCode returns an attribute for the provider exit/status code
func RawCode(code int) attribute.KeyValue {
	return attribute.Int(AttrRawCode, code)
}

// ErrorKind returns an attribute for the classified failure kind
func ErrorKind(kind string) attribute.KeyValue {
	return attribute.String(AttrErrorKind, kind)
}

// NetworkOnline returns an attribute for the aggregate reachability flag
func NetworkOnline(online bool) attribute.KeyValue {
	return attribute.Bool(AttrNetworkOnline, online)
}

// StartMountSpan starts a span for a single mount attempt.
// This is a convenience function that sets common attributes.
func StartMountSpan(ctx context.Context, uri string, trigger string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		ShareURI(uri),
		Trigger(trigger),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanMountAttempt, trace.WithAttributes(allAttrs...))
}

// StartReconcileSpan starts a span for a reconcile batch.
func StartReconcileSpan(ctx context.Context, trigger string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Trigger(trigger),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanReconcile, trace.WithAttributes(allAttrs...))
}
