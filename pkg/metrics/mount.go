package metrics

import "time"

// MountMetrics provides observability for the mount engine.
//
// This interface is optional - pass nil to disable metrics collection with
// zero overhead. Use the package-level helpers when the receiver may be nil.
type MountMetrics interface {
	// RecordAttempt counts one mount attempt, labeled by trigger.
	RecordAttempt(trigger string)

	// RecordFailure counts one failed attempt, labeled by error kind.
	RecordFailure(kind string)

	// SetMountedShares records the number of currently mounted shares.
	SetMountedShares(n int)

	// RecordSweep counts cleanup sweep removals.
	RecordSweep(removedDirs, removedJunk, unmountedStrays int)

	// ObserveBatch records the duration of one reconcile batch.
	ObserveBatch(trigger string, duration time.Duration)
}

// RecordAttempt records a mount attempt if m is non-nil.
func RecordAttempt(m MountMetrics, trigger string) {
	if m != nil {
		m.RecordAttempt(trigger)
	}
}

// RecordFailure records a failed attempt if m is non-nil.
func RecordFailure(m MountMetrics, kind string) {
	if m != nil {
		m.RecordFailure(kind)
	}
}

// SetMountedShares records the mounted-share gauge if m is non-nil.
func SetMountedShares(m MountMetrics, n int) {
	if m != nil {
		m.SetMountedShares(n)
	}
}

// RecordSweep records sweep removals if m is non-nil.
func RecordSweep(m MountMetrics, removedDirs, removedJunk, unmountedStrays int) {
	if m != nil {
		m.RecordSweep(removedDirs, removedJunk, unmountedStrays)
	}
}

// ObserveBatch records a reconcile batch duration if m is non-nil.
func ObserveBatch(m MountMetrics, trigger string, duration time.Duration) {
	if m != nil {
		m.ObserveBatch(trigger, duration)
	}
}
