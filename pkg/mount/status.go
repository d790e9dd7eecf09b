package mount

// Status is the per-share mount state machine.
//
// Transitions are driven exclusively by the orchestrator:
//
//	undefined → queued → {mounted | errorOnMount | unreachable |
//	                      invalidCredentials | obstructingDirectory}
//	mounted → unmounted | userUnmounted
//
// Terminal failure states return to undefined only via an explicit reset
// (a user action or a fresh network-reachability transition).
type Status string

const (
	// StatusUndefined is the initial and reset state. A share in this
	// state is eligible for a mount attempt on the next cycle.
	StatusUndefined Status = "undefined"

	// StatusQueued marks a share whose mount attempt is in flight.
	StatusQueued Status = "queued"

	// StatusMounted means the share is bound to ActualMountPoint.
	StatusMounted Status = "mounted"

	// StatusUnmounted means the share was unmounted by the daemon
	// (shutdown, configuration refresh). Eligible for automatic remount.
	StatusUnmounted Status = "unmounted"

	// StatusUserUnmounted means the user explicitly unmounted the share.
	// Sticky across automatic cycles: only a user-triggered mount or a
	// fresh reachability transition clears it.
	StatusUserUnmounted Status = "userUnmounted"

	// StatusInvalidCredentials means the last attempt failed to
	// authenticate. Remediation depends on the share's auth kind.
	StatusInvalidCredentials Status = "invalidCredentials"

	// StatusErrorOnMount is a terminal mount failure (malformed URI,
	// missing remote share, unknown provider code). Not retried until a
	// user action resets the share.
	StatusErrorOnMount Status = "errorOnMount"

	// StatusUnreachable means the host did not answer. Retried
	// automatically on the next reachability-positive cycle.
	StatusUnreachable Status = "unreachable"

	// StatusObstructingDirectory means a foreign object occupies the
	// mount point and policy forbids reclaiming it.
	StatusObstructingDirectory Status = "obstructingDirectory"
)

// coolDown lists the states an automatic trigger must not retry. Only a
// user action (or the reset in Orchestrator.Reconcile for user triggers)
// clears them, which keeps a tight retry loop from hammering a known-bad
// target.
var coolDown = map[Status]bool{
	StatusQueued:        true,
	StatusErrorOnMount:  true,
	StatusUserUnmounted: true,
	StatusUnreachable:   true,
}

// InCoolDown reports whether an automatic reconcile must skip this share.
func (s Status) InCoolDown() bool {
	return coolDown[s]
}

// Mounted reports whether the share is currently bound.
func (s Status) Mounted() bool {
	return s == StatusMounted
}

// String implements fmt.Stringer.
func (s Status) String() string {
	if s == "" {
		return string(StatusUndefined)
	}
	return string(s)
}
