package mount

// ErrorKind classifies a mount failure independently of the provider's raw
// result codes. The kinds, not the numbers, are the portable contract: a
// provider on a different OS plugs in its own raw-code table.
type ErrorKind string

const (
	// KindNone means the attempt succeeded.
	KindNone ErrorKind = ""

	// KindMalformedResource: URI cannot be parsed or has no host.
	KindMalformedResource ErrorKind = "malformedResource"

	// KindHostUnreachable: host down, no route, or connection refused.
	KindHostUnreachable ErrorKind = "hostUnreachable"

	// KindTimedOutHost: the provider call exceeded the attempt timeout.
	KindTimedOutHost ErrorKind = "timedOutHost"

	// KindAuthenticationFailed: credentials rejected by the remote end.
	KindAuthenticationFailed ErrorKind = "authenticationFailed"

	// KindResourceMissing: the remote share is no longer exported.
	KindResourceMissing ErrorKind = "resourceMissing"

	// KindLocalObstruction: a non-mount object or a foreign mount
	// occupies the target path.
	KindLocalObstruction ErrorKind = "localObstruction"

	// KindAlreadyBound: the share is already mounted at the target.
	// Not an error; short-circuits to StatusMounted.
	KindAlreadyBound ErrorKind = "alreadyBound"

	// KindUnknownProviderCode: a raw code with no classification. Logged
	// with the raw code for diagnosis.
	KindUnknownProviderCode ErrorKind = "unknownProviderCode"
)

// RawCodeOK is the provider raw code for success.
const RawCodeOK = 0

// rawCodeTable maps POSIX-flavored provider codes to error kinds. The
// numbers follow the BSD errno space the command-line mount tools report
// (ENOENT, EACCES, EEXIST, ETIMEDOUT, EHOSTDOWN, EHOSTUNREACH, EAUTH) plus
// the SMB client's private "share not found" code.
var rawCodeTable = map[int]ErrorKind{
	2:     KindResourceMissing,      // ENOENT: remote path not exported
	13:    KindAuthenticationFailed, // EACCES
	17:    KindAlreadyBound,         // EEXIST: already mounted
	60:    KindTimedOutHost,         // ETIMEDOUT
	64:    KindHostUnreachable,      // EHOSTDOWN
	65:    KindHostUnreachable,      // EHOSTUNREACH
	80:    KindAuthenticationFailed, // EAUTH
	-6003: KindResourceMissing,      // SMB client: share does not exist
}

// Classify maps a provider raw code to an error kind.
func Classify(rawCode int) ErrorKind {
	if rawCode == RawCodeOK {
		return KindNone
	}
	if kind, ok := rawCodeTable[rawCode]; ok {
		return kind
	}
	return KindUnknownProviderCode
}

// StatusFor returns the share status a classified failure resolves to.
func (k ErrorKind) StatusFor() Status {
	switch k {
	case KindNone, KindAlreadyBound:
		return StatusMounted
	case KindHostUnreachable, KindTimedOutHost:
		return StatusUnreachable
	case KindAuthenticationFailed:
		return StatusInvalidCredentials
	case KindLocalObstruction:
		return StatusObstructingDirectory
	case KindMalformedResource, KindResourceMissing, KindUnknownProviderCode:
		return StatusErrorOnMount
	default:
		return StatusErrorOnMount
	}
}

// Retryable reports whether the kind is eligible for automatic retry on the
// next reachability-positive cycle without user intervention.
func (k ErrorKind) Retryable() bool {
	return k == KindHostUnreachable || k == KindTimedOutHost
}
