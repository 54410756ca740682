package transaction

// State is the coordinator's position in the resolve/confirm/run cycle.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateAwaitingGPGConfirm
	StateRunning
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateAwaitingGPGConfirm:
		return "awaiting_gpg_confirm"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Busy reports whether a transaction cycle is under way.
func (s State) Busy() bool {
	return s == StateResolving || s == StateAwaitingGPGConfirm || s == StateRunning
}

// Failure says why a transaction ended in StateFailed.
type Failure int

const (
	FailureNone Failure = iota
	FailureDependency
	FailureDownload
	FailureGPGRejected
	FailureSignature
	FailureOther
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return ""
	case FailureDependency:
		return "dependency"
	case FailureDownload:
		return "download"
	case FailureGPGRejected:
		return "gpg_rejected"
	case FailureSignature:
		return "signature_verification"
	}
	return "other"
}
