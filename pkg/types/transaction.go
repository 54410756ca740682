package types

import "time"

// TransactionItem is one leaf of a resolved transaction.
type TransactionItem struct {
	PkgID    string   `json:"pkg_id"`
	Size     int64    `json:"size"`
	Replaces []string `json:"replaces,omitempty"`
}

// TransactionTree partitions resolved items by action.
type TransactionTree map[Action][]TransactionItem

// Len counts all items in the tree.
func (t TransactionTree) Len() int {
	n := 0
	for _, items := range t {
		n += len(items)
	}
	return n
}

// ResolveCode is the problem code returned by the daemon's resolve call.
type ResolveCode uint32

const (
	ResolveOK       ResolveCode = 0
	ResolveWarnings ResolveCode = 1
	ResolveError    ResolveCode = 2
)

// Succeeded reports whether the transaction may proceed to a run.
func (c ResolveCode) Succeeded() bool { return c == ResolveOK || c == ResolveWarnings }

// Resolution is the outcome of resolving the queued action set.
type Resolution struct {
	Code     ResolveCode
	Problems []string
	Tree     TransactionTree
}

// RunCode classifies how a transaction run ended.
type RunCode int

const (
	RunOK RunCode = iota
	RunDownloadErrors
	RunKeyImport
	RunSignature
	RunFailed
)

func (c RunCode) String() string {
	switch c {
	case RunOK:
		return "ok"
	case RunDownloadErrors:
		return "download_errors"
	case RunKeyImport:
		return "key_import"
	case RunSignature:
		return "signature"
	default:
		return "failed"
	}
}

// RunResult is the outcome of one transaction run.
type RunResult struct {
	Code       RunCode
	Messages   []string
	KeyRequest *KeyImportRequest
}

// KeyImportRequest describes a signing key the daemon wants confirmed
// before it can verify a package.
type KeyImportRequest struct {
	PkgID       string    `json:"pkg_id,omitempty"`
	UserID      string    `json:"user_id"`
	KeyID       string    `json:"key_id"`
	KeyURL      string    `json:"key_url"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// QueueItem is one package queued for a transaction. Path is set for
// local installs and names the RPM file on disk.
type QueueItem struct {
	PkgID  string `json:"pkg_id"`
	Action Action `json:"action"`
	Path   string `json:"path,omitempty"`
}
