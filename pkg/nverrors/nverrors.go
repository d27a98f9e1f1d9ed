// Package nverrors defines the error taxonomy shared by every NervusDB
// component. Call sites wrap one of the sentinel errors below with
// fmt.Errorf("...: %w", ...) the way the teacher repo wraps storage
// failures in pkg/manager/fsm.go; callers recover the Kind with errors.Is
// or the Kind helper instead of string-matching messages.
package nverrors

import "errors"

// Kind identifies one of the error categories from the error-handling
// design: each Kind has a fixed propagation rule callers can rely on.
type Kind string

const (
	KindInvalidInput          Kind = "InvalidInput"
	KindSyntaxError           Kind = "SyntaxError"
	KindRuntimeType           Kind = "RuntimeType"
	KindResourceLimitExceeded Kind = "ResourceLimitExceeded"
	KindNotFound              Kind = "NotFound"
	KindConflict              Kind = "Conflict"
	KindIOError               Kind = "IoError"
	KindCorruptedStore        Kind = "CorruptedStore"
)

var (
	// ErrInvalidInput: malformed atom, out-of-range option, nested ABORT mismatch.
	ErrInvalidInput = errors.New("nervusdb: invalid input")
	// ErrSyntax: Cypher parse failure.
	ErrSyntax = errors.New("nervusdb: syntax error")
	// ErrRuntimeType: illegal type combination at an evaluation site.
	ErrRuntimeType = errors.New("nervusdb: runtime type error")
	// ErrResourceLimitExceeded: per-query row/group/collect caps, Apply cap, time budget.
	ErrResourceLimitExceeded = errors.New("nervusdb: resource limit exceeded")
	// ErrNotFound: explicit strict lookup on a missing atom/triple.
	ErrNotFound = errors.New("nervusdb: not found")
	// ErrConflict: writer lock contention.
	ErrConflict = errors.New("nervusdb: conflict")
	// ErrIO: underlying disk/OS failure.
	ErrIO = errors.New("nervusdb: io error")
	// ErrCorruptedStore: checksum mismatch, version skew, truncated manifest.
	ErrCorruptedStore = errors.New("nervusdb: corrupted store")
)

var kindBySentinel = map[error]Kind{
	ErrInvalidInput:          KindInvalidInput,
	ErrSyntax:                KindSyntaxError,
	ErrRuntimeType:           KindRuntimeType,
	ErrResourceLimitExceeded: KindResourceLimitExceeded,
	ErrNotFound:              KindNotFound,
	ErrConflict:              KindConflict,
	ErrIO:                    KindIOError,
	ErrCorruptedStore:        KindCorruptedStore,
}

// Of classifies err against the known sentinels, unwrapping as needed.
// Returns "" if err does not wrap any of them.
func Of(err error) Kind {
	for sentinel, kind := range kindBySentinel {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ""
}
