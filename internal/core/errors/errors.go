// Package errors defines the failure kinds of an export run.
//
// Every failure that leaves the export core carries exactly one Kind. Callers
// branch on the kind with errors.Is against the sentinels below or with KindOf.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an export failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfiguration is a catalog that is unreachable or misconfigured.
	KindConfiguration
	// KindNotFound is missing cube, dimension or fragment metadata.
	KindNotFound
	// KindPermission is insufficient rights on the datacube or the destination path.
	KindPermission
	// KindAlreadyPublished means the destination exists and force was not set.
	// It is reported as a successful no-op.
	KindAlreadyPublished
	// KindUnsupportedType is a scalar type tag the active sink cannot store.
	KindUnsupportedType
	// KindFragmentationTooFine means a non-innermost dimension wraps inside
	// more than one fragment. Fragments must be merged before exporting.
	KindFragmentationTooFine
	// KindIO is a shard connection/read failure or a sink write/commit failure.
	KindIO
)

var kindNames = map[Kind]string{
	KindUnknown:              "unknown",
	KindConfiguration:        "configuration",
	KindNotFound:             "not_found",
	KindPermission:           "permission",
	KindAlreadyPublished:     "already_published",
	KindUnsupportedType:      "unsupported_type",
	KindFragmentationTooFine: "fragmentation_too_fine",
	KindIO:                   "io",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String. Unknown names map to KindUnknown.
func ParseKind(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindUnknown
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its kind.
var (
	ErrConfiguration        = &Error{Kind: KindConfiguration}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrPermission           = &Error{Kind: KindPermission}
	ErrAlreadyPublished     = &Error{Kind: KindAlreadyPublished}
	ErrUnsupportedType      = &Error{Kind: KindUnsupportedType}
	ErrFragmentationTooFine = &Error{Kind: KindFragmentationTooFine}
	ErrIO                   = &Error{Kind: KindIO}
)

// Error is a classified export failure.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "catalog.datacube"
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so wrapped errors compare equal to
// the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func Configuration(op, msg string, err error) *Error {
	return newError(KindConfiguration, op, msg, err)
}

func NotFound(op, msg string, err error) *Error {
	return newError(KindNotFound, op, msg, err)
}

func Permission(op, msg string, err error) *Error {
	return newError(KindPermission, op, msg, err)
}

// AlreadyPublished reports an existing destination. path is the output that was found.
func AlreadyPublished(path string) *Error {
	return newError(KindAlreadyPublished, "export", fmt.Sprintf("destination %q already exists, set force to overwrite", path), nil)
}

func UnsupportedType(op, tag string) *Error {
	return newError(KindUnsupportedType, op, fmt.Sprintf("unsupported type %q", tag), nil)
}

func FragmentationTooFine(wrapping int) *Error {
	return newError(KindFragmentationTooFine, "export",
		fmt.Sprintf("cube too fragmented to export: %d fragments wrap on a non-innermost dimension, merge fragments first", wrapping), nil)
}

func IO(op, msg string, err error) *Error {
	return newError(KindIO, op, msg, err)
}

// New builds an error of an arbitrary kind. Used to rebuild a failure that
// was received from another rank.
func New(kind Kind, op, msg string) *Error {
	return newError(kind, op, msg, nil)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ExitCode maps an export result to a process status. Already published
// outputs count as success.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindAlreadyPublished:
		return 0
	case KindConfiguration:
		return 2
	case KindNotFound:
		return 3
	case KindPermission:
		return 4
	case KindUnsupportedType:
		return 5
	case KindFragmentationTooFine:
		return 6
	case KindIO:
		return 7
	default:
		return 1
	}
}

const (
	HttpInternalError   = "internal_error"
	HttpInvalidRank     = "invalid_rank"
	HttpNotReady        = "not_ready"
	HttpBarrierCanceled = "barrier_canceled"
)

// ErrorResponse is the error body returned by the rank 0 coordination endpoint.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
