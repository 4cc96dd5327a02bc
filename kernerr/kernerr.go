// Package kernerr defines the kernel's error kinds and the syscall-boundary
// errno values they map to. Internal propagation wraps causes with
// github.com/pkg/errors so that a fatal collision carries a call stack by
// the time it reaches the collaborator panic handler; syscall returns stay
// a bare Errno for ABI compatibility with user-space wrappers.
package kernerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a kernel error independently of the textual message.
type Kind int

const (
	// OutOfMemory: the physical allocator or heap returned none.
	OutOfMemory Kind = iota
	// InvalidMapping: map was attempted across an existing leaf, or with
	// misaligned addresses.
	InvalidMapping
	// InvalidCapability: a syscall referenced a capability that is
	// absent, revoked, or of the wrong type.
	InvalidCapability
	// InvalidArgument: a size was not a multiple of the page size,
	// permissions were write-without-read, or an alignment request was
	// unsupported.
	InvalidArgument
	// WouldBlock: an IPC channel's receiver was not ready.
	WouldBlock
)

func (k Kind) String() string {
	switch k {
	case OutOfMemory:
		return "OutOfMemory"
	case InvalidMapping:
		return "InvalidMapping"
	case InvalidCapability:
		return "InvalidCapability"
	case InvalidArgument:
		return "InvalidArgument"
	case WouldBlock:
		return "WouldBlock"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Errno is the syscall-boundary representation of a Kind: a negative
// sentinel, in the style of the teacher's defs.Err_t, returned directly
// to user-space wrappers with no further unwrapping.
type Errno int32

const (
	EOK     Errno = 0
	EFAULT  Errno = -1 // InvalidMapping surfaced to a user address fault
	ENOMEM  Errno = -2 // OutOfMemory
	ENOCAP  Errno = -3 // InvalidCapability
	EINVAL  Errno = -4 // InvalidArgument
	EAGAIN  Errno = -5 // WouldBlock
	EFATAL  Errno = -6 // internal invariant violated; caller should panic
)

// Errno maps a Kind to its syscall-boundary sentinel.
func (k Kind) Errno() Errno {
	switch k {
	case OutOfMemory:
		return ENOMEM
	case InvalidMapping:
		return EFAULT
	case InvalidCapability:
		return ENOCAP
	case InvalidArgument:
		return EINVAL
	case WouldBlock:
		return EAGAIN
	default:
		return EFATAL
	}
}

// Error is a kernel-internal error: a Kind plus a wrapped cause carrying a
// stack trace from github.com/pkg/errors.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.cause)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// New creates a kernel error of the given kind with a formatted message,
// stamped with a stack trace at the call site.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, cause: errors.Errorf(format, args...)}
}

// Wrap attaches kind and a stack trace to an existing error.
func Wrap(kind Kind, err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, cause: errors.Wrap(err, message)}
}

// Is reports whether err is a kernel Error of the given Kind.
func Is(err error, kind Kind) bool {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind == kind
	}
	return false
}
