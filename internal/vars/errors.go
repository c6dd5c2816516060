package vars

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrorKind classifies why the store refused an operation.
type ErrorKind int

const (
	// KindValidation means a flag check or pre-hook rejected the value.
	KindValidation ErrorKind = iota
	// KindPermission means the variable is read-only, undeletable or import-only.
	KindPermission
	// KindLookup means the variable is not set or the name is not usable.
	KindLookup
)

// Error is returned by every mutating Store operation that fails.
type Error struct {
	Name   string
	Kind   ErrorKind
	Reason string
	errno  syscall.Errno
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Reason)
}

// Errno reports the error number exposed through the `!` parameter.
func (e *Error) Errno() syscall.Errno {
	if e.errno != 0 {
		return e.errno
	}
	switch e.Kind {
	case KindPermission:
		return unix.EPERM
	case KindLookup:
		return unix.ENOENT
	}
	return unix.EINVAL
}

// IsKind reports whether err (or any error in its chain) is a store Error of kind k.
func IsKind(err error, k ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

func invalid(name, reason string) *Error {
	return &Error{Name: name, Kind: KindValidation, Reason: reason}
}

func denied(name, reason string) *Error {
	return &Error{Name: name, Kind: KindPermission, Reason: reason}
}

func notFound(name, reason string) *Error {
	return &Error{Name: name, Kind: KindLookup, Reason: reason}
}
