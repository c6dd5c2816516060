// Package errnum maps interpreter failures onto POSIX error numbers, which
// back the `!` special parameter and the `^ERR` parameter family.
package errnum

import (
	"errors"
	"io/fs"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// None is the error number reported after a successful command.
const None syscall.Errno = 0

// Coder is implemented by errors that know which error number they stand for.
type Coder interface {
	Errno() syscall.Errno
}

// Of returns the error number that best describes err.
func Of(err error) syscall.Errno {
	if err == nil {
		return None
	}

	var c Coder
	if errors.As(err, &c) {
		return c.Errno()
	}

	var e syscall.Errno
	if errors.As(err, &e) {
		return e
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return unix.ENOENT
	case errors.Is(err, fs.ErrPermission):
		return unix.EACCES
	case errors.Is(err, fs.ErrExist):
		return unix.EEXIST
	}

	return unix.EINVAL
}

// Name returns the symbolic name of e without its leading "E", e.g. "NOENT".
func Name(e syscall.Errno) string {
	if e == None {
		return "NONE"
	}
	n := unix.ErrnoName(e)
	if n == "" {
		return "UNKNOWN"
	}
	return strings.TrimPrefix(n, "E")
}

// Doc returns the human readable description of e.
func Doc(e syscall.Errno) string {
	if e == None {
		return "No error"
	}
	return e.Error()
}

var (
	byNameOnce sync.Once
	byName     map[string]syscall.Errno
)

// Lookup resolves a symbolic name ("NOENT" or "ENOENT") to its number.
func Lookup(name string) (syscall.Errno, bool) {
	byNameOnce.Do(func() {
		byName = map[string]syscall.Errno{"NONE": None}
		for i := 1; i < 256; i++ {
			e := syscall.Errno(i)
			if n := unix.ErrnoName(e); n != "" {
				if _, dup := byName[n[1:]]; !dup {
					byName[n[1:]] = e
				}
			}
		}
	})

	name = strings.ToUpper(name)
	if len(name) > 1 && name[0] == 'E' {
		if e, ok := byName[name[1:]]; ok {
			return e, true
		}
	}
	e, ok := byName[name]
	return e, ok
}
