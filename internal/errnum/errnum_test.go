package errnum

import (
	"fmt"
	"os"
	"syscall"
	"testing"

	"golang.org/x/sys/unix"
)

type coded struct{ e syscall.Errno }

func (c coded) Error() string         { return "coded" }
func (c coded) Errno() syscall.Errno { return c.e }

func TestOf(t *testing.T) {
	_, statErr := os.Stat("/definitely/not/here")

	tests := []struct {
		name string
		err  error
		want syscall.Errno
	}{
		{"nil", nil, None},
		{"coder", coded{unix.EBUSY}, unix.EBUSY},
		{"wrapped coder", fmt.Errorf("outer: %w", coded{unix.EPERM}), unix.EPERM},
		{"raw errno", unix.ERANGE, unix.ERANGE},
		{"not exist", statErr, unix.ENOENT},
		{"plain", fmt.Errorf("boom"), unix.EINVAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Of(tt.err); got != tt.want {
				t.Errorf("Of() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNameAndLookup(t *testing.T) {
	if got := Name(unix.ENOENT); got != "NOENT" {
		t.Fatalf("Name(ENOENT) = %q", got)
	}
	if got := Name(None); got != "NONE" {
		t.Fatalf("Name(0) = %q", got)
	}

	for _, in := range []string{"NOENT", "ENOENT", "noent"} {
		e, ok := Lookup(in)
		if !ok || e != unix.ENOENT {
			t.Errorf("Lookup(%q) = %v, %v", in, e, ok)
		}
	}
	if _, ok := Lookup("NOSUCHTHING"); ok {
		t.Error("Lookup of an unknown name succeeded")
	}
	if Doc(None) != "No error" {
		t.Errorf("Doc(0) = %q", Doc(None))
	}
}
