package vars

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/nhle/nmail/internal/logging"
)

// Version is the program version exposed through the version variables.
var Version = "0.9.0"

// PreHook may veto or rewrite a pending assignment. value is nil when the
// variable is being cleared.
type PreHook func(s *Store, name string, value *string) error

// PostHook runs after an assignment has been stored. value is nil when the
// variable ended up unset.
type PostHook func(s *Store, name string, value *string)

// Meta is the compile-time description of a built-in variable (an okey).
type Meta struct {
	Name     string
	Flags    Flag
	FirstUse string
	Default  string
	Pre      PreHook
	Post     PostHook
	Compute  func(s *Store) (string, bool)
}

// okeys is the table of built-in variables. Order is irrelevant; it is
// indexed by name when a Store is created.
var okeys = []Meta{
	{Name: "?", Flags: FlagVirtual | FlagReadOnly | FlagNoDelete},
	{Name: "!", Flags: FlagVirtual | FlagReadOnly | FlagNoDelete},
	{Name: "account", Flags: FlagReadOnly | FlagNoCntrls},
	{Name: "autoprint", Flags: FlagBool},
	{Name: "COLUMNS", Flags: FlagEnv | FlagPosNum},
	{Name: "debug", Flags: FlagBool | FlagHook, Post: postDebug},
	{Name: "EDITOR", Flags: FlagEnv | FlagDefault, Default: "ed"},
	{Name: "errexit", Flags: FlagBool},
	{Name: "escape", Flags: FlagNoEmpty | FlagDefault, Default: "~"},
	{Name: "folder", Flags: FlagHook | FlagNoCntrls},
	{Name: "folder-hook", Flags: FlagNoCntrls},
	{Name: "folder-resolved", Flags: FlagVirtual | FlagReadOnly},
	{Name: "HOME", Flags: FlagEnv | FlagImport | FlagNoEmpty | FlagNoDelete | FlagHook, Pre: preDirectory(unix.R_OK | unix.X_OK)},
	{Name: "history-size", Flags: FlagPosNum | FlagDefault, Default: "500"},
	{Name: "hold", Flags: FlagBool},
	{Name: "hostname", Flags: FlagLower | FlagNoCntrls},
	{Name: "ifs", Flags: FlagDefault, Default: " \t\n"},
	{Name: "ifs-ws", Flags: FlagVirtual | FlagReadOnly, Compute: computeIfsWs},
	{Name: "ignore", Flags: FlagBool},
	{Name: "ignoreeof", Flags: FlagBool},
	{Name: "inbox", Flags: FlagNoCntrls},
	{Name: "inline-editor", Flags: FlagBool},
	{Name: "keep", Flags: FlagBool},
	{Name: "LINES", Flags: FlagEnv | FlagPosNum},
	{Name: "log-prefix", Flags: FlagNoCntrls | FlagDefault, Default: "nmail: "},
	{Name: "LOGNAME", Flags: FlagEnv | FlagImport | FlagNoDelete},
	{Name: "MAIL", Flags: FlagEnv},
	{Name: "MBOX", Flags: FlagEnv},
	{Name: "on-account-cleanup", Flags: FlagNoCntrls},
	{Name: "PAGER", Flags: FlagEnv | FlagDefault, Default: "more"},
	{Name: "password", Flags: FlagNoCntrls},
	{Name: "posix", Flags: FlagBool | FlagHook, Post: mirror("POSIXLY_CORRECT")},
	{Name: "POSIXLY_CORRECT", Flags: FlagBool | FlagEnv | FlagHook, Post: mirror("posix")},
	{Name: "prompt", Flags: FlagFirstUse, FirstUse: "? "},
	{Name: "screen", Flags: FlagPosNum},
	{Name: "SHELL", Flags: FlagEnv | FlagDefault, Default: "/bin/sh"},
	{Name: "TMPDIR", Flags: FlagEnv | FlagNoEmpty | FlagHook | FlagDefault, Default: os.TempDir(), Pre: preDirectory(unix.R_OK | unix.W_OK | unix.X_OK)},
	{Name: "toplines", Flags: FlagNum | FlagDefault, Default: "5"},
	{Name: "ttycharset", Flags: FlagLower | FlagNoCntrls},
	{Name: "umask", Flags: FlagHook | FlagDefault, Default: "0077", Pre: preUmask, Post: postUmask},
	{Name: "USER", Flags: FlagEnv | FlagImport | FlagNoDelete},
	{Name: "verbose", Flags: FlagBool | FlagHook, Post: postVerbose},
	{Name: "VISUAL", Flags: FlagEnv | FlagDefault, Default: "vi"},
	{Name: "version", Flags: FlagVirtual | FlagReadOnly, Compute: computeVersion(-1)},
	{Name: "version-major", Flags: FlagVirtual | FlagReadOnly, Compute: computeVersion(0)},
	{Name: "version-minor", Flags: FlagVirtual | FlagReadOnly, Compute: computeVersion(1)},
	{Name: "version-update", Flags: FlagVirtual | FlagReadOnly, Compute: computeVersion(2)},
}

func preDirectory(mode uint32) PreHook {
	return func(_ *Store, name string, value *string) error {
		if value == nil {
			return nil
		}
		fi, err := os.Stat(*value)
		if err != nil {
			return invalid(name, fmt.Sprintf("not an accessible directory: %s", *value))
		}
		if !fi.IsDir() {
			return invalid(name, fmt.Sprintf("not a directory: %s", *value))
		}
		if err := unix.Access(*value, mode); err != nil {
			return invalid(name, fmt.Sprintf("directory not accessible: %s: %v", *value, err))
		}
		return nil
	}
}

func parseUmask(v string) (uint64, error) {
	n, err := strconv.ParseUint(v, 8, 32)
	if err != nil {
		return 0, err
	}
	if n > 0o777 {
		return 0, fmt.Errorf("%#o exceeds 0777", n)
	}
	return n, nil
}

func preUmask(_ *Store, name string, value *string) error {
	if value == nil {
		return nil
	}
	if _, err := parseUmask(*value); err != nil {
		return invalid(name, fmt.Sprintf("invalid octal mask %q", *value))
	}
	return nil
}

func postUmask(_ *Store, _ string, value *string) {
	if value == nil {
		return
	}
	if n, err := parseUmask(*value); err == nil {
		unix.Umask(int(n))
	}
}

func postDebug(_ *Store, _ string, value *string) {
	logging.SetDebug(value != nil)
}

func postVerbose(_ *Store, _ string, value *string) {
	logging.SetVerbose(value != nil)
}

// mirror keeps two boolean variables in the same state.
func mirror(other string) PostHook {
	return func(s *Store, _ string, value *string) {
		if s.IsSet(other) == (value != nil) {
			return
		}
		var err error
		if value != nil {
			err = s.SetPrivileged(other, "")
		} else {
			err = s.ClearPrivileged(other)
		}
		if err != nil {
			s.log.Warningf("mirroring %s: %v", other, err)
		}
	}
}

func computeIfsWs(s *Store) (string, bool) {
	ifs, _ := s.Get("ifs")
	var b strings.Builder
	for _, r := range ifs {
		if r == ' ' || r == '\t' || r == '\n' {
			b.WriteRune(r)
		}
	}
	return b.String(), true
}

func computeVersion(part int) func(*Store) (string, bool) {
	return func(*Store) (string, bool) {
		if part < 0 {
			return Version, true
		}
		parts := strings.SplitN(Version, ".", 3)
		if part >= len(parts) {
			return "0", true
		}
		return parts[part], true
	}
}
