package interp

import (
	"strconv"
	"strings"

	"github.com/nhle/nmail/internal/errnum"
	"github.com/nhle/nmail/internal/localopts"
	"github.com/nhle/nmail/internal/macro"
)

// callKind tags what a call frame executes.
type callKind int

const (
	callMacro callKind = iota
	callAccount
	// callRegex frames exist only to expose the capture groups of a
	// successful =~ test; they run no code.
	callRegex
)

// CallFrame is one active invocation.
type CallFrame struct {
	parent *CallFrame
	kind   callKind
	name   string
	mac    *macro.Macro
	args   []string
	shift  int
	lopts  *localopts.Frame
	// unrollTarget receives the frame's snapshots on exit instead of
	// having them restored.
	unrollTarget *localopts.Frame
	hook         bool
	match        []string
}

// Name returns the macro or account name.
func (f *CallFrame) Name() string { return f.name }

// Args returns the argument vector after shifting.
func (f *CallFrame) Args() []string { return f.args[f.shift:] }

// macroFrame returns the innermost frame that runs code.
func (ip *Interpreter) macroFrame() *CallFrame {
	for f := ip.frame; f != nil; f = f.parent {
		if f.kind != callRegex {
			return f
		}
	}
	return nil
}

// pushRegexFrame exposes match as $0..$N until the returned release runs.
func (ip *Interpreter) pushRegexFrame(match []string) func() {
	f := &CallFrame{parent: ip.frame, kind: callRegex, name: "=~", match: match}
	ip.frame = f
	return func() { ip.unlinkFrame(f) }
}

func (ip *Interpreter) unlinkFrame(f *CallFrame) {
	if ip.frame == f {
		ip.frame = f.parent
		return
	}
	for g := ip.frame; g != nil; g = g.parent {
		if g.parent == f {
			g.parent = f.parent
			return
		}
	}
}

// Lookup resolves a parameter reference for shell-word expansion:
// special parameters first, then variables, then the environment.
func (ip *Interpreter) Lookup(name string) (string, bool) {
	if v, ok, special := ip.special(name); special {
		return v, ok
	}
	if v, ok := ip.Vars.Get(name); ok {
		return v, true
	}
	if ip.Vars.IsBuiltin(name) {
		return "", false
	}
	return ip.Vars.Env().LookupEnv(name)
}

// Positional returns the arguments of the innermost macro call. Inside a
// regex capture frame they are hidden.
func (ip *Interpreter) Positional() ([]string, bool) {
	f := ip.frame
	if f == nil || f.kind == callRegex {
		return nil, false
	}
	return f.Args(), true
}

// special resolves names that never live in the variable store. The third
// result reports whether name is a special parameter at all.
func (ip *Interpreter) special(name string) (string, bool, bool) {
	switch {
	case name == "?":
		return strconv.Itoa(ip.status), true, true
	case name == "!":
		return strconv.Itoa(int(ip.errno)), true, true
	case strings.HasPrefix(name, "^"):
		v, ok := ip.errParam(name[1:])
		return v, ok, true
	case name == "*" || name == "@" || name == "#":
		f := ip.frame
		if f == nil || f.kind == callRegex {
			return "", false, true
		}
		if name == "#" {
			return strconv.Itoa(len(f.Args())), true, true
		}
		return strings.Join(f.Args(), " "), true, true
	case isDigits(name):
		n, err := strconv.Atoi(name)
		if err != nil {
			return "", false, true
		}
		f := ip.frame
		if f == nil {
			return "", false, true
		}
		if f.kind == callRegex {
			if n < len(f.match) {
				return f.match[n], true, true
			}
			return "", false, true
		}
		if n == 0 {
			return f.name, true, true
		}
		args := f.Args()
		if n > len(args) {
			return "", false, true
		}
		return args[n-1], true, true
	}
	return "", false, false
}

// errParam implements ^ERRNAME, ^ERRDOC and ^ERR-<NAME>.
func (ip *Interpreter) errParam(name string) (string, bool) {
	switch {
	case name == "ERRNAME":
		return errnum.Name(ip.errno), true
	case name == "ERRDOC":
		return errnum.Doc(ip.errno), true
	case name == "ERR":
		return strconv.Itoa(int(ip.errno)), true
	case strings.HasPrefix(name, "ERR-"):
		e, ok := errnum.Lookup(name[4:])
		if !ok {
			return "", false
		}
		return strconv.Itoa(int(e)), true
	}
	return "", false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
