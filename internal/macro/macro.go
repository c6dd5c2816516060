// Package macro holds the registry of named macros and accounts.
package macro

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nhle/nmail/internal/logging"
)

// MaxLines is the maximum number of lines a single definition may hold.
const MaxLines = 10000

// Kind distinguishes plain macros from accounts; both share the registry
// but live in separate namespaces.
type Kind int

const (
	KindMacro Kind = iota
	KindAccount
)

func (k Kind) String() string {
	if k == KindAccount {
		return "account"
	}
	return "macro"
}

// Line is one line of a definition.
type Line struct {
	Text   string
	Indent int
}

// Macro is a stored definition.
type Macro struct {
	Name  string
	Kind  Kind
	Lines []Line

	refs          int
	pendingDelete bool
	freed         bool
}

// Refs returns the number of active invocations.
func (m *Macro) Refs() int { return m.refs }

// Freed reports whether the definition was released for good.
func (m *Macro) Freed() bool { return m.freed }

// Pending reports whether the macro was undefined while still running.
func (m *Macro) Pending() bool { return m.pendingDelete }

// Text returns the lines without indentation, ready to be executed.
func (m *Macro) Text() []string {
	out := make([]string, len(m.Lines))
	for i, l := range m.Lines {
		out[i] = l.Text
	}
	return out
}

// Format renders the definition the way `define` lists it.
func (m *Macro) Format() string {
	var b strings.Builder
	keyword := "define"
	if m.Kind == KindAccount {
		keyword = "account"
	}
	fmt.Fprintf(&b, "%s %s {\n", keyword, m.Name)
	for _, l := range m.Lines {
		b.WriteString(strings.Repeat(" ", l.Indent))
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	b.WriteString("}\n")
	return b.String()
}

// Error is returned by registry operations.
type Error struct {
	Name   string
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Name, e.Reason)
}

// ErrNotFound is wrapped by lookups of undefined names.
var ErrNotFound = errors.New("not defined")

// IsNotFound reports whether err is a lookup failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

type key struct {
	name string
	kind Kind
}

// Registry maps (name, kind) to definitions.
type Registry struct {
	defs map[key]*Macro
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[key]*Macro)}
}

// ParseLines converts raw body lines into definition lines, recording the
// leading whitespace width for display.
func ParseLines(raw []string) []Line {
	lines := make([]Line, 0, len(raw))
	for _, r := range raw {
		trimmed := strings.TrimLeft(r, " \t")
		indent := 0
		for _, c := range r[:len(r)-len(trimmed)] {
			if c == '\t' {
				indent += 8 - indent%8
			} else {
				indent++
			}
		}
		trimmed = strings.TrimRight(trimmed, " \t")
		if trimmed == "" {
			continue
		}
		lines = append(lines, Line{Text: trimmed, Indent: indent})
	}
	return lines
}

// Define stores a definition, replacing an existing one of the same name
// and kind. A replaced macro that is still running keeps its lines until
// its last invocation ends.
func (r *Registry) Define(name string, kind Kind, lines []Line) (*Macro, error) {
	if name == "" {
		return nil, &Error{Name: name, Kind: kind, Reason: "empty name"}
	}
	if len(lines) > MaxLines {
		return nil, &Error{Name: name, Kind: kind, Reason: fmt.Sprintf("too many lines (%d > %d)", len(lines), MaxLines)}
	}
	k := key{name, kind}
	if old, ok := r.defs[k]; ok {
		r.unlink(old)
	}
	m := &Macro{Name: name, Kind: kind, Lines: append([]Line(nil), lines...)}
	r.defs[k] = m
	logging.Get("macro").Debugf("defined %s %s (%d lines)", kind, name, len(lines))
	return m, nil
}

// Lookup returns the definition of name.
func (r *Registry) Lookup(name string, kind Kind) (*Macro, error) {
	m, ok := r.defs[key{name, kind}]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", kind, name, ErrNotFound)
	}
	return m, nil
}

// Undefine unlinks name. The definition is freed once no invocation holds it.
func (r *Registry) Undefine(name string, kind Kind) error {
	m, ok := r.defs[key{name, kind}]
	if !ok {
		return fmt.Errorf("%s %s: %w", kind, name, ErrNotFound)
	}
	r.unlink(m)
	return nil
}

// UndefineAll unlinks every definition of kind.
func (r *Registry) UndefineAll(kind Kind) {
	for _, m := range r.List(kind) {
		r.unlink(m)
	}
}

func (r *Registry) unlink(m *Macro) {
	delete(r.defs, key{m.Name, m.Kind})
	if m.refs > 0 {
		m.pendingDelete = true
		return
	}
	m.freed = true
	m.Lines = nil
}

// Acquire marks the start of an invocation of m.
func (r *Registry) Acquire(m *Macro) {
	m.refs++
}

// Release marks the end of an invocation and frees an undefined macro when
// its last invocation ends.
func (r *Registry) Release(m *Macro) {
	if m.refs > 0 {
		m.refs--
	}
	if m.refs == 0 && m.pendingDelete {
		m.pendingDelete = false
		m.freed = true
		m.Lines = nil
		logging.Get("macro").Debugf("released undefined %s %s", m.Kind, m.Name)
	}
}

// List returns the definitions of kind sorted by name.
func (r *Registry) List(kind Kind) []*Macro {
	var out []*Macro
	for k, m := range r.defs {
		if k.kind == kind {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
