// Package vars implements the interpreter's variable store: a map of named
// values where built-in names (okeys) carry flags, defaults and hooks that
// validate and react to every mutation.
package vars

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/tliron/commonlog"

	"github.com/nhle/nmail/internal/logging"
)

// Variable is a read-only view of a store entry.
type Variable struct {
	Name  string
	Value string
	Flags Flag
	// Builtin is true for okeys.
	Builtin bool
}

// Recorder receives the prior state of every variable before it is changed.
// prior is nil when the variable was unset.
type Recorder interface {
	Note(name string, prior *string)
}

// Watcher is notified after a variable changed. value is nil when unset.
type Watcher func(name string, value *string)

type entry struct {
	value  string
	linked bool
}

// Store holds all variables of one interpreter.
type Store struct {
	vars     map[string]*entry
	meta     map[string]*Meta
	firstUse map[string]string
	computed map[string]func() (string, bool)
	watchers map[string][]Watcher
	env      Environ
	rec      Recorder
	started  bool
	cmdline  bool
	log      commonlog.Logger
}

// New creates a store, imports environment-backed okeys from env and
// instantiates first-use and default values.
func New(env Environ) *Store {
	if env == nil {
		env = ProcessEnv{}
	}
	s := &Store{
		vars:     make(map[string]*entry),
		meta:     make(map[string]*Meta, len(okeys)),
		firstUse: make(map[string]string),
		computed: make(map[string]func() (string, bool)),
		watchers: make(map[string][]Watcher),
		env:      env,
		log:      logging.Get("vars"),
	}
	for i := range okeys {
		m := &okeys[i]
		s.meta[m.Name] = m
		if m.Flags&FlagFirstUse != 0 {
			s.firstUse[m.Name] = m.FirstUse
		}
	}

	names := make([]string, 0, len(s.meta))
	for name := range s.meta {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := s.meta[name]
		if m.Flags&(FlagImport|FlagEnv) == 0 || m.Flags&FlagVirtual != 0 {
			continue
		}
		v, ok := env.LookupEnv(name)
		if !ok {
			continue
		}
		if err := s.assign(name, v, modeImport); err != nil {
			s.log.Warningf("ignoring environment value of %s: %v", name, err)
		}
	}

	for _, name := range names {
		m := s.meta[name]
		if _, ok := s.vars[name]; ok {
			continue
		}
		if fu, ok := s.firstUse[name]; ok {
			delete(s.firstUse, name)
			s.instantiate(name, fu)
			continue
		}
		if m.Flags&FlagDefault != 0 {
			s.instantiate(name, m.Default)
		}
	}
	return s
}

// instantiate stores a metadata value without validation or recording and
// runs the post hook.
func (s *Store) instantiate(name, value string) {
	m := s.meta[name]
	s.vars[name] = &entry{value: value}
	if m.Flags&FlagEnv != 0 {
		if err := s.env.Setenv(name, value); err != nil {
			s.log.Warningf("exporting %s: %v", name, err)
		}
	}
	if m.Post != nil {
		v := value
		m.Post(s, name, &v)
	}
}

type mode int

const (
	modeUser mode = iota
	modePrivileged
	modeImport
	modeRestore
)

// Set assigns value to name the way the `set` command does.
func (s *Store) Set(name, value string) error {
	return s.assign(name, value, modeUser)
}

// SetPrivileged assigns value bypassing the read-only check.
func (s *Store) SetPrivileged(name, value string) error {
	return s.assign(name, value, modePrivileged)
}

// SetFromCommandLine assigns a value given with -S. Import-only variables
// are accepted before start-up completed.
func (s *Store) SetFromCommandLine(name, value string) error {
	s.cmdline = true
	defer func() { s.cmdline = false }()
	return s.assign(name, value, modeUser)
}

// Clear unsets name the way the `unset` command does.
func (s *Store) Clear(name string) error {
	return s.clear(name, modeUser)
}

// ClearPrivileged unsets name bypassing read-only and no-delete checks.
func (s *Store) ClearPrivileged(name string) error {
	return s.clear(name, modePrivileged)
}

// Restore puts name back into a recorded prior state. It is used when a
// localopts frame unrolls and never fails for permission reasons.
func (s *Store) Restore(name string, prior *string) error {
	if prior == nil {
		return s.clear(name, modeRestore)
	}
	return s.assign(name, *prior, modeRestore)
}

// CheckName reports whether name may be used as a variable name at all.
func CheckName(name string) error {
	if name == "" {
		return invalid(name, "empty variable name")
	}
	if name == "*" || name == "@" || name == "#" || name[0] == '^' {
		return denied(name, "reserved parameter name")
	}
	if _, err := strconv.ParseUint(name, 10, 64); err == nil {
		return denied(name, "positional parameters cannot be assigned")
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune("=\"'$\\", r) {
			return invalid(name, "invalid character in variable name")
		}
	}
	return nil
}

func (s *Store) assign(name, value string, md mode) error {
	if err := CheckName(name); err != nil {
		return err
	}
	m := s.meta[name]
	var flags Flag
	if m != nil {
		flags = m.Flags
	}

	if flags&FlagVirtual != 0 {
		return denied(name, "variable is virtual and cannot be assigned")
	}
	if flags&FlagReadOnly != 0 && md == modeUser {
		return denied(name, "variable is read-only")
	}
	if flags&FlagBool == 0 {
		if flags&FlagNoEmpty != 0 && value == "" {
			return invalid(name, "variable must not be empty")
		}
		if flags&FlagNoCntrls != 0 && strings.IndexFunc(value, unicode.IsControl) >= 0 {
			return invalid(name, "variable must not contain control characters")
		}
		if flags&FlagNum != 0 {
			if _, err := strconv.ParseInt(value, 0, 64); err != nil {
				return invalid(name, fmt.Sprintf("not a number: %q", value))
			}
		}
		if flags&FlagPosNum != 0 {
			if _, err := strconv.ParseUint(value, 0, 64); err != nil {
				return invalid(name, fmt.Sprintf("not a positive number: %q", value))
			}
		}
	}
	if flags&FlagImport != 0 && !s.started && md == modeUser && !s.cmdline {
		return denied(name, "variable can only be imported from the environment during start-up")
	}
	if m != nil && m.Pre != nil {
		v := value
		if err := m.Pre(s, name, &v); err != nil {
			return err
		}
		value = v
	}
	if flags&FlagLower != 0 {
		value = strings.ToLower(value)
	}
	if flags&FlagBool != 0 {
		value = ""
	}

	prev, had := s.vars[name]
	if s.rec != nil && md != modeImport {
		s.rec.Note(name, priorOf(prev, had))
	}
	e := &entry{value: value}
	if had {
		e.linked = prev.linked
	}
	s.vars[name] = e

	if flags&FlagEnv != 0 || e.linked {
		if err := s.env.Setenv(name, value); err != nil {
			s.log.Warningf("exporting %s: %v", name, err)
		}
	}
	s.log.Debugf("set %s=%q", name, value)
	s.notify(m, name, &value)
	return nil
}

func (s *Store) clear(name string, md mode) error {
	if err := CheckName(name); err != nil {
		return err
	}
	m := s.meta[name]
	var flags Flag
	if m != nil {
		flags = m.Flags
	}
	if md == modeUser {
		if flags&FlagVirtual != 0 {
			return denied(name, "variable is virtual and cannot be unset")
		}
		if flags&FlagReadOnly != 0 {
			return denied(name, "variable is read-only")
		}
		if flags&FlagNoDelete != 0 {
			return denied(name, "variable cannot be unset")
		}
	}
	prev, had := s.vars[name]
	if !had {
		if md == modeUser {
			return notFound(name, "variable not set")
		}
		return nil
	}
	if m != nil && m.Pre != nil {
		if err := m.Pre(s, name, nil); err != nil {
			return err
		}
	}
	if s.rec != nil {
		s.rec.Note(name, priorOf(prev, had))
	}
	delete(s.vars, name)
	if flags&FlagEnv != 0 || prev.linked {
		if err := s.env.Unsetenv(name); err != nil {
			s.log.Warningf("unexporting %s: %v", name, err)
		}
	}
	s.log.Debugf("unset %s", name)

	if m != nil && m.Flags&FlagDefault != 0 {
		def := m.Default
		s.vars[name] = &entry{value: def}
		if flags&FlagEnv != 0 {
			if err := s.env.Setenv(name, def); err != nil {
				s.log.Warningf("exporting %s: %v", name, err)
			}
		}
		s.notify(m, name, &def)
		return nil
	}
	s.notify(m, name, nil)
	return nil
}

func (s *Store) notify(m *Meta, name string, value *string) {
	if m != nil && m.Post != nil {
		m.Post(s, name, value)
	}
	for _, w := range s.watchers[name] {
		w(name, value)
	}
}

func priorOf(e *entry, had bool) *string {
	if !had {
		return nil
	}
	v := e.value
	return &v
}

// Lookup returns the variable if it is set. Virtual variables are computed
// on every call.
func (s *Store) Lookup(name string) (Variable, bool) {
	m := s.meta[name]
	if m != nil && m.Flags&FlagVirtual != 0 {
		var (
			v  string
			ok bool
		)
		if fn, has := s.computed[name]; has {
			v, ok = fn()
		} else if m.Compute != nil {
			v, ok = m.Compute(s)
		}
		if !ok {
			return Variable{}, false
		}
		return Variable{Name: name, Value: v, Flags: m.Flags, Builtin: true}, true
	}
	e, ok := s.vars[name]
	if !ok {
		return Variable{}, false
	}
	v := Variable{Name: name, Value: e.value}
	if m != nil {
		v.Flags = m.Flags
		v.Builtin = true
	}
	if e.linked {
		v.Flags |= FlagLinked
	}
	return v, true
}

// Get returns the value of name and whether it is set.
func (s *Store) Get(name string) (string, bool) {
	v, ok := s.Lookup(name)
	return v.Value, ok
}

// IsSet reports whether name is set.
func (s *Store) IsSet(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

// IsBuiltin reports whether name is an okey.
func (s *Store) IsBuiltin(name string) bool {
	_, ok := s.meta[name]
	return ok
}

// Meta returns the okey metadata for name.
func (s *Store) Meta(name string) (Meta, bool) {
	m, ok := s.meta[name]
	if !ok {
		return Meta{}, false
	}
	return *m, true
}

// Names returns the names of all stored (non-virtual) variables, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Link marks a user variable as linked to the process environment and
// exports its current value.
func (s *Store) Link(name string) error {
	if m, ok := s.meta[name]; ok {
		if m.Flags&FlagEnv != 0 {
			return nil
		}
		return denied(name, "built-in variable cannot be linked to the environment")
	}
	e, ok := s.vars[name]
	if !ok {
		return notFound(name, "variable not set")
	}
	e.linked = true
	return s.env.Setenv(name, e.value)
}

// Watch registers fn to run after every change of name.
func (s *Store) Watch(name string, fn Watcher) {
	s.watchers[name] = append(s.watchers[name], fn)
}

// SetComputed installs the value source of a virtual variable.
func (s *Store) SetComputed(name string, fn func() (string, bool)) {
	s.computed[name] = fn
}

// SetRecorder installs the recorder that receives prior states, normally
// the localopts stack.
func (s *Store) SetRecorder(r Recorder) {
	s.rec = r
}

// MarkStarted records that start-up completed.
func (s *Store) MarkStarted() {
	s.started = true
}

// Started reports whether start-up completed.
func (s *Store) Started() bool {
	return s.started
}

// Env returns the environment the store synchronises with.
func (s *Store) Env() Environ {
	return s.env
}
