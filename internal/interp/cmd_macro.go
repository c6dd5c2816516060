package interp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/nhle/nmail/internal/errnum"
	"github.com/nhle/nmail/internal/input"
	"github.com/nhle/nmail/internal/localopts"
	"github.com/nhle/nmail/internal/macro"
	"github.com/nhle/nmail/internal/vars"
)

// readBody collects a definition body. rest is what followed the name on
// the command line and must open the body with "{". A body closed on the
// same line ("{ echo hi }") is one line long.
func (ip *Interpreter) readBody(kind macro.Kind, name, rest string) ([]macro.Line, error) {
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "{") {
		return nil, &macro.Error{Name: name, Kind: kind, Reason: `body must start with "{"`}
	}
	rest = strings.TrimSpace(rest[1:])
	if rest != "" {
		if !strings.HasSuffix(rest, "}") {
			return nil, &macro.Error{Name: name, Kind: kind, Reason: `missing "}"`}
		}
		return macro.ParseLines([]string{strings.TrimSuffix(rest, "}")}), nil
	}

	var raw []string
	for {
		ln, err := ip.Input.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, &macro.Error{Name: name, Kind: kind, Reason: "unterminated definition"}
			}
			return nil, fmt.Errorf("reading %s %s: %w", kind, name, err)
		}
		if strings.TrimSpace(ln.Text) == "}" {
			break
		}
		raw = append(raw, ln.Text)
	}
	return macro.ParseLines(raw), nil
}

func cmdDefine(_ context.Context, ip *Interpreter, a *Args) error {
	name, rest := splitWord(a.Raw)
	if name == "" {
		for _, m := range ip.Macros.List(macro.KindMacro) {
			fmt.Fprint(ip.out, m.Format())
		}
		return nil
	}
	if rest == "" {
		m, err := ip.Macros.Lookup(name, macro.KindMacro)
		if err != nil {
			return err
		}
		fmt.Fprint(ip.out, m.Format())
		return nil
	}
	lines, err := ip.readBody(macro.KindMacro, name, rest)
	if err != nil {
		return err
	}
	_, err = ip.Macros.Define(name, macro.KindMacro, lines)
	return err
}

func cmdUndefine(_ context.Context, ip *Interpreter, a *Args) error {
	var errs []error
	for _, name := range a.Words {
		if name == "*" {
			ip.Macros.UndefineAll(macro.KindMacro)
			continue
		}
		if err := ip.Macros.Undefine(name, macro.KindMacro); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func cmdCall(_ context.Context, ip *Interpreter, a *Args) error {
	return ip.call(a, false)
}

func cmdCallIf(_ context.Context, ip *Interpreter, a *Args) error {
	return ip.call(a, true)
}

func (ip *Interpreter) call(a *Args, ifDefined bool) error {
	m, err := ip.Macros.Lookup(a.Words[0], macro.KindMacro)
	if err != nil {
		if ifDefined && macro.IsNotFound(err) {
			return nil
		}
		return err
	}
	if _, err := ip.pushCall(m, a.Words[1:], nil, false); err != nil {
		return err
	}
	ip.Input.Top().IgnErr = a.IgnErr
	return nil
}

// pushCall starts an invocation of m: a call frame, a localopts frame and
// a macro source whose end undoes both. The lines run once control is
// back in the command loop.
func (ip *Interpreter) pushCall(m *macro.Macro, args []string, target *localopts.Frame, hook bool) (*CallFrame, error) {
	ip.Macros.Acquire(m)
	lopts := ip.Scopes.Push(true)
	f := &CallFrame{
		parent:       ip.frame,
		kind:         callMacro,
		name:         m.Name,
		mac:          m,
		args:         append([]string(nil), args...),
		lopts:        lopts,
		unrollTarget: target,
		hook:         hook,
	}
	n := input.NewLinesNode(input.KindMacro, m.Name, m.Text())
	n.Finalize = func() { ip.endCall(f) }
	if err := ip.Input.Push(n); err != nil {
		ip.Scopes.PopAndUnroll(lopts, ip.Vars)
		ip.Macros.Release(m)
		return nil, err
	}
	ip.frame = f
	return f, nil
}

func (ip *Interpreter) endCall(f *CallFrame) {
	if f.unrollTarget != nil {
		ip.Scopes.PopInto(f.lopts, f.unrollTarget)
	} else {
		ip.Scopes.PopAndUnroll(f.lopts, ip.Vars)
	}
	ip.Macros.Release(f.mac)
	ip.unlinkFrame(f)
}

// hookMacro resolves the macro named by the hook variable base-specific,
// falling back to base. It returns nil when neither is set.
func (ip *Interpreter) hookMacro(base, specific string) (*macro.Macro, error) {
	names := []string{base}
	if specific != "" {
		names = []string{base + "-" + specific, base}
	}
	for _, v := range names {
		mname, ok := ip.Vars.Get(v)
		if !ok || mname == "" {
			continue
		}
		m, err := ip.Macros.Lookup(mname, macro.KindMacro)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", v, err)
		}
		return m, nil
	}
	return nil, nil
}

// runHook runs the hook macro to completion before returning. Variable
// changes go to target when it is non-nil and are undone otherwise.
func (ip *Interpreter) runHook(ctx context.Context, base, specific string, target *localopts.Frame) error {
	m, err := ip.hookMacro(base, specific)
	if err != nil || m == nil {
		return err
	}
	ip.log.Debugf("running %s hook %s", base, m.Name)
	ip.hookDepth++
	defer func() { ip.hookDepth-- }()
	depth := ip.Input.Depth()
	if _, err := ip.pushCall(m, nil, target, true); err != nil {
		return err
	}
	return ip.runUntil(ctx, depth)
}

func cmdShift(_ context.Context, ip *Interpreter, a *Args) error {
	f := ip.macroFrame()
	if f == nil || f.kind != callMacro {
		return usageErr("shift", "can only be used in a called macro")
	}
	if f.hook {
		return &cmdError{cmd: "shift", reason: "cannot be used in a hook", errno: unix.EPERM}
	}
	n := 1
	if len(a.Words) > 0 {
		v, err := strconv.Atoi(a.Words[0])
		if err != nil || v < 0 {
			return usageErr("shift", fmt.Sprintf("invalid count %q", a.Words[0]))
		}
		n = v
	}
	if n > len(f.Args()) {
		return &cmdError{cmd: "shift", reason: fmt.Sprintf("cannot shift %d of %d arguments", n, len(f.Args())), errno: unix.ERANGE}
	}
	f.shift += n
	return nil
}

func cmdReturn(_ context.Context, ip *Interpreter, a *Args) error {
	f := ip.macroFrame()
	if f == nil {
		return usageErr("return", "can only be used in a macro or account")
	}
	status := 0
	errno := errnum.None
	if len(a.Words) > 0 {
		v, err := strconv.Atoi(a.Words[0])
		if err != nil {
			return usageErr("return", fmt.Sprintf("invalid status %q", a.Words[0]))
		}
		status = v
	}
	if len(a.Words) > 1 {
		e, err := parseErrno(a.Words[1])
		if err != nil {
			return err
		}
		errno = e
	}
	if n := ip.Input.Top(); n != nil && n.Kind != input.KindTerminal {
		n.ForceEOF()
	}
	ip.setStatus(status, errno)
	return nil
}

// parseErrno accepts a number or a symbolic name such as NOENT.
func parseErrno(s string) (syscall.Errno, error) {
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return syscall.Errno(v), nil
	}
	if e, ok := errnum.Lookup(strings.ToUpper(s)); ok {
		return e, nil
	}
	return 0, usageErr("return", fmt.Sprintf("unknown error number %q", s))
}

func cmdAccount(ctx context.Context, ip *Interpreter, a *Args) error {
	name, rest := splitWord(a.Raw)
	switch {
	case name == "":
		for _, m := range ip.Macros.List(macro.KindAccount) {
			fmt.Fprint(ip.out, m.Format())
		}
		return nil
	case rest != "":
		if name == "null" {
			return usageErr("account", `"null" cannot be defined`)
		}
		if ip.account != nil && ip.account.name == name {
			return &cmdError{cmd: "account", reason: "cannot redefine the active account " + name, errno: unix.EBUSY}
		}
		lines, err := ip.readBody(macro.KindAccount, name, rest)
		if err != nil {
			return err
		}
		_, err = ip.Macros.Define(name, macro.KindAccount, lines)
		return err
	}
	return ip.SwitchAccount(ctx, name)
}

// SwitchAccount leaves the active account, if any, and activates name.
// The name "null" only leaves. Switching from inside an account body,
// or from a macro it called, is refused.
func (ip *Interpreter) SwitchAccount(ctx context.Context, name string) error {
	if ip.hookDepth > 0 {
		return &cmdError{cmd: "account", reason: "cannot switch accounts in a hook", errno: unix.EPERM}
	}
	for f := ip.frame; f != nil; f = f.parent {
		if f.kind == callAccount {
			return &cmdError{cmd: "account", reason: "cannot switch accounts while account " + f.name + " is being activated", errno: unix.EBUSY}
		}
	}
	var m *macro.Macro
	if name != "null" {
		var err error
		if m, err = ip.Macros.Lookup(name, macro.KindAccount); err != nil {
			return err
		}
	}
	if ip.account != nil {
		if err := ip.leaveAccount(ctx); err != nil {
			return err
		}
	}
	if m == nil {
		return nil
	}

	ip.Macros.Acquire(m)
	acc := &activeAccount{name: name, mac: m, persist: localopts.NewDetached()}
	lopts := ip.Scopes.Push(true)
	f := &CallFrame{
		parent:       ip.frame,
		kind:         callAccount,
		name:         name,
		mac:          m,
		lopts:        lopts,
		unrollTarget: acc.persist,
	}
	n := input.NewLinesNode(input.KindMacro, "account "+name, m.Text())
	n.Finalize = func() {
		ip.Scopes.PopInto(lopts, acc.persist)
		ip.unlinkFrame(f)
	}
	depth := ip.Input.Depth()
	if err := ip.Input.Push(n); err != nil {
		ip.Scopes.PopAndUnroll(lopts, ip.Vars)
		ip.Macros.Release(m)
		return err
	}
	ip.frame = f
	ip.account = acc
	if err := ip.Vars.SetPrivileged("account", name); err != nil {
		ip.log.Warningf("setting account: %s", err)
	}
	ip.log.Infof("entering account %s", name)
	return ip.runUntil(ctx, depth)
}

// leaveAccount runs the cleanup hook of the active account and restores
// every variable its activation changed.
func (ip *Interpreter) leaveAccount(ctx context.Context) error {
	acc := ip.account
	err := ip.runHook(ctx, "on-account-cleanup", acc.name, nil)
	ip.account = nil
	ip.Scopes.Unroll(acc.persist, ip.Vars)
	ip.Macros.Release(acc.mac)
	ip.log.Infof("left account %s", acc.name)
	if errors.Is(err, errExit) || errors.Is(err, ErrInterrupted) {
		return err
	}
	return nil
}

func cmdUnaccount(_ context.Context, ip *Interpreter, a *Args) error {
	var errs []error
	for _, name := range a.Words {
		if name == "*" {
			for _, m := range ip.Macros.List(macro.KindAccount) {
				if ip.account != nil && m.Name == ip.account.name {
					errs = append(errs, activeAccountErr(m.Name))
					continue
				}
				_ = ip.Macros.Undefine(m.Name, macro.KindAccount)
			}
			continue
		}
		if ip.account != nil && name == ip.account.name {
			errs = append(errs, activeAccountErr(name))
			continue
		}
		if err := ip.Macros.Undefine(name, macro.KindAccount); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func activeAccountErr(name string) error {
	return &cmdError{cmd: "unaccount", reason: "cannot delete the active account " + name, errno: unix.EBUSY}
}

var _ localopts.Restorer = (*vars.Store)(nil)
