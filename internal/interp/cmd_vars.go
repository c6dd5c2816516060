package interp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/nhle/nmail/internal/editor"
	"github.com/nhle/nmail/internal/shellword"
	"github.com/nhle/nmail/internal/vars"
)

func cmdSet(_ context.Context, ip *Interpreter, a *Args) error {
	if len(a.Words) == 0 {
		for _, name := range ip.Vars.Names() {
			v, _ := ip.Vars.Lookup(name)
			fmt.Fprintln(ip.out, assignment(v))
		}
		return nil
	}

	var errs []error
	for _, w := range a.Words {
		name, value, hasValue := strings.Cut(w, "=")
		var err error
		switch {
		case hasValue:
			err = ip.Vars.Set(name, value)
		case strings.HasPrefix(name, "no") && len(name) > 2:
			err = ip.Vars.Clear(name[2:])
			if vars.IsKind(err, vars.KindLookup) {
				err = nil
			}
		default:
			err = ip.Vars.Set(name, "")
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// assignment renders v as the set command that recreates it.
func assignment(v vars.Variable) string {
	if v.Flags&vars.FlagBool != 0 || v.Value == "" {
		return "set " + v.Name
	}
	return "set " + v.Name + "=" + shellword.Quote(v.Value)
}

func cmdUnset(_ context.Context, ip *Interpreter, a *Args) error {
	var errs []error
	for _, name := range a.Words {
		if err := ip.Vars.Clear(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func cmdVarshow(_ context.Context, ip *Interpreter, a *Args) error {
	var errs []error
	for _, name := range a.Words {
		if err := vars.CheckName(name); err != nil {
			errs = append(errs, err)
			continue
		}
		kind := "user"
		var flags vars.Flag
		if m, ok := ip.Vars.Meta(name); ok {
			kind = "built-in"
			flags = m.Flags
		}
		v, set := ip.Vars.Lookup(name)
		if set {
			flags |= v.Flags
		}
		if f := flags.String(); f != "" {
			kind += ", " + f
		}
		fmt.Fprintf(ip.out, "# %s\n", kind)
		switch {
		case set:
			fmt.Fprintln(ip.out, assignment(v))
		default:
			if ev, ok := ip.Vars.Env().LookupEnv(name); ok && !ip.Vars.IsBuiltin(name) {
				fmt.Fprintf(ip.out, "# in environment: %s\n", shellword.Quote(ev))
			}
			fmt.Fprintln(ip.out, "unset "+name)
		}
	}
	return errors.Join(errs...)
}

func (ip *Interpreter) valueEditor() editor.Editor {
	if ip.editor != nil {
		return ip.editor
	}
	command := func() string {
		if v, ok := ip.Vars.Get("VISUAL"); ok && v != "" {
			return v
		}
		v, _ := ip.Vars.Get("EDITOR")
		return v
	}
	if ip.Vars.IsSet("inline-editor") {
		return &editor.Inline{Input: ip.stdin, Output: ip.out, Command: command}
	}
	return &editor.External{
		Command: command,
		TempDir: func() string {
			if v, ok := ip.Vars.Get("TMPDIR"); ok && v != "" {
				return v
			}
			return os.TempDir()
		},
		Stdin:  ip.stdin,
		Stdout: ip.out,
		Stderr: ip.errOut,
	}
}

func cmdVaredit(ctx context.Context, ip *Interpreter, a *Args) error {
	ed := ip.valueEditor()
	var errs []error
	for _, name := range a.Words {
		if err := vars.CheckName(name); err != nil {
			errs = append(errs, err)
			continue
		}
		if m, ok := ip.Vars.Meta(name); ok && m.Flags&(vars.FlagBool|vars.FlagVirtual) != 0 {
			errs = append(errs, fmt.Errorf("%s: cannot edit boolean or virtual variables", name))
			continue
		}
		old, _ := ip.Vars.Get(name)
		value, err := ed.Edit(ctx, name, old)
		if err != nil {
			if errors.Is(err, editor.ErrAborted) {
				continue
			}
			errs = append(errs, fmt.Errorf("editing %s: %w", name, err))
			continue
		}
		if value == old && ip.Vars.IsSet(name) {
			continue
		}
		if err := ip.Vars.Set(name, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func cmdEnviron(_ context.Context, ip *Interpreter, a *Args) error {
	sub, name := a.Words[0], a.Words[1]
	if err := vars.CheckName(name); err != nil {
		return err
	}
	switch sub {
	case "link":
		if len(a.Words) != 2 {
			return usageErr("environ", "link takes one variable name")
		}
		if !ip.Vars.IsSet(name) {
			if ev, ok := ip.Vars.Env().LookupEnv(name); ok {
				if err := ip.Vars.Set(name, ev); err != nil {
					return err
				}
			}
		}
		return ip.Vars.Link(name)
	case "set":
		if len(a.Words) != 3 {
			return usageErr("environ", "set takes a name and a value")
		}
		if ip.Vars.IsBuiltin(name) || isLinked(ip, name) {
			return ip.Vars.Set(name, a.Words[2])
		}
		return ip.Vars.Env().Setenv(name, a.Words[2])
	case "unset":
		if len(a.Words) != 2 {
			return usageErr("environ", "unset takes one variable name")
		}
		if ip.Vars.IsBuiltin(name) || isLinked(ip, name) {
			return ip.Vars.Clear(name)
		}
		return ip.Vars.Env().Unsetenv(name)
	}
	return usageErr("environ", fmt.Sprintf("unknown subcommand %q", sub))
}

func isLinked(ip *Interpreter, name string) bool {
	v, ok := ip.Vars.Lookup(name)
	return ok && v.Flags&vars.FlagLinked != 0
}

func cmdLocalopts(_ context.Context, ip *Interpreter, a *Args) error {
	f := ip.macroFrame()
	if f == nil || f.lopts == nil {
		return usageErr("localopts", "can only be used in a macro or account")
	}
	on, err := parseBool(a.Words[0])
	if err != nil {
		return usageErr("localopts", err.Error())
	}
	if !on && f.hook {
		return &cmdError{cmd: "localopts", reason: "cannot be disabled in a hook", errno: unix.EPERM}
	}
	f.lopts.SetUnroll(on)
	return nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "on", "yes", "true":
		return true, nil
	case "0", "off", "no", "false":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean", s)
}
