package interp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/nhle/nmail/internal/errnum"
	"github.com/nhle/nmail/internal/input"
	"github.com/nhle/nmail/internal/mailbox"
	"github.com/nhle/nmail/internal/shellword"
	"github.com/nhle/nmail/internal/vars"
)

// maxGhostDepth bounds chained ghost substitutions on one line.
const maxGhostDepth = 16

// Outcome tells the command loop how to go on after a line.
type Outcome int

const (
	// Continue reads the next line of the current source.
	Continue Outcome = iota
	// StopSource abandons the current source.
	StopSource
	// StopProgram ends the session.
	StopProgram
	// Interrupted unwinds to the terminal.
	Interrupted
)

var (
	// ErrInterrupted is returned when an interrupt unwound the running sources.
	ErrInterrupted = errors.New("interrupted")
	errExit        = errors.New("exit requested")
	errAborted     = errors.New("source aborted")
)

// cmdError is a dispatcher failure tied to a command name.
type cmdError struct {
	cmd    string
	reason string
	errno  syscall.Errno
}

func (e *cmdError) Error() string        { return fmt.Sprintf("%s: %s", e.cmd, e.reason) }
func (e *cmdError) Errno() syscall.Errno { return e.errno }

func usageErr(cmd, reason string) error {
	return &cmdError{cmd: cmd, reason: reason, errno: unix.EINVAL}
}

type modifiers struct {
	ignerr bool
	wysh   bool
	vput   string
}

func (m modifiers) prefix() string {
	var b strings.Builder
	if m.ignerr {
		b.WriteString("ignerr ")
	}
	if m.wysh {
		b.WriteString("wysh ")
	}
	return b.String()
}

// splitWord returns the first whitespace separated word of s and the
// remainder with leading blanks removed.
func splitWord(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}

// Evaluate runs one logical line.
func (ip *Interpreter) Evaluate(ctx context.Context, ln input.Line) (Outcome, error) {
	ip.evalDepth++
	defer func() { ip.evalDepth-- }()

	text := strings.TrimSpace(ln.Text)
	if text == "" || text[0] == '#' {
		return Continue, nil
	}

	var mods modifiers
	noGhost := false
	expanded := make(map[string]bool)
	var cmd *Command
	var name, rest string
	for {
		if strings.HasPrefix(text, "\\") {
			noGhost = true
			text = text[1:]
		}
		name, rest = splitWord(text)
		if name == "" {
			return ip.fail(mods, usageErr("\\", "missing command"))
		}
		switch name {
		case "ignerr":
			mods.ignerr = true
			text = rest
			continue
		case "wysh":
			mods.wysh = true
			text = rest
			continue
		case "vput":
			v, r := splitWord(rest)
			if v == "" {
				return ip.fail(mods, usageErr("vput", "missing variable name"))
			}
			mods.vput, text = v, r
			continue
		}
		if !noGhost && !expanded[name] && len(expanded) < maxGhostDepth {
			if exp, ok := ip.ghosts[name]; ok {
				expanded[name] = true
				text = strings.TrimSpace(exp + " " + rest)
				continue
			}
		}
		break
	}

	cmd = lookupCommand(name)
	skipping := ip.Input.Skipping()
	if skipping && (cmd == nil || cmd.Flags&CtxCond == 0) {
		return Continue, nil
	}
	if cmd == nil {
		return ip.fail(mods, &cmdError{cmd: name, reason: "unknown command", errno: unix.ENOSYS})
	}
	if err := ip.checkContext(cmd, mods); err != nil {
		return ip.fail(mods, err)
	}

	if mods.vput != "" {
		if err := ip.pushVput(cmd, mods, rest); err != nil {
			return ip.fail(mods, err)
		}
		return Continue, nil
	}

	a, err := ip.marshal(cmd, mods, rest)
	if err != nil {
		return ip.fail(mods, err)
	}

	ip.log.Debugf("dispatch %s %q", cmd.Name, rest)
	ip.statusOwner = -1
	err = cmd.Run(ctx, ip, a)
	if err != nil {
		switch {
		case errors.Is(err, errExit):
			return StopProgram, err
		case errors.Is(err, ErrInterrupted):
			return Interrupted, err
		}
		return ip.fail(mods, err)
	}
	// Handlers like return set the status themselves.
	if ip.statusOwner != ip.evalDepth {
		ip.setStatus(0, errnum.None)
	}

	if ln.Recallable && !strings.HasPrefix(ln.Text, " ") {
		ip.remember(ctx, strings.TrimSpace(ln.Text))
	}
	if cmd.Flags&CtxAutoprint != 0 && ip.Vars.IsSet("autoprint") && ip.folder != nil {
		if cur := ip.folder.Current(); cur > 0 {
			if m, err := ip.folder.Message(cur); err == nil && !m.Deleted {
				ip.Input.Inject("\\type", false)
			}
		}
	}
	return Continue, nil
}

// fail records a failed command and applies the failure policy of the
// source it came from.
func (ip *Interpreter) fail(mods modifiers, err error) (Outcome, error) {
	ip.setStatus(1, errnum.Of(err))
	err = ip.reportErr(err)
	if mods.ignerr {
		return Continue, nil
	}
	if top := ip.Input.Top(); top != nil && top.Lenient {
		return Continue, nil
	}
	if ip.Vars.IsSet("errexit") {
		ip.exitStatus = 1
		return StopProgram, errExit
	}
	return StopSource, err
}

func (ip *Interpreter) checkContext(cmd *Command, mods modifiers) error {
	deny := func(reason string) error {
		return &cmdError{cmd: cmd.Name, reason: reason, errno: unix.EPERM}
	}
	switch {
	case cmd.Flags&CtxInteractive != 0 && !ip.interactive:
		return deny("can only be used interactively")
	case cmd.Flags&CtxNoSend != 0 && ip.sendMode:
		return deny("cannot be used in send mode")
	case cmd.Flags&CtxNoCompose != 0 && ip.composeMode:
		return deny("cannot be used while composing")
	case cmd.Flags&CtxStarted != 0 && !ip.Vars.Started():
		return deny("cannot be used during start-up")
	case cmd.Flags&CtxNoHook != 0 && ip.hookDepth > 0:
		return deny("cannot be used in a hook")
	case mods.vput != "" && cmd.Flags&CtxVput == 0:
		return usageErr(cmd.Name, "does not support vput")
	}
	if cmd.Flags&(CtxMailbox|CtxWritable) != 0 {
		if ip.folder == nil {
			return &cmdError{cmd: cmd.Name, reason: "no mailbox open", errno: unix.ENOENT}
		}
		if cmd.Flags&CtxWritable != 0 && ip.folder.ReadOnly() {
			return &cmdError{cmd: cmd.Name, reason: "mailbox is read-only", errno: unix.EROFS}
		}
	}
	return nil
}

// pushVput runs the command again inside an overlay source whose output
// is captured into the named variable once the overlay ends.
func (ip *Interpreter) pushVput(cmd *Command, mods modifiers, rest string) error {
	if err := vars.CheckName(mods.vput); err != nil {
		return err
	}
	parent := ip.Input.Top()
	buf := &bytes.Buffer{}
	saved := ip.out
	n := input.NewNode(input.KindOverlay, "vput "+mods.vput, nil)
	n.KeepTransient = true
	n.IgnErr = mods.ignerr
	if parent != nil {
		n.Lenient = parent.Lenient
	}
	n.Inject(strings.TrimSpace("\\"+mods.prefix()+cmd.Name+" "+rest), false)
	target := mods.vput
	n.Restore = func() {
		ip.out = saved
		if ip.status != 0 {
			return
		}
		if err := ip.Vars.Set(target, strings.TrimSuffix(buf.String(), "\n")); err != nil {
			ip.setStatus(1, errnum.Of(err))
			_ = ip.reportErr(err)
		}
	}
	if err := ip.Input.Push(n); err != nil {
		return err
	}
	ip.out = buf
	return nil
}

func (ip *Interpreter) marshal(cmd *Command, mods modifiers, rest string) (*Args, error) {
	a := &Args{Name: cmd.Name, Raw: rest, IgnErr: mods.ignerr, Wysh: mods.wysh}
	var err error
	switch cmd.Args {
	case ArgNone:
		if rest != "" {
			return nil, usageErr(cmd.Name, "takes no arguments")
		}
		return a, nil
	case ArgString:
		return a, nil
	case ArgRaw:
		if mods.wysh {
			a.Words, err = shellword.Parse(rest, ip)
		} else {
			a.Words = strings.Fields(rest)
		}
	case ArgWysh:
		a.Words, err = shellword.Parse(rest, ip)
	case ArgMsgList, ArgNDMsgList:
		if a.Words, err = shellword.Parse(rest, ip); err != nil {
			break
		}
		a.Msgs, err = ip.messages(cmd, a.Words)
		return a, err
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	if len(a.Words) < cmd.Min {
		return nil, usageErr(cmd.Name, fmt.Sprintf("needs at least %d argument(s)", cmd.Min))
	}
	if cmd.Max >= 0 && len(a.Words) > cmd.Max {
		return nil, usageErr(cmd.Name, fmt.Sprintf("takes at most %d argument(s)", cmd.Max))
	}
	return a, nil
}

// messages resolves a message list. An empty list selects the current
// message, or nothing for commands without a default.
func (ip *Interpreter) messages(cmd *Command, words []string) ([]int, error) {
	deleted := cmd.Flags&CtxDeleted != 0
	if len(words) == 0 {
		if cmd.Args == ArgNDMsgList {
			return nil, nil
		}
		cur := ip.folder.Current()
		m, err := ip.folder.Message(cur)
		if err != nil || m.Deleted != deleted {
			return nil, fmt.Errorf("%s: %w", cmd.Name, mailbox.ErrNoMessages)
		}
		return []int{cur}, nil
	}
	msgs, err := mailbox.Select(ip.folder, strings.Join(words, " "), deleted)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	return msgs, nil
}

func (ip *Interpreter) remember(ctx context.Context, line string) {
	if ip.term != nil {
		ip.term.AddHistory(line)
	}
	if ip.history == nil {
		return
	}
	if err := ip.history.Append(ctx, line); err != nil {
		ip.log.Warningf("saving history: %s", err)
	}
}

// runUntil executes lines until the input stack shrinks to depth.
func (ip *Interpreter) runUntil(ctx context.Context, depth int) error {
	for ip.Input.Depth() > depth {
		if ip.interrupted.Load() || ctx.Err() != nil {
			ip.unwind(depth, true)
			return ErrInterrupted
		}
		ln, err := ip.Input.ReadLine()
		if err != nil {
			top := ip.Input.Top()
			if !errors.Is(err, io.EOF) {
				ip.setStatus(1, errnum.Of(err))
				_ = ip.reportErr(fmt.Errorf("reading %s %s: %w", top.Kind, top.Name, err))
			}
			if perr := ip.Input.Pop(); perr != nil {
				ip.setStatus(1, errnum.Of(perr))
				_ = ip.reportErr(perr)
			}
			continue
		}

		out, err := ip.Evaluate(ctx, ln)
		switch out {
		case StopSource:
			if aerr := ip.abortSource(depth); aerr != nil {
				return aerr
			}
		case StopProgram:
			ip.unwind(depth, false)
			return err
		case Interrupted:
			ip.unwind(depth, true)
			return err
		}
	}
	return nil
}

// abortSource pops the failing source and keeps popping while the
// failure escalates into strict parents. It returns an error when the
// escalation reached the source runUntil was started for.
func (ip *Interpreter) abortSource(depth int) error {
	for ip.Input.Depth() > depth {
		n := ip.Input.Top()
		if n.Kind == input.KindTerminal {
			return nil
		}
		if err := ip.Input.Pop(); err != nil {
			ip.log.Debugf("popping %s %s: %s", n.Kind, n.Name, err)
		}
		ip.log.Debugf("aborted %s %s", n.Kind, n.Name)
		if n.IgnErr {
			return nil
		}
		if ip.Input.Depth() == depth {
			return &reportedError{err: fmt.Errorf("%s %s: %w", n.Kind, n.Name, errAborted)}
		}
		if p := ip.Input.Top(); p.Lenient {
			return nil
		}
	}
	return nil
}

// unwind pops sources down to depth. With keepTerminal the terminal is
// never popped.
func (ip *Interpreter) unwind(depth int, keepTerminal bool) {
	for ip.Input.Depth() > depth {
		n := ip.Input.Top()
		if keepTerminal && n.Kind == input.KindTerminal {
			return
		}
		if err := ip.Input.Pop(); err != nil {
			ip.log.Debugf("unwinding %s %s: %s", n.Kind, n.Name, err)
		}
	}
}
