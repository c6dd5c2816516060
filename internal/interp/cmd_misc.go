package interp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/nhle/nmail/internal/input"
	"github.com/nhle/nmail/internal/shellword"
)

func cmdGhost(_ context.Context, ip *Interpreter, a *Args) error {
	switch len(a.Words) {
	case 0:
		names := make([]string, 0, len(ip.ghosts))
		for name := range ip.ghosts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(ip.out, "ghost %s %s\n", name, shellword.Quote(ip.ghosts[name]))
		}
		return nil
	case 1:
		exp, ok := ip.ghosts[a.Words[0]]
		if !ok {
			return &cmdError{cmd: "ghost", reason: "no such ghost: " + a.Words[0], errno: unix.ENOENT}
		}
		fmt.Fprintf(ip.out, "ghost %s %s\n", a.Words[0], shellword.Quote(exp))
		return nil
	}
	name := a.Words[0]
	if strings.ContainsAny(name, " \t\\") || strings.HasPrefix(name, "-") {
		return usageErr("ghost", fmt.Sprintf("invalid name %q", name))
	}
	ip.ghosts[name] = strings.Join(a.Words[1:], " ")
	return nil
}

func cmdUnghost(_ context.Context, ip *Interpreter, a *Args) error {
	var errs []error
	for _, name := range a.Words {
		if name == "*" {
			clear(ip.ghosts)
			continue
		}
		if _, ok := ip.ghosts[name]; !ok {
			errs = append(errs, &cmdError{cmd: "unghost", reason: "no such ghost: " + name, errno: unix.ENOENT})
			continue
		}
		delete(ip.ghosts, name)
	}
	return errors.Join(errs...)
}

func cmdSource(_ context.Context, ip *Interpreter, a *Args) error {
	n, err := ip.openSource(strings.Join(a.Words, " "))
	if err != nil {
		return err
	}
	n.IgnErr = a.IgnErr
	return ip.Input.Push(n)
}

func cmdSourceIf(_ context.Context, ip *Interpreter, a *Args) error {
	n, err := ip.openSource(strings.Join(a.Words, " "))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	n.IgnErr = a.IgnErr
	return ip.Input.Push(n)
}

// openSource opens a file, or a pipe when spec ends in "|".
func (ip *Interpreter) openSource(spec string) (*input.Node, error) {
	spec = strings.TrimSpace(spec)
	if strings.HasSuffix(spec, "|") {
		command := strings.TrimSpace(strings.TrimSuffix(spec, "|"))
		if command == "" {
			return nil, usageErr("source", "missing command before |")
		}
		p, err := startPipe(ip, command)
		if err != nil {
			return nil, err
		}
		return input.NewReaderNode(input.KindPipe, command, p), nil
	}
	path := ip.expandHome(spec)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", path, err)
	}
	return input.NewReaderNode(input.KindFile, path, f), nil
}

// pipe reads a command's standard output and reaps it when closed.
type pipe struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func startPipe(ip *Interpreter, command string) (*pipe, error) {
	shell, _ := ip.Vars.Get("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.Command(shell, "-c", command)
	cmd.Stderr = ip.errOut
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", command, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("source %s: %w", command, err)
	}
	return &pipe{ReadCloser: out, cmd: cmd}, nil
}

func (p *pipe) Close() error {
	_, _ = io.Copy(io.Discard, p.ReadCloser)
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("%s: %w", p.cmd.String(), err)
	}
	return nil
}

func cmdEcho(_ context.Context, ip *Interpreter, a *Args) error {
	w := ip.out
	if strings.HasPrefix(a.Name, "echoerr") {
		w = ip.errOut
	}
	text := strings.Join(a.Words, " ")
	if !strings.HasSuffix(a.Name, "n") {
		text += "\n"
	}
	_, err := io.WriteString(w, text)
	return err
}

func cmdHistory(ctx context.Context, ip *Interpreter, a *Args) error {
	if ip.history == nil {
		return &cmdError{cmd: "history", reason: "history is disabled", errno: unix.ENOTSUP}
	}
	limit := 0
	if len(a.Words) == 1 {
		if a.Words[0] == "clear" {
			return ip.history.Clear(ctx)
		}
		n, err := strconv.Atoi(a.Words[0])
		if err != nil || n < 0 {
			return usageErr("history", fmt.Sprintf("invalid count %q", a.Words[0]))
		}
		limit = n
	} else if v, ok := ip.Vars.Get("history-size"); ok {
		limit, _ = strconv.Atoi(v)
	}
	entries, err := ip.history.Recent(ctx, limit)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	for i, e := range entries {
		fmt.Fprintf(ip.out, "%4d  %s\n", i+1, e.Line)
	}
	return nil
}

func cmdQuit(ctx context.Context, ip *Interpreter, _ *Args) error {
	if err := ip.leaveFolder(ctx, true); err != nil {
		return err
	}
	ip.exitStatus = 0
	return errExit
}

func cmdExit(ctx context.Context, ip *Interpreter, a *Args) error {
	status := 0
	if len(a.Words) == 1 {
		n, err := strconv.Atoi(a.Words[0])
		if err != nil {
			return usageErr(a.Name, fmt.Sprintf("invalid status %q", a.Words[0]))
		}
		status = n
	}
	if err := ip.leaveFolder(ctx, false); err != nil {
		ip.log.Warningf("closing folder: %s", err)
	}
	ip.exitStatus = status
	return errExit
}

func cmdHelp(_ context.Context, ip *Interpreter, a *Args) error {
	if len(a.Words) == 1 {
		c := lookupCommand(a.Words[0])
		if c == nil {
			return &cmdError{cmd: a.Words[0], reason: "unknown command", errno: unix.ENOSYS}
		}
		fmt.Fprintf(ip.out, "%s: %s\n", c.Name, c.Help)
		return nil
	}
	for _, c := range commands {
		fmt.Fprintf(ip.out, "%-10s %s\n", c.Name, c.Help)
	}
	return nil
}
