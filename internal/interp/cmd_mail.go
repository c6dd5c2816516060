package interp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nhle/nmail/internal/localopts"
	"github.com/nhle/nmail/internal/mailbox"
)

// resolveFolderDir returns the folder directory as an absolute path. The
// result is cached until folder changes.
func (ip *Interpreter) resolveFolderDir() (string, bool) {
	if ip.folderResolved != "" {
		return ip.folderResolved, true
	}
	dir, ok := ip.Vars.Get("folder")
	if !ok || dir == "" {
		return "", false
	}
	if mailbox.IsRemote(dir) {
		ip.folderResolved = strings.TrimSuffix(dir, "/")
		return ip.folderResolved, true
	}
	dir = ip.expandHome(dir)
	if !filepath.IsAbs(dir) {
		home, _ := ip.Vars.Get("HOME")
		dir = filepath.Join(home, dir)
	}
	ip.folderResolved = filepath.Clean(dir)
	return ip.folderResolved, true
}

func (ip *Interpreter) expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, _ := ip.Vars.Get("HOME")
		return home + p[1:]
	}
	return p
}

// expandFolder resolves the folder shorthands: +name inside the folder
// directory, % for the system inbox and & for MBOX.
func (ip *Interpreter) expandFolder(name string) (string, error) {
	switch {
	case name == "%":
		if v, ok := ip.Vars.Get("inbox"); ok && v != "" {
			return ip.expandFolder(v)
		}
		if v, ok := ip.Vars.Get("MAIL"); ok && v != "" {
			return v, nil
		}
		return "", usageErr("folder", "no system inbox, set inbox or MAIL")
	case name == "&":
		if v, ok := ip.Vars.Get("MBOX"); ok && v != "" {
			return ip.expandHome(v), nil
		}
		home, _ := ip.Vars.Get("HOME")
		return filepath.Join(home, "mbox"), nil
	case strings.HasPrefix(name, "+"):
		dir, ok := ip.resolveFolderDir()
		if !ok {
			return "", usageErr("folder", "folder is not set")
		}
		if mailbox.IsRemote(dir) {
			return dir + "/" + name[1:], nil
		}
		return filepath.Join(dir, name[1:]), nil
	}
	return ip.expandHome(name), nil
}

func cmdFolder(ctx context.Context, ip *Interpreter, a *Args) error {
	if len(a.Words) == 0 {
		if ip.folder == nil {
			fmt.Fprintln(ip.out, "No folder open")
			return nil
		}
		ip.folderStatus()
		return nil
	}
	return ip.OpenFolder(ctx, a.Words[0])
}

// OpenFolder leaves the current folder, saving its changes, and opens
// name after expanding the %, & and + shorthands. The folder hook runs
// after the folder was opened.
func (ip *Interpreter) OpenFolder(ctx context.Context, name string) error {
	name, err := ip.expandFolder(name)
	if err != nil {
		return err
	}
	if err := ip.leaveFolder(ctx, true); err != nil {
		return err
	}
	box, err := ip.opener.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("opening folder %s: %w", name, err)
	}
	ip.folder = box
	ip.folderScope = localopts.NewDetached()
	ip.log.Infof("opened %s with %d messages", name, box.Len())
	if ip.interactive {
		ip.folderStatus()
	}
	return ip.runHook(ctx, "folder-hook", name, ip.folderScope)
}

func (ip *Interpreter) leaveFolder(ctx context.Context, commit bool) error {
	if ip.folder == nil {
		return nil
	}
	if err := ip.folder.Close(ctx, commit); err != nil {
		return err
	}
	ip.folder = nil
	if ip.folderScope != nil {
		ip.Scopes.Unroll(ip.folderScope, ip.Vars)
		ip.folderScope = nil
	}
	return nil
}

func (ip *Interpreter) folderStatus() {
	b := ip.folder
	ro := ""
	if b.ReadOnly() {
		ro = " [Read only]"
	}
	fmt.Fprintf(ip.out, "%q: %d messages %d deleted%s\n", b.Name(), b.Len(), b.Deleted(), ro)
}

func cmdHeaders(_ context.Context, ip *Interpreter, a *Args) error {
	b := ip.folder
	msgs := a.Msgs
	if len(msgs) == 0 {
		for i := 1; i <= b.Len(); i++ {
			msgs = append(msgs, i)
		}
	}
	th := ip.rep.th
	shown := 0
	for _, n := range msgs {
		m, err := b.Message(n)
		if err != nil || m.Deleted {
			continue
		}
		marker := ' '
		if n == b.Current() {
			marker = '>'
		}
		line := fmt.Sprintf("%c%4d %s", marker, n, m.Summary())
		if marker == '>' {
			line = th.Current.Render(line)
		}
		fmt.Fprintln(ip.out, line)
		shown++
	}
	if shown == 0 {
		fmt.Fprintln(ip.out, "No messages")
	}
	return nil
}

func cmdType(_ context.Context, ip *Interpreter, a *Args) error {
	th := ip.rep.th
	for i, n := range a.Msgs {
		m, err := ip.folder.Message(n)
		if err != nil {
			return err
		}
		if len(a.Msgs) > 1 || i > 0 {
			fmt.Fprintln(ip.out, th.Header.Render(fmt.Sprintf("[-- Message %d --]", n)))
		}
		fmt.Fprint(ip.out, m.Render())
		ip.folder.SetCurrent(n)
	}
	return nil
}

func cmdDelete(_ context.Context, ip *Interpreter, a *Args) error {
	last := 0
	for _, n := range a.Msgs {
		m, err := ip.folder.Message(n)
		if err != nil {
			return err
		}
		m.Deleted = true
		last = n
	}
	if next := ip.folder.NextUndeleted(last); next > 0 {
		ip.folder.SetCurrent(next)
	}
	return nil
}

func cmdUndelete(_ context.Context, ip *Interpreter, a *Args) error {
	for _, n := range a.Msgs {
		m, err := ip.folder.Message(n)
		if err != nil {
			return err
		}
		m.Deleted = false
		ip.folder.SetCurrent(n)
	}
	return nil
}
