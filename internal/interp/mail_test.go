package interp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testMbox = `From alice@example.org Mon Jan  1 10:00:00 2024
From: alice@example.org
Subject: first

first body

From bob@example.org Tue Jan  2 10:00:00 2024
From: bob@example.org
Subject: second

second body

From carol@example.org Wed Jan  3 10:00:00 2024
From: carol@example.org
Subject: third

third body
`

func writeMbox(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inbox")
	if err := os.WriteFile(path, []byte(testMbox), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMailCommandsNeedFolder(t *testing.T) {
	ti := newTestInterp(t, Options{})
	_ = ti.run(t, "ignerr type\necho $? $^ERRNAME\n")
	if got := ti.out.String(); got != "1 NOENT\n" {
		t.Errorf("output = %q", got)
	}
	if !strings.Contains(ti.errOut.String(), "no mailbox open") {
		t.Errorf("diagnostics = %q", ti.errOut)
	}
}

func TestFolderHeadersAndType(t *testing.T) {
	path := writeMbox(t)
	ti := newTestInterp(t, Options{})
	out := ti.mustRun(t, "folder "+path+"\nheaders\ntype 2\n")

	for _, want := range []string{">   1 ", "first", "second", "third", "Subject: second", "second body"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
	if ti.Folder().Current() != 2 {
		t.Errorf("current = %d, want 2", ti.Folder().Current())
	}
}

func TestFolderShortcutExpansion(t *testing.T) {
	path := writeMbox(t)
	ti := newTestInterp(t, Options{})
	ti.mustRun(t, "set folder="+filepath.Dir(path)+"\nfolder +inbox\n")
	if ti.Folder() == nil || ti.Folder().Name() != path {
		t.Fatalf("folder not opened through +: %v", ti.Folder())
	}
	if v, _ := ti.Vars.Get("folder-resolved"); v != filepath.Dir(path) {
		t.Errorf("folder-resolved = %q", v)
	}
}

func TestDeleteAutoprintAndQuit(t *testing.T) {
	path := writeMbox(t)
	ti := newTestInterp(t, Options{})
	err := ti.run(t, "folder "+path+"\nset autoprint\ndelete 1\nundelete 1\ndelete\nquit\n")
	if !errors.Is(err, errExit) {
		t.Fatalf("quit returned %v", err)
	}
	out := ti.out.String()
	if !strings.Contains(out, "second body") {
		t.Errorf("autoprint did not show the next message:\n%s", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "Subject: first") {
		t.Error("deleted message was written back")
	}
	if !strings.Contains(string(data), "Subject: second") {
		t.Error("kept message is missing")
	}
}

func TestUndeleteSelectsDeletedMessages(t *testing.T) {
	path := writeMbox(t)
	ti := newTestInterp(t, Options{})
	ti.mustRun(t, "folder "+path+"\ndelete 1 3\n")
	if err := ti.run(t, "ignerr undelete 2\necho $?\nundelete *\n"); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(ti.out.String(), "1\n") {
		t.Errorf("undelete of an undeleted message succeeded: %q", ti.out)
	}
	if ti.Folder().Deleted() != 0 {
		t.Errorf("%d messages still deleted", ti.Folder().Deleted())
	}
}

func TestFolderHookChangesLastUntilFolderIsLeft(t *testing.T) {
	path := writeMbox(t)
	other := filepath.Join(t.TempDir(), "other")
	ti := newTestInterp(t, Options{})
	ti.mustRun(t, `define fh {
set hookran=yes
}
set folder-hook=fh
folder `+path+"\n")
	if v, _ := ti.Vars.Get("hookran"); v != "yes" {
		t.Fatalf("hookran = %q, want yes", v)
	}

	ti.mustRun(t, "unset folder-hook\nfolder "+other+"\n")
	if ti.Vars.IsSet("hookran") {
		t.Error("folder hook setting survived leaving the folder")
	}
}

func TestAccountSwitchForbiddenInHook(t *testing.T) {
	path := writeMbox(t)
	ti := newTestInterp(t, Options{})
	err := ti.run(t, `account A {
set x=1
}
define fh {
account A
}
set folder-hook=fh
ignerr folder `+path+"\necho $?\n")
	if err != nil {
		t.Fatal(err)
	}
	if ti.Account() != "" {
		t.Error("hook switched accounts")
	}
	if !strings.Contains(ti.errOut.String(), "cannot switch accounts in a hook") {
		t.Errorf("diagnostics = %q", ti.errOut)
	}
}

func TestOpenFolderExpandsSystemInbox(t *testing.T) {
	path := writeMbox(t)
	ti := newTestInterp(t, Options{})
	if err := ti.Vars.Set("MAIL", path); err != nil {
		t.Fatal(err)
	}
	if err := ti.OpenFolder(context.Background(), "%"); err != nil {
		t.Fatal(err)
	}
	if ti.Folder() == nil || ti.Folder().Len() != 3 {
		t.Fatalf("folder = %v", ti.Folder())
	}
}
