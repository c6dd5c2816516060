package editor

import (
	"context"
	"testing"

	"github.com/nhle/nmail/internal/keys"
)

func TestExternalEdit(t *testing.T) {
	e := &External{
		Command: func() string { return "sed -i s/old/new/" },
		TempDir: t.TempDir,
	}
	got, err := e.Edit(context.Background(), "folder", "+old")
	if err != nil {
		t.Fatal(err)
	}
	if got != "+new" {
		t.Errorf("Edit = %q, want +new", got)
	}
}

func TestExternalEditFailure(t *testing.T) {
	e := &External{
		Command: func() string { return "false" },
		TempDir: t.TempDir,
	}
	if _, err := e.Edit(context.Background(), "x", "v"); err == nil {
		t.Error("failing editor not reported")
	}
}

func TestInlineKeyMap(t *testing.T) {
	k := keys.DefaultEditorKeyMap()
	in := &Inline{Keys: k}
	km := in.KeyMap()
	if km.Quit.Help().Key != k.Abort.Help().Key {
		t.Errorf("Quit bound to %q", km.Quit.Help().Key)
	}
	if km.Text.Submit.Help().Key != "enter" {
		t.Errorf("Submit bound to %q", km.Text.Submit.Help().Key)
	}
	if len(k.ShortHelp()) != 4 {
		t.Errorf("ShortHelp has %d bindings", len(k.ShortHelp()))
	}
}
