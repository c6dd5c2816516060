// Package editor lets the user change a variable's value, either in
// $EDITOR or in an inline form.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/nhle/nmail/internal/keys"
)

// ErrAborted is returned when the user leaves the editor without saving.
var ErrAborted = errors.New("edit aborted")

// Editor edits the value of a named variable.
type Editor interface {
	Edit(ctx context.Context, name, value string) (string, error)
}

// External runs the user's editor on a temporary file.
type External struct {
	// Command returns the editor command line, e.g. the value of VISUAL.
	Command func() string
	// TempDir returns the directory for the temporary file.
	TempDir func() string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

// Edit writes value to a temporary file, runs the editor on it through
// /bin/sh and returns the file's new content without its final newline.
func (e *External) Edit(ctx context.Context, name, value string) (string, error) {
	dir := os.TempDir()
	if e.TempDir != nil {
		dir = e.TempDir()
	}
	f, err := os.CreateTemp(dir, "nmail-"+sanitize(name)+"-*")
	if err != nil {
		return "", fmt.Errorf("creating temporary file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(value + "\n"); err != nil {
		f.Close()
		return "", fmt.Errorf("writing temporary file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("writing temporary file: %w", err)
	}

	command := "vi"
	if e.Command != nil && e.Command() != "" {
		command = e.Command()
	}
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command+` "$1"`, "sh", path)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = e.Stdin, e.Stdout, e.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("running editor %q: %w", command, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading edited value: %w", err)
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '*' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, name)
}

// Inline edits the value in a huh text field on the terminal.
type Inline struct {
	Keys   *keys.EditorKeyMap
	Input  io.Reader
	Output io.Writer
	// Command returns the external editor reachable from the field.
	Command func() string
}

// KeyMap converts the editor bindings into the form's key map.
func (in *Inline) KeyMap() *huh.KeyMap {
	k := in.Keys
	if k == nil {
		k = keys.DefaultEditorKeyMap()
	}
	km := huh.NewDefaultKeyMap()
	km.Quit = k.Abort
	km.Text.Submit = k.Submit
	km.Text.NewLine = k.NewLine
	km.Text.Editor = k.External
	return km
}

// Edit shows the field and returns the edited value.
func (in *Inline) Edit(ctx context.Context, name, value string) (string, error) {
	v := value
	lines := strings.Count(value, "\n") + 1
	if lines < 3 {
		lines = 3
	}

	field := huh.NewText().
		Title(name).
		Value(&v).
		Lines(lines)
	if in.Command != nil && in.Command() != "" {
		field = field.Editor(strings.Fields(in.Command())...)
	}

	form := huh.NewForm(huh.NewGroup(field)).
		WithKeyMap(in.KeyMap()).
		WithShowHelp(true).
		WithProgramOptions(tea.WithoutSignalHandler())
	if in.Input != nil {
		form = form.WithInput(in.Input)
	}
	if in.Output != nil {
		form = form.WithOutput(in.Output)
	}

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return value, ErrAborted
		}
		return value, fmt.Errorf("editing %s: %w", name, err)
	}
	return v, nil
}
