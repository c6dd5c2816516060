package input

import (
	"errors"
	"io"
	"strings"

	"github.com/peterh/liner"
)

// Terminal reads interactive lines through a line editor with history.
type Terminal struct {
	st *liner.State
	// Prompt returns the prompt shown before each line.
	Prompt func() string
	// IgnoreEOF reports whether end of input should be refused.
	IgnoreEOF func() bool
	// Notice receives messages meant for the user, e.g. how to quit.
	Notice func(msg string)
}

// NewTerminal puts the terminal into line-editing mode. Close restores it.
func NewTerminal() *Terminal {
	st := liner.NewLiner()
	st.SetCtrlCAborts(true)
	return &Terminal{st: st}
}

// LoadHistory seeds the recall buffer, oldest first.
func (t *Terminal) LoadHistory(lines []string) error {
	_, err := t.st.ReadHistory(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	return err
}

// AddHistory makes line recallable.
func (t *Terminal) AddHistory(line string) {
	t.st.AppendHistory(line)
}

// SetCompleter completes the first word of a line from words.
func (t *Terminal) SetCompleter(words func(prefix string) []string) {
	t.st.SetWordCompleter(func(line string, pos int) (string, []string, string) {
		head := line[:pos]
		if strings.ContainsAny(head, " \t") {
			return head, nil, line[pos:]
		}
		return "", words(head), line[pos:]
	})
}

// ReadLine prompts for one line. An aborted line (Ctrl-C) is discarded and
// the user is prompted again.
func (t *Terminal) ReadLine() (string, error) {
	for {
		prompt := ""
		if t.Prompt != nil {
			prompt = t.Prompt()
		}
		line, err := t.st.Prompt(prompt)
		switch {
		case err == nil:
			return line, nil
		case errors.Is(err, liner.ErrPromptAborted):
			continue
		case errors.Is(err, io.EOF):
			if t.IgnoreEOF != nil && t.IgnoreEOF() {
				if t.Notice != nil {
					t.Notice(`Use "quit" to quit.`)
				}
				continue
			}
			return "", io.EOF
		default:
			return "", err
		}
	}
}

// Close restores the terminal mode.
func (t *Terminal) Close() error {
	return t.st.Close()
}
