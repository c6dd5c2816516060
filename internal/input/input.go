// Package input implements the stack of input sources the command loop
// reads from: files, pipes, macro bodies, single injected commands,
// temporary overlays and the terminal.
package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nhle/nmail/internal/logging"
)

// MaxDepth bounds source nesting so that runaway recursion fails cleanly.
const MaxDepth = 256

// Kind describes where a node's native content comes from.
type Kind int

const (
	KindFile Kind = iota
	KindPipe
	KindMacro
	KindCommand
	KindOverlay
	KindTerminal
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindPipe:
		return "pipe"
	case KindMacro:
		return "macro"
	case KindCommand:
		return "command"
	case KindOverlay:
		return "overlay"
	case KindTerminal:
		return "terminal"
	}
	return "unknown"
}

var (
	// ErrTooDeep is returned by Push when MaxDepth is reached.
	ErrTooDeep = errors.New("input sources nested too deeply")
	// ErrEmpty is returned when reading from an empty stack.
	ErrEmpty = errors.New("no active input source")
)

// Source yields physical lines without the trailing newline and io.EOF at
// the end.
type Source interface {
	ReadLine() (string, error)
}

// Line is one logical line handed to the dispatcher.
type Line struct {
	Text string
	// Recallable lines may be added to the interactive history.
	Recallable  bool
	Interactive bool
}

type queued struct {
	text       string
	recallable bool
}

// Node is one active input source.
type Node struct {
	Kind Kind
	Name string
	// Lenient sources keep reading after a failing command.
	Lenient bool
	// IgnErr is set when the command that pushed the node carried the
	// ignerr modifier; failures then do not escalate to the pusher.
	IgnErr bool
	// KeepTransient skips the stack's transient reset on pop.
	KeepTransient bool
	// Finalize runs when the node is popped.
	Finalize func()
	// Restore undoes an overlay's state changes when the node is popped.
	Restore func()

	src   Source
	queue []queued
	eof   bool
	cond  []*condEntry
}

// NewNode wraps src. src may be nil for nodes that only serve injected text.
func NewNode(kind Kind, name string, src Source) *Node {
	return &Node{Kind: kind, Name: name, src: src, Lenient: kind == KindTerminal}
}

// NewLinesNode returns a node serving lines in order, as used for macro
// bodies and single commands.
func NewLinesNode(kind Kind, name string, lines []string) *Node {
	return NewNode(kind, name, &sliceSource{lines: append([]string(nil), lines...)})
}

// NewReaderNode returns a node reading lines from r; files and pipes.
func NewReaderNode(kind Kind, name string, r io.Reader) *Node {
	return NewNode(kind, name, NewReaderSource(r))
}

// Inject queues text to be served before the node's native content.
func (n *Node) Inject(text string, recallable bool) {
	n.queue = append(n.queue, queued{text: text, recallable: recallable})
}

// ForceEOF makes the node report end of input on its next read.
func (n *Node) ForceEOF() { n.eof = true }

// Exhausted reports whether ForceEOF was requested.
func (n *Node) Exhausted() bool { return n.eof }

func (n *Node) continued() bool {
	return n.Kind == KindFile || n.Kind == KindPipe || n.Kind == KindTerminal
}

// Stack is the input-source stack.
type Stack struct {
	nodes []*Node
	// OnReset runs after a node is popped unless the node set KeepTransient.
	OnReset func()
}

// NewStack returns an empty stack.
func NewStack() *Stack { return &Stack{} }

// Push makes n the active source.
func (s *Stack) Push(n *Node) error {
	if len(s.nodes) >= MaxDepth {
		return fmt.Errorf("%s %s: %w", n.Kind, n.Name, ErrTooDeep)
	}
	s.nodes = append(s.nodes, n)
	logging.Get("input").Debugf("push %s %q (depth %d)", n.Kind, n.Name, len(s.nodes))
	return nil
}

// Top returns the active source, or nil.
func (s *Stack) Top() *Node {
	if len(s.nodes) == 0 {
		return nil
	}
	return s.nodes[len(s.nodes)-1]
}

// Parent returns the node below the active one, or nil.
func (s *Stack) Parent() *Node {
	if len(s.nodes) < 2 {
		return nil
	}
	return s.nodes[len(s.nodes)-2]
}

// Depth returns the number of active sources.
func (s *Stack) Depth() int { return len(s.nodes) }

// Pop removes the active source. A condition block left open is reported
// as ErrUnmatchedIf after the node was removed, unless the node was ended
// early through ForceEOF.
func (s *Stack) Pop() error {
	n := s.Top()
	if n == nil {
		return ErrEmpty
	}
	s.nodes = s.nodes[:len(s.nodes)-1]
	logging.Get("input").Debugf("pop %s %q (depth %d)", n.Kind, n.Name, len(s.nodes))

	var err error
	if len(n.cond) > 0 {
		for i := len(n.cond) - 1; i >= 0; i-- {
			n.cond[i].release()
		}
		n.cond = nil
		if !n.eof {
			err = fmt.Errorf("%s %s: %w", n.Kind, n.Name, ErrUnmatchedIf)
		}
	}
	if c, ok := n.src.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s %s: %w", n.Kind, n.Name, cerr)
		}
	}
	if n.Finalize != nil {
		n.Finalize()
	}
	if n.Restore != nil {
		n.Restore()
	}
	if !n.KeepTransient && s.OnReset != nil {
		s.OnReset()
	}
	return err
}

// Inject queues text on the active source.
func (s *Stack) Inject(text string, recallable bool) {
	if n := s.Top(); n != nil {
		n.Inject(text, recallable)
	}
}

// ForceEOF forces end of input on the active source.
func (s *Stack) ForceEOF() {
	if n := s.Top(); n != nil {
		n.ForceEOF()
	}
}

// ReadLine returns the next logical line of the active source: queued
// text first, oldest first, then native content. It returns io.EOF when
// the active source is exhausted; the caller pops it.
func (s *Stack) ReadLine() (Line, error) {
	n := s.Top()
	if n == nil {
		return Line{}, ErrEmpty
	}
	if n.eof {
		return Line{}, io.EOF
	}
	if len(n.queue) > 0 {
		q := n.queue[0]
		n.queue = n.queue[1:]
		return Line{Text: q.text, Recallable: q.recallable}, nil
	}
	if n.src == nil {
		return Line{}, io.EOF
	}
	text, err := n.src.ReadLine()
	if err != nil {
		return Line{}, err
	}
	for n.continued() && oddBackslashes(text) {
		next, err := n.src.ReadLine()
		text = text[:len(text)-1]
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Line{}, err
		}
		text += next
	}
	return Line{
		Text:        text,
		Recallable:  n.Kind == KindTerminal,
		Interactive: n.Kind == KindTerminal,
	}, nil
}

func oddBackslashes(s string) bool {
	n := len(s) - len(strings.TrimRight(s, "\\"))
	return n%2 == 1
}

type sliceSource struct {
	lines []string
}

func (s *sliceSource) ReadLine() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	l := s.lines[0]
	s.lines = s.lines[1:]
	return l, nil
}

// ReaderSource reads newline-terminated lines from an io.Reader.
type ReaderSource struct {
	r *bufio.Reader
	c io.Closer
}

// NewReaderSource wraps r; if r is an io.Closer it is closed with the node.
func NewReaderSource(r io.Reader) *ReaderSource {
	rs := &ReaderSource{r: bufio.NewReader(r)}
	if c, ok := r.(io.Closer); ok {
		rs.c = c
	}
	return rs
}

func (rs *ReaderSource) ReadLine() (string, error) {
	line, err := rs.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSuffix(line, "\r"), nil
		}
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

func (rs *ReaderSource) Close() error {
	if rs.c == nil {
		return nil
	}
	return rs.c.Close()
}
