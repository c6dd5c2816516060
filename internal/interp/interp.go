// Package interp is the command interpreter: it reads lines from the input
// stack, expands and dispatches them to commands, and manages macro calls,
// accounts and the dynamic variable scopes they open.
package interp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync/atomic"
	"syscall"

	"github.com/tliron/commonlog"

	"github.com/nhle/nmail/internal/editor"
	"github.com/nhle/nmail/internal/history"
	"github.com/nhle/nmail/internal/input"
	"github.com/nhle/nmail/internal/localopts"
	"github.com/nhle/nmail/internal/logging"
	"github.com/nhle/nmail/internal/macro"
	"github.com/nhle/nmail/internal/mailbox"
	"github.com/nhle/nmail/internal/vars"
)

// FolderOpener loads a folder by name.
type FolderOpener interface {
	Open(ctx context.Context, name string) (*mailbox.Box, error)
}

// History persists interactive lines.
type History interface {
	Append(ctx context.Context, line string) error
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
	Clear(ctx context.Context) error
}

// Options configures a new Interpreter.
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader
	// Env defaults to the process environment.
	Env vars.Environ
	// Interactive marks a session attached to a terminal.
	Interactive bool
	// SendMode marks a session started to compose a message.
	SendMode bool
	Opener   FolderOpener
	History  History
	// Editor overrides the editor used by varedit.
	Editor editor.Editor
}

// ExitError is returned by Run when the session ended through exit, quit
// or errexit.
type ExitError struct {
	Status int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Status)
}

type activeAccount struct {
	name    string
	mac     *macro.Macro
	persist *localopts.Frame
}

// Interpreter holds the complete state of one session.
type Interpreter struct {
	Vars   *vars.Store
	Macros *macro.Registry
	Scopes *localopts.Stack
	Input  *input.Stack

	frame   *CallFrame
	account *activeAccount
	ghosts  map[string]string

	out    io.Writer
	errOut io.Writer
	stdin  io.Reader
	rep    *reporter
	log    commonlog.Logger

	opener  FolderOpener
	folder  *mailbox.Box
	// folderScope collects folder-hook changes until the folder is left.
	folderScope *localopts.Frame
	history History
	term    *input.Terminal
	editor  editor.Editor

	interactive bool
	sendMode    bool
	composeMode bool
	hookDepth   int
	evalDepth   int
	interrupted atomic.Bool

	status      int
	errno       syscall.Errno
	statusOwner int
	exitStatus  int
	exiting     bool

	folderResolved string
}

// New creates an interpreter with an empty input stack.
func New(opts Options) *Interpreter {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Opener == nil {
		opts.Opener = &mailbox.Opener{}
	}

	ip := &Interpreter{
		Vars:        vars.New(opts.Env),
		Macros:      macro.NewRegistry(),
		Scopes:      localopts.NewStack(),
		Input:       input.NewStack(),
		ghosts:      make(map[string]string),
		out:         opts.Stdout,
		errOut:      opts.Stderr,
		stdin:       opts.Stdin,
		log:         logging.Get("interp"),
		opener:      opts.Opener,
		history:     opts.History,
		editor:      opts.Editor,
		interactive: opts.Interactive,
		sendMode:    opts.SendMode,
		statusOwner: -1,
	}
	ip.rep = newReporter(opts.Stderr, func() string {
		p, _ := ip.Vars.Get("log-prefix")
		return p
	})
	ip.Vars.SetRecorder(ip.Scopes)
	ip.Vars.SetComputed("?", func() (string, bool) { return strconv.Itoa(ip.status), true })
	ip.Vars.SetComputed("!", func() (string, bool) { return strconv.Itoa(int(ip.errno)), true })
	ip.Vars.SetComputed("folder-resolved", ip.resolveFolderDir)
	ip.Vars.Watch("folder", func(string, *string) { ip.folderResolved = "" })
	ip.Input.OnReset = ip.resetTransient
	return ip
}

// Interrupt requests that the running commands stop at the next line
// boundary. It is safe to call from a signal handler goroutine.
func (ip *Interpreter) Interrupt() {
	ip.interrupted.Store(true)
}

// Status returns the exit status of the last command and its error number.
func (ip *Interpreter) Status() (int, syscall.Errno) {
	return ip.status, ip.errno
}

// SetComposeMode marks whether a message is being composed; commands that
// would disturb the composition are refused while it is set.
func (ip *Interpreter) SetComposeMode(on bool) {
	ip.composeMode = on
}

// Folder returns the open folder, or nil.
func (ip *Interpreter) Folder() *mailbox.Box {
	return ip.folder
}

// Account returns the name of the active account, or "".
func (ip *Interpreter) Account() string {
	if ip.account == nil {
		return ""
	}
	return ip.account.name
}

// Frame returns the innermost call frame, or nil at top level.
func (ip *Interpreter) Frame() *CallFrame {
	return ip.frame
}

// SetGhost defines a command alias.
func (ip *Interpreter) SetGhost(name, expansion string) {
	ip.ghosts[name] = expansion
}

func (ip *Interpreter) setStatus(code int, errno syscall.Errno) {
	ip.status = code
	ip.errno = errno
	ip.statusOwner = ip.evalDepth
}

func (ip *Interpreter) resetTransient() {
	ip.rep.flush()
}

// Run reads and executes commands until the input stack is exhausted or
// the session is ended. Interrupts unwind back to an interactive terminal
// source if there is one.
func (ip *Interpreter) Run(ctx context.Context) error {
	defer ip.rep.flush()
	for {
		err := ip.runUntil(ctx, 0)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, errExit):
			return &ExitError{Status: ip.exitStatus}
		case errors.Is(err, ErrInterrupted):
			ip.interrupted.Store(false)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			top := ip.Input.Top()
			if top == nil || top.Kind != input.KindTerminal {
				return err
			}
			ip.rep.Noticef("Interrupt")
		default:
			if ip.Input.Depth() == 0 {
				return err
			}
		}
	}
}

// Source runs the file at path to completion.
func (ip *Interpreter) Source(ctx context.Context, path string) error {
	n, err := ip.openSource(path)
	if err != nil {
		return ip.reportErr(err)
	}
	return ip.runNode(ctx, n)
}

// Execute runs a single command line, as given with -X, to completion.
func (ip *Interpreter) Execute(ctx context.Context, line string) error {
	return ip.runNode(ctx, input.NewLinesNode(input.KindCommand, "-X", []string{line}))
}

// PushTerminal makes t the bottom interactive source.
func (ip *Interpreter) PushTerminal(t *input.Terminal) error {
	ip.term = t
	t.Prompt = func() string {
		p, _ := ip.Vars.Get("prompt")
		return p
	}
	t.IgnoreEOF = func() bool { return ip.Vars.IsSet("ignoreeof") }
	t.Notice = func(msg string) { ip.rep.Noticef("%s", msg) }
	t.SetCompleter(CommandNames)
	return ip.Input.Push(input.NewNode(input.KindTerminal, "terminal", t))
}

// PushReader makes r a lenient source of commands, as used for robot
// sessions reading standard input.
func (ip *Interpreter) PushReader(name string, r io.Reader) error {
	n := input.NewReaderNode(input.KindFile, name, r)
	n.Lenient = true
	return ip.Input.Push(n)
}

// Settle classifies the result of a start-up step. A session end becomes
// an *ExitError; any other failure is reported if it was not yet and
// then dropped so that start-up can go on.
func (ip *Interpreter) Settle(err error) error {
	var exit *ExitError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errExit):
		return &ExitError{Status: ip.exitStatus}
	case errors.As(err, &exit):
		return err
	case errors.Is(err, ErrInterrupted):
		ip.interrupted.Store(false)
		return nil
	}
	ip.reportErr(err)
	ip.rep.flush()
	return nil
}

// runNode pushes n and runs until it was popped.
func (ip *Interpreter) runNode(ctx context.Context, n *input.Node) error {
	depth := ip.Input.Depth()
	if err := ip.Input.Push(n); err != nil {
		return ip.reportErr(err)
	}
	return ip.runUntil(ctx, depth)
}

// Quit leaves the open folder, writing deletions back, and the active
// account. It is what end of input on the terminal amounts to.
func (ip *Interpreter) Quit(ctx context.Context) error {
	defer ip.rep.flush()
	if ip.account != nil {
		if err := ip.leaveAccount(ctx); err != nil {
			return err
		}
	}
	return ip.leaveFolder(ctx, true)
}
