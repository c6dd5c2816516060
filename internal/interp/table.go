package interp

import (
	"context"
	"sort"
	"strings"
)

// ArgKind is the argument shape a command expects.
type ArgKind int

const (
	// ArgNone accepts no arguments.
	ArgNone ArgKind = iota
	// ArgMsgList is a message list defaulting to the current message.
	ArgMsgList
	// ArgNDMsgList is a message list without a default.
	ArgNDMsgList
	// ArgString passes the rest of the line untouched.
	ArgString
	// ArgRaw splits on blanks, or like ArgWysh under the wysh modifier.
	ArgRaw
	// ArgWysh applies shell-style quoting and parameter expansion.
	ArgWysh
)

// CtxFlag restricts where a command may run or marks what it supports.
type CtxFlag uint

const (
	CtxInteractive CtxFlag = 1 << iota
	CtxNoSend
	CtxNoCompose
	CtxStarted
	CtxMailbox
	CtxWritable
	CtxNoHook
	// CtxCond commands run even inside a skipped if block.
	CtxCond
	CtxVput
	// CtxAutoprint commands print the new current message when autoprint is set.
	CtxAutoprint
	// CtxDeleted message lists select deleted messages.
	CtxDeleted
)

// Args is what a handler receives.
type Args struct {
	Name   string
	Raw    string
	Words  []string
	Msgs   []int
	IgnErr bool
	Wysh   bool
}

// Handler implements a command.
type Handler func(ctx context.Context, ip *Interpreter, a *Args) error

// Command is one command table entry.
type Command struct {
	Name  string
	Args  ArgKind
	Min   int
	Max   int
	Flags CtxFlag
	Help  string
	Run   Handler
}

// commands is searched in order; the first entry whose name starts with
// the typed word wins, so frequent commands come first.
var commands []Command

func init() {
	commands = []Command{
		{Name: "headers", Args: ArgNDMsgList, Flags: CtxMailbox, Help: "list message summaries", Run: cmdHeaders},
		{Name: "type", Args: ArgMsgList, Flags: CtxMailbox, Help: "print messages", Run: cmdType},
		{Name: "print", Args: ArgMsgList, Flags: CtxMailbox, Help: "print messages", Run: cmdType},
		{Name: "delete", Args: ArgMsgList, Flags: CtxMailbox | CtxWritable | CtxAutoprint, Help: "delete messages", Run: cmdDelete},
		{Name: "undelete", Args: ArgMsgList, Flags: CtxMailbox | CtxWritable | CtxDeleted | CtxAutoprint, Help: "undelete messages", Run: cmdUndelete},
		{Name: "folder", Args: ArgWysh, Max: 1, Flags: CtxNoSend | CtxNoCompose | CtxNoHook, Help: "show or change the folder", Run: cmdFolder},
		{Name: "set", Args: ArgWysh, Max: -1, Help: "list or assign variables", Run: cmdSet},
		{Name: "source", Args: ArgWysh, Min: 1, Max: -1, Help: "read commands from a file or pipe", Run: cmdSource},
		{Name: "source_if", Args: ArgWysh, Min: 1, Max: -1, Help: "source a file if it exists", Run: cmdSourceIf},
		{Name: "shift", Args: ArgWysh, Max: 1, Help: "shift macro arguments", Run: cmdShift},
		{Name: "call", Args: ArgWysh, Min: 1, Max: -1, Help: "call a macro", Run: cmdCall},
		{Name: "call_if", Args: ArgWysh, Min: 1, Max: -1, Help: "call a macro if it is defined", Run: cmdCallIf},
		{Name: "define", Args: ArgString, Help: "list, show or define macros", Run: cmdDefine},
		{Name: "undefine", Args: ArgWysh, Min: 1, Max: -1, Help: "delete macros", Run: cmdUndefine},
		{Name: "account", Args: ArgString, Flags: CtxNoSend | CtxNoCompose, Help: "list, define or switch accounts", Run: cmdAccount},
		{Name: "unaccount", Args: ArgWysh, Min: 1, Max: -1, Help: "delete accounts", Run: cmdUnaccount},
		{Name: "echo", Args: ArgWysh, Max: -1, Flags: CtxVput, Help: "print arguments", Run: cmdEcho},
		{Name: "echon", Args: ArgWysh, Max: -1, Flags: CtxVput, Help: "print arguments without newline", Run: cmdEcho},
		{Name: "echoerr", Args: ArgWysh, Max: -1, Help: "print arguments to the error stream", Run: cmdEcho},
		{Name: "echoerrn", Args: ArgWysh, Max: -1, Help: "print arguments to the error stream without newline", Run: cmdEcho},
		{Name: "exit", Args: ArgWysh, Max: 1, Help: "leave without saving changes", Run: cmdExit},
		{Name: "xit", Args: ArgNone, Help: "leave without saving changes", Run: cmdExit},
		{Name: "environ", Args: ArgWysh, Min: 2, Max: 3, Help: "link, set or unset environment variables", Run: cmdEnviron},
		{Name: "elif", Args: ArgString, Flags: CtxCond, Help: "alternative condition", Run: cmdElif},
		{Name: "else", Args: ArgNone, Flags: CtxCond, Help: "final branch", Run: cmdElse},
		{Name: "endif", Args: ArgNone, Flags: CtxCond, Help: "end of if block", Run: cmdEndif},
		{Name: "if", Args: ArgString, Flags: CtxCond, Help: "conditional execution", Run: cmdIf},
		{Name: "ghost", Args: ArgWysh, Max: -1, Help: "list or define command ghosts", Run: cmdGhost},
		{Name: "unghost", Args: ArgWysh, Min: 1, Max: -1, Help: "delete command ghosts", Run: cmdUnghost},
		{Name: "history", Args: ArgWysh, Max: 1, Help: "show or clear the command history", Run: cmdHistory},
		{Name: "help", Args: ArgWysh, Max: 1, Help: "describe commands", Run: cmdHelp},
		{Name: "?", Args: ArgWysh, Max: 1, Help: "describe commands", Run: cmdHelp},
		{Name: "localopts", Args: ArgWysh, Min: 1, Max: 1, Help: "control variable restoring in macros", Run: cmdLocalopts},
		{Name: "quit", Args: ArgNone, Flags: CtxNoHook, Help: "save changes and leave", Run: cmdQuit},
		{Name: "return", Args: ArgWysh, Max: 2, Help: "leave the current macro", Run: cmdReturn},
		{Name: "unset", Args: ArgWysh, Min: 1, Max: -1, Help: "unset variables", Run: cmdUnset},
		{Name: "varshow", Args: ArgWysh, Min: 1, Max: -1, Flags: CtxVput, Help: "show variables in detail", Run: cmdVarshow},
		{Name: "varedit", Args: ArgWysh, Min: 1, Max: -1, Flags: CtxInteractive, Help: "edit variables", Run: cmdVaredit},
		{Name: "vexpr", Args: ArgWysh, Min: 1, Max: -1, Flags: CtxVput, Help: "evaluate an expression", Run: cmdVexpr},
	}
}

// lookupCommand returns the entry named name or the first one it is a
// prefix of.
func lookupCommand(name string) *Command {
	for i := range commands {
		if commands[i].Name == name {
			return &commands[i]
		}
	}
	for i := range commands {
		if strings.HasPrefix(commands[i].Name, name) {
			return &commands[i]
		}
	}
	return nil
}

// CommandNames returns the sorted names of all commands starting with prefix.
func CommandNames(prefix string) []string {
	var names []string
	for _, c := range commands {
		if strings.HasPrefix(c.Name, prefix) {
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)
	return names
}
