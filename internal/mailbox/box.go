// Package mailbox provides the folders the interpreter's mail commands
// operate on: mbox files and IMAP mailboxes loaded into memory.
package mailbox

import (
	"context"
	"fmt"
)

// CommitFunc writes deletions back to the folder's backend.
type CommitFunc func(ctx context.Context, msgs []*Message) error

// Box is an open folder.
type Box struct {
	name     string
	readOnly bool
	msgs     []*Message
	cur      int
	commit   CommitFunc
}

// NewBox returns a folder holding msgs. commit may be nil for folders
// whose changes are discarded.
func NewBox(name string, msgs []*Message, readOnly bool, commit CommitFunc) *Box {
	b := &Box{name: name, readOnly: readOnly, msgs: msgs, commit: commit}
	if len(msgs) > 0 {
		b.cur = 1
	}
	return b
}

// Name returns the folder name as given to `folder`.
func (b *Box) Name() string { return b.name }

// ReadOnly reports whether messages may be deleted.
func (b *Box) ReadOnly() bool { return b.readOnly || b.commit == nil }

// Len returns the number of messages, deleted ones included.
func (b *Box) Len() int { return len(b.msgs) }

// Message returns message n (1-based).
func (b *Box) Message(n int) (*Message, error) {
	if n < 1 || n > len(b.msgs) {
		return nil, fmt.Errorf("%d: invalid message number", n)
	}
	return b.msgs[n-1], nil
}

// Current returns the current message number, 0 for an empty folder.
func (b *Box) Current() int { return b.cur }

// SetCurrent makes n the current message.
func (b *Box) SetCurrent(n int) {
	if n >= 1 && n <= len(b.msgs) {
		b.cur = n
	}
}

// NextUndeleted returns the first undeleted message after n, or 0.
func (b *Box) NextUndeleted(n int) int {
	for i := n + 1; i <= len(b.msgs); i++ {
		if !b.msgs[i-1].Deleted {
			return i
		}
	}
	return 0
}

// Deleted returns the number of messages marked deleted.
func (b *Box) Deleted() int {
	n := 0
	for _, m := range b.msgs {
		if m.Deleted {
			n++
		}
	}
	return n
}

// Close releases the folder; with commit, deletions are written back.
func (b *Box) Close(ctx context.Context, commit bool) error {
	if !commit || b.ReadOnly() || b.Deleted() == 0 {
		return nil
	}
	if err := b.commit(ctx, b.msgs); err != nil {
		return fmt.Errorf("updating %s: %w", b.name, err)
	}
	return nil
}
