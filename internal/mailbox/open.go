package mailbox

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// PasswordFunc supplies the password for an IMAP login that did not carry
// one in its URL.
type PasswordFunc func(scheme, user, host string) (string, error)

// Opener opens folders by name: imap:// and imaps:// URLs select a remote
// mailbox, everything else is an mbox path.
type Opener struct {
	Password PasswordFunc
	ReadOnly bool
}

// IsRemote reports whether name refers to an IMAP mailbox.
func IsRemote(name string) bool {
	return strings.HasPrefix(name, "imap://") || strings.HasPrefix(name, "imaps://")
}

// Open loads the folder called name.
func (o *Opener) Open(ctx context.Context, name string) (*Box, error) {
	if !IsRemote(name) {
		return OpenMbox(name, o.ReadOnly)
	}

	u, err := url.Parse(name)
	if err != nil {
		return nil, fmt.Errorf("parsing folder URL: %w", err)
	}
	if u.User == nil || u.User.Username() == "" {
		return nil, fmt.Errorf("%s: missing user name", name)
	}
	user := u.User.Username()
	pass, ok := u.User.Password()
	if !ok {
		if o.Password == nil {
			return nil, fmt.Errorf("%s: no password available", name)
		}
		pass, err = o.Password(u.Scheme, user, u.Hostname())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	tls := u.Scheme == "imaps"
	port := u.Port()
	if port == "" {
		port = "143"
		if tls {
			port = "993"
		}
	}
	mailbox := strings.TrimPrefix(u.Path, "/")
	if mailbox == "" {
		mailbox = "INBOX"
	}

	c := NewIMAPClient(u.Hostname(), port, user, pass, tls)
	msgs, err := c.FetchAll(ctx, mailbox)
	if err != nil {
		return nil, err
	}
	return NewBox(name, msgs, o.ReadOnly, imapCommit(c, mailbox)), nil
}
