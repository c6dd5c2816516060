package mailbox

import (
	"context"
	"fmt"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// IMAPClient wraps go-imap v2 for loading and updating one mailbox.
type IMAPClient struct {
	host     string
	port     string
	username string
	password string
	tls      bool
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(
	host, port, username, password string, tls bool,
) *IMAPClient {
	return &IMAPClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
	}
}

// AuthError reports a rejected login.
type AuthError struct {
	User string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.User, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout on the returned client.
func (c *IMAPClient) Connect(
	_ context.Context,
) (*imapclient.Client, error) {
	addr := c.host + ":" + c.port

	var client *imapclient.Client
	var err error

	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{User: c.username, Err: err}
	}

	return client, nil
}

// FetchAll selects mailbox and loads every message in it.
func (c *IMAPClient) FetchAll(
	ctx context.Context, mailbox string,
) ([]*Message, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}
	fetchOpts := &imap.FetchOptions{
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	var msgs []*Message
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		raw := buf.FindBodySection(bodySection)
		if raw == nil {
			continue
		}
		m, err := ParseMessage(raw)
		if err != nil {
			continue
		}
		m.UID = uint32(buf.UID)
		for _, f := range buf.Flags {
			if f == imap.FlagDeleted {
				m.Deleted = true
			}
		}
		msgs = append(msgs, m)
	}

	if err := fetchCmd.Close(); err != nil {
		return msgs, fmt.Errorf("fetching messages: %w", err)
	}
	return msgs, nil
}

// Expunge flags the given messages \Deleted and expunges the mailbox.
func (c *IMAPClient) Expunge(
	ctx context.Context, mailbox string, uids []imap.UID,
) error {
	if len(uids) == 0 {
		return nil
	}
	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	storeCmd := client.Store(imap.UIDSetNum(uids...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("flagging messages deleted: %w", err)
	}

	if err := client.Expunge().Close(); err != nil {
		return fmt.Errorf("expunging %s: %w", mailbox, err)
	}
	return nil
}

func imapCommit(c *IMAPClient, mailbox string) CommitFunc {
	return func(ctx context.Context, msgs []*Message) error {
		var uids []imap.UID
		for _, m := range msgs {
			if m.Deleted && m.UID != 0 {
				uids = append(uids, imap.UID(m.UID))
			}
		}
		return c.Expunge(ctx, mailbox, uids)
	}
}
