package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// Message is one message of an open folder.
type Message struct {
	From    string
	To      []string
	Subject string
	Date    time.Time
	Size    int64
	// Body is the first text/plain part, or the raw body when the message
	// is not MIME.
	Body        string
	Attachments []Attachment
	Deleted     bool

	// UID is set for messages loaded from IMAP.
	UID uint32
	// raw and envelope keep mbox messages for rewriting.
	raw      []byte
	envelope string
}

// Attachment holds metadata about a message attachment.
type Attachment struct {
	Filename string
	Size     int64
	MIMEType string
}

// Summary renders the one-line header listing entry.
func (m *Message) Summary() string {
	date := ""
	if !m.Date.IsZero() {
		date = m.Date.Local().Format("Jan _2 15:04")
	}
	from := m.From
	if len(from) > 20 {
		from = from[:20]
	}
	return fmt.Sprintf("%-20s %12s %s", from, date, m.Subject)
}

// Render returns the message as `type` shows it.
func (m *Message) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", m.From)
	if len(m.To) > 0 {
		fmt.Fprintf(&b, "To: %s\n", strings.Join(m.To, ", "))
	}
	if !m.Date.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", m.Date.Format(time.RFC1123Z))
	}
	fmt.Fprintf(&b, "Subject: %s\n\n", m.Subject)
	b.WriteString(m.Body)
	if !strings.HasSuffix(m.Body, "\n") {
		b.WriteByte('\n')
	}
	for _, a := range m.Attachments {
		fmt.Fprintf(&b, "[-- Attachment %s (%s, %d bytes) --]\n", a.Filename, a.MIMEType, a.Size)
	}
	return b.String()
}

// ParseMessage parses an RFC 5322 message using go-message.
func ParseMessage(raw []byte) (*Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}
	defer mr.Close()

	m := &Message{Size: int64(len(raw)), raw: raw}
	m.Subject, _ = mr.Header.Subject()
	m.Date, _ = mr.Header.Date()
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		if from[0].Name != "" {
			m.From = from[0].Name
		} else {
			m.From = from[0].Address
		}
	}
	if to, err := mr.Header.AddressList("To"); err == nil {
		for _, a := range to {
			m.To = append(m.To, a.Address)
		}
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			if m.Body == "" && (contentType == "" || strings.HasPrefix(contentType, "text/plain")) {
				m.Body = string(body)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			m.Attachments = append(m.Attachments, Attachment{
				Filename: filename,
				Size:     int64(len(body)),
				MIMEType: contentType,
			})
		}
	}

	return m, nil
}
