package mailbox

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nhle/nmail/internal/logging"
)

// OpenMbox loads the mbox file at path. A missing file is an empty folder.
func OpenMbox(path string, readOnly bool) (*Box, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewBox(path, nil, readOnly, mboxCommit(path)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening mbox %s: %w", path, err)
	}
	defer f.Close()

	msgs, err := ReadMbox(f)
	if err != nil {
		return nil, fmt.Errorf("reading mbox %s: %w", path, err)
	}
	return NewBox(path, msgs, readOnly, mboxCommit(path)), nil
}

// ReadMbox splits r into messages at "From " lines that start the file or
// follow an empty line.
func ReadMbox(r io.Reader) ([]*Message, error) {
	var (
		msgs     []*Message
		cur      bytes.Buffer
		envelope string
		inMsg    bool
		blank    = true
	)
	log := logging.Get("mailbox")

	flush := func() {
		if !inMsg {
			return
		}
		raw := bytes.TrimRight(cur.Bytes(), "\n")
		raw = append(append([]byte(nil), raw...), '\n')
		m, err := ParseMessage(raw)
		if err != nil {
			log.Warningf("skipping unparsable message %d: %v", len(msgs)+1, err)
		} else {
			m.envelope = envelope
			msgs = append(msgs, m)
		}
		cur.Reset()
	}

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			if blank && strings.HasPrefix(line, "From ") {
				flush()
				envelope = strings.TrimRight(line, "\r\n")
				inMsg = true
			} else if inMsg {
				if strings.HasPrefix(line, ">From ") {
					line = line[1:]
				}
				cur.WriteString(line)
			}
			blank = strings.TrimRight(line, "\r\n") == ""
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	flush()
	return msgs, nil
}

// WriteMbox writes msgs to w, skipping deleted ones.
func WriteMbox(w io.Writer, msgs []*Message) error {
	bw := bufio.NewWriter(w)
	for _, m := range msgs {
		if m.Deleted {
			continue
		}
		env := m.envelope
		if env == "" {
			env = "From MAILER-DAEMON " + time.Now().UTC().Format(time.ANSIC)
		}
		fmt.Fprintf(bw, "%s\n", env)
		for _, line := range strings.SplitAfter(string(m.raw), "\n") {
			if strings.HasPrefix(line, "From ") {
				bw.WriteByte('>')
			}
			bw.WriteString(line)
		}
		if !bytes.HasSuffix(m.raw, []byte("\n")) {
			bw.WriteByte('\n')
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func mboxCommit(path string) CommitFunc {
	return func(_ context.Context, msgs []*Message) error {
		tmp, err := os.CreateTemp(filepath.Dir(path), ".nmail-*")
		if err != nil {
			return fmt.Errorf("creating temporary mbox: %w", err)
		}
		defer os.Remove(tmp.Name())

		if err := WriteMbox(tmp, msgs); err != nil {
			tmp.Close()
			return fmt.Errorf("writing mbox: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("writing mbox: %w", err)
		}
		if err := os.Rename(tmp.Name(), path); err != nil {
			return fmt.Errorf("replacing mbox: %w", err)
		}
		return nil
	}
}
