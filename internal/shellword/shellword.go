// Package shellword splits command lines into words using sh(1)-like
// quoting and expands parameter references while doing so.
package shellword

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Expander resolves parameter references.
type Expander interface {
	// Lookup returns the value of a variable or special parameter.
	Lookup(name string) (string, bool)
	// Positional returns the argument vector of the active call frame.
	Positional() ([]string, bool)
}

// SyntaxError describes a malformed line.
type SyntaxError struct {
	Pos    int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Reason)
}

// IsSyntaxError reports whether err is a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

type parser struct {
	in    string
	pos   int
	x     Expander
	words []string
	cur   strings.Builder
	// have is set once the current word exists, even if empty ("").
	have bool
}

// Split parses line without expansion; `$` is kept literally.
func Split(line string) ([]string, error) {
	return Parse(line, nil)
}

// Parse splits line into words, expanding parameters through x. Unquoted
// expansions that yield nothing produce no word; `$@` and `$*` produce one
// word per argument. As in sh(1), a positional reference without braces
// takes a single digit: $10 is $1 followed by 0, ${10} is the tenth
// argument.
func Parse(line string, x Expander) ([]string, error) {
	p := &parser{in: line, x: x}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.words, nil
}

func (p *parser) flush() {
	if p.have {
		p.words = append(p.words, p.cur.String())
	}
	p.cur.Reset()
	p.have = false
}

func (p *parser) put(s string) {
	p.cur.WriteString(s)
	p.have = true
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' }

func (p *parser) run() error {
	for p.pos < len(p.in) {
		c := p.in[p.pos]
		switch {
		case isSpace(c):
			p.flush()
			p.pos++
		case c == '#' && !p.have:
			p.pos = len(p.in)
		case c == '\'':
			p.have = true
			if err := p.single(); err != nil {
				return err
			}
		case c == '"':
			p.have = true
			if err := p.double(); err != nil {
				return err
			}
		case c == '\\':
			p.pos++
			if p.pos >= len(p.in) {
				return nil
			}
			_, n := utf8.DecodeRuneInString(p.in[p.pos:])
			p.put(p.in[p.pos : p.pos+n])
			p.pos += n
		case c == '$' && p.pos+1 < len(p.in) && p.in[p.pos+1] == '\'':
			p.have = true
			p.pos += 2
			if err := p.dollarSingle(); err != nil {
				return err
			}
		case c == '$':
			if err := p.dollar(false); err != nil {
				return err
			}
		default:
			p.cur.WriteByte(c)
			p.have = true
			p.pos++
		}
	}
	p.flush()
	return nil
}

func (p *parser) single() error {
	start := p.pos
	end := strings.IndexByte(p.in[p.pos+1:], '\'')
	if end < 0 {
		return &SyntaxError{Pos: start, Reason: "unterminated single quote"}
	}
	p.cur.WriteString(p.in[p.pos+1 : p.pos+1+end])
	p.pos += end + 2
	return nil
}

func (p *parser) double() error {
	start := p.pos
	p.pos++
	for p.pos < len(p.in) {
		c := p.in[p.pos]
		switch c {
		case '"':
			p.pos++
			return nil
		case '\\':
			if p.pos+1 < len(p.in) && strings.IndexByte("\"\\$`", p.in[p.pos+1]) >= 0 {
				p.cur.WriteByte(p.in[p.pos+1])
				p.pos += 2
				continue
			}
			p.cur.WriteByte(c)
			p.pos++
		case '$':
			if err := p.dollar(true); err != nil {
				return err
			}
		default:
			p.cur.WriteByte(c)
			p.pos++
		}
	}
	return &SyntaxError{Pos: start, Reason: "unterminated double quote"}
}

func isNameByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// dollar expands the reference at p.pos, which points at '$'.
func (p *parser) dollar(quoted bool) error {
	start := p.pos
	p.pos++
	if p.pos >= len(p.in) {
		p.put("$")
		return nil
	}
	var name string
	c := p.in[p.pos]
	switch {
	case c == '{':
		end := strings.IndexByte(p.in[p.pos:], '}')
		if end < 0 {
			return &SyntaxError{Pos: start, Reason: "unterminated ${"}
		}
		name = p.in[p.pos+1 : p.pos+end]
		p.pos += end + 1
		if name == "" {
			return &SyntaxError{Pos: start, Reason: "empty ${}"}
		}
	case strings.IndexByte("?!#*@", c) >= 0 || (c >= '0' && c <= '9'):
		name = string(c)
		p.pos++
	case c == '^':
		j := p.pos + 1
		for j < len(p.in) && (isNameByte(p.in[j]) || p.in[j] == '-') {
			j++
		}
		name = p.in[p.pos:j]
		p.pos = j
	case isNameByte(c):
		j := p.pos
		for j < len(p.in) && isNameByte(p.in[j]) {
			j++
		}
		name = p.in[p.pos:j]
		p.pos = j
	default:
		if quoted {
			p.cur.WriteByte('$')
		} else {
			p.put("$")
		}
		return nil
	}

	if p.x == nil {
		p.put(p.in[start:p.pos])
		return nil
	}
	if name == "@" || name == "*" {
		args, ok := p.x.Positional()
		if !ok {
			return nil
		}
		if quoted && name == "*" {
			p.cur.WriteString(strings.Join(args, " "))
			return nil
		}
		for i, a := range args {
			if i > 0 {
				p.flush()
			}
			p.put(a)
		}
		return nil
	}
	v, ok := p.x.Lookup(name)
	if !ok || v == "" {
		return nil
	}
	if quoted {
		p.cur.WriteString(v)
	} else {
		p.put(v)
	}
	return nil
}

// dollarSingle decodes $'...' escapes; p.pos points after the opening quote.
func (p *parser) dollarSingle() error {
	start := p.pos - 2
	for p.pos < len(p.in) {
		c := p.in[p.pos]
		if c == '\'' {
			p.pos++
			return nil
		}
		if c != '\\' {
			p.cur.WriteByte(c)
			p.pos++
			continue
		}
		p.pos++
		if p.pos >= len(p.in) {
			break
		}
		e := p.in[p.pos]
		p.pos++
		switch e {
		case 'a':
			p.cur.WriteByte('\a')
		case 'b':
			p.cur.WriteByte('\b')
		case 'e', 'E':
			p.cur.WriteByte(0x1b)
		case 'f':
			p.cur.WriteByte('\f')
		case 'n':
			p.cur.WriteByte('\n')
		case 'r':
			p.cur.WriteByte('\r')
		case 't':
			p.cur.WriteByte('\t')
		case 'v':
			p.cur.WriteByte('\v')
		case 'c':
			if p.pos < len(p.in) {
				p.cur.WriteByte(p.in[p.pos] & 0x1f)
				p.pos++
			}
		case '0', '1', '2', '3', '4', '5', '6', '7':
			p.pos--
			p.cur.WriteByte(byte(p.number(8, 3)))
		case 'x':
			p.cur.WriteByte(byte(p.number(16, 2)))
		case 'u':
			p.cur.WriteRune(rune(p.number(16, 4)))
		case 'U':
			p.cur.WriteRune(rune(p.number(16, 8)))
		default:
			p.cur.WriteByte(e)
		}
	}
	return &SyntaxError{Pos: start, Reason: "unterminated $' quote"}
}

func (p *parser) number(base, max int) uint64 {
	j := p.pos
	for j < len(p.in) && j-p.pos < max && strings.IndexByte("0123456789abcdefABCDEF"[:digits(base)], p.in[j]) >= 0 {
		j++
	}
	n, _ := strconv.ParseUint(p.in[p.pos:j], base, 32)
	p.pos = j
	return n
}

func digits(base int) int {
	if base == 8 {
		return 8
	}
	return 22
}

// Quote returns s in a form that Parse turns back into the single word s.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(isNameByte(c) || strings.IndexByte("-+=.,/:@%^~", c) >= 0) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
