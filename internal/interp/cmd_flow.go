package interp

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nhle/nmail/internal/input"
	"github.com/nhle/nmail/internal/shellword"
)

func cmdIf(_ context.Context, ip *Interpreter, a *Args) error {
	return ip.Input.If(ip.condition("if", a.Raw))
}

func cmdElif(_ context.Context, ip *Interpreter, a *Args) error {
	return ip.Input.Elif(ip.condition("elif", a.Raw))
}

func cmdElse(_ context.Context, ip *Interpreter, _ *Args) error {
	return ip.Input.Else()
}

func cmdEndif(_ context.Context, ip *Interpreter, _ *Args) error {
	return ip.Input.Endif()
}

// condition defers expansion and evaluation of raw until the block
// actually needs the result.
func (ip *Interpreter) condition(cmd, raw string) input.Cond {
	return func() (bool, func(), error) {
		words, err := shellword.Parse(raw, ip)
		if err != nil {
			return false, nil, fmt.Errorf("%s: %w", cmd, err)
		}
		if len(words) == 0 {
			return false, nil, usageErr(cmd, "missing condition")
		}
		c := &condParser{ip: ip, cmd: cmd, toks: words}
		ok, err := c.expr()
		if err == nil && c.pos < len(c.toks) {
			err = c.errorf("unexpected %q", c.toks[c.pos])
		}
		if err != nil {
			return false, nil, err
		}
		if ok && c.match != nil {
			return true, ip.pushRegexFrame(c.match), nil
		}
		return ok, nil, nil
	}
}

type condParser struct {
	ip    *Interpreter
	cmd   string
	toks  []string
	pos   int
	match []string
}

func (c *condParser) errorf(format string, args ...any) error {
	return usageErr(c.cmd, fmt.Sprintf(format, args...))
}

func (c *condParser) peek() (string, bool) {
	if c.pos >= len(c.toks) {
		return "", false
	}
	return c.toks[c.pos], true
}

func (c *condParser) next() (string, error) {
	t, ok := c.peek()
	if !ok {
		return "", c.errorf("condition ends unexpectedly")
	}
	c.pos++
	return t, nil
}

func (c *condParser) expr() (bool, error) {
	v, err := c.and()
	if err != nil {
		return false, err
	}
	for {
		t, ok := c.peek()
		if !ok || t != "||" {
			return v, nil
		}
		c.pos++
		r, err := c.and()
		if err != nil {
			return false, err
		}
		v = v || r
	}
}

func (c *condParser) and() (bool, error) {
	v, err := c.unary()
	if err != nil {
		return false, err
	}
	for {
		t, ok := c.peek()
		if !ok || t != "&&" {
			return v, nil
		}
		c.pos++
		r, err := c.unary()
		if err != nil {
			return false, err
		}
		v = v && r
	}
}

func (c *condParser) unary() (bool, error) {
	t, err := c.next()
	if err != nil {
		return false, err
	}
	switch t {
	case "!":
		v, err := c.unary()
		return !v, err
	case "[":
		v, err := c.expr()
		if err != nil {
			return false, err
		}
		if t, _ := c.next(); t != "]" {
			return false, c.errorf(`missing "]"`)
		}
		return v, nil
	case "-z", "-n":
		arg, err := c.next()
		if err != nil {
			return false, err
		}
		return (arg == "") == (t == "-z"), nil
	case "-N", "-Z":
		arg, err := c.next()
		if err != nil {
			return false, err
		}
		return c.ip.Vars.IsSet(arg) == (t == "-N"), nil
	}

	if op, ok := c.peek(); ok && isCondOp(op) {
		c.pos++
		rhs, err := c.next()
		if err != nil {
			return false, err
		}
		return c.compare(t, op, rhs)
	}
	return c.word(t)
}

func isCondOp(op string) bool {
	base := strings.TrimSuffix(op, "?")
	switch base {
	case "==", "!=", "=%", "!%", "=~", "!~", "<", ">", "<=", ">=",
		"-eq", "-ne", "-lt", "-le", "-gt", "-ge":
		return true
	}
	return false
}

func (c *condParser) compare(lhs, op, rhs string) (bool, error) {
	fold := strings.HasSuffix(op, "?")
	op = strings.TrimSuffix(op, "?")

	if strings.HasPrefix(op, "-") {
		l, lerr := strconv.ParseInt(lhs, 0, 64)
		r, rerr := strconv.ParseInt(rhs, 0, 64)
		if lerr != nil || rerr != nil {
			return false, c.errorf("%s needs numbers: %q %q", op, lhs, rhs)
		}
		switch op {
		case "-eq":
			return l == r, nil
		case "-ne":
			return l != r, nil
		case "-lt":
			return l < r, nil
		case "-le":
			return l <= r, nil
		case "-gt":
			return l > r, nil
		}
		return l >= r, nil
	}

	if op == "=~" || op == "!~" {
		expr := rhs
		if fold {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return false, c.errorf("invalid regular expression %q: %v", rhs, err)
		}
		m := re.FindStringSubmatch(lhs)
		if m != nil && op == "=~" {
			c.match = m
		}
		return (m != nil) == (op == "=~"), nil
	}

	if fold {
		lhs, rhs = strings.ToLower(lhs), strings.ToLower(rhs)
	}
	switch op {
	case "==":
		return lhs == rhs, nil
	case "!=":
		return lhs != rhs, nil
	case "=%":
		return strings.Contains(lhs, rhs), nil
	case "!%":
		return !strings.Contains(lhs, rhs), nil
	case "<":
		return lhs < rhs, nil
	case ">":
		return lhs > rhs, nil
	case "<=":
		return lhs <= rhs, nil
	}
	return lhs >= rhs, nil
}

// word evaluates a lone operand.
func (c *condParser) word(t string) (bool, error) {
	switch strings.ToLower(t) {
	case "":
		return false, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "r", "receive":
		return !c.ip.sendMode, nil
	case "s", "send":
		return c.ip.sendMode, nil
	case "t", "term":
		return c.ip.interactive, nil
	}
	if n, err := strconv.ParseInt(t, 0, 64); err == nil {
		return n != 0, nil
	}
	return false, c.errorf("invalid condition %q", t)
}
