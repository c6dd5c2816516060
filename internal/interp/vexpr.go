package interp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"unicode"

	"golang.org/x/sys/unix"
)

// cmdVexpr evaluates a numeric or string expression and prints the result.
func cmdVexpr(_ context.Context, ip *Interpreter, a *Args) error {
	op, args := a.Words[0], a.Words[1:]
	res, err := vexpr(op, args)
	if err != nil {
		return err
	}
	fmt.Fprintln(ip.out, res)
	return nil
}

func vexprErr(reason string, errno syscall.Errno) error {
	return &cmdError{cmd: "vexpr", reason: reason, errno: errno}
}

func vexpr(op string, args []string) (string, error) {
	want := func(n int) error {
		if len(args) != n {
			return vexprErr(fmt.Sprintf("%s takes %d operand(s)", op, n), unix.EINVAL)
		}
		return nil
	}

	switch op {
	case "length":
		if err := want(1); err != nil {
			return "", err
		}
		return strconv.Itoa(len(args[0])), nil
	case "find", "ifind":
		if err := want(2); err != nil {
			return "", err
		}
		s, sub := args[0], args[1]
		if op == "ifind" {
			s, sub = strings.ToLower(s), strings.ToLower(sub)
		}
		i := strings.Index(s, sub)
		if i < 0 {
			return "", vexprErr(fmt.Sprintf("%q not found", args[1]), unix.ENOENT)
		}
		return strconv.Itoa(i), nil
	case "substring":
		if len(args) != 2 && len(args) != 3 {
			return "", vexprErr("substring takes a string, an offset and an optional length", unix.EINVAL)
		}
		return substring(args)
	case "trim":
		if err := want(1); err != nil {
			return "", err
		}
		return strings.TrimSpace(args[0]), nil
	case "trim-front":
		if err := want(1); err != nil {
			return "", err
		}
		return strings.TrimLeftFunc(args[0], unicode.IsSpace), nil
	case "trim-end":
		if err := want(1); err != nil {
			return "", err
		}
		return strings.TrimRightFunc(args[0], unicode.IsSpace), nil
	case "makeprint":
		if err := want(1); err != nil {
			return "", err
		}
		return strings.Map(func(r rune) rune {
			if unicode.IsPrint(r) {
				return r
			}
			return '?'
		}, args[0]), nil
	case "regex", "iregex":
		if len(args) != 2 && len(args) != 3 {
			return "", vexprErr(op+" takes a string, an expression and an optional replacement", unix.EINVAL)
		}
		return regex(op == "iregex", args)
	}

	sat := strings.HasSuffix(op, "@")
	op = strings.TrimSuffix(op, "@")
	switch op {
	case "=", "~":
		if err := want(1); err != nil {
			return "", err
		}
		n, err := vexprNum(args[0], sat)
		if err != nil {
			return "", err
		}
		if op == "~" {
			n = ^n
		}
		return strconv.FormatInt(n, 10), nil
	case "+", "-", "*", "/", "%", "|", "&", "^", "<<", ">>":
		if err := want(2); err != nil {
			return "", err
		}
		l, err := vexprNum(args[0], sat)
		if err != nil {
			return "", err
		}
		r, err := vexprNum(args[1], sat)
		if err != nil {
			return "", err
		}
		n, err := arith(op, l, r, sat)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	}
	return "", vexprErr(fmt.Sprintf("unknown operator %q", op), unix.EINVAL)
}

// vexprNum parses an operand. An empty operand is zero; out of range
// values saturate when sat is set.
func vexprNum(s string, sat bool) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 0, 64)
	if err == nil {
		return n, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		if sat {
			if strings.HasPrefix(s, "-") {
				return math.MinInt64, nil
			}
			return math.MaxInt64, nil
		}
		return 0, vexprErr(fmt.Sprintf("%q overflows", s), unix.EOVERFLOW)
	}
	return 0, vexprErr(fmt.Sprintf("%q is not a number", s), unix.EINVAL)
}

func arith(op string, l, r int64, sat bool) (int64, error) {
	overflow := func(positive bool) (int64, error) {
		if !sat {
			return 0, vexprErr("integer overflow", unix.EOVERFLOW)
		}
		if positive {
			return math.MaxInt64, nil
		}
		return math.MinInt64, nil
	}

	switch op {
	case "+":
		s := l + r
		if (l > 0 && r > 0 && s < 0) || (l < 0 && r < 0 && s >= 0) {
			return overflow(l > 0)
		}
		return s, nil
	case "-":
		s := l - r
		if (l >= 0 && r < 0 && s < 0) || (l < 0 && r > 0 && s >= 0) {
			return overflow(l >= 0)
		}
		return s, nil
	case "*":
		if l == 0 || r == 0 {
			return 0, nil
		}
		hi, lo := bits.Mul64(abs64(l), abs64(r))
		neg := (l < 0) != (r < 0)
		if hi != 0 || (!neg && lo > math.MaxInt64) || (neg && lo > 1<<63) {
			return overflow(!neg)
		}
		if neg {
			return int64(-lo), nil
		}
		return int64(lo), nil
	case "/", "%":
		if r == 0 {
			return 0, vexprErr("division by zero", unix.EDOM)
		}
		if l == math.MinInt64 && r == -1 {
			if op == "%" {
				return 0, nil
			}
			return overflow(true)
		}
		if op == "/" {
			return l / r, nil
		}
		return l % r, nil
	case "|":
		return l | r, nil
	case "&":
		return l & r, nil
	case "^":
		return l ^ r, nil
	}
	if r < 0 || r > 63 {
		return 0, vexprErr(fmt.Sprintf("invalid shift count %d", r), unix.EDOM)
	}
	if op == "<<" {
		return l << uint(r), nil
	}
	return l >> uint(r), nil
}

func abs64(n int64) uint64 {
	if n < 0 {
		return uint64(-n)
	}
	return uint64(n)
}

func substring(args []string) (string, error) {
	s := args[0]
	start, err := strconv.Atoi(args[1])
	if err != nil {
		return "", vexprErr(fmt.Sprintf("invalid offset %q", args[1]), unix.EINVAL)
	}
	if start < 0 {
		start += len(s)
	}
	if start < 0 || start > len(s) {
		return "", vexprErr(fmt.Sprintf("offset %s out of range", args[1]), unix.ERANGE)
	}
	end := len(s)
	if len(args) == 3 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n < 0 {
			return "", vexprErr(fmt.Sprintf("invalid length %q", args[2]), unix.EINVAL)
		}
		if start+n < end {
			end = start + n
		}
	}
	return s[start:end], nil
}

// regex prints the offset of the first match, or the input with every
// match replaced when a replacement ($1 style references) is given.
func regex(fold bool, args []string) (string, error) {
	expr := args[1]
	if fold {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return "", vexprErr(fmt.Sprintf("invalid regular expression %q: %v", args[1], err), unix.EINVAL)
	}
	loc := re.FindStringIndex(args[0])
	if loc == nil {
		return "", vexprErr("no match", unix.ENOENT)
	}
	if len(args) == 2 {
		return strconv.Itoa(loc[0]), nil
	}
	return re.ReplaceAllString(args[0], args[2]), nil
}
