package mailbox

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoMessages is returned when a message list selects nothing.
var ErrNoMessages = errors.New("no applicable messages")

// Select resolves a message list against b and returns 1-based message
// numbers in ascending order. With deleted set, only deleted messages are
// eligible (as `undelete` needs); otherwise only undeleted ones are.
//
// Recognised items: n, n-m, `.` (current), `^` (first), `$` (last), `*`
// (all) and `:d` (deleted ones).
func Select(b *Box, spec string, deleted bool) ([]int, error) {
	fields := strings.FieldsFunc(spec, func(r rune) bool { return r == ' ' || r == '\t' || r == ',' })
	if len(fields) == 0 {
		return nil, ErrNoMessages
	}

	eligible := func(n int) bool { return b.msgs[n-1].Deleted == deleted }
	picked := make(map[int]bool)
	add := func(n int, explicit bool) error {
		if n < 1 || n > len(b.msgs) {
			return fmt.Errorf("%d: invalid message number", n)
		}
		if !eligible(n) {
			if explicit {
				return fmt.Errorf("%d: inappropriate message", n)
			}
			return nil
		}
		picked[n] = true
		return nil
	}

	for _, f := range fields {
		switch f {
		case ".":
			if err := add(b.cur, true); err != nil {
				return nil, err
			}
		case "^", "$":
			var order []int
			for i := 1; i <= len(b.msgs); i++ {
				order = append(order, i)
			}
			if f == "$" {
				for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
					order[i], order[j] = order[j], order[i]
				}
			}
			for _, n := range order {
				if eligible(n) {
					picked[n] = true
					break
				}
			}
		case "*":
			for i := 1; i <= len(b.msgs); i++ {
				_ = add(i, false)
			}
		case ":d":
			for i := 1; i <= len(b.msgs); i++ {
				if b.msgs[i-1].Deleted && eligible(i) {
					picked[i] = true
				}
			}
		default:
			lo, hi, err := parseRange(f)
			if err != nil {
				return nil, err
			}
			for n := lo; n <= hi; n++ {
				if err := add(n, lo == hi); err != nil {
					return nil, err
				}
			}
		}
	}

	if len(picked) == 0 {
		return nil, ErrNoMessages
	}
	out := make([]int, 0, len(picked))
	for i := 1; i <= len(b.msgs); i++ {
		if picked[i] {
			out = append(out, i)
		}
	}
	return out, nil
}

func parseRange(f string) (int, int, error) {
	lo, hi, isRange := strings.Cut(f, "-")
	a, err := strconv.Atoi(lo)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: invalid message list item", f)
	}
	if !isRange {
		return a, a, nil
	}
	b, err := strconv.Atoi(hi)
	if err != nil || b < a {
		return 0, 0, fmt.Errorf("%s: invalid message range", f)
	}
	return a, b, nil
}
