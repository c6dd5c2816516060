package input

import "errors"

var (
	// ErrUnmatchedIf is reported when a source ends inside an if block.
	ErrUnmatchedIf = errors.New("unmatched if")
	// ErrNoIf is returned by elif/else/endif without an open if block.
	ErrNoIf = errors.New("no matching if")
	// ErrElseSeen is returned by elif/else after an else branch.
	ErrElseSeen = errors.New("else already seen")
)

// IsStructural reports whether err is a condition nesting error.
func IsStructural(err error) bool {
	return errors.Is(err, ErrUnmatchedIf) || errors.Is(err, ErrNoIf) || errors.Is(err, ErrElseSeen)
}

// Cond evaluates a condition. release, if non-nil, is called when the
// branch the condition selected ends.
type Cond func() (ok bool, release func(), err error)

type condEntry struct {
	active     bool
	taken      bool
	parentSkip bool
	sawElse    bool
	rel        func()
}

func (e *condEntry) release() {
	if e.rel != nil {
		rel := e.rel
		e.rel = nil
		rel()
	}
}

// Skipping reports whether commands of the active source are currently
// suppressed by a false condition.
func (s *Stack) Skipping() bool {
	n := s.Top()
	if n == nil || len(n.cond) == 0 {
		return false
	}
	return !n.cond[len(n.cond)-1].active
}

// CondDepth returns the number of open if blocks in the active source.
func (s *Stack) CondDepth() int {
	n := s.Top()
	if n == nil {
		return 0
	}
	return len(n.cond)
}

// If opens a block. The condition is not evaluated while skipping. A
// condition that fails to evaluate opens a block whose branches all skip.
func (s *Stack) If(c Cond) error {
	n := s.Top()
	if n == nil {
		return ErrEmpty
	}
	e := &condEntry{parentSkip: s.Skipping()}
	if !e.parentSkip {
		ok, rel, err := c()
		if err != nil {
			if rel != nil {
				rel()
			}
			e.taken = true
			n.cond = append(n.cond, e)
			return err
		}
		e.active, e.taken, e.rel = ok, ok, rel
		if !ok {
			e.release()
		}
	}
	n.cond = append(n.cond, e)
	return nil
}

func (s *Stack) topCond() (*condEntry, error) {
	n := s.Top()
	if n == nil || len(n.cond) == 0 {
		return nil, ErrNoIf
	}
	return n.cond[len(n.cond)-1], nil
}

// Elif switches to an alternative branch.
func (s *Stack) Elif(c Cond) error {
	e, err := s.topCond()
	if err != nil {
		return err
	}
	if e.sawElse {
		return ErrElseSeen
	}
	e.release()
	if e.parentSkip || e.taken {
		e.active = false
		return nil
	}
	ok, rel, err := c()
	if err != nil {
		if rel != nil {
			rel()
		}
		e.active, e.taken = false, true
		return err
	}
	e.active, e.taken, e.rel = ok, ok, rel
	if !ok {
		e.release()
	}
	return nil
}

// Else switches to the final branch.
func (s *Stack) Else() error {
	e, err := s.topCond()
	if err != nil {
		return err
	}
	if e.sawElse {
		return ErrElseSeen
	}
	e.release()
	e.sawElse = true
	e.active = !e.parentSkip && !e.taken
	e.taken = true
	return nil
}

// Endif closes the innermost block.
func (s *Stack) Endif() error {
	e, err := s.topCond()
	if err != nil {
		return err
	}
	e.release()
	n := s.Top()
	n.cond = n.cond[:len(n.cond)-1]
	return nil
}
