// Package localopts records the prior state of variables changed while a
// macro or account runs, so that the changes can be rolled back when the
// invocation ends.
package localopts

import "github.com/nhle/nmail/internal/logging"

// Restorer puts a variable back into a recorded state; prior nil means
// unset. vars.Store implements it.
type Restorer interface {
	Restore(name string, prior *string) error
}

type snapshot struct {
	name  string
	prior *string
}

// Frame is one dynamic scope.
type Frame struct {
	parent *Frame
	unroll bool
	snaps  []snapshot
	seen   map[string]struct{}
	// Owner identifies the call frame that pushed this scope.
	Owner any
}

// Unroll reports whether mutations inside the frame are recorded in it.
func (f *Frame) Unroll() bool { return f.unroll }

// SetUnroll toggles recording; `localopts off` forwards further snapshots
// to the nearest enabled ancestor.
func (f *Frame) SetUnroll(on bool) { f.unroll = on }

// Len returns the number of recorded snapshots.
func (f *Frame) Len() int { return len(f.snaps) }

func (f *Frame) note(name string, prior *string) {
	if f.seen == nil {
		f.seen = make(map[string]struct{})
	}
	if _, ok := f.seen[name]; ok {
		return
	}
	f.seen[name] = struct{}{}
	var p *string
	if prior != nil {
		v := *prior
		p = &v
	}
	f.snaps = append(f.snaps, snapshot{name: name, prior: p})
}

// Stack is the chain of active frames. The zero value is the global scope,
// where nothing is recorded.
type Stack struct {
	cur *Frame
}

// NewStack returns an empty stack.
func NewStack() *Stack { return &Stack{} }

// Push opens a new frame on top of the current one.
func (s *Stack) Push(unroll bool) *Frame {
	f := &Frame{parent: s.cur, unroll: unroll}
	s.cur = f
	return f
}

// NewDetached returns a frame that is not on the stack. Accounts use one
// to collect snapshots across their whole activation.
func NewDetached() *Frame {
	return &Frame{unroll: true}
}

// Current returns the innermost frame, or nil at global scope.
func (s *Stack) Current() *Frame { return s.cur }

// Depth returns the number of frames on the stack.
func (s *Stack) Depth() int {
	n := 0
	for f := s.cur; f != nil; f = f.parent {
		n++
	}
	return n
}

// Note records the prior state of name in the innermost frame that has
// unrolling enabled. At global scope the change is permanent.
func (s *Stack) Note(name string, prior *string) {
	for f := s.cur; f != nil; f = f.parent {
		if f.unroll {
			f.note(name, prior)
			return
		}
	}
}

// PopAndUnroll removes f from the top of the stack and restores every
// variable it recorded.
func (s *Stack) PopAndUnroll(f *Frame, r Restorer) {
	s.pop(f)
	s.Unroll(f, r)
}

// PopInto removes f from the top of the stack and moves its snapshots into
// target, keeping target's own snapshot when both recorded the same name.
func (s *Stack) PopInto(f, target *Frame) {
	s.pop(f)
	if target == nil {
		f.snaps = nil
		return
	}
	for _, sn := range f.snaps {
		target.note(sn.name, sn.prior)
	}
	f.snaps = nil
	f.seen = nil
}

// Unroll replays f's snapshots in reverse order. Restoration runs under a
// temporary parentless frame so enclosing frames never record it. The
// snapshot list is consumed; a second Unroll does nothing.
func (s *Stack) Unroll(f *Frame, r Restorer) {
	snaps := f.snaps
	f.snaps = nil
	f.seen = nil
	if len(snaps) == 0 {
		return
	}

	saved := s.cur
	s.cur = &Frame{}
	defer func() { s.cur = saved }()

	log := logging.Get("localopts")
	for i := len(snaps) - 1; i >= 0; i-- {
		sn := snaps[i]
		if err := r.Restore(sn.name, sn.prior); err != nil {
			log.Warningf("restoring %s: %v", sn.name, err)
		}
	}
}

func (s *Stack) pop(f *Frame) {
	if s.cur != f {
		logging.Get("localopts").Errorf("popping a frame that is not on top")
		for g := s.cur; g != nil; g = g.parent {
			if g == f {
				s.cur = f.parent
				return
			}
		}
		return
	}
	s.cur = f.parent
}
