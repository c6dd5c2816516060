package input

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func readAll(t *testing.T, s *Stack) []string {
	t.Helper()
	var out []string
	for {
		l, err := s.ReadLine()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("ReadLine: %v", err)
		}
		out = append(out, l.Text)
	}
}

func TestQueueBeforeNativeContent(t *testing.T) {
	s := NewStack()
	n := NewLinesNode(KindMacro, "m", []string{"one", "two"})
	if err := s.Push(n); err != nil {
		t.Fatal(err)
	}
	s.Inject("first", false)
	s.Inject("second", true)

	l, _ := s.ReadLine()
	if l.Text != "first" || l.Recallable {
		t.Errorf("got %+v", l)
	}
	l, _ = s.ReadLine()
	if l.Text != "second" || !l.Recallable {
		t.Errorf("got %+v", l)
	}
	got := readAll(t, s)
	if strings.Join(got, ",") != "one,two" {
		t.Errorf("native lines = %v", got)
	}
}

func TestForceEOF(t *testing.T) {
	s := NewStack()
	_ = s.Push(NewLinesNode(KindMacro, "m", []string{"a", "b"}))
	_, _ = s.ReadLine()
	s.ForceEOF()
	if _, err := s.ReadLine(); !errors.Is(err, io.EOF) {
		t.Errorf("ReadLine after ForceEOF = %v", err)
	}
}

func TestContinuationLines(t *testing.T) {
	src := "echo a\\\n b\necho c\\\\\necho d\\\\\\\ne\nlast\\"
	s := NewStack()
	_ = s.Push(NewReaderNode(KindFile, "rc", strings.NewReader(src)))
	got := readAll(t, s)
	want := []string{"echo a b", "echo c\\\\", "echo d\\\\e", "last"}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMacroLinesAreNotJoined(t *testing.T) {
	s := NewStack()
	_ = s.Push(NewLinesNode(KindMacro, "m", []string{"a\\", "b"}))
	if got := readAll(t, s); len(got) != 2 {
		t.Errorf("got %q", got)
	}
}

func TestPopRunsFinalizeAndRestore(t *testing.T) {
	s := NewStack()
	var order []string
	s.OnReset = func() { order = append(order, "reset") }
	n := NewNode(KindOverlay, "vput", nil)
	n.Finalize = func() { order = append(order, "finalize") }
	n.Restore = func() { order = append(order, "restore") }
	_ = s.Push(n)
	if err := s.Pop(); err != nil {
		t.Fatal(err)
	}
	if strings.Join(order, ",") != "finalize,restore,reset" {
		t.Errorf("order = %v", order)
	}

	order = nil
	n = NewNode(KindCommand, "x", nil)
	n.KeepTransient = true
	_ = s.Push(n)
	_ = s.Pop()
	if len(order) != 0 {
		t.Errorf("reset ran for KeepTransient node: %v", order)
	}
	if err := s.Pop(); !errors.Is(err, ErrEmpty) {
		t.Errorf("Pop on empty = %v", err)
	}
}

func TestMaxDepth(t *testing.T) {
	s := NewStack()
	for i := 0; i < MaxDepth; i++ {
		if err := s.Push(NewNode(KindCommand, "x", nil)); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if err := s.Push(NewNode(KindCommand, "x", nil)); !errors.Is(err, ErrTooDeep) {
		t.Errorf("push past limit = %v", err)
	}
}

func is(v bool) Cond {
	return func() (bool, func(), error) { return v, nil, nil }
}

func TestConditionBlocks(t *testing.T) {
	s := NewStack()
	_ = s.Push(NewNode(KindFile, "rc", nil))

	if err := s.If(is(false)); err != nil {
		t.Fatal(err)
	}
	if !s.Skipping() {
		t.Error("false branch not skipped")
	}
	evaluated := false
	if err := s.If(func() (bool, func(), error) { evaluated = true; return true, nil, nil }); err != nil {
		t.Fatal(err)
	}
	if evaluated {
		t.Error("nested condition evaluated while skipping")
	}
	_ = s.Else()
	if !s.Skipping() {
		t.Error("else of a skipped parent ran")
	}
	_ = s.Endif()

	_ = s.Elif(is(true))
	if s.Skipping() {
		t.Error("elif true skipped")
	}
	_ = s.Else()
	if !s.Skipping() {
		t.Error("else ran after taken elif")
	}
	if err := s.Else(); !errors.Is(err, ErrElseSeen) {
		t.Errorf("second else = %v", err)
	}
	_ = s.Endif()
	if err := s.Endif(); !errors.Is(err, ErrNoIf) {
		t.Errorf("endif without if = %v", err)
	}
}

func TestConditionStackIsPerSource(t *testing.T) {
	s := NewStack()
	_ = s.Push(NewNode(KindFile, "outer", nil))
	_ = s.If(is(false))

	_ = s.Push(NewNode(KindMacro, "inner", nil))
	if s.Skipping() {
		t.Error("inner source inherits the outer condition")
	}
	released := false
	_ = s.If(func() (bool, func(), error) { return true, func() { released = true }, nil })
	if err := s.Pop(); !errors.Is(err, ErrUnmatchedIf) {
		t.Errorf("Pop with open if = %v", err)
	}
	if !released {
		t.Error("open branch not released on pop")
	}
	if !s.Skipping() {
		t.Error("outer condition lost")
	}
}

func TestReleaseOnBranchEnd(t *testing.T) {
	s := NewStack()
	_ = s.Push(NewNode(KindFile, "rc", nil))
	released := 0
	withRelease := func(v bool) Cond {
		return func() (bool, func(), error) { return v, func() { released++ }, nil }
	}
	_ = s.If(withRelease(true))
	if released != 0 {
		t.Fatal("released while branch active")
	}
	_ = s.Elif(withRelease(true))
	if released != 1 {
		t.Errorf("released = %d after elif", released)
	}
	_ = s.Endif()
	if released != 1 {
		t.Errorf("released = %d after endif", released)
	}

	_ = s.If(withRelease(false))
	if released != 2 {
		t.Errorf("false condition not released immediately: %d", released)
	}
	_ = s.Endif()
}

func TestFailedConditionSkipsBlock(t *testing.T) {
	s := NewStack()
	_ = s.Push(NewNode(KindFile, "rc", nil))
	bad := func() (bool, func(), error) { return false, nil, errors.New("syntax") }
	if err := s.If(bad); err == nil {
		t.Fatal("error lost")
	}
	if !s.Skipping() {
		t.Error("block of failed condition not skipped")
	}
	_ = s.Else()
	if !s.Skipping() {
		t.Error("else of failed condition ran")
	}
	if err := s.Endif(); err != nil {
		t.Errorf("endif = %v", err)
	}
}
