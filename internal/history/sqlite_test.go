package history_test

import (
	"context"
	"testing"

	"github.com/nhle/nmail/internal/testutil"
)

func TestAppendAndRecent(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	for _, l := range []string{"set a=1", "echo $a", "headers"} {
		if err := s.Append(ctx, l); err != nil {
			t.Fatalf("Append(%q): %v", l, err)
		}
	}

	all, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Line != "set a=1" || all[2].Line != "headers" {
		t.Fatalf("Recent(0) = %+v", all)
	}
	if all[0].Session != s.Session() || all[0].ID == "" {
		t.Errorf("entry not stamped: %+v", all[0])
	}

	last, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(last) != 2 || last[0].Line != "echo $a" || last[1].Line != "headers" {
		t.Errorf("Recent(2) = %+v", last)
	}
}

func TestTrimAndClear(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	for _, l := range []string{"a", "b", "c", "d"} {
		_ = s.Append(ctx, l)
	}
	if err := s.Trim(ctx, 2); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Recent(ctx, 0)
	if len(got) != 2 || got[0].Line != "c" {
		t.Errorf("after Trim(2): %+v", got)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Recent(ctx, 0)
	if len(got) != 0 {
		t.Errorf("after Clear: %+v", got)
	}
}
