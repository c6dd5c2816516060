package interp

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/nhle/nmail/internal/input"
	"github.com/nhle/nmail/internal/vars"
)

type testInterp struct {
	*Interpreter
	out    *bytes.Buffer
	errOut *bytes.Buffer
	env    vars.MapEnv
}

// newTestInterp returns an interpreter past start-up whose output and
// environment are captured in memory.
func newTestInterp(t *testing.T, opts Options) *testInterp {
	t.Helper()
	ti := &testInterp{out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	if opts.Env == nil {
		opts.Env = vars.MapEnv{"HOME": t.TempDir(), "USER": "tester", "LOGNAME": "tester"}
	}
	if env, ok := opts.Env.(vars.MapEnv); ok {
		ti.env = env
	}
	if opts.Stdin == nil {
		opts.Stdin = strings.NewReader("")
	}
	opts.Stdout, opts.Stderr = ti.out, ti.errOut
	ti.Interpreter = New(opts)
	ti.Vars.MarkStarted()
	return ti
}

// run executes script as a strict file source.
func (ti *testInterp) run(t *testing.T, script string) error {
	t.Helper()
	n := input.NewReaderNode(input.KindFile, t.Name(), strings.NewReader(script))
	return ti.runNode(context.Background(), n)
}

// mustRun fails the test when script fails or reports an error.
func (ti *testInterp) mustRun(t *testing.T, script string) string {
	t.Helper()
	if err := ti.run(t, script); err != nil {
		t.Fatalf("script failed: %v\nstderr:\n%s", err, ti.errOut)
	}
	if ti.errOut.Len() > 0 {
		t.Fatalf("unexpected diagnostics:\n%s", ti.errOut)
	}
	return ti.out.String()
}
