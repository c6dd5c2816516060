package interp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nhle/nmail/internal/input"
	"github.com/nhle/nmail/internal/macro"
	"github.com/nhle/nmail/internal/testutil"
	"github.com/nhle/nmail/internal/vars"
)

func TestCallBindsArguments(t *testing.T) {
	ti := newTestInterp(t, Options{})
	out := ti.mustRun(t, `define greet {
	echo hello $1
}
call greet world
echo "[$1]"
`)
	if out != "hello world\n[]\n" {
		t.Errorf("output = %q", out)
	}
}

func TestCallUndoesVariableChanges(t *testing.T) {
	ti := newTestInterp(t, Options{})
	ti.mustRun(t, `define m {
set tmp=1
set kept=inner
}
set kept=outer
call m
`)
	if ti.Vars.IsSet("tmp") {
		t.Error("tmp survived the call")
	}
	if v, _ := ti.Vars.Get("kept"); v != "outer" {
		t.Errorf("kept = %q, want outer", v)
	}
	if ti.Scopes.Depth() != 0 || ti.Frame() != nil {
		t.Error("call frame left behind")
	}
}

func TestLocaloptsOffKeepsChanges(t *testing.T) {
	ti := newTestInterp(t, Options{})
	ti.mustRun(t, `define m {
localopts off
set tmp=1
}
call m
`)
	if v, ok := ti.Vars.Get("tmp"); !ok || v != "1" {
		t.Errorf("tmp = %q, %v; want 1, true", v, ok)
	}
}

func TestLocaloptsNeedsMacro(t *testing.T) {
	ti := newTestInterp(t, Options{})
	if err := ti.run(t, "ignerr localopts on\necho $?\n"); err != nil {
		t.Fatal(err)
	}
	if got := ti.out.String(); got != "1\n" {
		t.Errorf("output = %q", got)
	}
	if !strings.Contains(ti.errOut.String(), "localopts") {
		t.Errorf("diagnostics = %q", ti.errOut)
	}
}

func TestShift(t *testing.T) {
	ti := newTestInterp(t, Options{})
	err := ti.run(t, `define s {
shift 2
echo $# $*
ignerr shift 5
echo $# $? $^ERRNAME
}
call s a b c d e
`)
	if err != nil {
		t.Fatal(err)
	}
	if got := ti.out.String(); got != "3 c d e\n3 1 RANGE\n" {
		t.Errorf("output = %q", got)
	}
}

func TestShiftOutsideMacroFails(t *testing.T) {
	ti := newTestInterp(t, Options{})
	_ = ti.run(t, "ignerr shift\necho $?\n")
	if got := ti.out.String(); got != "1\n" {
		t.Errorf("output = %q", got)
	}
}

func TestReturnSetsStatus(t *testing.T) {
	ti := newTestInterp(t, Options{})
	out := ti.mustRun(t, `define r {
if true
return 3 NOENT
endif
echo unreachable
}
call r
echo $? $!
`)
	if out != "3 2\n" {
		t.Errorf("output = %q", out)
	}
}

func TestReturnEndsCurrentSource(t *testing.T) {
	dir := t.TempDir()
	sourced := filepath.Join(dir, "returns")
	if err := os.WriteFile(sourced, []byte("return 5\necho not reached\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		script string
		want   string
	}{
		{
			name:   "macro body",
			script: "define m {\nreturn 4\necho not reached\n}\ncall m\necho $?\n",
			want:   "4\n",
		},
		{
			name:   "file sourced by a macro",
			script: "define m {\nsource " + sourced + "\necho after $?\n}\ncall m\necho $?\n",
			want:   "after 5\n0\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ti := newTestInterp(t, Options{})
			if got := ti.mustRun(t, tt.script); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCallIf(t *testing.T) {
	ti := newTestInterp(t, Options{})
	out := ti.mustRun(t, `call_if nosuch a
echo missing $?
define m {
echo in m $1
}
call_if m x
`)
	if out != "missing 0\nin m x\n" {
		t.Errorf("output = %q", out)
	}

	if err := ti.run(t, "ignerr call nosuch\necho $?\n"); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(ti.out.String(), "1\n") {
		t.Errorf("call of a missing macro succeeded: %q", ti.out)
	}
}

func TestUnmatchedIfIsReported(t *testing.T) {
	ti := newTestInterp(t, Options{})
	if err := ti.run(t, "define m {\nif true\necho in\n}\ncall m\necho status $?\n"); err != nil {
		t.Fatal(err)
	}
	if got := ti.out.String(); got != "in\nstatus 1\n" {
		t.Errorf("output = %q", got)
	}
	if !strings.Contains(ti.errOut.String(), "unmatched if") {
		t.Errorf("diagnostics = %q", ti.errOut)
	}
}

func TestAccountSwitchRestoresVariables(t *testing.T) {
	ti := newTestInterp(t, Options{})
	out := ti.mustRun(t, `set folder=/orig
define bye {
echo bye $account
}
set on-account-cleanup-A=bye
account A {
	set folder=+A
	set hold
}
account A
echo $folder $account
account null
echo $folder
`)
	if out != "+A A\nbye A\n/orig\n" {
		t.Errorf("output = %q", out)
	}
	if ti.Vars.IsSet("hold") || ti.Vars.IsSet("account") {
		t.Error("account settings survived leaving the account")
	}
	if ti.Account() != "" {
		t.Errorf("active account = %q", ti.Account())
	}
}

func TestAccountSwitchReplacesActiveAccount(t *testing.T) {
	ti := newTestInterp(t, Options{})
	ti.mustRun(t, `account A {
set from=a
}
account B {
set to=b
}
account A
account B
`)
	if ti.Vars.IsSet("from") {
		t.Error("leaving A did not undo its settings")
	}
	if v, _ := ti.Vars.Get("to"); v != "b" {
		t.Errorf("to = %q, want b", v)
	}
	if err := ti.run(t, "ignerr unaccount B\necho $?\n"); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(ti.out.String(), "1\n") {
		t.Errorf("deleting the active account succeeded: %q", ti.out)
	}
}

func TestAccountSwitchInsideAccountBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"directly", "ignerr account B"},
		{"from a called macro", "ignerr call sw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ti := newTestInterp(t, Options{})
			script := `define sw {
account B
}
account B {
set z=fromB
}
account A {
set x=fromA
` + tt.body + `
echo $? $account
set y=afterA
}
account A
`
			if err := ti.run(t, script); err != nil {
				t.Fatal(err)
			}
			if got := ti.out.String(); got != "1 A\n" {
				t.Errorf("output = %q, want %q", got, "1 A\n")
			}
			if ti.Account() != "A" || ti.Vars.IsSet("z") {
				t.Errorf("account = %q, z set = %v", ti.Account(), ti.Vars.IsSet("z"))
			}
			if !strings.Contains(ti.errOut.String(), "being activated") {
				t.Errorf("diagnostics = %q", ti.errOut)
			}

			if err := ti.run(t, "account null\n"); err != nil {
				t.Fatal(err)
			}
			for _, name := range []string{"x", "y", "account"} {
				if ti.Vars.IsSet(name) {
					t.Errorf("%s still set after leaving A", name)
				}
			}
			if ti.Account() != "" {
				t.Errorf("account = %q after account null", ti.Account())
			}
		})
	}
}

func TestGhostExpansion(t *testing.T) {
	ti := newTestInterp(t, Options{})
	if err := ti.run(t, `ghost echo "echo ghosted"
echo x
\echo plain
ghost zz1 zz2
ghost zz2 zz1
ignerr zz1
\echo $?
`); err != nil {
		t.Fatal(err)
	}
	if got := ti.out.String(); got != "ghosted x\nplain\n1\n" {
		t.Errorf("output = %q", got)
	}
	if !strings.Contains(ti.errOut.String(), "zz1: unknown command") {
		t.Errorf("diagnostics = %q", ti.errOut)
	}
}

func TestGhostDepthIsBounded(t *testing.T) {
	ti := newTestInterp(t, Options{})
	for i := 0; i < 19; i++ {
		ti.SetGhost(fmt.Sprintf("g%d", i), fmt.Sprintf("g%d", i+1))
	}
	ti.SetGhost("g19", "echo end")
	if err := ti.run(t, "g0\n"); err == nil {
		t.Fatal("expected an error")
	}
	if strings.Contains(ti.out.String(), "end") {
		t.Error("expansion went past the depth bound")
	}
	if !strings.Contains(ti.errOut.String(), "g16: unknown command") {
		t.Errorf("diagnostics = %q", ti.errOut)
	}
}

func TestEnvironRoundTrip(t *testing.T) {
	env := vars.MapEnv{"HOME": t.TempDir(), "FOO": "bar"}
	ti := newTestInterp(t, Options{Env: env})
	out := ti.mustRun(t, `echo $FOO
environ link FOO
set FOO=baz
`)
	if out != "bar\n" {
		t.Errorf("output = %q", out)
	}
	if env["FOO"] != "baz" {
		t.Errorf("environment FOO = %q, want baz", env["FOO"])
	}

	ti.mustRun(t, "unset FOO\nenviron set NEWVAR v\n")
	if _, ok := env["FOO"]; ok {
		t.Error("FOO still exported after unset")
	}
	if env["NEWVAR"] != "v" || ti.Vars.IsSet("NEWVAR") {
		t.Errorf("environ set: env=%q, variable set=%v", env["NEWVAR"], ti.Vars.IsSet("NEWVAR"))
	}
	ti.mustRun(t, "environ unset NEWVAR\n")
	if _, ok := env["NEWVAR"]; ok {
		t.Error("NEWVAR still in environment")
	}
}

func TestRegexCaptureFrame(t *testing.T) {
	ti := newTestInterp(t, Options{})
	out := ti.mustRun(t, `if abc123 =~ '^([a-z]+)([0-9]+)$'
echo $0 $1 $2
endif
echo "[$1]"
`)
	if out != "abc123 abc 123\n[]\n" {
		t.Errorf("output = %q", out)
	}
}

func TestConditions(t *testing.T) {
	tests := []struct {
		cond string
		want bool
	}{
		{"1 -lt 2", true},
		{"10 -ge 0x10", false},
		{"abc ==? ABC", true},
		{"abc == ABC", false},
		{"hello =% ell", true},
		{"hello !% ell", false},
		{"x != x", false},
		{"b > a", true},
		{"! [ false || true ]", false},
		{`-z ""`, true},
		{`-n ""`, false},
		{"true && false", false},
		{"false || 1", true},
		{"-N HOME", true},
		{"-Z nothing", true},
		{"t", false},
		{"r", true},
		{"send", false},
	}

	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			ti := newTestInterp(t, Options{})
			out := ti.mustRun(t, "if "+tt.cond+"\necho yes\nelse\necho no\nendif\n")
			want := "no\n"
			if tt.want {
				want = "yes\n"
			}
			if out != want {
				t.Errorf("if %s printed %q, want %q", tt.cond, out, want)
			}
		})
	}
}

func TestSkippedBlockIgnoresUnknownCommands(t *testing.T) {
	ti := newTestInterp(t, Options{})
	out := ti.mustRun(t, `if false
nosuchcommand
if true
echo nested
endif
elif 0
echo no
else
echo else
endif
`)
	if out != "else\n" {
		t.Errorf("output = %q", out)
	}
}

func TestConditionErrorSkipsBlock(t *testing.T) {
	ti := newTestInterp(t, Options{})
	if err := ti.run(t, "ignerr if 1 -eq x\necho in\nelse\necho else\nendif\necho after\n"); err != nil {
		t.Fatal(err)
	}
	if got := ti.out.String(); got != "after\n" {
		t.Errorf("output = %q", got)
	}
}

func TestElseWithoutIf(t *testing.T) {
	ti := newTestInterp(t, Options{})
	_ = ti.run(t, "ignerr else\necho $?\n")
	if got := ti.out.String(); got != "1\n" {
		t.Errorf("output = %q", got)
	}
	if !strings.Contains(ti.errOut.String(), "no matching if") {
		t.Errorf("diagnostics = %q", ti.errOut)
	}
}

func TestVput(t *testing.T) {
	ti := newTestInterp(t, Options{})
	out := ti.mustRun(t, `vput r vexpr * 6 7
echo r=$r
vput e echo hello world
echo [$e]
`)
	if out != "r=42\n[hello world]\n" {
		t.Errorf("output = %q", out)
	}
	_ = ti.run(t, "ignerr vput x set y=1\n")
	if ti.Vars.IsSet("x") || ti.Vars.IsSet("y") {
		t.Error("vput ran a command that does not support it")
	}
}

func TestUnknownCommandAbortsStrictSource(t *testing.T) {
	ti := newTestInterp(t, Options{})
	err := ti.run(t, "nosuch\necho after\n")
	if !errors.Is(err, errReported) {
		t.Fatalf("err = %v, want a reported error", err)
	}
	if ti.out.Len() != 0 {
		t.Errorf("source kept running: %q", ti.out)
	}
	if got := ti.errOut.String(); got != "nmail: nosuch: unknown command\n" {
		t.Errorf("diagnostics = %q", got)
	}
}

func TestIgnerrContinues(t *testing.T) {
	ti := newTestInterp(t, Options{})
	if err := ti.run(t, "ignerr nosuch\necho $? $^ERRNAME\n"); err != nil {
		t.Fatal(err)
	}
	if got := ti.out.String(); got != "1 NOSYS\n" {
		t.Errorf("output = %q", got)
	}
}

func TestMacroFailureEscalates(t *testing.T) {
	ti := newTestInterp(t, Options{})
	def := "define m {\nnosuch\necho inner\n}\n"
	if err := ti.run(t, def+"call m\necho outer\n"); err == nil {
		t.Error("failure inside the macro did not reach the caller")
	}
	if ti.out.Len() != 0 {
		t.Errorf("output = %q", ti.out)
	}

	ti.out.Reset()
	if err := ti.run(t, "ignerr call m\necho outer\n"); err != nil {
		t.Fatal(err)
	}
	if got := ti.out.String(); got != "outer\n" {
		t.Errorf("output = %q", got)
	}
}

func TestRepeatedErrorsAreCoalesced(t *testing.T) {
	ti := newTestInterp(t, Options{})
	if err := ti.run(t, "ignerr nosuch\nignerr nosuch\nignerr nosuch\n"); err != nil {
		t.Fatal(err)
	}
	want := "nmail: nosuch: unknown command\nnmail: last message repeated 2 times\n"
	if got := ti.errOut.String(); got != want {
		t.Errorf("diagnostics = %q, want %q", got, want)
	}
}

func TestErrexitStopsProgram(t *testing.T) {
	ti := newTestInterp(t, Options{})
	if err := ti.Vars.Set("errexit", ""); err != nil {
		t.Fatal(err)
	}
	if err := ti.PushReader("stdin", strings.NewReader("echo a\nnosuch\necho b\n")); err != nil {
		t.Fatal(err)
	}
	ti.Input.Top().Lenient = false
	err := ti.Run(context.Background())
	var exit *ExitError
	if !errors.As(err, &exit) || exit.Status != 1 {
		t.Fatalf("Run = %v, want exit status 1", err)
	}
	if got := ti.out.String(); got != "a\n" {
		t.Errorf("output = %q", got)
	}
}

func TestExitStatus(t *testing.T) {
	ti := newTestInterp(t, Options{})
	if err := ti.PushReader("stdin", strings.NewReader("echo a\nexit 3\necho b\n")); err != nil {
		t.Fatal(err)
	}
	err := ti.Run(context.Background())
	var exit *ExitError
	if !errors.As(err, &exit) || exit.Status != 3 {
		t.Fatalf("Run = %v, want exit status 3", err)
	}
	if got := ti.out.String(); got != "a\n" {
		t.Errorf("output = %q", got)
	}
}

func TestRobotSessionIsLenient(t *testing.T) {
	ti := newTestInterp(t, Options{})
	if err := ti.PushReader("stdin", strings.NewReader("nosuch\necho after\n")); err != nil {
		t.Fatal(err)
	}
	if err := ti.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := ti.out.String(); got != "after\n" {
		t.Errorf("output = %q", got)
	}
}

func TestUndefineWhileRunning(t *testing.T) {
	ti := newTestInterp(t, Options{})
	m, err := ti.Macros.Define("m", macro.KindMacro, macro.ParseLines([]string{"undefine m", "echo still"}))
	if err != nil {
		t.Fatal(err)
	}
	out := ti.mustRun(t, "call m\n")
	if out != "still\n" {
		t.Errorf("output = %q", out)
	}
	if !m.Freed() || m.Refs() != 0 {
		t.Errorf("freed=%v refs=%d after the last invocation ended", m.Freed(), m.Refs())
	}
	if _, err := ti.Macros.Lookup("m", macro.KindMacro); !macro.IsNotFound(err) {
		t.Errorf("lookup after undefine: %v", err)
	}
}

func TestDefineUnterminated(t *testing.T) {
	ti := newTestInterp(t, Options{})
	if err := ti.run(t, "define m {\necho x\n"); err == nil {
		t.Error("expected an error")
	}
	if !strings.Contains(ti.errOut.String(), "unterminated") {
		t.Errorf("diagnostics = %q", ti.errOut)
	}
	if _, err := ti.Macros.Lookup("m", macro.KindMacro); err == nil {
		t.Error("unterminated macro was defined")
	}
}

func TestRecursionIsBounded(t *testing.T) {
	ti := newTestInterp(t, Options{})
	if err := ti.run(t, "define r {\ncall r\n}\ncall r\n"); err == nil {
		t.Fatal("expected runaway recursion to fail")
	}
	if !strings.Contains(ti.errOut.String(), "nested too deeply") {
		t.Errorf("diagnostics = %q", ti.errOut)
	}
	m, _ := ti.Macros.Lookup("r", macro.KindMacro)
	if m.Refs() != 0 || ti.Scopes.Depth() != 0 || ti.Frame() != nil || ti.Input.Depth() != 0 {
		t.Errorf("state left behind: refs=%d scopes=%d frame=%v depth=%d",
			m.Refs(), ti.Scopes.Depth(), ti.Frame(), ti.Input.Depth())
	}
}

func TestSetListsAndVarshow(t *testing.T) {
	ti := newTestInterp(t, Options{})
	out := ti.mustRun(t, `set a=1 b="two words" flag
set
varshow a autoprint
`)
	for _, want := range []string{
		"set a=1\n",
		"set b='two words'\n",
		"set flag\n",
		"# user\nset a=1\n",
		"# built-in, boolean\nunset autoprint\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestSetNoPrefixUnsets(t *testing.T) {
	ti := newTestInterp(t, Options{})
	ti.mustRun(t, "set x=1\nset nox nonexistent\n")
	if ti.Vars.IsSet("x") {
		t.Error("set nox did not unset x")
	}
}

func TestVariableErrors(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"unset nothere", "1 NOENT"},
		{"set version=1", "1 PERM"},
		{"set screen=-3", "1 INVAL"},
		{"set 1=x", "1 PERM"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			ti := newTestInterp(t, Options{})
			if err := ti.run(t, "ignerr "+tt.line+"\necho $? $^ERRNAME\n"); err != nil {
				t.Fatal(err)
			}
			if got := strings.TrimSpace(ti.out.String()); got != tt.want {
				t.Errorf("%s: got %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestVexpr(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"+ 1 2", "3"},
		{"* 6 7", "42"},
		{"- 0 5", "-5"},
		{"/ 7 2", "3"},
		{"% 7 2", "1"},
		{"<< 1 4", "16"},
		{"~ 0", "-1"},
		{"+@ 9223372036854775807 1", "9223372036854775807"},
		{"*@ -9223372036854775807 2", "-9223372036854775808"},
		{"length hello", "5"},
		{"find hello ll", "2"},
		{"ifind HELLO ll", "2"},
		{"substring hello 1 3", "ell"},
		{"substring hello -2", "lo"},
		{"trim '  x  '", "x"},
		{`makeprint $'a\tb'`, "a?b"},
		{"regex abc123 '[0-9]+'", "3"},
		{"regex abc123 '([a-z]+)[0-9]+' '$1!'", "abc!"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ti := newTestInterp(t, Options{})
			out := ti.mustRun(t, "vexpr "+tt.expr+"\n")
			if got := strings.TrimSuffix(out, "\n"); got != tt.want {
				t.Errorf("vexpr %s = %q, want %q", tt.expr, got, tt.want)
			}
		})
	}
}

func TestVexprErrors(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"+ 9223372036854775807 1", "OVERFLOW"},
		{"/ 1 0", "DOM"},
		{"find abc z", "NOENT"},
		{"frob 1", "INVAL"},
		{"+ x 1", "INVAL"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ti := newTestInterp(t, Options{})
			if err := ti.run(t, "ignerr vexpr "+tt.expr+"\necho $^ERRNAME\n"); err != nil {
				t.Fatal(err)
			}
			if got := strings.TrimSpace(ti.out.String()); got != tt.want {
				t.Errorf("vexpr %s: errno %q, want %q", tt.expr, got, tt.want)
			}
		})
	}
}

func TestHistoryRecordsRecallableLines(t *testing.T) {
	store := testutil.NewTestStore(t)
	ti := newTestInterp(t, Options{History: store})
	ctx := context.Background()

	for _, ln := range []input.Line{
		{Text: "echo hi", Recallable: true},
		{Text: " echo private", Recallable: true},
		{Text: "echo scripted"},
		{Text: "nosuch", Recallable: true},
	} {
		_, _ = ti.Evaluate(ctx, ln)
	}
	ti.out.Reset()
	if _, err := ti.Evaluate(ctx, input.Line{Text: "history"}); err != nil {
		t.Fatal(err)
	}
	if got := ti.out.String(); got != "   1  echo hi\n" {
		t.Errorf("history = %q", got)
	}

	if _, err := ti.Evaluate(ctx, input.Line{Text: "history clear"}); err != nil {
		t.Fatal(err)
	}
	entries, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("%d entries after clear", len(entries))
	}
}

type fakeEditor struct {
	value string
	seen  []string
}

func (f *fakeEditor) Edit(_ context.Context, name, value string) (string, error) {
	f.seen = append(f.seen, name+"="+value)
	return f.value, nil
}

func TestVaredit(t *testing.T) {
	ed := &fakeEditor{value: "new"}
	ti := newTestInterp(t, Options{Interactive: true, Editor: ed})
	out := ti.mustRun(t, "set x=old\nvaredit x\necho $x\n")
	if out != "new\n" {
		t.Errorf("output = %q", out)
	}
	if len(ed.seen) != 1 || ed.seen[0] != "x=old" {
		t.Errorf("editor saw %v", ed.seen)
	}

	robot := newTestInterp(t, Options{Editor: ed})
	_ = robot.run(t, "ignerr varedit x\necho $?\n")
	if got := robot.out.String(); got != "1\n" {
		t.Errorf("varedit outside an interactive session: %q", got)
	}
}

func TestInterruptUnwinds(t *testing.T) {
	ti := newTestInterp(t, Options{})
	ti.Interrupt()
	err := ti.run(t, "echo never\n")
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("err = %v, want ErrInterrupted", err)
	}
	if ti.Input.Depth() != 0 || ti.out.Len() != 0 {
		t.Errorf("depth=%d output=%q", ti.Input.Depth(), ti.out)
	}
}

func TestCommandPrefixes(t *testing.T) {
	tests := map[string]string{
		"h":     "headers",
		"t":     "type",
		"p":     "print",
		"d":     "delete",
		"u":     "undelete",
		"f":     "folder",
		"s":     "set",
		"so":    "source",
		"c":     "call",
		"e":     "echo",
		"ex":    "exit",
		"q":     "quit",
		"x":     "xit",
		"unse":  "unset",
		"undef": "undefine",
	}
	for prefix, want := range tests {
		c := lookupCommand(prefix)
		if c == nil || c.Name != want {
			t.Errorf("%q resolved to %v, want %s", prefix, c, want)
		}
	}
	if names := CommandNames("echo"); len(names) != 4 {
		t.Errorf("CommandNames(echo) = %v", names)
	}
}

func TestSettle(t *testing.T) {
	ti := newTestInterp(t, Options{})
	ctx := context.Background()

	if err := ti.Settle(ti.Execute(ctx, "nosuch")); err != nil {
		t.Errorf("Settle(unknown command) = %v, want nil", err)
	}
	if n := strings.Count(ti.errOut.String(), "unknown command"); n != 1 {
		t.Errorf("error reported %d times:\n%s", n, ti.errOut)
	}

	err := ti.Settle(ti.Execute(ctx, "exit 4"))
	var exit *ExitError
	if !errors.As(err, &exit) || exit.Status != 4 {
		t.Errorf("Settle(exit 4) = %v", err)
	}
}
