package interp

import (
	"errors"
	"fmt"
	"io"

	"github.com/nhle/nmail/internal/theme"
)

// errReported marks errors whose message already reached the user.
var errReported = errors.New("already reported")

type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() []error {
	return []error{e.err, errReported}
}

// reporter writes diagnostics and folds identical consecutive messages
// into a repetition count.
type reporter struct {
	w      io.Writer
	th     *theme.Theme
	prefix func() string
	last   string
	repeat int
}

func newReporter(w io.Writer, prefix func() string) *reporter {
	return &reporter{w: w, th: theme.New(w), prefix: prefix}
}

func (r *reporter) emit(msg string) {
	if msg == r.last {
		r.repeat++
		return
	}
	r.flush()
	r.last = msg
	fmt.Fprintln(r.w, msg)
}

// flush prints the pending repetition count, if any.
func (r *reporter) flush() {
	if r.repeat > 0 {
		fmt.Fprintln(r.w, r.th.Repeat.Render(fmt.Sprintf("%slast message repeated %d times", r.prefix(), r.repeat)))
	}
	r.repeat = 0
	r.last = ""
}

func (r *reporter) Errorf(format string, args ...any) {
	r.emit(r.th.Error.Render(r.prefix() + fmt.Sprintf(format, args...)))
}

func (r *reporter) Warningf(format string, args ...any) {
	r.emit(r.th.Warning.Render(r.prefix() + fmt.Sprintf(format, args...)))
}

func (r *reporter) Noticef(format string, args ...any) {
	r.emit(r.th.Notice.Render(fmt.Sprintf(format, args...)))
}

// reportErr prints err once and returns it marked as reported.
func (ip *Interpreter) reportErr(err error) error {
	if err == nil || errors.Is(err, errReported) {
		return err
	}
	ip.rep.Errorf("%v", err)
	return &reportedError{err: err}
}
