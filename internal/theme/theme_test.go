package theme

import (
	"bytes"
	"testing"
)

func TestPlainOutputForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	th := New(&buf)
	if got := th.Error.Render("boom"); got != "boom" {
		t.Errorf("Error.Render = %q, want plain text", got)
	}
	if got := th.Current.Render(">"); got != ">" {
		t.Errorf("Current.Render = %q", got)
	}
}
