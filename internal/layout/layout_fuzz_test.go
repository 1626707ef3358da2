package layout

import (
	"bytes"
	"testing"
)

// FuzzSplice checks that splicing keeps the text around the marker and
// inserts the body verbatim when whitespace preservation is off.
func FuzzSplice(f *testing.F) {
	f.Add("<html>{% body %}</html>", "hello")
	f.Add("{%body%}", "")
	f.Add("\n  {%   body %}\n", "a\nb")
	f.Add("{% body %}{% body %}", "$1")
	f.Add("no marker", "x")

	f.Fuzz(func(t *testing.T, wrapper, body string) {
		if len(wrapper) > 10000 || len(body) > 10000 {
			t.Skip("input too large")
		}

		out, ok := splice([]byte(wrapper), []byte(body), DefaultRegex, false)
		loc := DefaultRegex.FindStringIndex(wrapper)
		if loc == nil {
			if ok {
				t.Fatalf("splice succeeded without a marker in %q", wrapper)
			}
			return
		}
		if !ok {
			t.Fatalf("splice failed with a marker in %q", wrapper)
		}

		want := wrapper[:loc[0]] + body + wrapper[loc[1]:]
		if !bytes.Equal(out, []byte(want)) {
			t.Fatalf("splice(%q, %q) = %q, want %q", wrapper, body, out, want)
		}
	})
}
