// ABOUTME: Tests for the token stream merger covering deltas, cumulative snapshots and overlap dedup.
// ABOUTME: Includes property checks over generated inputs and the chunked "Hello world" reconstruction.

package stream

import (
	"fmt"
	"strings"
	"testing"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name         string
		current      string
		incoming     string
		wantNext     string
		wantAppended string
	}{
		{"empty incoming", "abc", "", "abc", ""},
		{"empty current", "", "hello", "hello", "hello"},
		{"both empty", "", "", "", ""},
		{"pure delta", "Hel", "lo wor", "Hello wor", "lo wor"},
		{"cumulative snapshot", "Hello", "Hello world", "Hello world", " world"},
		{"identical snapshot", "Hello world", "Hello world", "Hello world", ""},
		{"overlap dedup", "the dog and the cat sat", "cat sat on the mat", "the dog and the cat sat on the mat", " on the mat"},
		{"overlap exactly at threshold", "xx1234567", "1234567yy", "xx1234567yy", "yy"},
		{"overlap below threshold", "xx123456", "123456yy", "xx123456123456yy", "123456yy"},
		{"full echo of tail", "Some long summary text", "summary text", "Some long summary text", ""},
		{"longest overlap wins", "abcabcabcabc", "abcabcabcabcX", "abcabcabcabcX", "X"},
		{"shorter snapshot is not a prefix match", "Hello world", "Hello", "Hello worldHello", "Hello"},
		{"multibyte overlap below threshold", "xx äöüß", "äöüß yy", "xx äöüßäöüß yy", "äöüß yy"},
		{"multibyte overlap at threshold", "eine größere", "größere Zahl", "eine größere Zahl", " Zahl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, appended := Merge(tt.current, tt.incoming)
			if next != tt.wantNext {
				t.Errorf("next = %q, want %q", next, tt.wantNext)
			}
			if appended != tt.wantAppended {
				t.Errorf("appended = %q, want %q", appended, tt.wantAppended)
			}
		})
	}
}

func TestMergeOverlapDedupKeepsSingleSharedTail(t *testing.T) {
	next, _ := Merge("...the cat sat", "cat sat on the mat")
	if next != "...the cat sat on the mat" {
		t.Errorf("next = %q", next)
	}
	if n := strings.Count(next, "cat sat"); n != 1 {
		t.Errorf("%q contains %d copies of %q, want 1", next, n, "cat sat")
	}
}

func TestMergeOverlapWindowBound(t *testing.T) {
	shared := strings.Repeat("z", OverlapWindow+10)
	current := "a" + shared
	incoming := shared + "b"

	next, appended := Merge(current, incoming)
	// The overlap search is capped at OverlapWindow, so a window-sized run of
	// z's still dedups; only the remainder of incoming past the window is kept.
	if !strings.HasSuffix(next, "b") {
		t.Fatalf("next should end with the unique suffix")
	}
	if appended != incoming[OverlapWindow:] {
		t.Errorf("appended length = %d, want %d", len(appended), len(incoming)-OverlapWindow)
	}
}

func TestMergeOverlapCountsCharacters(t *testing.T) {
	// Six characters but twelve bytes: too short to be a resend.
	tail := "日本語の文書"
	next, appended := Merge("見出し "+tail, tail+"です")
	if appended != tail+"です" {
		t.Errorf("appended = %q, want the whole fragment", appended)
	}
	if next != "見出し "+tail+tail+"です" {
		t.Errorf("next = %q", next)
	}

	// Seven characters clears MinOverlap.
	tail = "日本語の文書だ"
	next, _ = Merge("見出し "+tail, tail+"です")
	if next != "見出し "+tail+"です" {
		t.Errorf("next = %q", next)
	}
}

func sampleStrings() []string {
	return []string{
		"",
		" ",
		"a",
		"Hello",
		"Hello world",
		"The quick brown fox",
		"jumps over the lazy dog.",
		"line one\nline two\n",
		"ünïcödé tëxt ✓",
		strings.Repeat("ab", 50),
	}
}

func TestMergePropertyEmptyDeltaIsNoop(t *testing.T) {
	for _, a := range sampleStrings() {
		next, appended := Merge(a, "")
		if next != a || appended != "" {
			t.Errorf("Merge(%q, \"\") = (%q, %q)", a, next, appended)
		}
	}
}

func TestMergePropertyCumulativeResend(t *testing.T) {
	for _, a := range sampleStrings() {
		for _, tail := range sampleStrings() {
			b := a + tail
			next, appended := Merge(a, b)
			if next != b || appended != b[len(a):] {
				t.Errorf("Merge(%q, %q) = (%q, %q), want (%q, %q)", a, b, next, appended, b, b[len(a):])
			}
		}
	}
}

func TestMergePropertyNoOverlapConcatenates(t *testing.T) {
	pairs := [][2]string{
		{"alpha", "BETA"},
		{"summary so far.", " Next sentence."},
		{"12345678", "abcdefgh"},
		{"x", "y"},
	}
	for _, p := range pairs {
		a, b := p[0], p[1]
		next, appended := Merge(a, b)
		if next != a+b || appended != b {
			t.Errorf("Merge(%q, %q) = (%q, %q), want (%q, %q)", a, b, next, appended, a+b, b)
		}
	}
}

func TestMergeIsDeterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		for _, a := range sampleStrings() {
			for _, b := range sampleStrings() {
				n1, s1 := Merge(a, b)
				n2, s2 := Merge(a, b)
				if n1 != n2 || s1 != s2 {
					t.Fatalf("Merge(%q, %q) not deterministic", a, b)
				}
			}
		}
	}
}

func TestMergeAppendedIsSuffixOfNext(t *testing.T) {
	for _, a := range sampleStrings() {
		for _, b := range sampleStrings() {
			next, appended := Merge(a, b)
			if !strings.HasSuffix(next, appended) {
				t.Errorf("Merge(%q, %q): appended %q is not a suffix of %q", a, b, appended, next)
			}
			if !strings.HasPrefix(next, a) {
				t.Errorf("Merge(%q, %q): next %q dropped existing text", a, b, next)
			}
		}
	}
}

func TestMergeChunkedHelloWorld(t *testing.T) {
	var text string
	var rendered strings.Builder
	for _, chunk := range []string{"Hel", "lo wor", "ld"} {
		var appended string
		text, appended = Merge(text, chunk)
		rendered.WriteString(appended)
	}
	if text != "Hello world" || rendered.String() != "Hello world" {
		t.Errorf("text = %q, rendered = %q", text, rendered.String())
	}
}

func TestAppend(t *testing.T) {
	next, appended := Append("cat sat", "cat sat")
	if next != "cat satcat sat" || appended != "cat sat" {
		t.Errorf("Append = (%q, %q)", next, appended)
	}
}

func ExampleMerge() {
	next, appended := Merge("Summaries are", "Summaries are short.")
	fmt.Printf("%q %q\n", next, appended)
	// Output: "Summaries are short." " short."
}
