package diag

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/alekratz/sbl/internal/token"
)

type fakeRangeErr struct {
	msg   string
	r     token.Range
	cause error
}

func (e *fakeRangeErr) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.cause)
	}
	return e.msg
}
func (e *fakeRangeErr) Unwrap() error             { return e.cause }
func (e *fakeRangeErr) SourceRange() token.Range { return e.r }

func TestChainStringRendersEveryLayer(t *testing.T) {
	inner := errors.New("file not found")
	outer := &fakeRangeErr{msg: "could not resolve import `x.sbl`", cause: inner}
	got := chainString(outer, false)
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines in the chain, got %d: %q", len(lines), got)
	}
	if lines[0] != "could not resolve import `x.sbl`: file not found" {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if lines[1] != "... file not found" {
		t.Errorf("unexpected second line: %q", lines[1])
	}
}

func TestChainStringColorizesOnlyFirstLine(t *testing.T) {
	outer := &fakeRangeErr{msg: "top", cause: errors.New("bottom")}
	got := chainString(outer, true)
	lines := strings.Split(got, "\n")
	if !strings.Contains(lines[0], colorRed) {
		t.Error("expected the first line to be colorized")
	}
	if strings.Contains(lines[1], colorRed) {
		t.Error("expected only the first line to be colorized")
	}
}

func TestFindRangeWalksChainForFirstRangeErr(t *testing.T) {
	src := &token.Source{Path: "t.sbl", Text: "main { 1 }"}
	r := token.Range{Source: src, Start: token.Position{Line: 1, Column: 8}, End: token.Position{Line: 1, Column: 9}}
	plain := errors.New("plain cause")
	withRange := &fakeRangeErr{msg: "wraps a plain error", r: r, cause: plain}
	wrapper := fmt.Errorf("outer: %w", withRange)

	got, ok := findRange(wrapper)
	if !ok {
		t.Fatal("expected findRange to locate the Range-carrying error in the chain")
	}
	if got != r {
		t.Errorf("findRange = %+v, want %+v", got, r)
	}
}

func TestFindRangeNoneFound(t *testing.T) {
	if _, ok := findRange(errors.New("no range anywhere")); ok {
		t.Error("expected ok = false when no error in the chain carries a Range")
	}
}

func TestSnippetRendersCaretAtColumn(t *testing.T) {
	src := &token.Source{Path: "t.sbl", Text: "main { bogus }"}
	r := token.Range{Source: src, Start: token.Position{Line: 1, Column: 8}, End: token.Position{Line: 1, Column: 13}}
	got := snippet(r, false)
	if !strings.Contains(got, "main { bogus }") {
		t.Errorf("expected the source line in the snippet, got %q", got)
	}
	if !strings.Contains(got, "^~~~~") {
		t.Errorf("expected a 5-wide caret underline for `bogus`, got %q", got)
	}
}

func TestSnippetTruncatesLongMultilineRanges(t *testing.T) {
	text := "1\n2\n3\n4\n5\n6\n"
	src := &token.Source{Path: "t.sbl", Text: text}
	r := token.Range{
		Source: src,
		Start:  token.Position{Line: 1, Column: 1},
		End:    token.Position{Line: 6, Column: 1},
	}
	got := snippet(r, false)
	if !strings.Contains(got, "(truncated)") {
		t.Errorf("expected a truncation marker for a 6-line range, got %q", got)
	}
}

func TestSnippetNilSourceIsEmpty(t *testing.T) {
	if got := snippet(token.Range{}, false); got != "" {
		t.Errorf("expected an empty snippet for a nil Source, got %q", got)
	}
}

func TestPrintWritesChainAndSnippet(t *testing.T) {
	src := &token.Source{Path: "t.sbl", Text: "main { bogus }"}
	r := token.Range{Source: src, Start: token.Position{Line: 1, Column: 8}, End: token.Position{Line: 1, Column: 13}}
	err := &fakeRangeErr{msg: "unknown function `bogus`", r: r}

	var buf bytes.Buffer
	Print(&buf, err, false)
	out := buf.String()
	if !strings.Contains(out, "unknown function `bogus`") {
		t.Error("expected Print to include the error message")
	}
	if !strings.Contains(out, "-->") {
		t.Error("expected Print to include the snippet location marker")
	}
}

func TestCaretUnderlineClampsToLineLength(t *testing.T) {
	line := "ab"
	r := token.Range{Start: token.Position{Column: 1}, End: token.Position{Line: 1, Column: 20}}
	got := caretUnderline(line, r)
	if len(got) > len(line)+1 {
		t.Errorf("caret underline %q should not exceed the line's length, line = %q", got, line)
	}
}
