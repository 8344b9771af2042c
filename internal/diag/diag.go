// Package diag renders compiler and runtime errors the way the CLI reports
// them to a user: the full cause chain, each wrapped layer prefixed with
// `... `, followed by a source snippet with a caret underline under the
// outermost error's Range. Colorization is TTY-gated via go-isatty so piped
// output (CI logs, `sbl ... 2>file`) stays plain text.
package diag

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alekratz/sbl/internal/token"
	"github.com/mattn/go-isatty"
)

const (
	colorRed   = "\x1b[31m"
	colorBold  = "\x1b[1m"
	colorReset = "\x1b[0m"
)

// rangeErr is implemented by any error that can point back at a source
// Range (internal/lexer, internal/parser and internal/resolve define one).
type rangeErr interface {
	error
	SourceRange() token.Range
}

// Print writes err's full cause chain to w, followed by a source snippet
// for the first Range found anywhere in the chain (outermost wins). color
// forces colorization on or off; pass IsTerminal(w) to match the CLI's own
// "only color a real terminal" behavior.
func Print(w io.Writer, err error, color bool) {
	fmt.Fprintln(w, chainString(err, color))
	if r, ok := findRange(err); ok {
		fmt.Fprintln(w, snippet(r, color))
	}
}

// IsTerminal reports whether w is a real terminal, the same check the CLI
// uses to decide whether to colorize output.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// chainString renders err and every error it wraps, one per line, each
// wrapped cause after the first prefixed with "... ".
func chainString(err error, color bool) string {
	var lines []string
	for cur, depth := err, 0; cur != nil; depth++ {
		msg := cur.Error()
		if depth > 0 {
			msg = "... " + onlyOwnMessage(cur)
		}
		if color && depth == 0 {
			msg = colorBold + colorRed + msg + colorReset
		}
		lines = append(lines, msg)
		cur = errors.Unwrap(cur)
	}
	return strings.Join(lines, "\n")
}

// onlyOwnMessage strips a wrapped error's own Unwrap()'d suffix back off of
// its Error() string, so each line in the chain shows only the layer that
// introduced it, not the whole nested %w/%s tail again.
func onlyOwnMessage(err error) string {
	full := err.Error()
	if inner := errors.Unwrap(err); inner != nil {
		if suffix := ": " + inner.Error(); strings.HasSuffix(full, suffix) {
			return full[:len(full)-len(suffix)]
		}
	}
	return full
}

// findRange walks err's cause chain looking for the first Range-carrying
// error; since errors are usually wrapped innermost-first (the deepest
// stage's error becomes the Cause), the outermost wrapper with a Range wins.
func findRange(err error) (token.Range, bool) {
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		if re, ok := cur.(rangeErr); ok {
			return re.SourceRange(), true
		}
	}
	return token.Range{}, false
}

// snippet renders the source line(s) r spans, followed by a caret underline
// beneath the offending column range. Multi-line ranges longer than four
// lines are truncated with an omission marker rather than dumping
// unbounded source text.
func snippet(r token.Range, color bool) string {
	if r.Source == nil {
		return ""
	}
	lines := strings.Split(r.Source.Text, "\n")
	startLine := r.Start.Line - 1
	endLine := r.End.Line - 1
	if startLine < 0 || startLine >= len(lines) {
		return ""
	}
	if endLine >= len(lines) {
		endLine = len(lines) - 1
	}

	const maxLines = 4
	truncated := endLine-startLine+1 > maxLines
	if truncated {
		endLine = startLine + maxLines - 1
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "  --> %s:%s\n", r.Source.Path, r.Start)
	for i := startLine; i <= endLine; i++ {
		fmt.Fprintf(&sb, "%5d | %s\n", i+1, lines[i])
		if i == startLine {
			underline := caretUnderline(lines[i], r)
			if color {
				underline = colorRed + underline + colorReset
			}
			fmt.Fprintf(&sb, "      | %s\n", underline)
		}
	}
	if truncated {
		sb.WriteString("      | ... (truncated)\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// caretUnderline builds a `^~~~` marker under r's span on its first line:
// a caret at the start column, tildes for the rest of that line's portion
// of the range (or to line's end if the range continues past it).
func caretUnderline(line string, r token.Range) string {
	startCol := r.Start.Column - 1
	if startCol < 0 {
		startCol = 0
	}
	if startCol > len(line) {
		startCol = len(line)
	}
	width := 1
	if r.End.Line == r.Start.Line && r.End.Column > r.Start.Column {
		width = r.End.Column - r.Start.Column
	} else if r.End.Line > r.Start.Line && len(line)-startCol > 1 {
		width = len(line) - startCol
	}
	if startCol+width > len(line) {
		width = len(line) - startCol
		if width < 1 {
			width = 1
		}
	}
	return strings.Repeat(" ", startCol) + "^" + strings.Repeat("~", width-1)
}
