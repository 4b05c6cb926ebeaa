package diagfmt

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"lumen/internal/diag"
	"lumen/internal/source"
)

var (
	errorColor    = color.New(color.FgRed, color.Bold)
	warningColor  = color.New(color.FgYellow, color.Bold)
	infoColor     = color.New(color.FgCyan, color.Bold)
	internalColor = color.New(color.FgMagenta, color.Bold)
	caretColor    = color.New(color.FgGreen, color.Bold)
)

// Pretty renders every diagnostic of a sorted bag as
//
//	<path>:<line>:<col>: <SEV> <CODE>: <message>
//
// followed by the source line with a caret underline when the span resolves
// into a known file, then the notes.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	for _, d := range bag.Items() {
		writeHeading(w, d, fs, opts)
		writeContext(w, d.Primary, fs, opts)
		if opts.ShowNotes {
			for _, n := range d.Notes {
				fmt.Fprintf(w, "%s: note: %s\n", location(n.Span, fs, opts), n.Msg)
				writeContext(w, n.Span, fs, opts)
			}
		}
	}
}

func writeHeading(w io.Writer, d diag.Diagnostic, fs *source.FileSet, opts PrettyOpts) {
	sev := d.Severity.String()
	if opts.Color {
		sev = severityColor(d.Severity).Sprint(sev)
	}
	fmt.Fprintf(w, "%s: %s %s: %s\n", location(d.Primary, fs, opts), sev, d.Code, d.Message)
}

func severityColor(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return errorColor
	case diag.SevWarning:
		return warningColor
	case diag.SevInternal:
		return internalColor
	default:
		return infoColor
	}
}

func location(sp source.Span, fs *source.FileSet, opts PrettyOpts) string {
	path, lc := fs.Position(sp)
	if path == "" {
		return "<unknown>"
	}
	if opts.PathMode == PathModeBasename {
		path = filepath.Base(path)
	}
	return fmt.Sprintf("%s:%d:%d", path, lc.Line, lc.Col)
}

// writeContext prints the source line and underlines the span. Column math
// runs on display width so wide runes keep the caret aligned.
func writeContext(w io.Writer, sp source.Span, fs *source.FileSet, opts PrettyOpts) {
	file := fs.Get(sp.File)
	if file == nil {
		return
	}
	_, lc := fs.Position(sp)
	line := file.Line(lc.Line)
	if line == nil {
		return
	}
	fmt.Fprintf(w, "  %s\n", line)

	before := line
	if int(lc.Col-1) <= len(line) {
		before = line[:lc.Col-1]
	}
	pad := runewidth.StringWidth(string(before))

	span := int(sp.Len())
	if span <= 0 {
		span = 1
	}
	rest := int(lc.Col-1) + span
	if rest > len(line) {
		rest = len(line)
	}
	width := runewidth.StringWidth(string(line[len(before):rest]))
	if width <= 0 {
		width = 1
	}
	marker := "^" + strings.Repeat("~", width-1)
	if opts.Color {
		marker = caretColor.Sprint(marker)
	}
	fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", pad), marker)
}
