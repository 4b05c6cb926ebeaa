package diagfmt

import (
	"encoding/json"
	"io"

	"lumen/internal/diag"
	"lumen/internal/source"
)

type locationJSON struct {
	File      string `json:"file"`
	StartByte uint32 `json:"start_byte"`
	EndByte   uint32 `json:"end_byte"`
	Line      uint32 `json:"line,omitempty"`
	Col       uint32 `json:"col,omitempty"`
}

type noteJSON struct {
	Message  string       `json:"message"`
	Location locationJSON `json:"location"`
}

type diagnosticJSON struct {
	Severity string       `json:"severity"`
	Code     string       `json:"code"`
	Name     string       `json:"name"`
	Message  string       `json:"message"`
	Location locationJSON `json:"location"`
	Notes    []noteJSON   `json:"notes,omitempty"`
}

type outputJSON struct {
	Diagnostics []diagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
	Truncated   bool             `json:"truncated,omitempty"`
}

// JSON writes the bag as one JSON document. Count always reflects the full
// bag even when Max truncates the listed diagnostics.
func JSON(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts JSONOpts) error {
	items := bag.Items()
	out := outputJSON{Count: len(items)}
	limit := len(items)
	if opts.Max > 0 && opts.Max < limit {
		limit = opts.Max
		out.Truncated = true
	}
	for _, d := range items[:limit] {
		dj := diagnosticJSON{
			Severity: d.Severity.String(),
			Code:     d.Code.String(),
			Name:     d.Code.Name(),
			Message:  d.Message,
			Location: makeLocation(d.Primary, fs, opts),
		}
		if opts.IncludeNotes {
			for _, n := range d.Notes {
				dj.Notes = append(dj.Notes, noteJSON{Message: n.Msg, Location: makeLocation(n.Span, fs, opts)})
			}
		}
		out.Diagnostics = append(out.Diagnostics, dj)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func makeLocation(sp source.Span, fs *source.FileSet, opts JSONOpts) locationJSON {
	loc := locationJSON{StartByte: sp.Start, EndByte: sp.End}
	path, lc := fs.Position(sp)
	loc.File = path
	if opts.IncludePositions {
		loc.Line = lc.Line
		loc.Col = lc.Col
	}
	return loc
}
