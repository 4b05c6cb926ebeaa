package diagfmt

import (
	"strings"
	"testing"

	"lumen/internal/diag"
	"lumen/internal/source"
)

func testBag(t *testing.T) (*diag.Bag, *source.FileSet) {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.Add("src/shapes.lum", []byte("sum Shape { Dot, Line(len: Int) }\nlet x = боль\n"))

	bag := diag.NewBag(8)
	bag.Add(diag.NewError(diag.SemUnresolvedType, source.Span{File: id, Start: 4, End: 9}, "unknown type Shape"))
	bag.Add(diag.NewError(diag.LowNonExhaustiveMatch, source.Span{File: id, Start: 42, End: 46}, "match does not cover: Line").
		WithNote(source.Span{File: id, Start: 0, End: 3}, "sum declared here"))
	bag.Sort()
	return bag, fs
}

func TestPrettyHeadingFormat(t *testing.T) {
	bag, fs := testBag(t)
	var b strings.Builder
	Pretty(&b, bag, fs, PrettyOpts{})
	out := b.String()

	if !strings.Contains(out, "src/shapes.lum:1:5: ERROR LUM3001: unknown type Shape") {
		t.Fatalf("heading missing or malformed:\n%s", out)
	}
	if !strings.Contains(out, "^~~~~") {
		t.Fatalf("caret underline missing:\n%s", out)
	}
}

func TestPrettyNotesRenderWhenEnabled(t *testing.T) {
	bag, fs := testBag(t)

	var without strings.Builder
	Pretty(&without, bag, fs, PrettyOpts{})
	if strings.Contains(without.String(), "sum declared here") {
		t.Fatal("notes rendered without ShowNotes")
	}

	var with strings.Builder
	Pretty(&with, bag, fs, PrettyOpts{ShowNotes: true})
	if !strings.Contains(with.String(), "note: sum declared here") {
		t.Fatalf("note missing:\n%s", with.String())
	}
}

func TestPrettyBasenamePaths(t *testing.T) {
	bag, fs := testBag(t)
	var b strings.Builder
	Pretty(&b, bag, fs, PrettyOpts{PathMode: PathModeBasename})
	if strings.Contains(b.String(), "src/shapes.lum") {
		t.Fatalf("full path leaked in basename mode:\n%s", b.String())
	}
	if !strings.Contains(b.String(), "shapes.lum:") {
		t.Fatalf("basename missing:\n%s", b.String())
	}
}

func TestJSONOutputCountsAndTruncates(t *testing.T) {
	bag, fs := testBag(t)
	var b strings.Builder
	if err := JSON(&b, bag, fs, JSONOpts{Max: 1, IncludePositions: true}); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	if !strings.Contains(out, `"count": 2`) {
		t.Fatalf("count must reflect the whole bag:\n%s", out)
	}
	if !strings.Contains(out, `"truncated": true`) {
		t.Fatalf("truncation not flagged:\n%s", out)
	}
	if !strings.Contains(out, `"name": "UnresolvedType"`) {
		t.Fatalf("stable code name missing:\n%s", out)
	}
}
