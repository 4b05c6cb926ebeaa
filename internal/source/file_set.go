package source

import (
	"fmt"
	"path/filepath"
	"sort"

	"fortio.org/safecast"
)

// File captures metadata for a single front-end source file. The backend does
// not re-read program text; it keeps the content only to resolve spans into
// line/column pairs for diagnostics.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	lineIdx []uint32 // byte offset of every line start
}

// LineCol is a human-readable position in a source file.
type LineCol struct {
	Line uint32 // 1-based
	Col  uint32 // 1-based
}

// FileSet manages the files referenced by AST spans.
type FileSet struct {
	files []File
	index map[string]FileID
}

func NewFileSet() *FileSet {
	return &FileSet{index: make(map[string]FileID)}
}

// Add registers file content under path and returns its FileID.
func (fs *FileSet) Add(path string, content []byte) FileID {
	n, err := safecast.Conv[uint32](len(fs.files))
	if err != nil {
		panic(fmt.Errorf("file count overflow: %w", err))
	}
	id := FileID(n)
	normalized := filepath.ToSlash(path)
	fs.files = append(fs.files, File{
		ID:      id,
		Path:    normalized,
		Content: content,
		lineIdx: buildLineIndex(content),
	})
	fs.index[normalized] = id
	return id
}

// Get returns the file for id, or nil when the span is synthetic.
func (fs *FileSet) Get(id FileID) *File {
	if fs == nil || id == NoFile || int(id) >= len(fs.files) {
		return nil
	}
	return &fs.files[id]
}

// ByPath returns the file previously added under path.
func (fs *FileSet) ByPath(path string) (*File, bool) {
	id, ok := fs.index[filepath.ToSlash(path)]
	if !ok {
		return nil, false
	}
	return &fs.files[id], true
}

func (fs *FileSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.files)
}

// Position resolves a span start into a 1-based line/column pair.
// Synthetic spans resolve to 0:0.
func (fs *FileSet) Position(sp Span) (string, LineCol) {
	file := fs.Get(sp.File)
	if file == nil {
		return "", LineCol{}
	}
	return file.Path, file.lineCol(sp.Start)
}

func (f *File) lineCol(offset uint32) LineCol {
	if len(f.lineIdx) == 0 {
		return LineCol{Line: 1, Col: offset + 1}
	}
	// первая строка, начало которой лежит за offset
	line := sort.Search(len(f.lineIdx), func(i int) bool {
		return f.lineIdx[i] > offset
	})
	lineStart := f.lineIdx[line-1]
	lineU, err := safecast.Conv[uint32](line)
	if err != nil {
		panic(fmt.Errorf("line number overflow: %w", err))
	}
	return LineCol{Line: lineU, Col: offset - lineStart + 1}
}

// Line returns the text of a 1-based line without its trailing newline.
func (f *File) Line(line uint32) []byte {
	if f == nil || line == 0 || int(line) > len(f.lineIdx) {
		return nil
	}
	start := f.lineIdx[line-1]
	end := uint32(len(f.Content))
	if int(line) < len(f.lineIdx) {
		end = f.lineIdx[line]
	}
	text := f.Content[start:end]
	for len(text) > 0 && (text[len(text)-1] == '\n' || text[len(text)-1] == '\r') {
		text = text[:len(text)-1]
	}
	return text
}

func buildLineIndex(content []byte) []uint32 {
	idx := make([]uint32, 1, 16)
	idx[0] = 0
	for i, b := range content {
		if b == '\n' {
			off, err := safecast.Conv[uint32](i + 1)
			if err != nil {
				panic(fmt.Errorf("line offset overflow: %w", err))
			}
			idx = append(idx, off)
		}
	}
	return idx
}
