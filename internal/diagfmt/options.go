// Package diagfmt renders diagnostic bags for humans and for tools.
package diagfmt

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	PathModeFull PathMode = iota
	PathModeBasename
)

// PrettyOpts configures the human-readable renderer.
type PrettyOpts struct {
	Color     bool
	PathMode  PathMode
	ShowNotes bool
}

// JSONOpts configures the machine-readable renderer.
type JSONOpts struct {
	IncludePositions bool
	IncludeNotes     bool
	Max              int // truncate output after Max diagnostics; 0 keeps all
}
