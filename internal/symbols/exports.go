package symbols

import (
	"sort"

	"lumen/internal/types"
)

// Exports indexes the declared types of every package visible to a build:
// sibling units plus the host packages. Wildcard imports resolve against it.
// Built once before per-unit compilation, read-only after.
type Exports struct {
	packages map[string]map[string]types.TypeID
}

func NewExports() *Exports {
	return &Exports{packages: make(map[string]map[string]types.TypeID)}
}

// Add registers one exported type under its package.
func (e *Exports) Add(pkg, name string, id types.TypeID) {
	m, ok := e.packages[pkg]
	if !ok {
		m = make(map[string]types.TypeID)
		e.packages[pkg] = m
	}
	m[name] = id
}

// Lookup finds name inside pkg.
func (e *Exports) Lookup(pkg, name string) (types.TypeID, bool) {
	if e == nil {
		return types.NoTypeID, false
	}
	m, ok := e.packages[pkg]
	if !ok {
		return types.NoTypeID, false
	}
	id, ok := m[name]
	return id, ok
}

// HasPackage reports whether pkg exports anything.
func (e *Exports) HasPackage(pkg string) bool {
	if e == nil {
		return false
	}
	_, ok := e.packages[pkg]
	return ok
}

// Names returns the sorted exported names of pkg. Used for diagnostics.
func (e *Exports) Names(pkg string) []string {
	if e == nil {
		return nil
	}
	m := e.packages[pkg]
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
