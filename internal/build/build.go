package build

import (
	"context"
	"fmt"
	"path"
	"runtime"

	"golang.org/x/sync/errgroup"

	"lumen/internal/ast"
	"lumen/internal/diag"
	"lumen/internal/emit"
	"lumen/internal/lower"
	"lumen/internal/observ"
	"lumen/internal/sema"
	"lumen/internal/source"
	"lumen/internal/symbols"
	"lumen/internal/types"
)

// Binary is one compiled class file, named by its internal (slash-separated)
// class name.
type Binary struct {
	Internal string
	Data     []byte
}

// UnitResult collects everything one unit produced. Binaries is non-nil only
// when the bag holds no errors: a unit either compiles completely or not at
// all, there are no partial class sets.
type UnitResult struct {
	Package  string
	Binaries []Binary
	Bag      *diag.Bag
	// Files backs span rendering for blob builds; nil when the blob carried
	// no sources or the unit came in already decoded.
	Files *source.FileSet
	// Timing breaks the compilation down by phase.
	Timing observ.Report
}

// Options tunes a build. The zero value is usable.
type Options struct {
	MaxDiagnostics int          // per-unit bag capacity; <=0 means 256
	Jobs           int          // parallel unit compilations; <=0 means GOMAXPROCS
	Cache          *DiskCache   // nil disables caching
	Events         chan<- Event // optional progress stream; callers must drain it
}

func (o Options) maxDiagnostics() int {
	if o.MaxDiagnostics <= 0 {
		return 256
	}
	return o.MaxDiagnostics
}

func (o Options) jobs() int {
	if o.Jobs <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return o.Jobs
}

// Index lists the declared types of every unit in a build. Wildcard imports
// resolve against it. Type registries are per-unit (they are not safe for
// concurrent use), so the index stores qualified names and re-interns them
// into each unit's own registry.
type Index struct {
	records []exportRecord
}

type exportRecord struct {
	pkg  string
	name string
}

// IndexUnits scans the declared types of all units into a shared index.
func IndexUnits(units ...*ast.Unit) *Index {
	ix := &Index{}
	for _, u := range units {
		for _, d := range u.Decls {
			ix.records = append(ix.records, exportRecord{pkg: u.Package, name: d.Name})
		}
	}
	return ix
}

func (ix *Index) exportsFor(reg *types.Registry) *symbols.Exports {
	ex := symbols.NewExports()
	if ix == nil {
		return ex
	}
	for _, rec := range ix.records {
		qualified := rec.name
		if rec.pkg != "" {
			qualified = rec.pkg + "." + rec.name
		}
		ex.Add(rec.pkg, rec.name, reg.RegisterClass(qualified))
	}
	return ex
}

// Compile runs one unit through the full pipeline. Sibling types come from
// the index; pass nil when compiling a unit in isolation. Warnings do not
// suppress binaries, errors do.
func Compile(unit *ast.Unit, siblings *Index, opts Options) UnitResult {
	return compileLabeled(unit, unit.Package, "", siblings, opts)
}

// compileLabeled runs the pipeline under a progress label. src names the
// originating source file for SourceFile attributes; empty when unknown.
func compileLabeled(unit *ast.Unit, label, src string, siblings *Index, opts Options) (res UnitResult) {
	bag := diag.NewBag(opts.maxDiagnostics())
	reporter := diag.BagReporter{Bag: bag}
	res = UnitResult{Package: unit.Package, Bag: bag}

	timer := observ.NewTimer()
	defer func() { res.Timing = timer.Report() }()

	opts.notify(label, StageResolve, StatusWorking)
	ph := timer.Begin("resolve")
	reg := types.NewRegistry()
	table := symbols.Collect(unit, reg, siblings.exportsFor(reg), reporter)
	sem := sema.Collect(unit, table, reg, reporter)
	sema.Check(sem, reporter)
	timer.End(ph, "")
	if bag.HasErrors() {
		bag.Sort()
		opts.notify(label, StageResolve, StatusError)
		return res
	}

	opts.notify(label, StageLower, StatusWorking)
	ph = timer.Begin("lower")
	mod := lower.Lower(sem, reporter)
	mod.SourceFile = src
	timer.End(ph, "")
	if bag.HasErrors() {
		bag.Sort()
		opts.notify(label, StageLower, StatusError)
		return res
	}

	opts.notify(label, StageEmit, StatusWorking)
	ph = timer.Begin("emit")
	classes := emit.Emit(mod, reporter)
	timer.End(ph, fmt.Sprintf("%d classes", len(classes)))
	bag.Sort()
	if bag.HasErrors() {
		opts.notify(label, StageEmit, StatusError)
		return res
	}
	for _, c := range classes {
		res.Binaries = append(res.Binaries, Binary{Internal: c.Internal, Data: c.Data})
	}
	opts.notify(label, StageEmit, StatusDone)
	return res
}

// Build compiles many units in parallel. One unit's errors never affect its
// siblings; the returned slice matches the input order. The error is non-nil
// only for context cancellation.
func Build(ctx context.Context, units []*ast.Unit, opts Options) ([]UnitResult, error) {
	ix := IndexUnits(units...)
	results := make([]UnitResult, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(opts.jobs(), max(len(units), 1)))
	for i, unit := range units {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results[i] = Compile(unit, ix, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// sourceName is the base name of the file holding the unit's span, used for
// the SourceFile attribute of its classes.
func sourceName(fs *source.FileSet, unit *ast.Unit) string {
	if fs == nil {
		return ""
	}
	f := fs.Get(unit.Sp.File)
	if f == nil {
		return ""
	}
	return path.Base(f.Path)
}

// Blob is one serialized unit with the label progress events use (usually
// its file name).
type Blob struct {
	Name string
	Data []byte
}

// BuildBlobs decodes serialized units and builds them. A blob that fails to
// decode yields a unit result with a single decode diagnostic; cached blobs
// skip compilation entirely.
func BuildBlobs(ctx context.Context, blobs []Blob, opts Options) ([]UnitResult, error) {
	units := make([]*ast.Unit, len(blobs))
	files := make([]*source.FileSet, len(blobs))
	results := make([]UnitResult, len(blobs))
	bad := make([]bool, len(blobs))
	cached := make([]bool, len(blobs))

	for i, blob := range blobs {
		opts.notify(blob.Name, StageDecode, StatusWorking)
		if res, ok := opts.Cache.Lookup(blob.Data); ok {
			results[i] = res
			cached[i] = true
			opts.notify(blob.Name, StageEmit, StatusDone)
			continue
		}
		unit, fs, err := DecodeUnitSources(blob.Data)
		if err != nil {
			bag := diag.NewBag(1)
			bag.Add(diag.Diagnostic{
				Severity: diag.SevError,
				Code:     diag.IODecodeError,
				Message:  err.Error(),
			})
			results[i] = UnitResult{Bag: bag}
			bad[i] = true
			opts.notify(blob.Name, StageDecode, StatusError)
			continue
		}
		units[i] = unit
		files[i] = fs
	}

	var live []*ast.Unit
	for _, u := range units {
		if u != nil {
			live = append(live, u)
		}
	}
	ix := IndexUnits(live...)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(opts.jobs(), max(len(blobs), 1)))
	for i, unit := range units {
		if bad[i] || cached[i] {
			continue
		}
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results[i] = compileLabeled(unit, blobs[i].Name, sourceName(files[i], unit), ix, opts)
			results[i].Files = files[i]
			opts.Cache.Store(blobs[i].Data, results[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
