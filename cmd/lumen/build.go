package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"lumen/internal/build"
	"lumen/internal/diagfmt"
	"lumen/internal/prof"
	"lumen/internal/project"
	"lumen/internal/ui"
)

// BlobExt is the extension the front end gives serialized unit files.
const BlobExt = ".astb"

var (
	buildOut     string
	buildJobs    int
	buildPlain   bool
	buildTimings bool
	buildCPUProf string
	buildMemProf string
)

func init() {
	buildCmd.Flags().StringVarP(&buildOut, "out", "o", "", "output directory (default: manifest out_dir or ./classes)")
	buildCmd.Flags().IntVarP(&buildJobs, "jobs", "j", 0, "parallel unit compilations (0 = CPU count)")
	buildCmd.Flags().BoolVar(&buildPlain, "plain", false, "disable the interactive progress display")
	buildCmd.Flags().BoolVar(&buildTimings, "timings", false, "print per-unit phase timings")
	buildCmd.Flags().StringVar(&buildCPUProf, "profile-cpu", "", "write a CPU profile to this path")
	buildCmd.Flags().StringVar(&buildMemProf, "profile-mem", "", "write a heap profile to this path")
}

var buildCmd = &cobra.Command{
	Use:   "build [unit blobs or directories]",
	Short: "Compile AST unit blobs into class files",
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest, hasManifest, err := project.LoadFrom(".")
		if err != nil {
			return err
		}

		blobs, err := collectBlobs(args, manifest, hasManifest)
		if err != nil {
			return err
		}
		if len(blobs) == 0 {
			return fmt.Errorf("nothing to build: no %s files found", BlobExt)
		}

		opts := build.Options{Jobs: buildJobs}
		if maxDiags, err := cmd.Flags().GetInt("max-diagnostics"); err == nil {
			opts.MaxDiagnostics = maxDiags
		}
		if hasManifest {
			if opts.Jobs == 0 {
				opts.Jobs = manifest.Config.Build.Jobs
			}
			if !manifest.Config.Build.NoCache {
				if cache, err := build.OpenDiskCache("lumen"); err == nil {
					opts.Cache = cache
				}
			}
		}

		session, err := prof.Start(buildCPUProf, buildMemProf)
		if err != nil {
			_ = session.Stop()
			return err
		}
		defer func() {
			if err := session.Stop(); err != nil {
				fmt.Fprintf(os.Stderr, "profile: %v\n", err)
			}
		}()

		var results []build.UnitResult
		if !buildPlain && isTerminal(os.Stdout) {
			results, err = buildWithUI(cmd.Context(), blobs, opts)
		} else {
			results, err = build.BuildBlobs(cmd.Context(), blobs, opts)
		}
		if err != nil {
			return err
		}

		return finishBuild(cmd, blobs, results, outDir(manifest, hasManifest))
	},
}

func outDir(manifest *project.Manifest, hasManifest bool) string {
	if buildOut != "" {
		return buildOut
	}
	if hasManifest {
		return manifest.OutDir()
	}
	return "classes"
}

// collectBlobs resolves the command arguments into blob files. Without
// arguments it scans the project root (or the working directory).
func collectBlobs(args []string, manifest *project.Manifest, hasManifest bool) ([]build.Blob, error) {
	if len(args) == 0 {
		root := "."
		if hasManifest {
			root = manifest.Root
		}
		args = []string{root}
	}

	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, BlobExt) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(paths)

	blobs := make([]build.Blob, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, build.Blob{Name: path, Data: data})
	}
	return blobs, nil
}

func buildWithUI(ctx context.Context, blobs []build.Blob, opts build.Options) ([]build.UnitResult, error) {
	events := make(chan build.Event, 256)
	opts.Events = events

	type outcome struct {
		results []build.UnitResult
		err     error
	}
	outcomeCh := make(chan outcome, 1)
	go func() {
		res, err := build.BuildBlobs(ctx, blobs, opts)
		outcomeCh <- outcome{results: res, err: err}
		close(events)
	}()

	names := make([]string, len(blobs))
	for i, b := range blobs {
		names[i] = b.Name
	}
	model := ui.NewProgressModel("building", names, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	out := <-outcomeCh
	if uiErr != nil {
		return out.results, uiErr
	}
	return out.results, out.err
}

// finishBuild prints diagnostics, writes class files and decides the exit
// status. Binaries of clean units are written even when a sibling failed.
func finishBuild(cmd *cobra.Command, blobs []build.Blob, results []build.UnitResult, dir string) error {
	popts := diagfmt.PrettyOpts{
		Color:     colorEnabled(cmd, os.Stderr),
		ShowNotes: true,
	}

	failed := 0
	written := 0
	for i, res := range results {
		if res.Bag != nil && res.Bag.Len() > 0 {
			fmt.Fprintf(os.Stderr, "# %s\n", blobs[i].Name)
			diagfmt.Pretty(os.Stderr, res.Bag, res.Files, popts)
		}
		if res.Bag != nil && res.Bag.HasErrors() {
			failed++
			continue
		}
		for _, bin := range res.Binaries {
			if err := writeClass(dir, bin); err != nil {
				return err
			}
			written++
		}
	}

	if buildTimings {
		for i, res := range results {
			timer := res.Timing
			if len(timer.Phases) == 0 {
				continue
			}
			fmt.Fprintf(os.Stderr, "# %s\n", blobs[i].Name)
			for _, p := range timer.Phases {
				fmt.Fprintf(os.Stderr, "  %-12s %8.2f ms  %s\n", p.Name, p.DurationMS, p.Note)
			}
			fmt.Fprintf(os.Stderr, "  %-12s %8.2f ms\n", "total", timer.TotalMS)
		}
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	if !quiet {
		fmt.Fprintf(os.Stdout, "%d class files written to %s\n", written, dir)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d units failed", failed, len(results))
	}
	return nil
}

func writeClass(dir string, bin build.Binary) error {
	path := filepath.Join(dir, filepath.FromSlash(bin.Internal)+".class")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, bin.Data, 0o644)
}
