// Package project reads the lumen.toml manifest that roots a project:
// package identity plus build settings the CLI honors.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ManifestName is the file that marks a project root.
const ManifestName = "lumen.toml"

// Manifest is the parsed lumen.toml plus where it was found.
type Manifest struct {
	Path   string // absolute path of the manifest file
	Root   string // directory containing it
	Config Config
}

type Config struct {
	Package PackageConfig `toml:"package"`
	Build   BuildConfig   `toml:"build"`
}

type PackageConfig struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

type BuildConfig struct {
	// OutDir receives the emitted class files, relative to the project
	// root unless absolute. Empty means "classes".
	OutDir string `toml:"out_dir"`
	// Jobs bounds parallel unit compilation; 0 picks the CPU count.
	Jobs int `toml:"jobs"`
	// NoCache disables the on-disk unit cache.
	NoCache bool `toml:"no_cache"`
}

// Find walks up from startDir to locate lumen.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load parses and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &Manifest{Path: abs, Root: filepath.Dir(abs), Config: cfg}, nil
}

// LoadFrom finds the manifest above startDir and loads it.
func LoadFrom(startDir string) (*Manifest, bool, error) {
	path, ok, err := Find(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	m, err := Load(path)
	if err != nil {
		return nil, true, err
	}
	return m, true, nil
}

func (c Config) validate() error {
	var errs []error
	if c.Package.Name == "" {
		errs = append(errs, errors.New("package.name is required"))
	} else if !validPackageName(c.Package.Name) {
		errs = append(errs, fmt.Errorf("package.name %q: lowercase words separated by dots or dashes", c.Package.Name))
	}
	if c.Build.Jobs < 0 {
		errs = append(errs, fmt.Errorf("build.jobs must not be negative, got %d", c.Build.Jobs))
	}
	return errors.Join(errs...)
}

func validPackageName(name string) bool {
	for _, word := range strings.FieldsFunc(name, func(r rune) bool { return r == '.' || r == '-' }) {
		if word == "" {
			return false
		}
		for _, r := range word {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
				return false
			}
		}
	}
	return name != "" && !strings.HasPrefix(name, ".") && !strings.HasSuffix(name, ".")
}

// OutDir resolves the output directory against the project root.
func (m *Manifest) OutDir() string {
	out := m.Config.Build.OutDir
	if out == "" {
		out = "classes"
	}
	if filepath.IsAbs(out) {
		return out
	}
	return filepath.Join(m.Root, out)
}
