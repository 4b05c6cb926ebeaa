// Package prof wraps the runtime profilers behind one session object so the
// CLI can start everything requested by flags and stop it in one place.
package prof

import (
	"errors"
	"os"
	"runtime"
	"runtime/pprof"
)

// Session owns the profile outputs opened for one command invocation.
type Session struct {
	cpuFile *os.File
	memPath string
}

// Start opens the requested profiles. Empty paths disable the corresponding
// profile. The returned session must be stopped even on error paths.
func Start(cpuPath, memPath string) (*Session, error) {
	s := &Session{memPath: memPath}
	if cpuPath != "" {
		f, err := os.Create(cpuPath)
		if err != nil {
			return s, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return s, err
		}
		s.cpuFile = f
	}
	return s, nil
}

// Stop flushes and closes every active profile.
func (s *Session) Stop() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.cpuFile != nil {
		pprof.StopCPUProfile()
		errs = append(errs, s.cpuFile.Close())
		s.cpuFile = nil
	}
	if s.memPath != "" {
		errs = append(errs, writeHeap(s.memPath))
		s.memPath = ""
	}
	return errors.Join(errs...)
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	runtime.GC() // settle the heap before the snapshot
	werr := pprof.WriteHeapProfile(f)
	cerr := f.Close()
	return errors.Join(werr, cerr)
}
