package build

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"lumen/internal/diag"
	"lumen/internal/project"
)

// Bump when the payload layout changes; stale entries are simply misses.
const cacheSchemaVersion uint16 = 1

// DiskCache memoizes compiled class files by the digest of the unit blob
// that produced them. Only clean results are stored: a unit with any
// diagnostic is recompiled every time so its messages are never lost.
// Safe for concurrent use. A nil cache is a valid no-op cache.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

type cachePayload struct {
	Schema  uint16
	Package string
	Names   []string
	Blobs   [][]byte
}

// OpenDiskCache roots a cache at the standard user cache location.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDiskCacheAt(filepath.Join(base, app))
}

// OpenDiskCacheAt roots a cache at an explicit directory.
func OpenDiskCacheAt(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func blobDigest(blob []byte) project.Digest {
	return project.Digest(sha256.Sum256(blob))
}

func (c *DiskCache) pathFor(key project.Digest) string {
	return filepath.Join(c.dir, "units", hex.EncodeToString(key[:])+".mp")
}

// Lookup returns the cached result for a blob, if any.
func (c *DiskCache) Lookup(blob []byte) (UnitResult, bool) {
	if c == nil {
		return UnitResult{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.pathFor(blobDigest(blob)))
	if err != nil {
		// a miss, including unreadable entries
		if !errors.Is(err, fs.ErrNotExist) {
			_ = os.Remove(c.pathFor(blobDigest(blob)))
		}
		return UnitResult{}, false
	}
	var p cachePayload
	if err := msgpack.Unmarshal(data, &p); err != nil || p.Schema != cacheSchemaVersion {
		return UnitResult{}, false
	}
	if len(p.Names) != len(p.Blobs) {
		return UnitResult{}, false
	}
	res := UnitResult{Package: p.Package, Bag: diag.NewBag(1)}
	for i, name := range p.Names {
		res.Binaries = append(res.Binaries, Binary{Internal: name, Data: p.Blobs[i]})
	}
	return res, true
}

// Store records a clean result under the blob's digest. Results carrying any
// diagnostic are skipped.
func (c *DiskCache) Store(blob []byte, res UnitResult) {
	if c == nil || res.Bag == nil || res.Bag.Len() > 0 || len(res.Binaries) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := cachePayload{Schema: cacheSchemaVersion, Package: res.Package}
	for _, b := range res.Binaries {
		p.Names = append(p.Names, b.Internal)
		p.Blobs = append(p.Blobs, b.Data)
	}
	data, err := msgpack.Marshal(&p)
	if err != nil {
		return
	}

	path := c.pathFor(blobDigest(blob))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return
	}
	name := f.Name()
	_, werr := f.Write(data)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(name)
		return
	}
	// atomic replace keeps concurrent readers safe
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
	}
}
