// Package cache indexes the packages published in a workspace.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/odant/conan-freeimage/internal/lockedfile"
)

// Workspace directory layout:
//
//	workspaceDir/
//	  <name>/                        # package-level dir (cacheDir)
//	    .cache.json                  # index: maps "version-config" to an Entry
//	    .cache.lock                  # guards .cache.json
//	  <name>@<version>-<config>/     # published package (PackageDir)
//	    fipkg.yaml
//	    include/
//	    lib/
//	    bin/
const (
	indexFile = ".cache.json"
	indexLock = ".cache.lock"
)

// Entry describes one published package.
type Entry struct {
	Version   string    `json:"version"`
	Config    string    `json:"config"`
	Dir       string    `json:"dir"`
	BuildID   string    `json:"build_id"`
	BuildTime time.Time `json:"build_time"`
}

// Index maps "version-config" keys to published packages.
type Index struct {
	Entries map[string]*Entry `json:"entries"`
}

func key(version, config string) string {
	return version + "-" + config
}

// Get returns the entry for version and config.
func (idx *Index) Get(version, config string) (*Entry, bool) {
	e, ok := idx.Entries[key(version, config)]
	return e, ok
}

// Set records e under its version and config.
func (idx *Index) Set(e *Entry) {
	if idx.Entries == nil {
		idx.Entries = make(map[string]*Entry)
	}
	idx.Entries[key(e.Version, e.Config)] = e
}

// List returns the entries ordered by version, newest first, then by
// config.
func (idx *Index) List() []*Entry {
	out := make([]*Entry, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := semver.Compare(canonical(out[i].Version), canonical(out[j].Version)); c != 0 {
			return c > 0
		}
		return out[i].Config < out[j].Config
	})
	return out
}

func canonical(v string) string {
	return "v" + strings.TrimPrefix(v, "v")
}

// Cache stores package indexes under a workspace directory.
type Cache struct {
	workspaceDir string
}

// New returns a Cache rooted at workspaceDir.
func New(workspaceDir string) *Cache {
	return &Cache{workspaceDir: workspaceDir}
}

// Dir returns the workspace directory.
func (c *Cache) Dir() string { return c.workspaceDir }

// cacheDir returns the package-level directory: workspaceDir/<name>.
func (c *Cache) cacheDir(name string) (string, error) {
	if name == "" || !filepath.IsLocal(name) || strings.ContainsAny(name, `/\@`) {
		return "", fmt.Errorf("cache: invalid package name %q", name)
	}
	return filepath.Join(c.workspaceDir, name), nil
}

// PackageDir returns where the package for name, version and config is
// published: workspaceDir/<name>@<version>-<config>.
func (c *Cache) PackageDir(name, version, config string) (string, error) {
	if _, err := c.cacheDir(name); err != nil {
		return "", err
	}
	return filepath.Join(c.workspaceDir, fmt.Sprintf("%s@%s-%s", name, version, config)), nil
}

// LockDir returns the directory holding the per-configuration build locks
// of name.
func (c *Cache) LockDir(name string) (string, error) {
	dir, err := c.cacheDir(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "locks"), nil
}

// Load reads the index of name. A missing index is empty.
func (c *Cache) Load(name string) (*Index, error) {
	dir, err := c.cacheDir(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &Index{}, nil
		}
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("cache: %s: %w", name, err)
	}
	return &idx, nil
}

// save writes the index of name.
func (c *Cache) save(name string, idx *Index) error {
	dir, err := c.cacheDir(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, indexFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, indexFile))
}

// Update loads the index of name, applies fn and saves the result, holding
// the index lock throughout.
func (c *Cache) Update(name string, fn func(idx *Index) error) error {
	dir, err := c.cacheDir(name)
	if err != nil {
		return err
	}
	unlock, err := lockedfile.MutexAt(filepath.Join(dir, indexLock)).Lock()
	if err != nil {
		return err
	}
	defer unlock()

	idx, err := c.Load(name)
	if err != nil {
		return err
	}
	if err := fn(idx); err != nil {
		return err
	}
	return c.save(name, idx)
}

// Lookup returns the entry for name, version and config if the package is
// indexed and still present on disk.
func (c *Cache) Lookup(name, version, config string) (*Entry, bool, error) {
	idx, err := c.Load(name)
	if err != nil {
		return nil, false, err
	}
	e, ok := idx.Get(version, config)
	if !ok {
		return nil, false, nil
	}
	if info, err := os.Stat(e.Dir); err != nil || !info.IsDir() {
		return nil, false, nil
	}
	return e, true, nil
}
