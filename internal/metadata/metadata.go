// Package metadata describes a built package to its consumers.
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/odant/conan-freeimage/recipe"
)

// ManifestFile is the name of the manifest at the root of a package.
const ManifestFile = "fipkg.yaml"

// Package is the manifest of a built package.
type Package struct {
	Name      string            `yaml:"name"`
	Version   string            `yaml:"version"`
	Revision  string            `yaml:"revision,omitempty"`
	Config    string            `yaml:"config"`
	Settings  map[string]string `yaml:"settings"`
	BuildID   string            `yaml:"build_id"`
	BuildTime time.Time         `yaml:"build_time"`

	Libs        []string `yaml:"libs"`
	IncludeDirs []string `yaml:"include_dirs,omitempty"`
	LibDirs     []string `yaml:"lib_dirs,omitempty"`
	BinDirs     []string `yaml:"bin_dirs,omitempty"`

	Lookup recipe.Lookup `yaml:"lookup"`
	Files  []string      `yaml:"files,omitempty"`
}

// New describes the package staged in pkgDir for r built with cfg.
func New(r *recipe.Recipe, cfg recipe.Config, pkgDir string) (*Package, error) {
	version, err := r.UpstreamVersion()
	if err != nil {
		return nil, err
	}
	libs, err := CollectLibs(filepath.Join(pkgDir, string(recipe.Lib)))
	if err != nil {
		return nil, err
	}
	p := &Package{
		Name:      r.Name,
		Version:   version,
		Revision:  r.Revision(),
		Config:    cfg.String(),
		Settings:  cfg.Values(),
		BuildID:   uuid.NewString(),
		BuildTime: time.Now().UTC().Truncate(time.Second),
		Libs:      libs,
		Lookup:    r.Lookup,
	}
	for _, dir := range []struct {
		cat  recipe.Category
		dest *[]string
	}{
		{recipe.Include, &p.IncludeDirs},
		{recipe.Lib, &p.LibDirs},
		{recipe.Bin, &p.BinDirs},
	} {
		if info, err := os.Stat(filepath.Join(pkgDir, string(dir.cat))); err == nil && info.IsDir() {
			*dir.dest = []string{string(dir.cat)}
		}
	}
	return p, nil
}

// libExts are the file extensions recognized as libraries.
var libExts = []string{".lib", ".a", ".so", ".dylib"}

// CollectLibs returns the names to link against for the libraries in dir:
// the file name without extension, and without the "lib" prefix for Unix
// libraries. Symbolic links are skipped so a versioned shared object and its
// links yield one name. A missing dir yields no names.
func CollectLibs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var libs []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !slices.Contains(libExts, ext) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ext)
		if ext != ".lib" {
			name = strings.TrimPrefix(name, "lib")
		}
		if name != "" {
			libs = append(libs, name)
		}
	}
	sort.Strings(libs)
	return slices.Compact(libs), nil
}

// Write stores p as the manifest of the package in dir.
func (p *Package) Write(dir string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644)
}

// Read loads the manifest of the package in dir.
func Read(dir string) (*Package, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var p Package
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestFile, err)
	}
	return &p, nil
}
