// Package recipe declares how a native library is patched, built and
// packaged for a given build configuration.
package recipe

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Category is a package subdirectory that receives artifacts.
type Category string

const (
	Include Category = "include"
	Lib     Category = "lib"
	Bin     Category = "bin"
)

// Patch is a unified diff applied to the source tree before compilation
// when When reports true for the configuration.
type Patch struct {
	Name  string
	Strip int // leading path components removed from file names in the diff
	When  func(cfg Config) bool
	Data  []byte
}

// Applies reports whether p applies to cfg. A patch without predicate always
// applies.
func (p Patch) Applies(cfg Config) bool {
	return p.When == nil || p.When(cfg)
}

// Artifact selects produced files to copy into the package. Src is relative
// to the source tree, Pattern is a filepath.Match pattern matched against
// file names in Src. Only the file name is kept in the destination.
type Artifact struct {
	Pattern string
	Src     string
	Dst     Category
}

// Link is a symbolic link created in the package after collection.
type Link struct {
	Dir    Category
	Name   string
	Target string
}

// Lookup holds the names downstream build systems use to find the package.
type Lookup struct {
	CMakePackage string `yaml:"cmake_package" json:"cmake_package"`
	CMakeTarget  string `yaml:"cmake_target" json:"cmake_target"`
	PkgConfig    string `yaml:"pkg_config" json:"pkg_config"`
}

// Recipe describes one packaged library.
type Recipe struct {
	Name        string
	Version     string // upstream version plus recipe revision, e.g. "3.18.0+4"
	Description string
	License     string
	URL         string

	// Project is the Visual Studio project file, relative to the source tree.
	Project string
	// Makefile is the makefile passed to make, relative to the source tree.
	// Empty uses make's default lookup.
	Makefile string

	Patches   []Patch
	Artifacts func(r *Recipe, cfg Config) []Artifact
	Links     func(r *Recipe, cfg Config) []Link
	Lookup    Lookup
}

// semverOf returns the "v"-prefixed form of version, which is what
// x/mod/semver expects.
func semverOf(version string) (string, error) {
	v := "v" + strings.TrimPrefix(version, "v")
	if !semver.IsValid(v) {
		return "", fmt.Errorf("recipe: invalid version %q", version)
	}
	return v, nil
}

// UpstreamVersion returns the library version without the recipe revision:
// "3.18.0+4" yields "3.18.0".
func (r *Recipe) UpstreamVersion() (string, error) {
	v, err := semverOf(r.Version)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(semver.Canonical(v), "v"), nil
}

// Revision returns the recipe revision, the build metadata of Version. It is
// empty when Version carries none.
func (r *Recipe) Revision() string {
	v, err := semverOf(r.Version)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(semver.Build(v), "+")
}

// MajorVersion returns the major component of the upstream version.
func (r *Recipe) MajorVersion() (string, error) {
	v, err := semverOf(r.Version)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(semver.Major(v), "v"), nil
}

// PatchesFor returns the patches that apply to cfg, in declaration order.
func (r *Recipe) PatchesFor(cfg Config) []Patch {
	var out []Patch
	for _, p := range r.Patches {
		if p.Applies(cfg) {
			out = append(out, p)
		}
	}
	return out
}

// ArtifactsFor returns the collection rules for cfg.
func (r *Recipe) ArtifactsFor(cfg Config) []Artifact {
	if r.Artifacts == nil {
		return nil
	}
	return r.Artifacts(r, cfg)
}

// LinksFor returns the symbolic links to create for cfg.
func (r *Recipe) LinksFor(cfg Config) []Link {
	if r.Links == nil {
		return nil
	}
	return r.Links(r, cfg)
}
