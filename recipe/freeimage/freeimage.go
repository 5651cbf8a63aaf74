// Package freeimage is the recipe for the FreeImage image codec library.
package freeimage

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/odant/conan-freeimage/recipe"
)

const (
	Name    = "freeimage"
	Version = "3.18.0+4"

	// SourceURL is the upstream mirror fetched when no source directory is given.
	SourceURL = "https://github.com/odant/FreeImage.git"
	// SourceTag is the upstream tag matching Version.
	SourceTag = "v3.18.0"
)

//go:embed patches/*.patch
var patchFS embed.FS

// patchSpec binds a patch file to the configurations it applies to.
type patchSpec struct {
	file string
	when func(cfg recipe.Config) bool
}

// patches lists the source patches in application order.
var patches = []patchSpec{
	{file: "01-sdk-autoselect.patch"},
	{file: "02-windows-version-info.patch", when: isWindows},
	{file: "03-stdlib-compat.patch", when: isWindows},
	{file: "04-source-manifest.patch", when: func(cfg recipe.Config) bool { return !isWindows(cfg) }},
	{file: "05-gcc14.patch", when: func(cfg recipe.Config) bool { return cfg.Compiler().Name == recipe.GCC }},
}

func isWindows(cfg recipe.Config) bool { return cfg.OS() == recipe.Windows }

// New returns the FreeImage recipe with its embedded patches.
func New() *recipe.Recipe {
	sub, err := fs.Sub(patchFS, "patches")
	if err != nil {
		panic(err)
	}
	r, err := NewFS(sub)
	if err != nil {
		panic(err)
	}
	return r
}

// NewFS returns the FreeImage recipe reading its patch files from fsys,
// which must hold every patch by file name at its root.
func NewFS(fsys fs.FS) (*recipe.Recipe, error) {
	r := &recipe.Recipe{
		Name:        Name,
		Version:     Version,
		Description: "FreeImage is an Open Source library project for developers who would like to support popular graphics image formats like PNG, BMP, JPEG, TIFF and others as needed by today's multimedia applications",
		License:     "GPL-2.0-only OR GPL-3.0-only OR FreeImage",
		URL:         "https://github.com/odant/conan-freeimage",
		Project:     "FreeImage.2017.vcxproj",
		Artifacts:   artifacts,
		Links:       links,
		Lookup: recipe.Lookup{
			CMakePackage: "FreeImage",
			CMakeTarget:  "FreeImage::FreeImage",
			PkgConfig:    "freeimage",
		},
	}
	for _, p := range patches {
		data, err := fs.ReadFile(fsys, p.file)
		if err != nil {
			return nil, fmt.Errorf("freeimage: read patch: %w", err)
		}
		r.Patches = append(r.Patches, recipe.Patch{
			Name:  p.file,
			Strip: 1,
			When:  p.when,
			Data:  data,
		})
	}
	return r, nil
}

// windowsOutputs maps each MSBuild output directory to the base name of the
// files built there.
var windowsOutputs = []struct {
	dir, base string
}{
	{"x64/Release", "FreeImage64"},
	{"x64/Debug", "FreeImage64d"},
	{"Win32/Release", "FreeImage"},
	{"Win32/Debug", "FreeImaged"},
}

func artifacts(r *recipe.Recipe, cfg recipe.Config) []recipe.Artifact {
	out := []recipe.Artifact{
		{Pattern: "FreeImage.h", Src: "Source", Dst: recipe.Include},
	}
	if cfg.OS() == recipe.Windows {
		for _, o := range windowsOutputs {
			out = append(out,
				recipe.Artifact{Pattern: o.base + ".lib", Src: o.dir, Dst: recipe.Lib},
				recipe.Artifact{Pattern: o.base + ".dll", Src: o.dir, Dst: recipe.Bin},
				recipe.Artifact{Pattern: o.base + ".pdb", Src: o.dir, Dst: recipe.Bin},
			)
		}
		return out
	}
	return append(out, recipe.Artifact{Pattern: sharedObject(r), Src: ".", Dst: recipe.Lib})
}

func links(r *recipe.Recipe, cfg recipe.Config) []recipe.Link {
	if cfg.OS() != recipe.Linux {
		return nil
	}
	major, err := r.MajorVersion()
	if err != nil {
		return nil
	}
	return []recipe.Link{{
		Dir:    recipe.Lib,
		Name:   "libfreeimage.so." + major,
		Target: sharedObject(r),
	}}
}

// sharedObject returns the file name of the shared library the Makefile
// produces, e.g. "libfreeimage-3.18.0.so".
func sharedObject(r *recipe.Recipe) string {
	v, err := r.UpstreamVersion()
	if err != nil {
		v = r.Version
	}
	return "libfreeimage-" + v + ".so"
}
