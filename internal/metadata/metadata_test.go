package metadata

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/odant/conan-freeimage/recipe"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCollectLibs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"FreeImage64.lib", "FreeImage64d.lib", "FreeImage.lib", "libz.a", "README.txt", "libfreeimage-3.18.0.so"} {
		touch(t, dir, name)
	}
	if runtime.GOOS != "windows" {
		if err := os.Symlink("libfreeimage-3.18.0.so", filepath.Join(dir, "libfreeimage.so")); err != nil {
			t.Fatal(err)
		}
	}
	got, err := CollectLibs(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"FreeImage", "FreeImage64", "FreeImage64d", "freeimage-3.18.0", "z"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("CollectLibs() = %v, want %v", got, want)
	}

	got, err = CollectLibs(filepath.Join(dir, "missing"))
	if err != nil || got != nil {
		t.Errorf("CollectLibs(missing) = %v, %v", got, err)
	}
}

func testRecipe() *recipe.Recipe {
	return &recipe.Recipe{
		Name:    "freeimage",
		Version: "3.18.0+4",
		Lookup:  recipe.Lookup{CMakePackage: "FreeImage", CMakeTarget: "FreeImage::FreeImage", PkgConfig: "freeimage"},
	}
}

func TestNewWriteRead(t *testing.T) {
	pkg := t.TempDir()
	touch(t, pkg, "include/FreeImage.h")
	touch(t, pkg, "lib/libfreeimage-3.18.0.so")

	cfg, err := recipe.Settings{OS: "Linux", Compiler: "gcc", CompilerVersion: "13", BuildType: "Release", Arch: "x86_64"}.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	p, err := New(testRecipe(), cfg, pkg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.Version != "3.18.0" || p.Revision != "4" || p.Config != cfg.String() {
		t.Errorf("New() = %+v", p)
	}
	if _, err := uuid.Parse(p.BuildID); err != nil {
		t.Errorf("BuildID %q is not a uuid: %v", p.BuildID, err)
	}
	if len(p.IncludeDirs) != 1 || len(p.LibDirs) != 1 || len(p.BinDirs) != 0 {
		t.Errorf("dirs = %v %v %v", p.IncludeDirs, p.LibDirs, p.BinDirs)
	}
	if _, ok := p.Settings["dll_sign"]; ok {
		t.Error("Linux manifest carries dll_sign")
	}

	if err := p.Write(pkg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := Read(pkg)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.BuildID != p.BuildID || !got.BuildTime.Equal(p.BuildTime) || got.Lookup != p.Lookup {
		t.Errorf("Read() = %+v, want %+v", got, p)
	}
	if strings.Join(got.Libs, ",") != "freeimage-3.18.0" {
		t.Errorf("Libs = %v", got.Libs)
	}
}

func TestRead_Invalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte("name: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(dir); err == nil {
		t.Error("Read() error = nil for invalid YAML")
	}
	if _, err := Read(t.TempDir()); !os.IsNotExist(err) {
		t.Errorf("Read(empty) error = %v, want not exist", err)
	}
}

func TestPkgConfig(t *testing.T) {
	p := &Package{
		Name:    "freeimage",
		Version: "3.18.0",
		Libs:    []string{"freeimage-3.18.0"},
		Lookup:  recipe.Lookup{PkgConfig: "freeimage"},
	}
	want := `prefix=${pcfiledir}/../..
includedir=${prefix}/include
libdir=${prefix}/lib

Name: freeimage
Description: image codecs
Version: 3.18.0
Cflags: -I${includedir}
Libs: -L${libdir} -lfreeimage-3.18.0
`
	if got := p.PkgConfig("image codecs"); got != want {
		t.Errorf("PkgConfig() =\n%s\nwant\n%s", got, want)
	}

	dir := t.TempDir()
	if err := p.WritePkgConfig(dir, "image codecs"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "lib", "pkgconfig", "freeimage.pc")); err != nil {
		t.Errorf("pkg-config file not written: %v", err)
	}

	p.Lookup.PkgConfig = ""
	if p.PkgConfigPath() != "" {
		t.Errorf("PkgConfigPath() = %q without a pkg-config name", p.PkgConfigPath())
	}
}
