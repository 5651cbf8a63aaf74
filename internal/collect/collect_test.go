package collect

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/odant/conan-freeimage/recipe"
)

func touch(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCollect_WindowsQuadrants(t *testing.T) {
	src := t.TempDir()
	pkg := t.TempDir()
	touch(t, src, "Source/FreeImage.h", "header")
	for _, q := range []struct{ dir, base string }{
		{"x64/Release", "FreeImage64"},
		{"x64/Debug", "FreeImage64d"},
		{"Win32/Release", "FreeImage"},
		{"Win32/Debug", "FreeImaged"},
	} {
		for _, ext := range []string{".lib", ".dll", ".pdb"} {
			touch(t, src, q.dir+"/"+q.base+ext, q.dir)
		}
	}

	rules := []recipe.Artifact{{Pattern: "FreeImage.h", Src: "Source", Dst: recipe.Include}}
	for _, dir := range []string{"x64/Release", "x64/Debug", "Win32/Release", "Win32/Debug"} {
		rules = append(rules,
			recipe.Artifact{Pattern: "*.lib", Src: dir, Dst: recipe.Lib},
			recipe.Artifact{Pattern: "*.dll", Src: dir, Dst: recipe.Bin},
			recipe.Artifact{Pattern: "*.pdb", Src: dir, Dst: recipe.Bin},
		)
	}
	got, err := Collect(src, pkg, rules, nil)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(got) != 13 {
		t.Errorf("Collect() copied %d files, want 13: %v", len(got), got)
	}
	for _, name := range []string{"include/FreeImage.h", "lib/FreeImage64d.lib", "bin/FreeImaged.dll", "bin/FreeImage.pdb"} {
		if _, err := os.Stat(filepath.Join(pkg, filepath.FromSlash(name))); err != nil {
			t.Errorf("%s not collected: %v", name, err)
		}
	}
	// sources stay in place
	if _, err := os.Stat(filepath.Join(src, "x64", "Release", "FreeImage64.dll")); err != nil {
		t.Errorf("source moved: %v", err)
	}
}

func TestCollect_SkipsMissingAndOverwrites(t *testing.T) {
	src := t.TempDir()
	pkg := t.TempDir()
	touch(t, src, "a/lib.so", "first")
	touch(t, src, "b/lib.so", "second")
	touch(t, pkg, "lib/lib.so", "stale")

	rules := []recipe.Artifact{
		{Pattern: "lib.so", Src: "a", Dst: recipe.Lib},
		{Pattern: "*.dll", Src: "x64/Release", Dst: recipe.Bin},
		{Pattern: "lib.so", Src: "b", Dst: recipe.Lib},
	}
	got, err := Collect(src, pkg, rules, nil)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(got) != 1 || got[0] != filepath.Join("lib", "lib.so") {
		t.Errorf("Collect() = %v", got)
	}
	data, err := os.ReadFile(filepath.Join(pkg, "lib", "lib.so"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("lib/lib.so = %q, want the last match", data)
	}
	if _, err := os.Stat(filepath.Join(pkg, "bin")); !os.IsNotExist(err) {
		t.Errorf("bin created for an empty match: %v", err)
	}
}

func TestCollect_BadPattern(t *testing.T) {
	_, err := Collect(t.TempDir(), t.TempDir(), []recipe.Artifact{{Pattern: "[", Src: ".", Dst: recipe.Lib}}, nil)
	if err == nil {
		t.Error("Collect() error = nil for a malformed pattern")
	}
}

func TestLink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	pkg := t.TempDir()
	touch(t, pkg, "lib/libfreeimage-3.18.0.so", "elf")

	links := []recipe.Link{{Dir: recipe.Lib, Name: "libfreeimage.so.3", Target: "libfreeimage-3.18.0.so"}}
	if err := Link(pkg, links); err != nil {
		t.Fatalf("Link() error = %v", err)
	}
	// relinking replaces the existing link
	if err := Link(pkg, links); err != nil {
		t.Fatalf("second Link() error = %v", err)
	}
	target, err := os.Readlink(filepath.Join(pkg, "lib", "libfreeimage.so.3"))
	if err != nil {
		t.Fatal(err)
	}
	if target != "libfreeimage-3.18.0.so" {
		t.Errorf("link target = %q", target)
	}

	err = Link(pkg, []recipe.Link{{Dir: recipe.Lib, Name: "libmissing.so.1", Target: "libmissing-1.0.0.so"}})
	if err == nil || !strings.Contains(err.Error(), "libmissing.so.1") {
		t.Errorf("Link() error = %v, want missing target error", err)
	}
}

func TestCopyFile(t *testing.T) {
	src := t.TempDir()
	touch(t, src, "libfreeimage-3.18.0.so", "new")
	dst := filepath.Join(t.TempDir(), "lib", "libfreeimage-3.18.0.so")
	touch(t, filepath.Dir(dst), "libfreeimage-3.18.0.so", "an older and longer library")

	if err := CopyFile(dst, filepath.Join(src, "libfreeimage-3.18.0.so"), 0o755); err != nil {
		t.Fatalf("CopyFile() error = %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Errorf("copied content = %q, want %q", data, "new")
	}

	nested := filepath.Join(t.TempDir(), "a", "b", "FreeImage.h")
	if err := CopyFile(nested, filepath.Join(src, "libfreeimage-3.18.0.so"), 0o644); err != nil {
		t.Fatalf("CopyFile() into a new directory error = %v", err)
	}
}
