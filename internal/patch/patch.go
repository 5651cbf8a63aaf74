// Package patch applies unified diffs to a source tree.
package patch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/odant/conan-freeimage/internal/builderr"
	"github.com/odant/conan-freeimage/recipe"
)

// Set is an ordered list of patches.
type Set []recipe.Patch

// For returns the patches of r that apply to cfg, in declaration order.
func For(r *recipe.Recipe, cfg recipe.Config) Set {
	return Set(r.PatchesFor(cfg))
}

// Apply applies every patch of s to the tree rooted at dir, in order. The
// first failure stops the sequence.
func (s Set) Apply(ctx context.Context, dir string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for _, p := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Info("applying patch", "patch", p.Name)
		if err := Apply(dir, p); err != nil {
			return err
		}
	}
	return nil
}

// result is the new content of one file, computed before anything is
// written.
type result struct {
	path    string
	data    []byte
	mode    fs.FileMode
	deleted bool
}

// Apply applies p to the tree rooted at dir. All files of the patch are
// computed in memory first, so a conflict in any of them leaves the tree
// untouched.
func Apply(dir string, p recipe.Patch) error {
	files, _, err := gitdiff.Parse(bytes.NewReader(p.Data))
	if err != nil {
		return &builderr.PatchApplicationError{Patch: p.Name, Err: err}
	}
	if len(files) == 0 {
		return &builderr.PatchApplicationError{Patch: p.Name, Err: errors.New("no file changes")}
	}

	results := make([]result, 0, len(files))
	for _, f := range files {
		r, err := applyFile(dir, p.Strip, f)
		if err != nil {
			return &builderr.PatchApplicationError{Patch: p.Name, File: fileName(f), Err: err}
		}
		results = append(results, r)
	}

	for _, r := range results {
		if err := write(r); err != nil {
			return &builderr.PatchApplicationError{Patch: p.Name, File: r.path, Err: err}
		}
	}
	return nil
}

func fileName(f *gitdiff.File) string {
	if f.IsDelete {
		return f.OldName
	}
	return f.NewName
}

func applyFile(dir string, strip int, f *gitdiff.File) (result, error) {
	name, err := stripPath(fileName(f), strip)
	if err != nil {
		return result{}, err
	}
	path := filepath.Join(dir, filepath.FromSlash(name))

	if f.IsDelete {
		if _, err := os.Stat(path); err != nil {
			return result{}, err
		}
		return result{path: path, deleted: true}, nil
	}

	var src []byte
	mode := fs.FileMode(0o644)
	if !f.IsNew {
		info, err := os.Stat(path)
		if err != nil {
			return result{}, err
		}
		mode = info.Mode().Perm()
		if src, err = os.ReadFile(path); err != nil {
			return result{}, err
		}
	}
	if f.NewMode != 0 {
		mode = f.NewMode.Perm()
	}

	located, err := locate(f, src)
	if err != nil {
		return result{}, err
	}
	var dst bytes.Buffer
	if err := gitdiff.Apply(&dst, bytes.NewReader(src), located); err != nil {
		return result{}, err
	}
	return result{path: path, data: dst.Bytes(), mode: mode}, nil
}

// locate returns a copy of f with every text fragment moved to where its
// context and removed lines occur in src, searching outward from the
// recorded position. A hunk may move by any offset but must match exactly,
// apart from CRLF line endings, which the moved hunk adopts from src.
func locate(f *gitdiff.File, src []byte) (*gitdiff.File, error) {
	if f.IsBinary || f.IsNew || len(f.TextFragments) == 0 {
		return f, nil
	}
	lines := strings.SplitAfter(string(src), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	moved := *f
	moved.TextFragments = make([]*gitdiff.TextFragment, len(f.TextFragments))
	var offset, next int64
	for i, frag := range f.TextFragments {
		var pre []string
		for _, l := range frag.Lines {
			if l.Old() {
				pre = append(pre, l.Line)
			}
		}
		at, ok := search(lines, pre, frag.OldPosition-1+offset, next)
		if !ok {
			return nil, fmt.Errorf("hunk #%d %s: context not found", i+1, strings.TrimSpace(frag.Header()))
		}
		c := *frag
		offset = at + 1 - frag.OldPosition
		c.OldPosition += offset
		c.NewPosition += offset
		if len(pre) > 0 && strings.HasSuffix(lines[at], "\r\n") {
			c.Lines = crlf(frag.Lines)
		}
		moved.TextFragments[i] = &c
		next = at + frag.OldLines
	}
	return &moved, nil
}

// search returns the line index nearest to want, not before from, where pre
// occurs in lines.
func search(lines, pre []string, want, from int64) (int64, bool) {
	last := int64(len(lines) - len(pre))
	for d := int64(0); ; d++ {
		lo, hi := want-d, want+d
		if lo < from && hi > last {
			return 0, false
		}
		if lo >= from && lo <= last && matchAt(lines[lo:], pre) {
			return lo, true
		}
		if d > 0 && hi >= from && hi <= last && matchAt(lines[hi:], pre) {
			return hi, true
		}
	}
}

func matchAt(lines, pre []string) bool {
	for i, l := range pre {
		if trimEOL(lines[i]) != trimEOL(l) {
			return false
		}
	}
	return true
}

func trimEOL(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

func crlf(lines []gitdiff.Line) []gitdiff.Line {
	out := make([]gitdiff.Line, len(lines))
	for i, l := range lines {
		if strings.HasSuffix(l.Line, "\n") && !strings.HasSuffix(l.Line, "\r\n") {
			l.Line = strings.TrimSuffix(l.Line, "\n") + "\r\n"
		}
		out[i] = l
	}
	return out
}

func write(r result) error {
	if r.deleted {
		return os.Remove(r.path)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(r.path, r.data, r.mode)
}

// stripPath removes the first n slash-separated components of name, like
// patch -p<n>. The result must stay inside the tree.
func stripPath(name string, n int) (string, error) {
	orig := name
	for i := 0; i < n; i++ {
		_, rest, ok := strings.Cut(name, "/")
		if !ok {
			return "", fmt.Errorf("cannot strip %d components from %q", n, orig)
		}
		name = rest
	}
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return "", fmt.Errorf("path %q escapes the source tree", orig)
	}
	return name, nil
}
