// Package collect copies build outputs into a package layout.
package collect

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/odant/conan-freeimage/recipe"
)

// Collect copies the files matched by rules from srcDir into pkgDir and
// returns the copied files relative to pkgDir. Only file names are kept, so
// a later match overwrites an earlier one with the same name. Sources are
// never moved or modified. Rules that match nothing are skipped.
func Collect(srcDir, pkgDir string, rules []recipe.Artifact, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	seen := map[string]bool{}
	var copied []string
	for _, rule := range rules {
		matches, err := filepath.Glob(filepath.Join(srcDir, filepath.FromSlash(rule.Src), rule.Pattern))
		if err != nil {
			return nil, fmt.Errorf("collect %s/%s: %w", rule.Src, rule.Pattern, err)
		}
		if len(matches) == 0 {
			logger.Debug("no match", "src", rule.Src, "pattern", rule.Pattern)
			continue
		}
		sort.Strings(matches)
		for _, src := range matches {
			info, err := os.Stat(src)
			if err != nil {
				return nil, err
			}
			if !info.Mode().IsRegular() {
				continue
			}
			rel := filepath.Join(string(rule.Dst), filepath.Base(src))
			if err := CopyFile(filepath.Join(pkgDir, rel), src, info.Mode().Perm()); err != nil {
				return nil, fmt.Errorf("collect %s: %w", src, err)
			}
			logger.Debug("collected", "file", rel)
			if !seen[rel] {
				seen[rel] = true
				copied = append(copied, rel)
			}
		}
	}
	return copied, nil
}

// Link creates the symbolic links in pkgDir, replacing whatever exists at
// their names. Targets are relative to the link's directory.
func Link(pkgDir string, links []recipe.Link) error {
	for _, l := range links {
		dir := filepath.Join(pkgDir, string(l.Dir))
		if _, err := os.Stat(filepath.Join(dir, l.Target)); err != nil {
			return fmt.Errorf("link %s: target: %w", l.Name, err)
		}
		path := filepath.Join(dir, l.Name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		if err := os.Symlink(l.Target, path); err != nil {
			return fmt.Errorf("link %s: %w", l.Name, err)
		}
	}
	return nil
}

// CopyFile copies the regular file src to dst with permissions perm,
// creating the parent directory and truncating an existing dst.
func CopyFile(dst, src string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
