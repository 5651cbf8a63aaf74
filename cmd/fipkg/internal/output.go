package internal

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/odant/conan-freeimage/internal/collect"
)

// exportPackage writes the package at srcDir to dest: a .zip archive, a
// .tar.xz archive, or otherwise a directory copy. Symbolic links are kept
// as links.
func exportPackage(srcDir, dest string) error {
	switch {
	case strings.HasSuffix(dest, ".zip"):
		return zipDir(srcDir, dest)
	case strings.HasSuffix(dest, ".tar.xz"):
		return tarXZDir(srcDir, dest)
	}
	return copyDir(srcDir, dest)
}

// walkFiles calls fn for every non-directory entry below srcDir with its
// slash-separated relative name and, for symbolic links, the link target.
func walkFiles(srcDir string, fn func(path, rel string, info fs.FileInfo, link string) error) error {
	return filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		return fn(path, filepath.ToSlash(rel), info, link)
	})
}

func copyDir(srcDir, dest string) error {
	return walkFiles(srcDir, func(path, rel string, info fs.FileInfo, link string) error {
		target := filepath.Join(dest, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if link != "" {
			os.Remove(target)
			return os.Symlink(link, target)
		}
		return collect.CopyFile(target, path, info.Mode().Perm())
	})
}

// zipDir creates a zip archive at dest from the contents of srcDir.
func zipDir(srcDir, dest string) (err error) {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := zip.NewWriter(f)
	err = walkFiles(srcDir, func(path, rel string, info fs.FileInfo, link string) error {
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = rel
		if link != "" {
			writer, err := w.CreateHeader(header)
			if err != nil {
				return err
			}
			_, err = io.WriteString(writer, link)
			return err
		}
		header.Method = zip.Deflate
		writer, err := w.CreateHeader(header)
		if err != nil {
			return err
		}
		return copyTo(writer, path)
	})
	if err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// tarXZDir creates an xz-compressed tar archive at dest from the contents
// of srcDir.
func tarXZDir(srcDir, dest string) (err error) {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	xw, err := xz.NewWriter(f)
	if err != nil {
		return fmt.Errorf("xz: %w", err)
	}
	tw := tar.NewWriter(xw)
	err = walkFiles(srcDir, func(path, rel string, info fs.FileInfo, link string) error {
		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		header.Name = rel
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if link != "" {
			return nil
		}
		return copyTo(tw, path)
	})
	if err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return xw.Close()
}

func copyTo(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
