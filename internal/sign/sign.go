// Package sign signs the Windows binaries of a package.
package sign

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odant/conan-freeimage/internal/builderr"
	"github.com/odant/conan-freeimage/recipe"
)

// Digest is a signature digest algorithm.
type Digest string

const (
	SHA1   Digest = "sha1"
	SHA256 Digest = "sha256"
)

// Digests lists the algorithms every binary is signed with, in order. The
// second signature is appended to the first.
var Digests = []Digest{SHA1, SHA256}

// Signer signs one file.
type Signer interface {
	Sign(ctx context.Context, path string, digest Digest, timestamp bool) error
}

// SignAll signs every DLL in binDir with each of Digests when cfg enables
// signing. A trusted timestamp is requested for Release builds only. It
// returns the signed files.
func SignAll(ctx context.Context, s Signer, binDir string, cfg recipe.Config, logger *slog.Logger) ([]string, error) {
	if !cfg.Sign() {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	dlls, err := findDLLs(binDir)
	if err != nil {
		return nil, err
	}
	timestamp := cfg.BuildType() == recipe.Release
	for _, dll := range dlls {
		for _, d := range Digests {
			logger.Info("signing", "file", filepath.Base(dll), "digest", d, "timestamp", timestamp)
			if err := s.Sign(ctx, dll, d, timestamp); err != nil {
				var signErr *builderr.SigningError
				if errors.As(err, &signErr) {
					return nil, err
				}
				return nil, &builderr.SigningError{File: dll, Digest: string(d), Err: err}
			}
		}
	}
	return dlls, nil
}

func findDLLs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var dlls []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".dll") {
			dlls = append(dlls, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(dlls)
	return dlls, nil
}
