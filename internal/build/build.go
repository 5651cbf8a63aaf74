// Package build runs the package pipeline for one configuration: prepare the
// source, build it natively, collect, sign, describe and publish.
package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/odant/conan-freeimage/internal/builderr"
	"github.com/odant/conan-freeimage/internal/cache"
	"github.com/odant/conan-freeimage/internal/collect"
	"github.com/odant/conan-freeimage/internal/lockedfile"
	"github.com/odant/conan-freeimage/internal/metadata"
	"github.com/odant/conan-freeimage/internal/patch"
	"github.com/odant/conan-freeimage/internal/sign"
	"github.com/odant/conan-freeimage/pkgs/buildsys"
	"github.com/odant/conan-freeimage/recipe"
)

// Builder builds packages of one recipe into a workspace.
type Builder struct {
	Recipe *recipe.Recipe
	Cache  *cache.Cache
	Runner buildsys.Runner
	// Signer signs Windows DLLs. It may be nil when no configuration
	// requests signing.
	Signer sign.Signer
	// LookPath resolves native tools, exec.LookPath when nil.
	LookPath buildsys.LookPathFunc
	Jobs     int
	Logger   *slog.Logger
}

// Result describes a published package.
type Result struct {
	Dir     string
	Package *metadata.Package
	// Cached reports that an existing package was reused.
	Cached bool
	Signed []string
}

// Build produces the package for cfg from the tree at sourceDir, which is
// left untouched. An already published package is reused unless force is
// set. Nothing is published when any step fails.
func (b *Builder) Build(ctx context.Context, cfg recipe.Config, sourceDir string, force bool) (*Result, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := b.Recipe
	logger = logger.With("package", r.Name, "config", cfg.String())

	bs, err := Select(cfg, r, b.Runner, b.Jobs)
	if err != nil {
		return nil, err
	}
	version, err := r.UpstreamVersion()
	if err != nil {
		return nil, err
	}
	pkgDir, err := b.Cache.PackageDir(r.Name, version, cfg.String())
	if err != nil {
		return nil, err
	}

	unlock, err := b.lock(r.Name, cfg)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Another process may have published it while we waited for the lock.
	if !force {
		if e, ok, err := b.Cache.Lookup(r.Name, version, cfg.String()); err != nil {
			return nil, err
		} else if ok {
			pkg, err := metadata.Read(e.Dir)
			if err != nil {
				return nil, fmt.Errorf("cached package %s: %w", e.Dir, err)
			}
			logger.Info("package up to date", "dir", e.Dir)
			return &Result{Dir: e.Dir, Package: pkg, Cached: true}, nil
		}
	}

	if err := buildsys.CheckTools(bs.Tools(), b.LookPath); err != nil {
		return nil, err
	}

	scratch, err := os.MkdirTemp(b.Cache.Dir(), ".build-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratch)

	src := recipe.NewProject(filepath.Join(scratch, "src"), cfg)
	logger.Info("preparing source", "from", sourceDir)
	if err := copySource(src.Dir, sourceDir); err != nil {
		return nil, fmt.Errorf("copy source: %w", err)
	}
	if err := patch.For(r, cfg).Apply(ctx, src.Dir, logger); err != nil {
		return nil, err
	}

	bs.Source(src)
	logger.Info("configuring", "buildsystem", bs.Name())
	if err := bs.Configure(ctx); err != nil {
		return nil, err
	}
	logger.Info("building", "buildsystem", bs.Name())
	if err := bs.Build(ctx); err != nil {
		return nil, err
	}

	staging := filepath.Join(scratch, "pkg")
	files, err := collect.Collect(bs.OutputDir(), staging, r.ArtifactsFor(cfg), logger)
	if err != nil {
		return nil, err
	}
	links := r.LinksFor(cfg)
	if err := collect.Link(staging, links); err != nil {
		return nil, err
	}
	for _, l := range links {
		files = append(files, filepath.Join(string(l.Dir), l.Name))
	}

	pkg, err := metadata.New(r, cfg, staging)
	if err != nil {
		return nil, err
	}
	if len(pkg.Libs) == 0 {
		return nil, &builderr.NativeBuildError{Tool: bs.Name(), Err: errors.New("no library was produced")}
	}

	var signed []string
	if cfg.Sign() {
		if b.Signer == nil {
			return nil, &builderr.SigningError{Err: errors.New("signing is enabled but no signer is configured")}
		}
		if signed, err = sign.SignAll(ctx, b.Signer, filepath.Join(staging, string(recipe.Bin)), cfg, logger); err != nil {
			return nil, err
		}
		for i, path := range signed {
			rel, err := filepath.Rel(staging, path)
			if err != nil {
				return nil, err
			}
			signed[i] = filepath.ToSlash(rel)
		}
	}

	for i, f := range files {
		files[i] = filepath.ToSlash(f)
	}
	pkg.Files = files
	if err := pkg.Write(staging); err != nil {
		return nil, err
	}
	if cfg.OS() == recipe.Linux && r.Lookup.PkgConfig != "" {
		if err := pkg.WritePkgConfig(staging, r.Description); err != nil {
			return nil, err
		}
	}

	if err := publish(staging, pkgDir); err != nil {
		return nil, err
	}
	err = b.Cache.Update(r.Name, func(idx *cache.Index) error {
		idx.Set(&cache.Entry{
			Version:   version,
			Config:    cfg.String(),
			Dir:       pkgDir,
			BuildID:   pkg.BuildID,
			BuildTime: pkg.BuildTime,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("package published", "dir", pkgDir, "libs", pkg.Libs)
	return &Result{Dir: pkgDir, Package: pkg, Signed: signed}, nil
}

// lock serializes builds of one configuration across processes.
func (b *Builder) lock(name string, cfg recipe.Config) (unlock func(), err error) {
	dir, err := b.Cache.LockDir(name)
	if err != nil {
		return nil, err
	}
	return lockedfile.MutexAt(filepath.Join(dir, cfg.String()+".lock")).Lock()
}

// publish moves the staged package to dir, replacing an older package.
func publish(staging, dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return err
	}
	return os.Rename(staging, dir)
}

// copySource copies the tree at src to dst, leaving out version control
// metadata. Symbolic links are recreated, not followed.
func copySource(dst, src string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		target := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return os.WriteFile(target, data, info.Mode().Perm()|0o200)
		}
		return nil
	})
}
