package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/spf13/cobra"

	"github.com/odant/conan-freeimage/internal/build"
	"github.com/odant/conan-freeimage/internal/cache"
	"github.com/odant/conan-freeimage/internal/config"
	"github.com/odant/conan-freeimage/internal/env"
	"github.com/odant/conan-freeimage/internal/sign"
	"github.com/odant/conan-freeimage/internal/vcs"
	"github.com/odant/conan-freeimage/pkgs/buildsys"
	"github.com/odant/conan-freeimage/recipe"
	"github.com/odant/conan-freeimage/recipe/freeimage"
)

// settingsFlags binds the settings flags of a command. dllSign stays a
// string so an unset flag can be told apart from false.
type settingsFlags struct {
	settings recipe.Settings
	dllSign  string
}

func (f *settingsFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.settings.OS, "os", "", "Target OS (Windows, Linux)")
	flags.StringVar(&f.settings.Compiler, "compiler", "", "Compiler (Visual Studio, msvc, gcc, clang)")
	flags.StringVar(&f.settings.CompilerVersion, "compiler-version", "", "Compiler version")
	flags.StringVar(&f.settings.CompilerRuntime, "runtime", "", "MSVC runtime (MD, MDd, MT, MTd)")
	flags.StringVar(&f.settings.CompilerLibCxx, "libcxx", "", "C++ standard library (ignored)")
	flags.StringVar(&f.settings.BuildType, "build-type", "", "Build type (Debug, Release, RelWithDebInfo)")
	flags.StringVar(&f.settings.Arch, "arch", "", "Architecture (x86_64, x86, mips, armv7)")
	flags.StringVar(&f.dllSign, "dll-sign", "", "Sign Windows DLLs (true, false)")
}

// resolve merges the flags over the profile settings.
func (f *settingsFlags) resolve() (recipe.Config, error) {
	s, err := f.merged()
	if err != nil {
		return recipe.Config{}, err
	}
	return s.Resolve()
}

func (f *settingsFlags) merged() (recipe.Settings, error) {
	s := f.settings
	if f.dllSign != "" {
		v, err := strconv.ParseBool(f.dllSign)
		if err != nil {
			return recipe.Settings{}, fmt.Errorf("--dll-sign: %w", err)
		}
		s.DLLSign = &v
	}
	return s.Merge(profile.Settings), nil
}

// newRecipe returns the FreeImage recipe, with patches read from the
// profile's patch directory when one is set.
func newRecipe(p *config.Profile) (*recipe.Recipe, error) {
	if p.Source.Patches == "" {
		return freeimage.New(), nil
	}
	return freeimage.NewFS(os.DirFS(p.Source.Patches))
}

func workspaceDir(p *config.Profile) (string, error) {
	if p.Workspace != "" {
		return filepath.Abs(p.Workspace)
	}
	return env.WorkDir()
}

// toolOutput is where native tools print: the console when verbose.
func toolOutput() io.Writer {
	if verbose {
		return os.Stderr
	}
	return nil
}

func newBuilder(p *config.Profile) (*build.Builder, error) {
	r, err := newRecipe(p)
	if err != nil {
		return nil, err
	}
	ws, err := workspaceDir(p)
	if err != nil {
		return nil, err
	}
	runner := &buildsys.ExecRunner{Stdout: toolOutput(), Stderr: toolOutput()}
	return &build.Builder{
		Recipe: r,
		Cache:  cache.New(ws),
		Runner: runner,
		Signer: &envSigner{profile: p, runner: runner},
		Jobs:   p.Jobs,
	}, nil
}

// sourceDir returns the source tree to build: the profile's directory, or a
// checkout of the upstream ref inside the workspace.
func sourceDir(ctx context.Context, p *config.Profile) (string, error) {
	if p.Source.Dir != "" {
		if info, err := os.Stat(p.Source.Dir); err != nil {
			return "", err
		} else if !info.IsDir() {
			return "", fmt.Errorf("source %s is not a directory", p.Source.Dir)
		}
		return p.Source.Dir, nil
	}
	ws, err := workspaceDir(p)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(ws, "src", freeimage.Name+"@"+p.Source.Ref)
	fetcher := vcs.NewGitFetcher(vcs.WithProgress(toolOutput()))
	if _, err := fetcher.Fetch(ctx, p.Source.URL, p.Source.Ref, dir); err != nil {
		return "", err
	}
	return dir, nil
}

// envSigner creates its signtool on first use, so configurations that do
// not sign never need a certificate. Profile values fill variables the
// environment leaves unset.
type envSigner struct {
	profile *config.Profile
	runner  buildsys.Runner

	once sync.Once
	tool *sign.SignTool
	err  error
}

func (s *envSigner) Sign(ctx context.Context, path string, digest sign.Digest, timestamp bool) error {
	s.once.Do(func() {
		s.tool, s.err = sign.SignToolFromEnv(s.runner, sign.SignTool{
			Path:         s.profile.Sign.SignTool,
			CertFile:     s.profile.Sign.CertFile,
			TimestampURL: s.profile.Sign.TimestampURL,
		})
	})
	if s.err != nil {
		return s.err
	}
	return s.tool.Sign(ctx, path, digest, timestamp)
}
