package build

import (
	"github.com/odant/conan-freeimage/internal/builderr"
	"github.com/odant/conan-freeimage/pkgs/buildsys"
	"github.com/odant/conan-freeimage/pkgs/buildsys/gnumake"
	"github.com/odant/conan-freeimage/pkgs/buildsys/msbuild"
	"github.com/odant/conan-freeimage/recipe"
)

// Select returns the build strategy for cfg: MSBuild for Windows-ABI
// compilers, make for GCC-family compilers targeting Linux. jobs sets the
// native tool's parallelism, zero keeps the processor count.
func Select(cfg recipe.Config, r *recipe.Recipe, runner buildsys.Runner, jobs int) (buildsys.BuildSystem, error) {
	dispatchErr := func(reason string) error {
		return &builderr.DispatchError{
			OS:       string(cfg.OS()),
			Compiler: cfg.Compiler().Name,
			Arch:     string(cfg.Arch()),
			Reason:   reason,
		}
	}
	switch {
	case cfg.WindowsABI():
		if r.Project == "" {
			return nil, dispatchErr("the recipe has no Visual Studio project")
		}
		if _, err := msbuild.Platform(cfg); err != nil {
			return nil, err
		}
		return msbuild.New(cfg, r.Project, runner).Jobs(jobs), nil
	case cfg.Compiler().GCCFamily() && cfg.OS() == recipe.Linux:
		return gnumake.New(cfg, runner).Makefile(r.Makefile).Jobs(jobs), nil
	case cfg.Compiler().GCCFamily():
		return nil, dispatchErr("gcc, and clang without a Windows runtime, only build for Linux")
	}
	return nil, dispatchErr("Visual Studio compilers only build for Windows")
}
