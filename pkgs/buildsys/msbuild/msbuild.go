// Package msbuild builds a Visual Studio project with MSBuild.
package msbuild

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/odant/conan-freeimage/internal/builderr"
	"github.com/odant/conan-freeimage/pkgs/buildsys"
	"github.com/odant/conan-freeimage/recipe"
)

// MSBuild upgrades a legacy project file and builds it for one
// configuration.
type MSBuild struct {
	src     *recipe.Project
	project string
	cfg     recipe.Config
	jobs    int
	runner  buildsys.Runner
	env     map[string]string
}

var _ buildsys.BuildSystem = (*MSBuild)(nil)

// New creates an MSBuild strategy building project, relative to the source
// tree, for cfg.
func New(cfg recipe.Config, project string, runner buildsys.Runner) *MSBuild {
	return &MSBuild{
		project: project,
		cfg:     cfg,
		jobs:    runtime.NumCPU(),
		runner:  runner,
		env:     map[string]string{},
	}
}

func (b *MSBuild) Name() string { return "msbuild" }

func (b *MSBuild) Tools() []string { return []string{"devenv", "msbuild"} }

func (b *MSBuild) Source(src *recipe.Project) {
	b.src = src
}

// Jobs sets the number of parallel project builds.
func (b *MSBuild) Jobs(n int) *MSBuild {
	if n > 0 {
		b.jobs = n
	}
	return b
}

func (b *MSBuild) Env(key, value string) {
	if b.env == nil {
		b.env = map[string]string{}
	}
	b.env[key] = value
}

// PropsPath returns the location of the generated toolchain property file.
func (b *MSBuild) PropsPath() string {
	return b.src.Path(PropsFile)
}

// Configuration returns the MSBuild configuration name. RelWithDebInfo has
// no counterpart in the project and builds as Release.
func Configuration(cfg recipe.Config) string {
	if cfg.Debug() {
		return "Debug"
	}
	return "Release"
}

// Platform returns the MSBuild platform name for cfg. The project only
// declares Win32 and x64.
func Platform(cfg recipe.Config) (string, error) {
	switch cfg.Arch() {
	case recipe.X86:
		return "Win32", nil
	case recipe.X86_64:
		return "x64", nil
	}
	return "", &builderr.DispatchError{
		OS:       string(cfg.OS()),
		Compiler: cfg.Compiler().Name,
		Arch:     string(cfg.Arch()),
		Reason:   "the Visual Studio project has no platform for this architecture",
	}
}

// Configure upgrades the project to the installed Visual Studio and writes
// the toolchain property file.
func (b *MSBuild) Configure(ctx context.Context, args ...string) error {
	if _, err := Platform(b.cfg); err != nil {
		return err
	}
	if !b.src.Exists(b.project) {
		return &builderr.ToolchainMissingError{Tool: "msbuild", Path: b.src.Path(b.project), Err: errors.New("no project file in source tree")}
	}
	upgrade := append([]string{b.project, "/Upgrade"}, args...)
	if err := b.runner.Run(ctx, buildsys.Command{
		Name: "devenv",
		Args: upgrade,
		Dir:  b.src.Dir,
		Env:  b.env,
	}); err != nil {
		return err
	}
	if err := NewToolchain(b.cfg).WriteFile(b.PropsPath()); err != nil {
		return fmt.Errorf("msbuild: write toolchain: %w", err)
	}
	return nil
}

// Build runs msbuild with the toolchain property file injected. The file
// must have been generated by Configure.
func (b *MSBuild) Build(ctx context.Context, args ...string) error {
	platform, err := Platform(b.cfg)
	if err != nil {
		return err
	}
	props := b.PropsPath()
	if _, err := os.Stat(props); err != nil {
		return &builderr.ToolchainMissingError{Tool: "msbuild", Path: props, Err: err}
	}
	cmdArgs := []string{
		b.project,
		"/p:Configuration=" + Configuration(b.cfg),
		"/p:Platform=" + platform,
		fmt.Sprintf("/m:%d", b.jobs),
		"/p:ForceImportBeforeCppTargets=" + props,
	}
	cmdArgs = append(cmdArgs, args...)
	return b.runner.Run(ctx, buildsys.Command{
		Name: "msbuild",
		Args: cmdArgs,
		Dir:  b.src.Dir,
		Env:  b.env,
	})
}

// OutputDir returns the source tree; outputs land in <Platform>/<Configuration>.
func (b *MSBuild) OutputDir() string {
	return b.src.Dir
}
