// Package gnumake builds a source tree with its Makefile.
package gnumake

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/odant/conan-freeimage/internal/builderr"
	"github.com/odant/conan-freeimage/pkgs/buildsys"
	"github.com/odant/conan-freeimage/recipe"
)

// Make runs make in the source tree with the flags of one configuration.
// The flags reach the make process only, through its environment.
type Make struct {
	src      *recipe.Project
	makefile string
	jobs     int
	runner   buildsys.Runner
	flags    Flags
	env      map[string]string
}

var _ buildsys.BuildSystem = (*Make)(nil)

// New creates a make strategy for cfg running commands through runner.
func New(cfg recipe.Config, runner buildsys.Runner) *Make {
	m := &Make{
		jobs:   runtime.NumCPU(),
		runner: runner,
		flags:  NewFlags(cfg),
		env:    map[string]string{},
	}
	if cfg.Compiler().Name == recipe.Clang {
		m.env["CC"] = "clang"
		m.env["CXX"] = "clang++"
	} else {
		m.env["CC"] = "gcc"
		m.env["CXX"] = "g++"
	}
	return m
}

func (m *Make) Name() string { return "make" }

func (m *Make) Tools() []string {
	return []string{"make", m.env["CC"], m.env["CXX"]}
}

func (m *Make) Source(src *recipe.Project) {
	m.src = src
}

// Makefile selects the makefile passed with -f. Empty uses make's default
// lookup.
func (m *Make) Makefile(name string) *Make {
	m.makefile = name
	return m
}

// Jobs sets the number of parallel jobs.
func (m *Make) Jobs(n int) *Make {
	if n > 0 {
		m.jobs = n
	}
	return m
}

func (m *Make) Env(key, value string) {
	if m.env == nil {
		m.env = map[string]string{}
	}
	m.env[key] = value
}

// Flags returns the compiler and linker flags of the build.
func (m *Make) Flags() Flags { return m.flags }

// Configure checks that the tree carries a makefile; the Makefile path has no
// separate configuration step.
func (m *Make) Configure(ctx context.Context, args ...string) error {
	names := []string{m.makefile}
	if m.makefile == "" {
		names = []string{"GNUmakefile", "makefile", "Makefile"}
	}
	for _, name := range names {
		if m.src.Exists(name) {
			return nil
		}
	}
	path := m.src.Path(names[len(names)-1])
	return &builderr.ToolchainMissingError{Tool: "make", Path: path, Err: errors.New("no makefile in source tree")}
}

func (m *Make) Build(ctx context.Context, args ...string) error {
	cmdArgs := []string{}
	if m.makefile != "" {
		cmdArgs = append(cmdArgs, "-f", m.makefile)
	}
	cmdArgs = append(cmdArgs, fmt.Sprintf("-j%d", m.jobs))
	cmdArgs = append(cmdArgs, args...)
	return m.runner.Run(ctx, buildsys.Command{
		Name: "make",
		Args: cmdArgs,
		Dir:  m.src.Dir,
		Env:  m.environ(),
	})
}

// environ merges the flags over the other overrides.
func (m *Make) environ() map[string]string {
	env := make(map[string]string, len(m.env)+len(m.flags))
	for k, v := range m.env {
		env[k] = v
	}
	for k, v := range m.flags {
		env[k] = v
	}
	return env
}

// OutputDir returns the source tree: the Makefile builds in place.
func (m *Make) OutputDir() string {
	return m.src.Dir
}
