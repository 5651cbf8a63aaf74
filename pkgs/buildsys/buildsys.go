package buildsys

import (
	"context"
	"os/exec"

	"github.com/odant/conan-freeimage/internal/builderr"
	"github.com/odant/conan-freeimage/recipe"
)

// BuildSystem captures the shared lifecycle of a native build strategy
// (MSBuild, make). Implementations hold the resolved configuration and turn
// it into commands for a Runner.
type BuildSystem interface {
	// Name identifies the strategy in logs.
	Name() string

	// Tools lists the executables the strategy invokes.
	Tools() []string

	// Source sets the source tree the strategy builds in place.
	Source(src *recipe.Project)

	// Environment override applied to every command of the strategy.
	Env(key, val string)

	// Lifecycle.
	Configure(ctx context.Context, args ...string) error
	Build(ctx context.Context, args ...string) error

	// Where artifacts land, relative paths are resolved against it.
	OutputDir() string
}

// Command is one invocation of a native tool. Env holds overrides merged
// over the current process environment for this process only.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  map[string]string
}

// Runner executes native tool commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// LookPathFunc resolves an executable name, like exec.LookPath.
type LookPathFunc func(file string) (string, error)

// CheckTools reports the first tool in tools that lookPath cannot find. A
// nil lookPath uses exec.LookPath.
func CheckTools(tools []string, lookPath LookPathFunc) error {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	for _, tool := range tools {
		if _, err := lookPath(tool); err != nil {
			return &builderr.ToolchainMissingError{Tool: tool, Err: err}
		}
	}
	return nil
}
