// Package builderr defines the failure kinds of a package build.
//
// Every kind is fatal: the pipeline never recovers from one and never
// publishes a partial package. Each type wraps its cause so callers can use
// errors.Is and errors.As on the chain.
package builderr

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError reports an unsupported settings combination. It is
// returned before any build work begins.
type ConfigurationError struct {
	Setting string
	Value   string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid configuration: %s: %s", e.Setting, e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s=%q: %s", e.Setting, e.Value, e.Reason)
}

// PatchApplicationError reports a source patch that could not be parsed or
// applied.
type PatchApplicationError struct {
	Patch string
	File  string // file inside the source tree, empty when parsing failed
	Err   error
}

func (e *PatchApplicationError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("patch %s: %v", e.Patch, e.Err)
	}
	return fmt.Sprintf("patch %s: %s: %v", e.Patch, e.File, e.Err)
}

func (e *PatchApplicationError) Unwrap() error { return e.Err }

// ToolchainMissingError reports a native tool or a generated toolchain file
// that must exist before the native build can run.
type ToolchainMissingError struct {
	Tool string
	Path string
	Err  error
}

func (e *ToolchainMissingError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("toolchain missing: %s (%s): %v", e.Tool, e.Path, e.Err)
	}
	return fmt.Sprintf("toolchain missing: %s: %v", e.Tool, e.Err)
}

func (e *ToolchainMissingError) Unwrap() error { return e.Err }

// DispatchError reports a configuration that no build strategy covers.
type DispatchError struct {
	OS       string
	Compiler string
	Arch     string
	Reason   string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("no build strategy for os=%s compiler=%s arch=%s: %s", e.OS, e.Compiler, e.Arch, e.Reason)
}

// NativeBuildError reports a nonzero exit (or a failure to start) of a
// delegated native tool. Output holds the tail of what the tool printed.
type NativeBuildError struct {
	Tool     string
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *NativeBuildError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed", e.Tool)
	if e.ExitCode > 0 {
		fmt.Fprintf(&b, " with exit code %d", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		b.WriteString("\n")
		b.WriteString(out)
	}
	return b.String()
}

func (e *NativeBuildError) Unwrap() error { return e.Err }

// SigningError reports a failure to sign a produced binary.
type SigningError struct {
	File   string
	Digest string
	Err    error
}

func (e *SigningError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("sign: %v", e.Err)
	}
	return fmt.Sprintf("sign %s (%s): %v", e.File, e.Digest, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// Exit codes returned by the command line tool for each failure kind.
const (
	ExitGeneral          = 1
	ExitConfiguration    = 2
	ExitPatch            = 3
	ExitToolchainMissing = 4
	ExitDispatch         = 5
	ExitNativeBuild      = 6
	ExitSigning          = 7
)

// ExitCode maps err to a process exit code. A nil error maps to 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var (
		cfgErr   *ConfigurationError
		patchErr *PatchApplicationError
		toolErr  *ToolchainMissingError
		dispErr  *DispatchError
		nativErr *NativeBuildError
		signErr  *SigningError
	)
	switch {
	case errors.As(err, &cfgErr):
		return ExitConfiguration
	case errors.As(err, &patchErr):
		return ExitPatch
	case errors.As(err, &toolErr):
		return ExitToolchainMissing
	case errors.As(err, &dispErr):
		return ExitDispatch
	case errors.As(err, &signErr):
		return ExitSigning
	case errors.As(err, &nativErr):
		return ExitNativeBuild
	}
	return ExitGeneral
}
