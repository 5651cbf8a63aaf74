package builderr

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), ExitGeneral},
		{"configuration", &ConfigurationError{Setting: "os", Value: "Darwin", Reason: "unsupported"}, ExitConfiguration},
		{"patch", &PatchApplicationError{Patch: "gcc14.patch", Err: errors.New("conflict")}, ExitPatch},
		{"toolchain", &ToolchainMissingError{Tool: "msbuild", Err: fs.ErrNotExist}, ExitToolchainMissing},
		{"dispatch", &DispatchError{OS: "Linux", Compiler: "msvc", Arch: "x86_64"}, ExitDispatch},
		{"native", &NativeBuildError{Tool: "make", ExitCode: 2}, ExitNativeBuild},
		{"signing", &SigningError{File: "a.dll", Digest: "sha1", Err: errors.New("no cert")}, ExitSigning},
		{"wrapped", fmt.Errorf("build: %w", &NativeBuildError{Tool: "make"}), ExitNativeBuild},
		{"signing over native", &SigningError{File: "a.dll", Err: &NativeBuildError{Tool: "signtool"}}, ExitSigning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := fmt.Errorf("prepare: %w", &ToolchainMissingError{Tool: "msbuild", Path: "x.props", Err: fs.ErrNotExist})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("errors.Is(%v, fs.ErrNotExist) = false", err)
	}
}

func TestNativeBuildErrorMessage(t *testing.T) {
	err := &NativeBuildError{Tool: "make", ExitCode: 2, Output: "cc: error: foo.c\n"}
	msg := err.Error()
	for _, want := range []string{"make failed", "exit code 2", "cc: error: foo.c"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}
