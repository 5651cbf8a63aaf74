package sign

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/odant/conan-freeimage/internal/builderr"
	"github.com/odant/conan-freeimage/pkgs/buildsys"
	"github.com/odant/conan-freeimage/recipe"
)

type signCall struct {
	file      string
	digest    Digest
	timestamp bool
}

// fakeSigner records calls and fails on the file named in failOn.
type fakeSigner struct {
	calls  []signCall
	failOn string
}

func (f *fakeSigner) Sign(ctx context.Context, path string, digest Digest, timestamp bool) error {
	f.calls = append(f.calls, signCall{filepath.Base(path), digest, timestamp})
	if f.failOn != "" && filepath.Base(path) == f.failOn {
		return errors.New("certificate expired")
	}
	return nil
}

func windowsConfig(t *testing.T, buildType string, sign *bool) recipe.Config {
	t.Helper()
	cfg, err := recipe.Settings{OS: "Windows", Compiler: recipe.VisualStudio, CompilerVersion: "15", BuildType: buildType, Arch: "x86_64", DLLSign: sign}.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func binDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("MZ"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestSignAll(t *testing.T) {
	tests := []struct {
		buildType string
		timestamp bool
	}{
		{"Release", true},
		{"Debug", false},
		{"RelWithDebInfo", false},
	}
	for _, tt := range tests {
		t.Run(tt.buildType, func(t *testing.T) {
			dir := binDir(t, "FreeImage64.dll", "FreeImage.DLL", "FreeImage64.pdb")
			s := &fakeSigner{}
			signed, err := SignAll(context.Background(), s, dir, windowsConfig(t, tt.buildType, nil), nil)
			if err != nil {
				t.Fatalf("SignAll() error = %v", err)
			}
			if len(signed) != 2 {
				t.Errorf("signed %v, want 2 DLLs", signed)
			}
			if len(s.calls) != 4 {
				t.Fatalf("Sign called %d times, want 4: %+v", len(s.calls), s.calls)
			}
			perFile := map[string][]Digest{}
			for _, c := range s.calls {
				if c.timestamp != tt.timestamp {
					t.Errorf("%+v: timestamp = %v, want %v", c, c.timestamp, tt.timestamp)
				}
				perFile[c.file] = append(perFile[c.file], c.digest)
			}
			for file, digests := range perFile {
				if len(digests) != 2 || digests[0] != SHA1 || digests[1] != SHA256 {
					t.Errorf("%s: digests = %v, want [sha1 sha256]", file, digests)
				}
			}
		})
	}
}

func TestSignAll_Disabled(t *testing.T) {
	off := false
	s := &fakeSigner{}
	dir := binDir(t, "FreeImage64.dll")
	if _, err := SignAll(context.Background(), s, dir, windowsConfig(t, "Release", &off), nil); err != nil {
		t.Fatal(err)
	}
	linux, err := recipe.Settings{OS: "Linux", Compiler: "gcc", BuildType: "Release", Arch: "x86_64"}.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := SignAll(context.Background(), s, dir, linux, nil); err != nil {
		t.Fatal(err)
	}
	if len(s.calls) != 0 {
		t.Errorf("Sign called %d times with signing disabled", len(s.calls))
	}
}

func TestSignAll_Failure(t *testing.T) {
	s := &fakeSigner{failOn: "b.dll"}
	dir := binDir(t, "a.dll", "b.dll", "c.dll")
	_, err := SignAll(context.Background(), s, dir, windowsConfig(t, "Release", nil), nil)
	var signErr *builderr.SigningError
	if !errors.As(err, &signErr) {
		t.Fatalf("SignAll() error = %v, want *SigningError", err)
	}
	if filepath.Base(signErr.File) != "b.dll" || signErr.Digest != "sha1" {
		t.Errorf("SigningError = %+v", signErr)
	}
	// a.dll twice, then the failing call; c.dll is never reached
	if len(s.calls) != 3 {
		t.Errorf("Sign called %d times, want 3", len(s.calls))
	}
}

func TestSignAll_NoBinDir(t *testing.T) {
	signed, err := SignAll(context.Background(), &fakeSigner{}, filepath.Join(t.TempDir(), "bin"), windowsConfig(t, "Release", nil), nil)
	if err != nil || signed != nil {
		t.Errorf("SignAll() = %v, %v", signed, err)
	}
}

type recordRunner struct {
	cmds []buildsys.Command
	err  error
}

func (r *recordRunner) Run(ctx context.Context, cmd buildsys.Command) error {
	r.cmds = append(r.cmds, cmd)
	return r.err
}

func TestSignToolFromEnv(t *testing.T) {
	t.Setenv(EnvSignTool, "")
	t.Setenv(EnvCert, "")
	t.Setenv(EnvPassword, "")
	t.Setenv(EnvTimestampURL, "")
	if _, err := SignToolFromEnv(&recordRunner{}, SignTool{}); builderr.ExitCode(err) != builderr.ExitSigning {
		t.Errorf("SignToolFromEnv() error = %v, want signing error", err)
	}

	t.Setenv(EnvCert, `C:\certs\odant.pfx`)
	s, err := SignToolFromEnv(&recordRunner{}, SignTool{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Path != "signtool" || s.TimestampURL != DefaultTimestampURL {
		t.Errorf("SignToolFromEnv() = %+v", s)
	}
}

func TestSignToolFromEnv_Fallback(t *testing.T) {
	t.Setenv(EnvSignTool, "")
	t.Setenv(EnvCert, "")
	t.Setenv(EnvPassword, "")
	t.Setenv(EnvTimestampURL, "http://ts.example.com")

	fallback := SignTool{Path: `C:\sdk\signtool.exe`, CertFile: `C:\certs\profile.pfx`, TimestampURL: "http://ts.profile"}
	s, err := SignToolFromEnv(&recordRunner{}, fallback)
	if err != nil {
		t.Fatal(err)
	}
	if s.Path != fallback.Path || s.CertFile != fallback.CertFile {
		t.Errorf("SignToolFromEnv() = %+v, want fallback path and certificate", s)
	}
	if s.TimestampURL != "http://ts.example.com" {
		t.Errorf("TimestampURL = %q, the environment must win", s.TimestampURL)
	}
	if got := os.Getenv(EnvCert); got != "" {
		t.Errorf("%s = %q, the environment must not change", EnvCert, got)
	}
}

func TestSignTool_Args(t *testing.T) {
	s := &SignTool{CertFile: "c.pfx", Password: "secret", TimestampURL: "http://ts"}
	tests := []struct {
		digest    Digest
		timestamp bool
		want      string
	}{
		{SHA1, true, "sign /fd sha1 /f c.pfx /p secret /t http://ts a.dll"},
		{SHA256, true, "sign /fd sha256 /f c.pfx /p secret /as /tr http://ts /td sha256 a.dll"},
		{SHA1, false, "sign /fd sha1 /f c.pfx /p secret a.dll"},
		{SHA256, false, "sign /fd sha256 /f c.pfx /p secret /as a.dll"},
	}
	for _, tt := range tests {
		if got := strings.Join(s.Args("a.dll", tt.digest, tt.timestamp), " "); got != tt.want {
			t.Errorf("Args(%s, %v) = %q, want %q", tt.digest, tt.timestamp, got, tt.want)
		}
	}
}

func TestSignTool_SignRedactsPassword(t *testing.T) {
	r := &recordRunner{err: &builderr.NativeBuildError{Tool: "signtool", Args: []string{"sign", "/p", "secret"}, ExitCode: 1}}
	s := &SignTool{Path: "signtool", CertFile: "c.pfx", Password: "secret", Runner: r}

	err := s.Sign(context.Background(), "a.dll", SHA256, false)
	var signErr *builderr.SigningError
	if !errors.As(err, &signErr) {
		t.Fatalf("Sign() error = %v, want *SigningError", err)
	}
	var nerr *builderr.NativeBuildError
	if !errors.As(err, &nerr) {
		t.Fatalf("Sign() error = %v, want wrapped *NativeBuildError", err)
	}
	if strings.Contains(strings.Join(nerr.Args, " "), "secret") {
		t.Errorf("password leaked in %v", nerr.Args)
	}
	if builderr.ExitCode(err) != builderr.ExitSigning {
		t.Errorf("ExitCode() = %d, want %d", builderr.ExitCode(err), builderr.ExitSigning)
	}
}
