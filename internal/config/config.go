// Package config loads build profiles.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/odant/conan-freeimage/recipe"
	"github.com/odant/conan-freeimage/recipe/freeimage"
)

// Profile holds the defaults of a build: settings, where the source comes
// from, where packages go and how DLLs are signed. Command line flags take
// precedence over every field.
type Profile struct {
	Settings  recipe.Settings `yaml:"settings"`
	Source    SourceConfig    `yaml:"source"`
	Workspace string          `yaml:"workspace,omitempty"`
	Jobs      int             `yaml:"jobs,omitempty"`
	Sign      SignConfig      `yaml:"sign"`
	Matrix    recipe.Matrix   `yaml:"matrix,omitempty"`
}

// SourceConfig locates the upstream tree.
type SourceConfig struct {
	URL string `yaml:"url"`
	Ref string `yaml:"ref"`
	// Dir is an existing source tree used as is instead of fetching URL.
	Dir string `yaml:"dir,omitempty"`
	// Patches is a directory overriding the built-in patch files.
	Patches string `yaml:"patches,omitempty"`
}

// SignConfig configures signtool. Secrets normally come from the
// environment or EnvFiles rather than the profile itself.
type SignConfig struct {
	SignTool     string   `yaml:"signtool,omitempty"`
	CertFile     string   `yaml:"cert,omitempty"`
	TimestampURL string   `yaml:"timestamp_url,omitempty"`
	EnvFiles     []string `yaml:"env_files,omitempty"`
}

// Default returns the profile used when no file is given.
func Default() *Profile {
	p := &Profile{Settings: HostSettings()}
	applyDefaults(p)
	return p
}

// Load reads the profile at path. Environment variables in the file are
// expanded and relative directories are resolved against the file's
// directory.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	if p.Jobs < 0 {
		return nil, fmt.Errorf("profile %s: jobs must not be negative", path)
	}

	base := filepath.Dir(path)
	for _, dir := range []*string{&p.Source.Dir, &p.Source.Patches, &p.Workspace, &p.Sign.CertFile} {
		if *dir != "" && !filepath.IsAbs(*dir) {
			*dir = filepath.Join(base, *dir)
		}
	}
	for i, f := range p.Sign.EnvFiles {
		if !filepath.IsAbs(f) {
			p.Sign.EnvFiles[i] = filepath.Join(base, f)
		}
	}

	p.Settings = p.Settings.Merge(HostSettings())
	applyDefaults(&p)
	return &p, nil
}

func applyDefaults(p *Profile) {
	if p.Source.URL == "" {
		p.Source.URL = freeimage.SourceURL
	}
	if p.Source.Ref == "" {
		p.Source.Ref = freeimage.SourceTag
	}
}

// HostSettings returns settings describing the running host: the native
// compiler of the OS, its architecture and a Release build.
func HostSettings() recipe.Settings {
	s := recipe.Settings{BuildType: string(recipe.Release), Arch: hostArch(runtime.GOARCH)}
	switch runtime.GOOS {
	case "windows":
		s.OS = string(recipe.Windows)
		s.Compiler = recipe.VisualStudio
		s.CompilerVersion = "17"
		s.CompilerRuntime = "MD"
	default:
		s.OS = string(recipe.Linux)
		s.Compiler = recipe.GCC
	}
	return s
}

func hostArch(goarch string) string {
	switch goarch {
	case "amd64":
		return string(recipe.X86_64)
	case "386":
		return string(recipe.X86)
	case "arm":
		return string(recipe.ARMv7)
	case "mips", "mipsle":
		return string(recipe.MIPS)
	}
	return goarch
}
