package recipe

import (
	"slices"
	"strings"

	"github.com/odant/conan-freeimage/internal/builderr"
)

// OS is the target operating system.
type OS string

const (
	Windows OS = "Windows"
	Linux   OS = "Linux"
)

// BuildType is the native build configuration.
type BuildType string

const (
	Debug          BuildType = "Debug"
	Release        BuildType = "Release"
	RelWithDebInfo BuildType = "RelWithDebInfo"
)

// Arch is the target architecture.
type Arch string

const (
	X86_64 Arch = "x86_64"
	X86    Arch = "x86"
	MIPS   Arch = "mips"
	ARMv7  Arch = "armv7"
)

// Compiler names accepted in settings.
const (
	VisualStudio = "Visual Studio"
	MSVC         = "msvc"
	GCC          = "gcc"
	Clang        = "clang"
)

// Settings is a raw settings request as read from flags or a profile.
// Empty fields are left for Resolve to reject or default.
type Settings struct {
	OS              string `yaml:"os"`
	Compiler        string `yaml:"compiler"`
	CompilerVersion string `yaml:"compiler_version"`
	CompilerRuntime string `yaml:"compiler_runtime"`
	CompilerLibCxx  string `yaml:"compiler_libcxx"`
	BuildType       string `yaml:"build_type"`
	Arch            string `yaml:"arch"`
	DLLSign         *bool  `yaml:"dll_sign"`
}

// Merge returns s with every empty field filled from defaults. The compiler
// and its version, runtime and C++ library form one unit: they come from
// defaults only when s names no compiler or the same one. A runtime is
// Windows-only and is not carried to another target OS.
func (s Settings) Merge(defaults Settings) Settings {
	pick := func(v, d string) string {
		if v != "" {
			return v
		}
		return d
	}
	out := Settings{
		OS:              pick(s.OS, defaults.OS),
		Compiler:        pick(s.Compiler, defaults.Compiler),
		CompilerVersion: s.CompilerVersion,
		CompilerRuntime: s.CompilerRuntime,
		CompilerLibCxx:  s.CompilerLibCxx,
		BuildType:       pick(s.BuildType, defaults.BuildType),
		Arch:            pick(s.Arch, defaults.Arch),
		DLLSign:         s.DLLSign,
	}
	if s.Compiler == "" || s.Compiler == defaults.Compiler {
		out.CompilerVersion = pick(s.CompilerVersion, defaults.CompilerVersion)
		out.CompilerLibCxx = pick(s.CompilerLibCxx, defaults.CompilerLibCxx)
		if s.CompilerRuntime == "" && (out.OS == defaults.OS || OS(out.OS) == Windows) {
			out.CompilerRuntime = defaults.CompilerRuntime
		}
	}
	if out.DLLSign == nil {
		out.DLLSign = defaults.DLLSign
	}
	return out
}

// Compiler identifies the compiler used for a build.
type Compiler struct {
	Name    string
	Version string
	Runtime string // MSVC runtime (MD, MDd, MT, MTd); empty for GNU runtimes
}

// VisualStudioFamily reports whether c is a Visual Studio compiler.
func (c Compiler) VisualStudioFamily() bool {
	return c.Name == VisualStudio || c.Name == MSVC
}

// GCCFamily reports whether c accepts GCC-style command lines.
func (c Compiler) GCCFamily() bool {
	return c.Name == GCC || c.Name == Clang
}

func (c Compiler) String() string {
	name := strings.ReplaceAll(c.Name, " ", "")
	return name + c.Version
}

// Config is a resolved build configuration. It is immutable: the zero value
// is invalid and the only way to obtain one is Settings.Resolve.
type Config struct {
	os        OS
	compiler  Compiler
	buildType BuildType
	arch      Arch
	dllSign   *bool
}

func (c Config) OS() OS               { return c.os }
func (c Config) Compiler() Compiler   { return c.compiler }
func (c Config) BuildType() BuildType { return c.buildType }
func (c Config) Arch() Arch           { return c.arch }

// DLLSign returns the signing option and whether it exists for this
// configuration. It exists only when the target OS is Windows.
func (c Config) DLLSign() (sign, ok bool) {
	if c.dllSign == nil {
		return false, false
	}
	return *c.dllSign, true
}

// Sign reports whether produced DLLs must be signed.
func (c Config) Sign() bool {
	sign, ok := c.DLLSign()
	return ok && sign
}

// WindowsABI reports whether the compiler produces Windows-ABI binaries
// through the Visual Studio toolchain: a native Visual Studio compiler, or a
// clang cross compiler configured with a Windows runtime.
func (c Config) WindowsABI() bool {
	if c.os != Windows {
		return false
	}
	if c.compiler.VisualStudioFamily() {
		return true
	}
	return c.compiler.Name == Clang && c.compiler.Runtime != ""
}

// Debug reports whether the build type is Debug.
func (c Config) Debug() bool { return c.buildType == Debug }

// String returns the canonical configuration string, used to name package
// directories and cache entries.
func (c Config) String() string {
	parts := []string{string(c.os), c.compiler.String()}
	if c.compiler.Runtime != "" {
		parts = append(parts, c.compiler.Runtime)
	}
	parts = append(parts, string(c.arch), string(c.buildType))
	if sign, ok := c.DLLSign(); ok && sign {
		parts = append(parts, "signed")
	}
	return strings.Join(parts, "-")
}

// Values returns the settings of c as key/value pairs, keyed like Settings'
// yaml tags. The signing option is only present on Windows.
func (c Config) Values() map[string]string {
	m := map[string]string{
		"os":               string(c.os),
		"compiler":         c.compiler.Name,
		"compiler_version": c.compiler.Version,
		"build_type":       string(c.buildType),
		"arch":             string(c.arch),
	}
	if c.compiler.Runtime != "" {
		m["compiler_runtime"] = c.compiler.Runtime
	}
	if sign, ok := c.DLLSign(); ok {
		m["dll_sign"] = boolString(sign)
	}
	return m
}

func boolString(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

var (
	validOS        = []OS{Windows, Linux}
	validBuildType = []BuildType{Debug, Release, RelWithDebInfo}
	validArch      = []Arch{X86_64, X86, MIPS, ARMv7}
	validRuntime   = []string{"MD", "MDd", "MT", "MTd"}
)

// Resolve validates s and returns the build configuration it describes.
//
// The signing option is removed unless the target is Windows, where it
// defaults to enabled. The compiler's C++ library setting is discarded since
// the library exposes a pure C interface.
func (s Settings) Resolve() (Config, error) {
	targetOS := OS(s.OS)
	if !slices.Contains(validOS, targetOS) {
		return Config{}, &builderr.ConfigurationError{Setting: "os", Value: s.OS, Reason: "supported values are Windows, Linux"}
	}
	compiler := Compiler{Name: s.Compiler, Version: s.CompilerVersion, Runtime: s.CompilerRuntime}
	if !compiler.VisualStudioFamily() && !compiler.GCCFamily() {
		return Config{}, &builderr.ConfigurationError{Setting: "compiler", Value: s.Compiler, Reason: "supported values are Visual Studio, msvc, gcc, clang"}
	}
	if compiler.Runtime != "" {
		if !slices.Contains(validRuntime, compiler.Runtime) {
			return Config{}, &builderr.ConfigurationError{Setting: "compiler.runtime", Value: compiler.Runtime, Reason: "supported values are MD, MDd, MT, MTd"}
		}
		if targetOS != Windows {
			return Config{}, &builderr.ConfigurationError{Setting: "compiler.runtime", Value: compiler.Runtime, Reason: "a Windows runtime requires os=Windows"}
		}
		if compiler.Name == GCC {
			return Config{}, &builderr.ConfigurationError{Setting: "compiler.runtime", Value: compiler.Runtime, Reason: "gcc links the GNU runtime"}
		}
	}
	buildType := BuildType(s.BuildType)
	if !slices.Contains(validBuildType, buildType) {
		return Config{}, &builderr.ConfigurationError{Setting: "build_type", Value: s.BuildType, Reason: "supported values are Debug, Release, RelWithDebInfo"}
	}
	arch := Arch(s.Arch)
	if !slices.Contains(validArch, arch) {
		return Config{}, &builderr.ConfigurationError{Setting: "arch", Value: s.Arch, Reason: "supported values are x86_64, x86, mips, armv7"}
	}

	cfg := Config{os: targetOS, compiler: compiler, buildType: buildType, arch: arch}
	if targetOS == Windows {
		sign := true
		if s.DLLSign != nil {
			sign = *s.DLLSign
		}
		cfg.dllSign = &sign
	}
	return cfg, nil
}
