package gnumake

import (
	"sort"
	"strings"

	"github.com/odant/conan-freeimage/recipe"
)

// Flags maps a flag variable (CFLAGS, CXXFLAGS, LDFLAGS) to its value.
type Flags map[string]string

const (
	baseCFLAGS   = "-fPIC -fexceptions -fvisibility=hidden"
	baseCXXFLAGS = baseCFLAGS + " -std=c++14 -Wno-ctor-dtor-privacy"

	debugFlags   = "-Og -g -ggdb"
	releaseFlags = "-O3 -DNDEBUG"
)

// NewFlags assembles the compiler and linker flags for cfg. Every build type
// other than Debug is optimized. Only x86_64 and x86 select a word size;
// other architectures rely on the toolchain default.
func NewFlags(cfg recipe.Config) Flags {
	f := Flags{
		"CFLAGS":   baseCFLAGS,
		"CXXFLAGS": baseCXXFLAGS,
	}
	opt := releaseFlags
	if cfg.Debug() {
		opt = debugFlags
	}
	f.append("CFLAGS", opt)
	f.append("CXXFLAGS", opt)

	var word string
	switch cfg.Arch() {
	case recipe.X86_64:
		word = "-m64"
	case recipe.X86:
		word = "-m32"
	}
	if word != "" {
		f.prepend("CFLAGS", word)
		f.prepend("CXXFLAGS", word)
		f["LDFLAGS"] = word
	}
	return f
}

func (f Flags) append(key, frag string) {
	if f[key] == "" {
		f[key] = frag
		return
	}
	f[key] += " " + frag
}

func (f Flags) prepend(key, frag string) {
	if f[key] == "" {
		f[key] = frag
		return
	}
	f[key] = frag + " " + f[key]
}

// String renders the flags as "KEY=value" lines sorted by key.
func (f Flags) String() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k + "=" + f[k] + "\n")
	}
	return b.String()
}
