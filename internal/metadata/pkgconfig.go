package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PkgConfigPath returns the pkg-config file of p relative to the package
// root, or "" when p has no pkg-config name.
func (p *Package) PkgConfigPath() string {
	if p.Lookup.PkgConfig == "" {
		return ""
	}
	return filepath.Join("lib", "pkgconfig", p.Lookup.PkgConfig+".pc")
}

// PkgConfig renders the pkg-config description of p. Paths are relative to
// the file itself so the package can be relocated.
func (p *Package) PkgConfig(description string) string {
	var b strings.Builder
	b.WriteString("prefix=${pcfiledir}/../..\n")
	b.WriteString("includedir=${prefix}/include\n")
	b.WriteString("libdir=${prefix}/lib\n\n")
	fmt.Fprintf(&b, "Name: %s\n", p.Name)
	if description != "" {
		fmt.Fprintf(&b, "Description: %s\n", description)
	}
	fmt.Fprintf(&b, "Version: %s\n", p.Version)
	b.WriteString("Cflags: -I${includedir}\n")
	b.WriteString("Libs: -L${libdir}")
	for _, lib := range p.Libs {
		b.WriteString(" -l" + lib)
	}
	b.WriteString("\n")
	return b.String()
}

// WritePkgConfig writes the pkg-config file of p into the package in dir.
func (p *Package) WritePkgConfig(dir, description string) error {
	rel := p.PkgConfigPath()
	if rel == "" {
		return nil
	}
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(p.PkgConfig(description)), 0o644)
}
