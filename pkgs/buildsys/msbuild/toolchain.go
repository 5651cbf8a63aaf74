package msbuild

import (
	"encoding/xml"
	"os"

	"github.com/odant/conan-freeimage/recipe"
)

// PropsFile is the name of the generated toolchain property file.
const PropsFile = "fipkgtoolchain.props"

// Toolchain carries the MSBuild overrides of one configuration. Empty fields
// keep the project's own setting.
type Toolchain struct {
	PlatformToolset string
	RuntimeLibrary  string
}

var runtimeLibraries = map[string]string{
	"MD":  "MultiThreadedDLL",
	"MDd": "MultiThreadedDebugDLL",
	"MT":  "MultiThreaded",
	"MTd": "MultiThreadedDebug",
}

// toolsets maps Visual Studio product versions and msvc compiler versions
// to platform toolsets.
var toolsets = map[string]string{
	"14":  "v140",
	"15":  "v141",
	"16":  "v142",
	"17":  "v143",
	"190": "v140",
	"191": "v141",
	"192": "v142",
	"193": "v143",
	"194": "v143",
}

// NewToolchain derives the overrides for cfg. A clang compiler with a
// Windows runtime builds with ClangCL.
func NewToolchain(cfg recipe.Config) Toolchain {
	c := cfg.Compiler()
	t := Toolchain{RuntimeLibrary: runtimeLibraries[c.Runtime]}
	if c.Name == recipe.Clang {
		t.PlatformToolset = "ClangCL"
	} else {
		t.PlatformToolset = toolsets[c.Version]
	}
	return t
}

type propsProject struct {
	XMLName             xml.Name             `xml:"Project"`
	Xmlns               string               `xml:"xmlns,attr"`
	PropertyGroup       propertyGroup        `xml:"PropertyGroup"`
	ItemDefinitionGroup *itemDefinitionGroup `xml:"ItemDefinitionGroup,omitempty"`
}

type propertyGroup struct {
	Label           string `xml:"Label,attr"`
	PlatformToolset string `xml:"PlatformToolset,omitempty"`
}

type itemDefinitionGroup struct {
	ClCompile struct {
		RuntimeLibrary string `xml:"RuntimeLibrary"`
	} `xml:"ClCompile"`
}

// Marshal renders t as an MSBuild property file.
func (t Toolchain) Marshal() ([]byte, error) {
	p := propsProject{
		Xmlns:         "http://schemas.microsoft.com/developer/msbuild/2003",
		PropertyGroup: propertyGroup{Label: "fipkg", PlatformToolset: t.PlatformToolset},
	}
	if t.RuntimeLibrary != "" {
		p.ItemDefinitionGroup = &itemDefinitionGroup{}
		p.ItemDefinitionGroup.ClCompile.RuntimeLibrary = t.RuntimeLibrary
	}
	data, err := xml.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(data, '\n')...), nil
}

// WriteFile writes t to path.
func (t Toolchain) WriteFile(path string) error {
	data, err := t.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
