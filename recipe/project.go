package recipe

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Project is the working source tree of one build: the pristine source
// copied to scratch space and patched for Config.
type Project struct {
	Dir    string
	DirFS  fs.FS
	Config Config
}

// NewProject returns a Project rooted at dir.
func NewProject(dir string, cfg Config) *Project {
	return &Project{Dir: dir, DirFS: os.DirFS(dir), Config: cfg}
}

// Path returns the host path of the slash-separated name inside the project.
func (p *Project) Path(name string) string {
	return filepath.Join(p.Dir, filepath.FromSlash(name))
}

// Exists reports whether name exists in the project.
func (p *Project) Exists(name string) bool {
	_, err := fs.Stat(p.DirFS, name)
	return err == nil
}
