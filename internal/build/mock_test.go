package build

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/odant/conan-freeimage/internal/sign"
	"github.com/odant/conan-freeimage/pkgs/buildsys"
)

// fakeRunner records commands and creates the files a tool would produce,
// relative to the command's working directory.
type fakeRunner struct {
	mu      sync.Mutex
	cmds    []buildsys.Command
	outputs map[string][]string // tool name -> produced files
	fail    map[string]error    // tool name -> error returned
}

func (r *fakeRunner) Run(ctx context.Context, cmd buildsys.Command) error {
	r.mu.Lock()
	r.cmds = append(r.cmds, cmd)
	r.mu.Unlock()
	if err := r.fail[cmd.Name]; err != nil {
		return err
	}
	for _, name := range r.outputs[cmd.Name] {
		path := filepath.Join(cmd.Dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(cmd.Name+" output"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRunner) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.cmds {
		out = append(out, c.Name)
	}
	return out
}

type signCall struct {
	file      string
	digest    sign.Digest
	timestamp bool
}

// fakeSigner records sign requests.
type fakeSigner struct {
	calls []signCall
	err   error
}

func (s *fakeSigner) Sign(ctx context.Context, path string, digest sign.Digest, timestamp bool) error {
	s.calls = append(s.calls, signCall{file: filepath.Base(path), digest: digest, timestamp: timestamp})
	return s.err
}

// lookPathAll finds every tool.
func lookPathAll(file string) (string, error) {
	return filepath.Join("/usr/bin", file), nil
}
