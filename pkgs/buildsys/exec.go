package buildsys

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/odant/conan-freeimage/internal/builderr"
)

// outputTail bounds the tool output kept for error reports.
const outputTail = 64 << 10

// ExecRunner runs commands as child processes. Output is always captured
// for error reports; it is also copied to Stdout and Stderr when they are
// set.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

var _ Runner = (*ExecRunner)(nil)

func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = MergeEnv(os.Environ(), c.Env)
	}

	tail := &tailBuffer{max: outputTail}
	cmd.Stdout = tee(tail, r.Stdout)
	cmd.Stderr = tee(tail, r.Stderr)

	if err := cmd.Run(); err != nil {
		nerr := &builderr.NativeBuildError{
			Tool:   c.Name,
			Args:   c.Args,
			Output: tail.String(),
			Err:    err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			nerr.ExitCode = exitErr.ExitCode()
		}
		return nerr
	}
	return nil
}

func tee(buf io.Writer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

// tailBuffer keeps the last max bytes written to it. Stdout and stderr of a
// process share one buffer, so writes are serialized.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// MergeEnv returns base with override applied, sorted by key. base uses the
// "KEY=value" form of os.Environ.
func MergeEnv(base []string, override map[string]string) []string {
	envMap := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range override {
		envMap[k] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}
