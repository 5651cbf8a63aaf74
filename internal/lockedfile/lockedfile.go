// Package lockedfile provides an inter-process mutex backed by a lock file.
package lockedfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// A Mutex provides mutual exclusion across processes through an exclusive
// lock on the file at Path. The file is created if needed and never removed.
type Mutex struct {
	Path string
}

// MutexAt returns a Mutex locking the file at path.
func MutexAt(path string) *Mutex {
	if path == "" {
		panic("lockedfile.MutexAt: empty path")
	}
	return &Mutex{Path: path}
}

func (mu *Mutex) String() string {
	return fmt.Sprintf("lockedfile.Mutex(%s)", mu.Path)
}

// Lock blocks until it holds the lock, then returns a function that
// releases it.
func (mu *Mutex) Lock() (unlock func(), err error) {
	if err := os.MkdirAll(filepath.Dir(mu.Path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(mu.Path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, err
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, &os.PathError{Op: "lock", Path: mu.Path, Err: err}
	}
	return func() {
		unlockFile(f)
		f.Close()
	}, nil
}
