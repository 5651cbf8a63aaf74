//go:build !unix && !windows

package lockedfile

import (
	"errors"
	"os"
)

func lockFile(f *os.File) error { return errors.ErrUnsupported }

func unlockFile(f *os.File) error { return errors.ErrUnsupported }
