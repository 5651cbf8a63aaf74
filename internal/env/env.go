package env

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// WorkDirEnv overrides the workspace directory.
const WorkDirEnv = "FIPKG_WORKDIR"

// WorkDir returns the workspace holding sources, scratch trees and published
// packages: $FIPKG_WORKDIR, or .fipkg under the user cache directory.
func WorkDir() (string, error) {
	if dir := os.Getenv(WorkDirEnv); dir != "" {
		return filepath.Abs(dir)
	}
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userCacheDir, ".fipkg"), nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Every
// named file must exist. With no names, ".env" in the working directory is
// loaded when present.
func LoadDotEnv(names ...string) ([]string, error) {
	if len(names) == 0 {
		if err := godotenv.Load(".env"); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, nil
			}
			return nil, err
		}
		return []string{".env"}, nil
	}
	var loaded []string
	for _, name := range names {
		if err := godotenv.Load(name); err != nil {
			return loaded, err
		}
		loaded = append(loaded, name)
	}
	return loaded, nil
}
