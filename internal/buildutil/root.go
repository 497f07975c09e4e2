// Package buildutil locates the project root for a Brainfuck source
// file by walking up from it looking for a project manifest.
package buildutil

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrNoProjectRoot is returned when no bf.json is found walking up from
// the starting directory to the filesystem root.
var ErrNoProjectRoot = errors.New("buildutil: no bf.json found")

// FindRoot walks up from dir looking for a bf.json manifest, returning
// the directory that contains it. Callers that don't need a manifest
// (running a single .bf file with default settings) can ignore the
// error entirely.
func FindRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(abs, "bf.json")); err == nil {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", ErrNoProjectRoot
		}
		abs = parent
	}
}
