// Package build loads the optional bf.json project manifest that
// overrides runtime defaults (tape size, interior offset, optimization
// level, compilation cache directory).
package build

import (
	"encoding/json"
	"os"
	"path/filepath"

	"bf/internal/buildutil"
)

// DefaultTapeCells is 2^27, the tape size the Rust reference hardcodes.
const DefaultTapeCells = 1 << 27

// DefaultTapeOffset is the interior starting offset the reference uses,
// a magic constant with no principled basis; kept as a default but
// overridable via bf.json.
const DefaultTapeOffset = 9_000_000

// Manifest is the shape of bf.json: per-project overrides for the
// runtime defaults a Brainfuck JIT needs.
type Manifest struct {
	Name       string `json:"name"`
	TapeCells  int    `json:"tapeCells"`
	TapeOffset int    `json:"tapeOffset"`
	OptLevel   string `json:"optLevel"`
	CacheDir   string `json:"cacheDir"`
}

// defaultManifest returns the manifest used when no bf.json is found.
func defaultManifest(root string) *Manifest {
	return &Manifest{
		Name:       filepath.Base(root),
		TapeCells:  DefaultTapeCells,
		TapeOffset: DefaultTapeOffset,
		OptLevel:   "none",
	}
}

// Load resolves a bf.json manifest starting from dir, the directory
// containing the source file being run. It is not an error for no
// manifest to exist: a single .bf file runs fine with defaults.
func Load(dir string) (*Manifest, error) {
	root, err := buildutil.FindRoot(dir)
	if err != nil {
		return defaultManifest(dir), nil
	}

	data, err := os.ReadFile(filepath.Join(root, "bf.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return defaultManifest(root), nil
		}
		return nil, err
	}

	m := defaultManifest(root)
	if err := json.Unmarshal(data, m); err != nil {
		return nil, err
	}
	if m.TapeCells <= 0 {
		m.TapeCells = DefaultTapeCells
	}
	return m, nil
}
