// Package assets locates the panel's asset root and keeps an eye on it.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	webassets "matrixpanel"
)

const (
	// EnvAssetDir overrides the asset root location.
	EnvAssetDir = "MATRIX_ASSET_DIR"
	// IndexFile is served for "/" and for directory requests.
	IndexFile = "index.html"

	defaultDirName = "public"
)

// Source tells where served files come from.
type Source string

const (
	SourceDisk     Source = "disk"
	SourceEmbedded Source = "embedded"
)

var (
	root           string
	once           sync.Once
	executablePath = os.Executable
)

func resolveRoot() {
	candidate := os.Getenv(EnvAssetDir)
	if candidate == "" {
		candidate = defaultDirName
		if exe, err := executablePath(); err == nil {
			if resolved, err := filepath.EvalSymlinks(exe); err == nil {
				exe = resolved
			}
			candidate = filepath.Join(filepath.Dir(exe), defaultDirName)
		}
	}
	if abs, err := filepath.Abs(candidate); err == nil {
		candidate = abs
	}
	root = filepath.Clean(candidate)
}

// Root returns the directory whose files are exposed over HTTP: the value of
// MATRIX_ASSET_DIR, or "public" next to the executable.
func Root() string {
	once.Do(resolveRoot)
	return root
}

// SetRootForTest resets the cached root so tests can override MATRIX_ASSET_DIR.
func SetRootForTest(dir string) {
	if dir != "" {
		os.Setenv(EnvAssetDir, dir)
	}
	root = ""
	once = sync.Once{}
}

// Open returns a read-only view of dir. When dir does not exist the bundled
// panel is returned instead.
func Open(dir string) (fs.FS, Source, error) {
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return os.DirFS(dir), SourceDisk, nil
	case err == nil:
		return nil, "", fmt.Errorf("asset root %s is not a directory", dir)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, "", fmt.Errorf("stat asset root %s: %w", dir, err)
	}

	log.Printf("WARN: asset directory %s not found, serving bundled panel", dir)
	sub, err := fs.Sub(webassets.FS, defaultDirName)
	if err != nil {
		return nil, "", fmt.Errorf("open bundled panel: %w", err)
	}
	return sub, SourceEmbedded, nil
}

// HasIndex reports whether fsys carries a top-level index.html.
func HasIndex(fsys fs.FS) bool {
	info, err := fs.Stat(fsys, IndexFile)
	return err == nil && !info.IsDir()
}
