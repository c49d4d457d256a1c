package kiln

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Directories never worth walking, regardless of configured excludes.
var skipDirNames = map[string]bool{
	".git":         true,
	".hg":          true,
	"node_modules": true,
}

// discover walks root and returns the files whose lowercased extension is
// in exts, excluding anything under a skipped directory, anything matching
// an exclusion glob, and anything inside outDir. The walk is lexical, so
// the result order is deterministic and duplicate-free.
func discover(root, outDir string, exts []string, excludes []string) ([]string, error) {
	extSet := make(map[string]bool, len(exts))
	for _, e := range exts {
		extSet[e] = true
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve source root: %w", err)
	}
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output root: %w", err)
	}

	var files []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == absRoot {
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path == absOut || skipDirNames[d.Name()] || excluded(rel, excludes) {
				return fs.SkipDir
			}
			return nil
		}
		if excluded(rel, excludes) {
			return nil
		}
		if extSet[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

// excluded reports whether the slash-separated relative path matches any
// exclusion glob. For directories a pattern like "build/**" also matches
// the directory itself so the walk can prune it.
func excluded(rel string, patterns []string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
		if trimmed, found := strings.CutSuffix(pat, "/**"); found {
			if ok, _ := doublestar.Match(trimmed, rel); ok {
				return true
			}
		}
	}
	return false
}
