// Package fsutil provides file system lookup helpers for manifest discovery
// and user location functions.
package fsutil

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// FindFilesByExtension returns the full paths of all files under path with
// the given extension. A path naming a regular file returns just that file,
// so callers can accept either a single manifest or a directory of them.
func FindFilesByExtension(path string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	var files []string
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), extension) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// SingleGlob resolves exactly one file under dir matching any of the glob
// patterns. Zero or multiple matches are errors naming the patterns and the
// count, which makes it suitable inside location functions that must map a
// coordinate assignment to one artifact.
func SingleGlob(dir string, patterns ...string) (string, error) {
	var all []string
	for _, pat := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pat))
		if err != nil {
			return "", fmt.Errorf("bad pattern %q: %w", pat, err)
		}
		all = append(all, matches...)
	}
	if len(all) != 1 {
		return "", fmt.Errorf("found %d candidates for patterns %v in %s", len(all), patterns, dir)
	}
	return all[0], nil
}
